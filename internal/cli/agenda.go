package cli

import (
	"time"

	"github.com/spf13/cobra"

	"confguide/internal/agenda"
	"confguide/internal/model"
	"confguide/internal/store"
)

func newAgendaCmd(a *app) *cobra.Command {
	var favoritesOnly bool
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Print the full agenda grouped by day and time slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			return a.withStore(func(st *store.Store) error {
				var (
					items []model.AgendaItem
					err   error
				)
				if favoritesOnly {
					items, err = st.FavoriteItems(ctx)
				} else {
					items, err = st.Items(ctx)
				}
				if err != nil {
					return err
				}
				favs, err := favoriteSet(cmd, st)
				if err != nil {
					return err
				}
				writeAgenda(a.out, agenda.Organize(items, a.loc), a.loc, favs)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&favoritesOnly, "favorites", false, "Only show favorite sessions")
	return cmd
}

func newNowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Show sessions in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(st *store.Store) error {
				items, err := st.Items(commandContext(cmd))
				if err != nil {
					return err
				}
				favs, err := favoriteSet(cmd, st)
				if err != nil {
					return err
				}
				writeGroups(a.out, "Happening now", agenda.HappeningNow(items, a.now()), a.loc, favs)
				return nil
			})
		},
	}
}

func newNextCmd(a *app) *cobra.Command {
	var ahead, beyond time.Duration
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show upcoming sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("ahead") {
				ahead = a.cfg.LookAheadDuration()
			}
			if !cmd.Flags().Changed("beyond") {
				beyond = a.cfg.LookBeyondDuration()
			}
			return a.withStore(func(st *store.Store) error {
				items, err := st.Items(commandContext(cmd))
				if err != nil {
					return err
				}
				favs, err := favoriteSet(cmd, st)
				if err != nil {
					return err
				}
				writeGroups(a.out, "Up next", agenda.UpNext(items, a.now(), ahead, beyond), a.loc, favs)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ahead, "ahead", 0, "How far ahead a session may start (default from config)")
	cmd.Flags().DurationVar(&beyond, "beyond", 0, "How long after the first upcoming slot to include (default from config)")
	return cmd
}

func favoriteSet(cmd *cobra.Command, st *store.Store) (map[string]bool, error) {
	ids, err := st.Favorites(commandContext(cmd))
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
