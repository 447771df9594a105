package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"confguide/internal/model"
	"confguide/internal/store"
)

func newShowCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one session with its speakers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			return a.withStore(func(st *store.Store) error {
				it, err := st.Item(ctx, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no session with id %q", args[0])
				}
				if err != nil {
					return err
				}
				speakers, err := st.SpeakersByIDs(ctx, it.SpeakerIDs)
				if err != nil {
					return err
				}
				fav, err := st.IsFavorite(ctx, it.ID)
				if err != nil {
					return err
				}

				doc := itemMarkdown(it, speakers, fav, a.loc)
				if !raw {
					doc = renderMarkdown(doc, 80)
				}
				_, err = fmt.Fprint(a.out, doc)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print Markdown without terminal styling")
	return cmd
}

func newFavoriteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorite",
		Short: "Manage favorite sessions",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <id>...",
			Short: "Mark sessions as favorites",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(func(st *store.Store) error {
					for _, id := range args {
						if err := st.AddFavorite(commandContext(cmd), id); err != nil {
							return err
						}
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:     "rm <id>...",
			Aliases: []string{"remove"},
			Short:   "Unmark favorite sessions",
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(func(st *store.Store) error {
					for _, id := range args {
						if err := st.RemoveFavorite(commandContext(cmd), id); err != nil {
							return err
						}
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "ls",
			Short: "List favorite sessions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := commandContext(cmd)
				return a.withStore(func(st *store.Store) error {
					ids, err := st.Favorites(ctx)
					if err != nil {
						return err
					}
					for _, id := range ids {
						it, err := st.Item(ctx, id)
						switch {
						case errors.Is(err, store.ErrNotFound):
							// Favorites survive syncs that drop their session.
							fmt.Fprintln(a.out, dimColor.Sprint("  "+id+" (not in current agenda)"))
						case err != nil:
							return err
						default:
							fmt.Fprintln(a.out, slotColor.Sprint(it.Start.In(a.loc).Format("Mon 15:04"))+" "+itemLine(it, true))
						}
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func newFeedbackCmd(a *app) *cobra.Command {
	var (
		rating  int
		comment string
	)
	cmd := &cobra.Command{
		Use:   "feedback <id>",
		Short: "Rate a session from 1 to 5",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(st *store.Store) error {
				fb := model.Feedback{ItemID: args[0], Rating: rating, Comment: comment}
				err := st.AddFeedback(commandContext(cmd), &fb)
				switch {
				case errors.Is(err, store.ErrInvalidFeedback):
					return fmt.Errorf("--rating must be between 1 and 5")
				case errors.Is(err, store.ErrNotFound):
					return fmt.Errorf("no session with id %q", args[0])
				case err != nil:
					return err
				}
				fmt.Fprintln(a.out, "feedback recorded", dimColor.Sprint(fb.ID))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&rating, "rating", 0, "Rating from 1 to 5")
	cmd.Flags().StringVar(&comment, "comment", "", "Optional comment")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}
