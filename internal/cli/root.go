// Package cli implements the confguide command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"confguide/internal/config"
	"confguide/internal/eventmobi"
	"confguide/internal/ics"
	appLog "confguide/internal/log"
	"confguide/internal/pipeline"
	"confguide/internal/store"
)

const defaultConfigPath = "./config.yaml"

// app is the state shared by every subcommand once the root pre-run has
// loaded the config.
type app struct {
	configPath string
	logLevel   string
	atFlag     string

	cfg *config.Config
	loc *time.Location
	at  time.Time // zero unless --at was given
	out io.Writer
}

// Execute runs the root command against os.Args.
func Execute(version string) error {
	return newRootCmd(version, os.Stdout).Execute()
}

func newRootCmd(version string, out io.Writer) *cobra.Command {
	a := &app{out: out}

	cmd := &cobra.Command{
		Use:           "confguide",
		Short:         "Conference agenda guide",
		Long:          "confguide syncs a conference schedule and shows what is on now and next.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	cmd.SetOut(out)

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", defaultConfigPath, "Path to config file")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")
	pf.StringVar(&a.atFlag, "at", "", `Reference time instead of now (RFC 3339 or "2006-01-02 15:04" local)`)

	cmd.AddCommand(
		newServeCmd(a),
		newSyncCmd(a),
		newAgendaCmd(a),
		newNowCmd(a),
		newNextCmd(a),
		newShowCmd(a),
		newFavoriteCmd(a),
		newFeedbackCmd(a),
		newCaptureCmd(a),
	)
	return cmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", a.configPath, err)
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	appLog.Init(appLog.Config{Level: appLog.ParseLevel(level), Format: cfg.LogFormat})

	loc, err := cfg.Location()
	if err != nil {
		appLog.Warn("invalid timezone; using UTC", "timezone", cfg.Timezone, "error", err.Error())
	}
	a.loc = loc

	if a.atFlag != "" {
		at, err := parseAt(a.atFlag, loc)
		if err != nil {
			return err
		}
		a.at = at
	}
	return nil
}

// now is the reference instant for agenda queries.
func (a *app) now() time.Time {
	if !a.at.IsZero() {
		return a.at
	}
	return time.Now()
}

func (a *app) openStore() (*store.Store, error) {
	return store.Open(a.cfg.DBPath())
}

// newPipeline wires every configured source into a pipeline writing to st.
func (a *app) newPipeline(st *store.Store) *pipeline.Pipeline {
	cfg := a.cfg
	p := &pipeline.Pipeline{
		Sink:     st,
		Location: a.loc,
		Horizon:  time.Duration(cfg.HorizonDays) * 24 * time.Hour,
		Backfill: time.Duration(cfg.BackfillDays) * 24 * time.Hour,
		Now:      a.now,
	}

	if cfg.Eventmobi.Enabled() {
		client := eventmobi.New(eventmobi.Options{
			BaseURL:  cfg.Eventmobi.BaseURL,
			EventID:  cfg.Eventmobi.EventID,
			APIKey:   cfg.Eventmobi.APIKey,
			CacheTTL: cfg.CacheTTL(),
		})
		p.Directory = client
		p.Providers = append(p.Providers, pipeline.EventmobiSessions{Client: client})
	}

	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		if c.URL == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: c.SourceID(), URL: c.URL})
	}
	if len(sources) > 0 {
		p.Providers = append(p.Providers, pipeline.ICSFeeds{
			Fetcher: ics.NewFetcher(cfg.ICSCacheDir()),
			Sources: sources,
		})
	}
	return p
}

// withStore opens the store for the duration of fn.
func (a *app) withStore(fn func(st *store.Store) error) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			appLog.Error("close store", err)
		}
	}()
	return fn(st)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
