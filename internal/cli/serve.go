package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"confguide/internal/capture"
	"confguide/internal/config"
	appLog "confguide/internal/log"
	"confguide/internal/refresh"
	"confguide/internal/social"
	"confguide/internal/store"
	"confguide/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		listen      string
		withCapture bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server and the scheduled sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.withStore(func(st *store.Store) error {
				return a.serve(ctx, st, withCapture)
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	cmd.Flags().BoolVar(&withCapture, "capture", false, "Capture the kiosk page after every sync")
	return cmd
}

func (a *app) serve(ctx context.Context, st *store.Store, withCapture bool) error {
	cfg := a.cfg
	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", a.loc.String(),
		"refresh", cfg.RefreshCron,
		"eventmobi", cfg.Eventmobi.Enabled(),
		"ics_count", len(cfg.ICS),
		"data_dir", cfg.DataDir,
	)

	opts := web.Options{Config: cfg, Store: st}
	if cfg.Event.Hashtag != "" {
		opts.Social = social.New(social.Options{
			Hashtag:   cfg.Event.Hashtag,
			AuthToken: cfg.Event.XAuthToken,
			CSRFToken: cfg.Event.XCSRFToken,
		})
	}

	var srv *web.Server
	p := a.newPipeline(st)
	runner, err := refresh.New(cfg.RefreshCron, a.loc, func(ctx context.Context) error {
		_, err := p.Run(ctx)
		srv.InvalidateCache()
		if withCapture {
			if cerr := a.captureKiosk(ctx); cerr != nil {
				appLog.Error("kiosk capture failed", cerr)
			}
		}
		return err
	})
	if err != nil {
		return err
	}
	opts.Refresher = runner
	srv = web.NewServer(opts)

	go func() {
		err := config.Watch(ctx, a.configPath, func(next *config.Config) {
			appLog.Info("config reloaded; sources and schedule apply on restart", "path", a.configPath)
			appLog.SetLevel(appLog.ParseLevel(next.LogLevel))
			srv.UpdateConfig(next)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("config watch stopped", err)
		}
	}()

	// The server goes up first so the initial sync can capture /kiosk.
	errCh := make(chan error, 1)
	go func() { errCh <- web.StartServer(ctx, cfg.Listen, srv) }()

	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	return <-errCh
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch every source once and store the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(st *store.Store) error {
				started := time.Now()
				snap, err := a.newPipeline(st).Run(commandContext(cmd))
				if err != nil {
					fmt.Fprintln(a.out, favColor.Sprint("sync finished with errors: ")+err.Error())
				}
				if len(snap.Items) > 0 || err == nil {
					fmt.Fprintf(a.out, "%s %d sessions, %d speakers, %d sponsors %s\n",
						titleColor.Sprint("stored"),
						len(snap.Items), len(snap.Speakers), len(snap.Sponsors),
						dimColor.Sprintf("(%s)", time.Since(started).Round(time.Millisecond)))
				}
				return err
			})
		},
	}
}

func newCaptureCmd(a *app) *cobra.Command {
	var url, output string
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Screenshot the kiosk page to a PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url != "" {
				a.cfg.Kiosk.URL = url
			}
			if output != "" {
				a.cfg.Kiosk.Output = output
			}
			if err := a.captureKiosk(commandContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "wrote", a.cfg.Kiosk.Output)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Kiosk page URL (overrides config)")
	cmd.Flags().StringVar(&output, "output", "", "PNG output path (overrides config)")
	return cmd
}

func (a *app) captureKiosk(ctx context.Context) error {
	k := a.cfg.Kiosk
	opts := capture.Options{
		URL:    k.URL,
		Output: k.Output,
		Width:  k.Width,
		Height: k.Height,
	}
	if a.cfg.BasicAuthEnabled() {
		opts.Username = a.cfg.BasicAuth.Username
		opts.Password = a.cfg.BasicAuth.Password
	}
	return capture.CaptureKiosk(ctx, opts)
}
