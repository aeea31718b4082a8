package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/strata-site/strata/server"
	"github.com/strata-site/strata/site"
)

var watchFlag bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the site and serve it with the API routes",
	Long: `Serve performs an initial build, then serves the output directory with
the registered API routes layered on top. With --watch, content, template,
and static asset changes trigger an automatic rebuild.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.LogLevel)

		svc, err := newService(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := svc.Rebuild(ctx); err != nil {
			return err
		}

		if watchFlag {
			watcher := site.NewWatcher(svc, logger, cfg.ContentDir, cfg.TemplateDir, cfg.StaticDir)
			go func() {
				if err := watcher.Run(ctx); err != nil {
					logger.Error("watcher", "error", err)
				}
			}()
		}

		srv, err := server.New(cfg, svc, logger, serverSignature())
		if err != nil {
			return err
		}
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&watchFlag, "watch", false, "rebuild when content, templates, or static assets change")
	rootCmd.AddCommand(serveCmd)
}
