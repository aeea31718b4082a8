package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strata-site/strata/config"
	"github.com/strata-site/strata/content"
	"github.com/strata-site/strata/gitinfo"
	"github.com/strata-site/strata/renderer"
	"github.com/strata-site/strata/site"
	"github.com/strata-site/strata/templatex"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Strata builds and serves markdown-driven static sites",
	Long: `Strata takes a tree of markdown content, expands the configured route
patterns into one static page per entry, and either writes the result to the
output directory (build) or serves it with a small API alongside (serve).`,
	SilenceUsage: true,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

// loadConfig reads the configuration selected by --config.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// newService wires the renderer, content store, templates, and optional git
// metadata into a site service.
func newService(cfg *config.Config, logger *slog.Logger) (*site.Service, error) {
	rend := renderer.New()

	var repo *gitinfo.Repository
	if cfg.GitMetadata {
		if detected, ok := gitinfo.Detect("", cfg.ContentDir); ok {
			repo = detected
		} else {
			logger.Warn("git metadata requested but content dir is not a checkout", "dir", cfg.ContentDir)
		}
	}

	store := content.NewStore(cfg.ContentDir, rend, repo)
	templates, err := templatex.Load(cfg.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return site.NewService(cfg, store, templates, rend, repo, logger), nil
}
