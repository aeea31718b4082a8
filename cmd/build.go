package cmd

import (
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Generate the static site into the output directory",
	Long: `Build enumerates every (route, entry) pair from the configured routes,
renders one page per pair, and writes the result plus listings, feeds, and
static assets to the output directory. The build is atomic: output is staged
in a temporary directory and swapped in only on success.`,
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

		ctx := cmd.Context()
		if err := svc.Rebuild(ctx); err != nil {
			return err
		}
		logger.Info("static build completed", "output", cfg.OutputDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
