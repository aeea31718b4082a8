package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	appName    = "Strata"
	appVersion = "0.3.0"
)

// Set at link stage via `-ldflags "-X github.com/strata-site/strata/cmd.gitCommit=$(git rev-parse --short HEAD)"`
var gitCommit string

// serverSignature is sent as the Server header in serve mode.
func serverSignature() string {
	commit := gitCommit
	if commit == "" {
		commit = "unknown"
	}
	return fmt.Sprintf("%s/%s (%s)", appName, appVersion, commit)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(serverSignature())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
