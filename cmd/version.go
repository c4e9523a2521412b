package cmd

import (
	"runtime"

	"github.com/huangsam/repohealth/core/checks"
	"github.com/spf13/cobra"
)

// versionCmd shows the verbose version for diagnostic purposes.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of repohealth and of its check catalogue.",
	Long: `Display version information including build details.

The check catalogue version is part of every report; a new catalogue version
makes the next run archive a fresh snapshot even when scores did not change.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		registry := checks.Default()
		cmd.Printf("repohealth CLI\n")
		cmd.Printf("  Version: %s\n", version)
		cmd.Printf("  Commit:  %s\n", commit)
		cmd.Printf("  Built:   %s\n", date)
		cmd.Printf("  Checks:  %s (%d checks)\n", registry.Version(), registry.Len())
		cmd.Printf("  Runtime: %s\n", runtime.Version())
	},
}
