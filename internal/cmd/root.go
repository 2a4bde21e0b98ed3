// Package cmd implements the lumenyxctl command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the lumenyxctl release version, overridden at build time via
// -ldflags "-X github.com/lumenyx/lumenyxctl/internal/cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "lumenyxctl",
	Short: "Supervise a Lumenyx node on this host",
	Long: `lumenyxctl supervises the lifecycle of a lumenyx-node process:
starting it in sync-only or mining mode, watching its health, restarting it
under a cooldown policy, and toggling solo/pool mining at runtime.

Two deployment modes are supported. Foreground mode runs the node as a
detached child tracked by pid file; daemon mode installs a systemd service
plus a companion watchdog timer so the node survives reboots unattended.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the lumenyxctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lumenyxctl %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// requireSubcommand is the RunE for commands that only group subcommands.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
