package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenyx/lumenyxctl/internal/mining"
	"github.com/lumenyx/lumenyxctl/internal/ui"
)

var miningCmd = &cobra.Command{
	Use:   "mining",
	Short: "Switch between solo and pool mining",
	Long: `Switch the node's mining mode. A running node is toggled in place
over RPC with no downtime; if the RPC path is unavailable the new mode is
persisted and the node is restarted to pick it up.`,
	RunE: requireSubcommand,
}

var miningSoloCmd = &cobra.Command{
	Use:   "solo",
	Short: "Mine independently",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMiningToggle(cmd, false)
	},
}

var miningPoolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Mine through the pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMiningToggle(cmd, true)
	},
}

var miningStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current mining mode",
	RunE:  runMiningStatus,
}

func init() {
	miningCmd.AddCommand(miningSoloCmd)
	miningCmd.AddCommand(miningPoolCmd)
	miningCmd.AddCommand(miningStatusCmd)
	rootCmd.AddCommand(miningCmd)
}

func modeName(pool bool) string {
	if pool {
		return "pool"
	}
	return "solo"
}

func runMiningToggle(cmd *cobra.Command, pool bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	client, err := a.rpcClient()
	if err != nil {
		return err
	}
	defer client.Close()

	toggler := mining.New(client, a.store, a.manager(), a.paths, a.logger.Printf)
	result, err := toggler.Toggle(cmd.Context(), pool)
	if err != nil {
		return err
	}

	switch {
	case !result.Changed:
		fmt.Printf("%s Already in %s mode\n", ui.RenderPassIcon(), modeName(pool))
	case result.Live:
		fmt.Printf("%s Switched to %s mode (applied live, no restart)\n",
			ui.RenderPassIcon(), modeName(pool))
	case result.Restarted:
		fmt.Printf("%s Switched to %s mode (node restarted)\n",
			ui.RenderPassIcon(), modeName(pool))
	default:
		fmt.Printf("%s Switched to %s mode (takes effect at next start)\n",
			ui.RenderPassIcon(), modeName(pool))
	}
	return nil
}

func runMiningStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	snap, err := a.store.Load()
	if err != nil {
		return err
	}
	if !snap.SyncCompleted {
		fmt.Printf("%s Mining not yet enabled: initial sync in progress\n", ui.RenderMuted("○"))
		return nil
	}

	client, err := a.rpcClient()
	if err != nil {
		return err
	}
	defer client.Close()

	toggler := mining.New(client, a.store, a.manager(), a.paths, a.logger.Printf)
	pool, live, err := toggler.Current(cmd.Context())
	if err != nil {
		return err
	}

	source := "persisted"
	if live {
		source = "live"
	}
	fmt.Printf("%s Mining mode: %s %s\n", ui.RenderPassIcon(), modeName(pool),
		ui.RenderMuted("("+source+")"))
	return nil
}
