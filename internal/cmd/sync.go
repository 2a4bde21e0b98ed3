package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenyx/lumenyxctl/internal/noderpc"
	"github.com/lumenyx/lumenyxctl/internal/synctrack"
	"github.com/lumenyx/lumenyxctl/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Inspect chain sync progress",
	RunE:  requireSubcommand,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync progress and the mining-upgrade marker",
	RunE:  runSyncStatus,
}

func init() {
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	snap, err := a.store.Load()
	if err != nil {
		return err
	}

	client, err := a.rpcClient()
	if err != nil {
		return err
	}
	defer client.Close()

	tracker := synctrack.New(client, a.store, a.manager(), a.logger.Printf)
	st, err := tracker.Poll(cmd.Context())
	if errors.Is(err, noderpc.ErrNodeOffline) {
		fmt.Printf("%s Node offline, no live sync data\n", ui.RenderMuted("○"))
		printMarker(snap.SyncCompleted, ui.RelativeTime(snap.SyncCompletedAt))
		return nil
	}
	if err != nil {
		return err
	}

	if st.Synced {
		fmt.Printf("%s Synced at height %d (tip %d, gap %d)\n",
			ui.RenderPassIcon(), st.CurrentHeight, st.HighestHeight, st.Gap)
	} else if st.HighestHeight == 0 {
		fmt.Printf("%s Syncing: chain tip not yet discovered (height %d)\n",
			ui.RenderWarnIcon(), st.CurrentHeight)
	} else {
		fmt.Printf("%s Syncing: %d / %d (%d blocks behind)\n",
			ui.RenderWarnIcon(), st.CurrentHeight, st.HighestHeight, st.Gap)
	}

	printMarker(snap.SyncCompleted, ui.RelativeTime(snap.SyncCompletedAt))
	return nil
}

func printMarker(present bool, when string) {
	if present {
		fmt.Printf("  Mining upgrade: %s (completed %s)\n", "done", when)
	} else {
		fmt.Printf("  Mining upgrade: %s\n", ui.RenderMuted("pending"))
	}
}
