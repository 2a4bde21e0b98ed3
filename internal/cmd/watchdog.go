package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenyx/lumenyxctl/internal/synctrack"
	"github.com/lumenyx/lumenyxctl/internal/ui"
	"github.com/lumenyx/lumenyxctl/internal/watchdog"
)

var watchdogCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Run and inspect the node health watchdog",
	RunE:  requireSubcommand,
}

var watchdogRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform a single health check",
	Long: `Evaluate node health once and remediate if warranted. This is what
the systemd timer invokes; it always exits zero so the scheduled unit never
crash-loops on a sick node. Failures are written to the supervisor log.`,
	RunE: runWatchdogRun,
}

var watchdogStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show watchdog state and restart history",
	RunE:  runWatchdogStatus,
}

func init() {
	watchdogCmd.AddCommand(watchdogRunCmd)
	watchdogCmd.AddCommand(watchdogStatusCmd)
	rootCmd.AddCommand(watchdogCmd)
}

func runWatchdogRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		// Setup failures are logged, not returned: the timer unit must not
		// accumulate failed runs over a transient misconfiguration.
		fmt.Printf("watchdog: setup failed: %v\n", err)
		return nil
	}

	client, err := a.rpcClient()
	if err != nil {
		a.logger.Printf("Watchdog: rpc dial failed: %v", err)
		fmt.Printf("watchdog: rpc dial failed: %v\n", err)
		return nil
	}
	defer client.Close()

	mgr := a.manager()
	tracker := synctrack.New(client, a.store, mgr, a.logger.Printf)
	wd := watchdog.New(a.store, mgr, tracker, a.logSource(), client,
		a.paths.WatchdogLockFile(), a.logger.Printf)

	report, err := wd.Tick(cmd.Context())
	if err != nil {
		a.logger.Printf("Watchdog: tick failed: %v", err)
		fmt.Printf("watchdog: tick failed: %v\n", err)
		return nil
	}

	a.logger.Printf("Watchdog: verdict=%s restarted=%v reasons=[%s]",
		report.Verdict, report.Restarted, strings.Join(report.Reasons, "; "))

	switch {
	case report.Restarted:
		fmt.Printf("watchdog: %s, node restarted\n", report.Verdict)
	case report.CooldownRemaining > 0:
		fmt.Printf("watchdog: %s, restart deferred (%v cooldown remaining)\n",
			report.Verdict, report.CooldownRemaining.Round(time.Second))
	default:
		fmt.Printf("watchdog: %s\n", report.Verdict)
	}
	for _, r := range report.Reasons {
		fmt.Printf("  %s\n", ui.RenderMuted(r))
	}
	return nil
}

func runWatchdogStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	snap, err := a.store.Load()
	if err != nil {
		return err
	}

	fmt.Println("Watchdog")
	fmt.Printf("  Check interval:  %v\n", watchdog.TickInterval)
	fmt.Printf("  Boot grace:      %v\n", watchdog.BootGraceDelay)
	fmt.Printf("  Cooldown:        %v\n", watchdog.RestartCooldown)
	fmt.Println()

	if snap.LastRestartAt.IsZero() {
		fmt.Printf("  Last restart:    %s\n", ui.RenderMuted("never"))
	} else {
		fmt.Printf("  Last restart:    %s\n", ui.RelativeTime(snap.LastRestartAt))
		if remaining := watchdog.RestartCooldown - time.Since(snap.LastRestartAt); remaining > 0 {
			fmt.Printf("  Cooldown left:   %v\n", remaining.Round(time.Second))
		}
	}

	if !snap.ZeroActivitySince.IsZero() {
		fmt.Printf("  %s Zero hashrate observed since %s\n",
			ui.RenderWarnIcon(), ui.RelativeTime(snap.ZeroActivitySince))
	}

	if len(snap.RestartEvents) > 0 {
		fmt.Println()
		fmt.Println("  Recent restarts:")
		events := snap.RestartEvents
		if len(events) > 10 {
			events = events[len(events)-10:]
		}
		for i := len(events) - 1; i >= 0; i-- {
			ev := events[i]
			fmt.Printf("    %s  %s\n", ui.RenderMuted(ui.RelativeTime(ev.At)), ev.Reason)
		}
	}
	return nil
}
