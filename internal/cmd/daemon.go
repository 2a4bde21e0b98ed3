package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumenyx/lumenyxctl/internal/sysd"
	"github.com/lumenyx/lumenyxctl/internal/ui"
	"github.com/lumenyx/lumenyxctl/internal/watchdog"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the unattended daemon deployment",
	Long: `Install or remove the systemd deployment: a node service that
survives reboots, a watchdog timer that checks node health on a fixed
schedule, and (in graphical sessions) a desktop autostart entry.`,
	RunE: requireSubcommand,
}

var daemonEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Install and start the systemd units",
	RunE:  runDaemonEnable,
}

var daemonDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop and remove the systemd units",
	RunE:  runDaemonDisable,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon deployment status",
	RunE:  runDaemonStatus,
}

func init() {
	daemonCmd.AddCommand(daemonEnableCmd)
	daemonCmd.AddCommand(daemonDisableCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemonEnable(cmd *cobra.Command, args []string) error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("daemon enable requires root (try: sudo lumenyxctl daemon enable)")
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	inst, err := sysd.NewInstaller(a.paths, a.sc, a.logger.Printf)
	if err != nil {
		return err
	}
	inst.WatchdogBootGrace = watchdog.BootGraceDelay
	inst.WatchdogInterval = watchdog.TickInterval

	if err := inst.EnableDaemon(); err != nil {
		if errors.Is(err, sysd.ErrGuardRail) {
			fmt.Printf("%s %v\n", ui.RenderFailIcon(), err)
			fmt.Println(ui.RenderMuted("  Complete node setup before enabling the daemon."))
			return err
		}
		return err
	}

	fmt.Printf("%s Daemon enabled\n", ui.RenderPassIcon())
	fmt.Printf("  %s started\n", sysd.NodeUnit)
	fmt.Printf("  %s scheduled every %v\n", sysd.WatchdogTimerUnit, watchdog.TickInterval)
	if sysd.GraphicalSessionDetected() {
		fmt.Println("  desktop autostart entry installed")
	}
	return nil
}

func runDaemonDisable(cmd *cobra.Command, args []string) error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("daemon disable requires root (try: sudo lumenyxctl daemon disable)")
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	inst, err := sysd.NewInstaller(a.paths, a.sc, a.logger.Printf)
	if err != nil {
		return err
	}
	if err := inst.DisableDaemon(); err != nil {
		return err
	}

	fmt.Printf("%s Daemon disabled, units removed\n", ui.RenderPassIcon())
	fmt.Println(ui.RenderMuted("  Chain data and wallet files were left in place."))
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if !a.daemonInstalled() {
		fmt.Printf("%s Daemon not installed (foreground mode active)\n", ui.RenderMuted("○"))
		fmt.Println(ui.RenderMuted("  Run 'sudo lumenyxctl daemon enable' to install."))
		return nil
	}

	fmt.Printf("%s Daemon installed\n", ui.RenderPassIcon())
	for _, unit := range []string{sysd.NodeUnit, sysd.WatchdogTimerUnit} {
		if a.sc.IsActive(unit) {
			fmt.Printf("  %s %s active\n", ui.RenderPassIcon(), unit)
		} else {
			fmt.Printf("  %s %s inactive\n", ui.RenderFailIcon(), unit)
		}
	}
	return nil
}
