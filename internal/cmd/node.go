package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/lumenyx/lumenyxctl/internal/nodemgr"
	"github.com/lumenyx/lumenyxctl/internal/noderpc"
	"github.com/lumenyx/lumenyxctl/internal/synctrack"
	"github.com/lumenyx/lumenyxctl/internal/ui"
	"github.com/lumenyx/lumenyxctl/internal/watchdog"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Control the managed node process",
	RunE:  requireSubcommand,
}

var nodeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the node",
	Long: `Start the node in the active deployment mode.

The launch argument set is built from persisted state: the mining flag is
included once initial sync has completed, and the pool flag follows the
persisted mining mode. Starting an already-running node is a no-op.`,
	RunE: runNodeStart,
}

var nodeStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the node",
	RunE:  runNodeStop,
}

var nodeRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the node",
	RunE:  runNodeRestart,
}

var nodeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show node status",
	RunE:  runNodeStatus,
}

var nodeLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View node logs",
	RunE:  runNodeLogs,
}

var nodeRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the node with an attached supervisor (foreground mode)",
	Long: `Start the node and stay attached, running the health watchdog
in-process until interrupted. This is the operator-attended alternative to
the daemon deployment.`,
	RunE: runNodeRun,
}

var nodeExecCmd = &cobra.Command{
	Use:    "exec",
	Short:  "Exec the node binary in place (systemd ExecStart)",
	Hidden: true,
	RunE:   runNodeExec,
}

var (
	nodeLogLines  int
	nodeLogFollow bool
)

func init() {
	nodeCmd.AddCommand(nodeStartCmd)
	nodeCmd.AddCommand(nodeStopCmd)
	nodeCmd.AddCommand(nodeRestartCmd)
	nodeCmd.AddCommand(nodeStatusCmd)
	nodeCmd.AddCommand(nodeLogsCmd)
	nodeCmd.AddCommand(nodeRunCmd)
	nodeCmd.AddCommand(nodeExecCmd)

	nodeLogsCmd.Flags().IntVarP(&nodeLogLines, "lines", "n", 50, "Number of lines to show")
	nodeLogsCmd.Flags().BoolVarP(&nodeLogFollow, "follow", "f", false, "Follow log output")

	rootCmd.AddCommand(nodeCmd)
}

func runNodeStart(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	mgr := a.manager()
	if mgr.Alive() {
		fmt.Printf("%s Node already running (%s mode)\n", ui.RenderWarnIcon(), mgr.Mode())
		return nil
	}

	if err := mgr.Start(cmd.Context()); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}

	snap, err := a.store.Load()
	if err != nil {
		return err
	}
	role := "sync-only"
	if snap.SyncCompleted {
		role = "mining"
		if snap.PoolMode {
			role = "mining (pool)"
		}
	}
	fmt.Printf("%s Node started in %s mode (%s)\n", ui.RenderPassIcon(), role, mgr.Mode())
	return nil
}

func runNodeStop(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	mgr := a.manager()
	if !mgr.Alive() {
		fmt.Printf("%s Node not running\n", ui.RenderMuted("○"))
		return nil
	}

	if err := mgr.Stop(cmd.Context()); err != nil {
		return fmt.Errorf("stopping node: %w", err)
	}
	fmt.Printf("%s Node stopped\n", ui.RenderPassIcon())
	return nil
}

func runNodeRestart(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	mgr := a.manager()
	if err := nodemgr.Restart(cmd.Context(), mgr); err != nil {
		return fmt.Errorf("restarting node: %w", err)
	}
	fmt.Printf("%s Node restarted (%s mode)\n", ui.RenderPassIcon(), mgr.Mode())
	return nil
}

func runNodeStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	mgr := a.manager()
	snap, err := a.store.Load()
	if err != nil {
		return err
	}

	if mgr.Alive() {
		fmt.Printf("%s Node running (%s mode)\n", ui.RenderPassIcon(), mgr.Mode())
	} else {
		fmt.Printf("%s Node not running (%s mode)\n", ui.RenderMuted("○"), mgr.Mode())
	}
	fmt.Println()

	role := "sync-only"
	if snap.SyncCompleted {
		role = "mining"
	}
	fmt.Printf("  Role:       %s\n", role)
	if snap.SyncCompleted {
		mode := "solo"
		if snap.PoolMode {
			mode = "pool"
		}
		fmt.Printf("  Mining:     %s\n", mode)
	}

	client, err := a.rpcClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()

	if health, err := client.Health(ctx); err == nil {
		fmt.Printf("  Peers:      %d\n", health.Peers)
		fmt.Printf("  Syncing:    %v\n", health.IsSyncing)
	} else if errors.Is(err, noderpc.ErrNodeOffline) {
		fmt.Printf("  RPC:        %s\n", ui.RenderMuted("offline"))
	} else {
		return err
	}

	if height, err := client.BestHeight(ctx); err == nil {
		fmt.Printf("  Height:     %d\n", height)
	}

	if a.cfg.MiningAddress != "" && common.IsHexAddress(a.cfg.MiningAddress) {
		addr := common.HexToAddress(a.cfg.MiningAddress)
		if bal, err := client.EVMBalance(ctx, addr); err == nil {
			fmt.Printf("  Balance:    %s LMX\n", formatBalance(bal))
		}
	}

	fmt.Printf("  Data:       %s\n", ui.ShortenPath(a.paths.DataDir))
	fmt.Printf("  Log:        %s\n", ui.ShortenPath(a.paths.SupervisorLogFile()))
	return nil
}

// formatBalance renders a wei-denominated balance with 18 decimals.
func formatBalance(wei *big.Int) string {
	whole, frac := new(big.Int).QuoRem(wei, big.NewInt(1e18), new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := fmt.Sprintf("%018s", frac.String())
	fracStr = strings.TrimRight(fracStr[:6], "0")
	if fracStr == "" {
		return whole.String()
	}
	return whole.String() + "." + fracStr
}

func runNodeLogs(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if a.daemonInstalled() {
		jcArgs := []string{"-u", "lumenyx-node.service", "--no-pager", "-n", fmt.Sprintf("%d", nodeLogLines)}
		if nodeLogFollow {
			jcArgs = append(jcArgs, "-f")
		}
		jc := exec.Command("journalctl", jcArgs...)
		jc.Stdout = os.Stdout
		jc.Stderr = os.Stderr
		return jc.Run()
	}

	logFile := a.paths.NodeLogFile()
	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("no log file found at %s", logFile)
	}

	tailArgs := []string{"-n", fmt.Sprintf("%d", nodeLogLines)}
	if nodeLogFollow {
		tailArgs = []string{"-f"}
	}
	tail := exec.Command("tail", append(tailArgs, logFile)...)
	tail.Stdout = os.Stdout
	tail.Stderr = os.Stderr
	return tail.Run()
}

// runNodeRun is the long-lived attached supervisor: it starts the node in
// foreground mode and keeps the watchdog ticking in-process until a signal
// arrives, then stops the node on the way out.
func runNodeRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if a.daemonInstalled() {
		return fmt.Errorf("daemon mode is installed; use 'lumenyxctl daemon status' or disable it first")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mgr := a.manager()
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}
	fmt.Printf("%s Node started, supervising (Ctrl-C to stop)\n", ui.RenderPassIcon())

	client, err := a.rpcClient()
	if err != nil {
		return err
	}
	defer client.Close()

	tracker := synctrack.New(client, a.store, mgr, a.logger.Printf)
	wd := watchdog.New(a.store, mgr, tracker, a.logSource(), client,
		a.paths.WatchdogLockFile(), a.logger.Printf)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initial grace delay: the node needs time to open its RPC endpoint and
	// produce its first log lines before health inference means anything.
	timer := time.NewTimer(watchdog.BootGraceDelay)
	defer timer.Stop()

	for {
		select {
		case sig := <-sigChan:
			fmt.Printf("\nReceived %v, stopping node\n", sig)
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()
			if err := mgr.Stop(stopCtx); err != nil {
				return fmt.Errorf("stopping node: %w", err)
			}
			fmt.Printf("%s Node stopped\n", ui.RenderPassIcon())
			return nil

		case <-timer.C:
			report, err := wd.Tick(ctx)
			if err != nil {
				a.logger.Printf("Watchdog tick error: %v", err)
			} else if report.Restarted {
				fmt.Printf("%s Watchdog restarted node: %s\n",
					ui.RenderWarnIcon(), strings.Join(report.Reasons, "; "))
			}
			timer.Reset(watchdog.TickInterval)
		}
	}
}

// runNodeExec replaces this process with the node binary, arguments resolved
// from the state store. The systemd unit's ExecStart points here so that the
// mining and pool flags are re-evaluated at every service (re)start without
// regenerating the unit descriptor.
func runNodeExec(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	snap, err := a.store.Load()
	if err != nil {
		return err
	}

	bootnodes := nodemgr.NewBootnodeCache(a.cfg, a.paths, a.logger.Printf)
	nodeArgs := nodemgr.BuildArgs(a.cfg, snap, a.paths, bootnodes.Bootnodes(cmd.Context()))

	binary := a.paths.NodeBinary()
	argv := append([]string{binary}, nodeArgs...)
	if err := syscall.Exec(binary, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", binary, err)
	}
	return nil
}
