package cmd

import (
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lumenyx/lumenyxctl/internal/config"
	"github.com/lumenyx/lumenyxctl/internal/nodelog"
	"github.com/lumenyx/lumenyxctl/internal/nodemgr"
	"github.com/lumenyx/lumenyxctl/internal/noderpc"
	"github.com/lumenyx/lumenyxctl/internal/state"
	"github.com/lumenyx/lumenyxctl/internal/sysd"
)

// app bundles the resolved installation the commands operate on.
type app struct {
	paths  *config.Paths
	cfg    *config.Config
	store  *state.Store
	sc     *sysd.Systemctl
	logger *log.Logger
}

// newApp resolves paths and configuration for the current invocation.
func newApp() (*app, error) {
	paths, err := config.ResolvePaths()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(paths.SupervisorDir)
	if err != nil {
		return nil, err
	}

	// The supervisor log rotates: the watchdog ticks unattended for months.
	logger := log.New(&lumberjack.Logger{
		Filename:   paths.SupervisorLogFile(),
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}, "", log.LstdFlags)

	return &app{
		paths:  paths,
		cfg:    cfg,
		store:  state.Open(paths.StateFile(), paths.StateLockFile()),
		sc:     &sysd.Systemctl{},
		logger: logger,
	}, nil
}

// daemonInstalled reports whether the daemon deployment mode is active,
// decided by the presence of the installed node unit.
func (a *app) daemonInstalled() bool {
	_, err := os.Stat(filepath.Join("/etc/systemd/system", sysd.NodeUnit))
	return err == nil
}

// manager returns the process manager for the active deployment mode.
// The watchdog and the mode toggle are written against the interface, so
// everything downstream of this choice is mode-agnostic.
func (a *app) manager() nodemgr.Manager {
	if a.daemonInstalled() {
		return nodemgr.NewSystemdManager(a.sc, a.logger.Printf)
	}
	bootnodes := nodemgr.NewBootnodeCache(a.cfg, a.paths, a.logger.Printf)
	return nodemgr.NewForegroundManager(a.cfg, a.paths, a.store, bootnodes, a.logger.Printf)
}

// logSource returns the recent-log-window source for the active mode.
func (a *app) logSource() nodelog.Source {
	if a.daemonInstalled() {
		return &nodelog.JournalSource{Unit: sysd.NodeUnit}
	}
	return &nodelog.FileSource{Path: a.paths.NodeLogFile()}
}

// rpcClient dials the node's RPC endpoint. The connection is lazy, so this
// succeeds even when the node is down; failures surface per call as
// noderpc.ErrNodeOffline.
func (a *app) rpcClient() (*noderpc.Client, error) {
	return noderpc.Dial(a.cfg.RPCURL)
}
