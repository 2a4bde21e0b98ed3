// Package mining toggles the node between solo and pool mining.
//
// The strategy is try-live, fall back to restart: a running node gets the
// new mode applied in place over RPC with zero downtime; only when the RPC
// path is unavailable does the toggle persist the config and cycle the
// process so the next launch's argument set reflects it. The same pattern
// applies to any runtime-tunable flag in this system.
package mining

import (
	"context"
	"fmt"

	"github.com/lumenyx/lumenyxctl/internal/config"
	"github.com/lumenyx/lumenyxctl/internal/nodemgr"
	"github.com/lumenyx/lumenyxctl/internal/state"
	"github.com/lumenyx/lumenyxctl/internal/util"
)

// ToggleRPC is the slice of the node RPC client the toggler needs.
type ToggleRPC interface {
	PoolMode(ctx context.Context) (bool, error)
	SetPoolMode(ctx context.Context, pool bool) (bool, error)
}

// Result describes how a toggle was applied.
type Result struct {
	// Changed is false when the node was already at the target mode.
	Changed bool

	// Live is true when the mode was applied over RPC without a restart.
	Live bool

	// Restarted is true when the toggle fell back to a stop/start cycle.
	Restarted bool
}

// Toggler switches the persisted and, when possible, the live mining mode.
type Toggler struct {
	rpc   ToggleRPC
	store *state.Store
	mgr   nodemgr.Manager
	paths *config.Paths
	logf  func(format string, args ...interface{})
}

// New creates a toggler. logf may be nil.
func New(rpc ToggleRPC, store *state.Store, mgr nodemgr.Manager, paths *config.Paths, logf func(string, ...interface{})) *Toggler {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Toggler{rpc: rpc, store: store, mgr: mgr, paths: paths, logf: logf}
}

// Toggle moves the node to pool (true) or solo (false) mode.
func (t *Toggler) Toggle(ctx context.Context, pool bool) (Result, error) {
	snap, err := t.store.Load()
	if err != nil {
		return Result{}, fmt.Errorf("loading state: %w", err)
	}
	if snap.PoolMode == pool {
		return Result{}, nil
	}

	if t.mgr.Alive() {
		if _, err := t.rpc.SetPoolMode(ctx, pool); err == nil {
			// The node has applied and persisted the mode itself; record it
			// on our side and leave the process untouched.
			if err := t.persist(pool); err != nil {
				return Result{Changed: true, Live: true}, err
			}
			return Result{Changed: true, Live: true}, nil
		} else {
			t.logf("Warning: live mode toggle failed, falling back to restart: %v", err)
		}
	}

	// Persist first so the restarted launch picks up the new flag even if
	// the start half of the cycle fails and is retried later.
	if err := t.persist(pool); err != nil {
		return Result{}, err
	}

	if err := nodemgr.Restart(ctx, t.mgr); err != nil {
		return Result{Changed: true}, fmt.Errorf("restarting node for mode change: %w", err)
	}
	return Result{Changed: true, Restarted: true}, nil
}

// Current returns the effective mode, preferring the live node's answer and
// falling back to the persisted config. live reports which source answered.
func (t *Toggler) Current(ctx context.Context) (pool bool, live bool, err error) {
	if t.mgr.Alive() {
		if mode, err := t.rpc.PoolMode(ctx); err == nil {
			return mode, true, nil
		}
	}

	snap, err := t.store.Load()
	if err != nil {
		return false, false, fmt.Errorf("loading state: %w", err)
	}
	return snap.PoolMode, false, nil
}

// persist records the mode in the state store and mirrors it into the
// node's own pool_mode.conf, which the node reads at boot.
func (t *Toggler) persist(pool bool) error {
	if err := t.store.SetPoolMode(pool); err != nil {
		return fmt.Errorf("persisting pool mode: %w", err)
	}

	contents := "false\n"
	if pool {
		contents = "true\n"
	}
	if err := util.WriteFileAtomic(t.paths.PoolModeConf(), []byte(contents), 0644); err != nil {
		return fmt.Errorf("mirroring pool_mode.conf: %w", err)
	}
	return nil
}
