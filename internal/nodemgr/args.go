package nodemgr

import (
	"strconv"

	"github.com/lumenyx/lumenyxctl/internal/config"
	"github.com/lumenyx/lumenyxctl/internal/state"
)

// BuildArgs assembles the node's launch argument set from the persisted
// supervisor state and configuration.
//
// The mining flag is included iff the sync-completion marker is present:
// once the marker exists, every launch across any number of restarts is a
// mining-enabled launch. The pool flag follows the persisted mining mode.
func BuildArgs(cfg *config.Config, snap *state.Snapshot, paths *config.Paths, bootnodes []string) []string {
	args := []string{
		"--chain", cfg.Chain,
		"--base-path", paths.DataDir,
		"--state-pruning", strconv.Itoa(cfg.PruningBlocks),
		"--blocks-pruning", strconv.Itoa(cfg.PruningBlocks),
	}

	if snap.SyncCompleted {
		args = append(args, "--validator")
	}
	if snap.PoolMode {
		args = append(args, "--pool-mode")
	}

	if cfg.RPCExternal {
		args = append(args, "--rpc-external", "--rpc-cors", "all", "--rpc-methods", "safe")
	} else {
		args = append(args, "--rpc-methods", "unsafe")
	}

	for _, bn := range bootnodes {
		args = append(args, "--bootnodes", bn)
	}

	return args
}
