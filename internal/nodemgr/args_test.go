package nodemgr

import (
	"strings"
	"testing"

	"github.com/lumenyx/lumenyxctl/internal/config"
	"github.com/lumenyx/lumenyxctl/internal/state"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Chain = "mainnet"
	cfg.PruningBlocks = 1000
	return cfg
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func flagValue(args []string, flag string) (string, bool) {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

func TestBuildArgs_MiningFlagFollowsMarker(t *testing.T) {
	paths := config.PathsForHome(t.TempDir())

	tests := []struct {
		name       string
		snap       state.Snapshot
		wantMining bool
		wantPool   bool
	}{
		{"sync only", state.Snapshot{}, false, false},
		{"marker set solo", state.Snapshot{SyncCompleted: true}, true, false},
		{"marker set pool", state.Snapshot{SyncCompleted: true, PoolMode: true}, true, true},
		// The pool setting is persisted before the marker exists in some
		// recovery paths; the flag still tracks the stored value.
		{"pool without marker", state.Snapshot{PoolMode: true}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := BuildArgs(testConfig(), &tt.snap, paths, nil)
			if got := hasFlag(args, "--validator"); got != tt.wantMining {
				t.Errorf("--validator present=%v, want %v (args: %v)", got, tt.wantMining, args)
			}
			if got := hasFlag(args, "--pool-mode"); got != tt.wantPool {
				t.Errorf("--pool-mode present=%v, want %v (args: %v)", got, tt.wantPool, args)
			}
		})
	}
}

func TestBuildArgs_BaseFlags(t *testing.T) {
	paths := config.PathsForHome(t.TempDir())
	args := BuildArgs(testConfig(), &state.Snapshot{}, paths, nil)

	if v, ok := flagValue(args, "--chain"); !ok || v != "mainnet" {
		t.Errorf("expected --chain mainnet, got %q", v)
	}
	if v, ok := flagValue(args, "--base-path"); !ok || v != paths.DataDir {
		t.Errorf("expected --base-path %s, got %q", paths.DataDir, v)
	}
	if v, ok := flagValue(args, "--state-pruning"); !ok || v != "1000" {
		t.Errorf("expected --state-pruning 1000, got %q", v)
	}
	if v, ok := flagValue(args, "--blocks-pruning"); !ok || v != "1000" {
		t.Errorf("expected --blocks-pruning 1000, got %q", v)
	}
}

func TestBuildArgs_RPCExposure(t *testing.T) {
	paths := config.PathsForHome(t.TempDir())

	cfg := testConfig()
	args := BuildArgs(cfg, &state.Snapshot{}, paths, nil)
	if hasFlag(args, "--rpc-external") {
		t.Error("local RPC config must not expose the endpoint")
	}
	if v, _ := flagValue(args, "--rpc-methods"); v != "unsafe" {
		t.Errorf("local RPC should allow unsafe methods, got %q", v)
	}

	cfg.RPCExternal = true
	args = BuildArgs(cfg, &state.Snapshot{}, paths, nil)
	if !hasFlag(args, "--rpc-external") {
		t.Error("expected --rpc-external")
	}
	if v, _ := flagValue(args, "--rpc-methods"); v != "safe" {
		t.Errorf("external RPC must restrict to safe methods, got %q", v)
	}
}

func TestBuildArgs_Bootnodes(t *testing.T) {
	paths := config.PathsForHome(t.TempDir())
	bootnodes := []string{
		"/dns/boot1.lumenyx.net/tcp/30333/p2p/12D3KooWA",
		"/dns/boot2.lumenyx.net/tcp/30333/p2p/12D3KooWB",
	}

	args := BuildArgs(testConfig(), &state.Snapshot{}, paths, bootnodes)

	joined := strings.Join(args, " ")
	for _, bn := range bootnodes {
		if !strings.Contains(joined, "--bootnodes "+bn) {
			t.Errorf("missing bootnode %s in args %v", bn, args)
		}
	}
}
