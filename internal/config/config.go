// Package config holds the supervisor's configuration and the filesystem
// contract shared with the managed lumenyx-node process and external tooling.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the operator-editable supervisor configuration, loaded from
// config.toml in the supervisor directory. Zero values fall back to defaults.
type Config struct {
	// Chain selects the chain spec passed to the node (name or spec file path).
	Chain string `toml:"chain"`

	// RPCURL is the node's HTTP JSON-RPC endpoint.
	RPCURL string `toml:"rpc_url"`

	// MiningAddress is the operator's EVM-side reward address (0x-hex).
	MiningAddress string `toml:"mining_address"`

	// BootnodesURL is the HTTP endpoint serving the current bootnode list,
	// one multiaddr per line. Empty disables remote fetch (cache/config only).
	BootnodesURL string `toml:"bootnodes_url"`

	// Bootnodes is a static bootnode list used when the remote fetch is
	// disabled or unreachable and no cache exists yet.
	Bootnodes []string `toml:"bootnodes"`

	// PruningBlocks is the state retention depth passed to the node.
	PruningBlocks int `toml:"pruning_blocks"`

	// RPCExternal exposes the node RPC beyond localhost when true.
	RPCExternal bool `toml:"rpc_external"`
}

// Defaults for a stock installation. The RPC port is the node's standard
// Substrate+Frontier combined endpoint.
const (
	DefaultChain         = "mainnet"
	DefaultRPCURL        = "http://127.0.0.1:9944"
	DefaultPruningBlocks = 1000
)

// DefaultConfig returns the configuration used when no config.toml exists.
func DefaultConfig() *Config {
	return &Config{
		Chain:         DefaultChain,
		RPCURL:        DefaultRPCURL,
		PruningBlocks: DefaultPruningBlocks,
	}
}

// Load reads config.toml from the given supervisor directory, applying
// defaults for missing fields. A missing file is not an error.
func Load(supervisorDir string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(supervisorDir, "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if cfg.Chain == "" {
		cfg.Chain = DefaultChain
	}
	if cfg.RPCURL == "" {
		cfg.RPCURL = DefaultRPCURL
	}
	if cfg.PruningBlocks <= 0 {
		cfg.PruningBlocks = DefaultPruningBlocks
	}

	return cfg, nil
}

// Save writes the configuration to config.toml in the supervisor directory.
func Save(supervisorDir string, cfg *Config) error {
	if err := os.MkdirAll(supervisorDir, 0755); err != nil {
		return fmt.Errorf("creating supervisor directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(supervisorDir, "config.toml"),
		os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}
