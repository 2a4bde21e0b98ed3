// Package noderpc is the supervisor's JSON-RPC client for the managed
// lumenyx-node. The node is a Frontier-enabled Substrate chain, so the
// Substrate system/chain namespaces, the custom lumenyx namespace, and the
// eth namespace all travel over the same HTTP endpoint.
//
// Every call carries a short timeout and a small retry burst. A call that
// still fails is classified as ErrNodeOffline: the supervisor never treats an
// unreachable node as a fatal condition of its own.
package noderpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/lumenyx/lumenyxctl/internal/util"
)

// ErrNodeOffline classifies any transport-level RPC failure (refused,
// timeout, reset). Callers branch on it with errors.Is.
var ErrNodeOffline = errors.New("node offline")

// callTimeout bounds each individual RPC attempt.
const callTimeout = 4 * time.Second

// Client wraps a JSON-RPC connection to the node.
type Client struct {
	rpc   *gethrpc.Client
	retry util.RetryConfig
}

// Dial creates a client for the given HTTP endpoint. The connection is lazy;
// failures surface on the first call.
func Dial(url string) (*Client, error) {
	c, err := gethrpc.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return &Client{rpc: c, retry: util.DefaultRetryConfig()}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// call performs one retried RPC call and classifies transport failures.
func call[T any](ctx context.Context, c *Client, method string, args ...interface{}) (T, error) {
	result, err := util.Retry(ctx, c.retry, func() (T, error) {
		var out T
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		if err := c.rpc.CallContext(callCtx, &out, method, args...); err != nil {
			return out, err
		}
		return out, nil
	})
	if err != nil {
		var zero T
		if util.DefaultIsRetryable(err) || errors.Is(err, context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: %s: %v", ErrNodeOffline, method, err)
		}
		return zero, fmt.Errorf("%s: %w", method, err)
	}
	return result, nil
}

// SyncState is the node's system_syncState response.
type SyncState struct {
	StartingBlock uint64 `json:"startingBlock"`
	CurrentBlock  uint64 `json:"currentBlock"`
	HighestBlock  uint64 `json:"highestBlock"`
}

// SyncState queries chain sync progress.
func (c *Client) SyncState(ctx context.Context) (SyncState, error) {
	return call[SyncState](ctx, c, "system_syncState")
}

// Health is the node's system_health response.
type Health struct {
	Peers           int  `json:"peers"`
	IsSyncing       bool `json:"isSyncing"`
	ShouldHavePeers bool `json:"shouldHavePeers"`
}

// Health queries network health (peer count, syncing flag).
func (c *Client) Health(ctx context.Context) (Health, error) {
	return call[Health](ctx, c, "system_health")
}

// header is the subset of chain_getHeader the supervisor reads.
type header struct {
	Number hexutil.Uint64 `json:"number"`
}

// BestHeight returns the node's best block height via chain_getHeader.
func (c *Client) BestHeight(ctx context.Context) (uint64, error) {
	h, err := call[header](ctx, c, "chain_getHeader")
	if err != nil {
		return 0, err
	}
	return uint64(h.Number), nil
}

// EVMBalance queries the EVM-side balance of an address at the latest block.
func (c *Client) EVMBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := call[hexutil.Big](ctx, c, "eth_getBalance", addr, "latest")
	if err != nil {
		return nil, err
	}
	return (*big.Int)(&bal), nil
}

// PoolMode reads the node's live solo/pool mining mode.
func (c *Client) PoolMode(ctx context.Context) (bool, error) {
	return call[bool](ctx, c, "lumenyx_getPoolMode")
}

// SetPoolMode applies a new mining mode in place. The node persists the
// change to its own pool_mode.conf; the returned value is the applied mode.
func (c *Client) SetPoolMode(ctx context.Context, pool bool) (bool, error) {
	return call[bool](ctx, c, "lumenyx_setPoolMode", pool)
}
