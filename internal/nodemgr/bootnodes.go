package nodemgr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lumenyx/lumenyxctl/internal/config"
	"github.com/lumenyx/lumenyxctl/internal/util"
)

// bootnodesFetchTimeout bounds the remote seed-list fetch.
const bootnodesFetchTimeout = 5 * time.Second

// BootnodeCache resolves the peer/bootstrap address list once per supervisor
// process and reuses it across restarts within that process. Resolution
// order: remote seed list (cached to disk on success), then the on-disk
// cache, then the static list from config.
type BootnodeCache struct {
	cfg   *config.Config
	paths *config.Paths
	logf  func(format string, args ...interface{})

	mu       sync.Mutex
	resolved bool
	list     []string
}

// NewBootnodeCache creates a cache. logf may be nil.
func NewBootnodeCache(cfg *config.Config, paths *config.Paths, logf func(string, ...interface{})) *BootnodeCache {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &BootnodeCache{cfg: cfg, paths: paths, logf: logf}
}

// Bootnodes returns the resolved list. Resolution failures are not fatal:
// the node can still discover peers on its own, so an empty list is returned
// rather than an error.
func (b *BootnodeCache) Bootnodes(ctx context.Context) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.resolved {
		return b.list
	}
	b.resolved = true

	if list, err := b.fetchRemote(ctx); err == nil && len(list) > 0 {
		b.list = list
		data := strings.Join(list, "\n") + "\n"
		if err := util.WriteFileAtomic(b.paths.BootnodesCache(), []byte(data), 0644); err != nil {
			b.logf("Warning: failed to cache bootnodes: %v", err)
		}
		return b.list
	} else if err != nil {
		b.logf("Warning: bootnode fetch failed, falling back to cache: %v", err)
	}

	if list := readBootnodeFile(b.paths.BootnodesCache()); len(list) > 0 {
		b.list = list
		return b.list
	}

	b.list = b.cfg.Bootnodes
	return b.list
}

func (b *BootnodeCache) fetchRemote(ctx context.Context) ([]string, error) {
	if b.cfg.BootnodesURL == "" {
		return nil, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, bootnodesFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, b.cfg.BootnodesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building bootnodes request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching bootnodes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching bootnodes: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading bootnodes: %w", err)
	}

	return parseBootnodes(string(data)), nil
}

func readBootnodeFile(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return parseBootnodes(string(data))
}

func parseBootnodes(data string) []string {
	var list []string
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		list = append(list, line)
	}
	return list
}
