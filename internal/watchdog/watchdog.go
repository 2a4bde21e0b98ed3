// Package watchdog is the periodically invoked node health checker. Each
// invocation is short-lived and stateless between runs except for what the
// state store persists: the restart-cooldown timestamp, the zero-activity
// timer, and the best-height progress sample.
//
// Health is a tri-state verdict. Two independent unhealthy signals are
// evaluated over a recent log window; absence of any matching line is
// inconclusive, never unhealthy, so a node that has not yet produced its
// first relevant log line is not restarted into a storm.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lumenyx/lumenyxctl/internal/nodelog"
	"github.com/lumenyx/lumenyxctl/internal/nodemgr"
	"github.com/lumenyx/lumenyxctl/internal/noderpc"
	"github.com/lumenyx/lumenyxctl/internal/state"
	"github.com/lumenyx/lumenyxctl/internal/synctrack"
	"github.com/lumenyx/lumenyxctl/internal/util"
)

// Tuning knobs. The cooldown is the anti-flapping gate: a continuously
// unhealthy node restarts at most once per cooldown window, never per tick.
const (
	// NoProgressAfter flags a node whose newest block-production line is
	// older than this.
	NoProgressAfter = 60 * time.Second

	// ZeroActivityAfter flags a node reporting exactly zero hashrate for
	// this long. Any nonzero reading clears the timer immediately.
	ZeroActivityAfter = 60 * time.Second

	// RestartCooldown is the minimum interval between automatic restarts.
	RestartCooldown = 120 * time.Second

	// TickInterval is how often the scheduler invokes the watchdog.
	TickInterval = 15 * time.Second

	// BootGraceDelay is the initial delay after boot before the first tick.
	BootGraceDelay = 90 * time.Second
)

// Verdict is the tri-state health classification.
type Verdict int

const (
	Inconclusive Verdict = iota
	Healthy
	Unhealthy
)

func (v Verdict) String() string {
	switch v {
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	case Inconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

// Report summarizes one watchdog tick.
type Report struct {
	Verdict Verdict

	// Reasons lists the signal observations behind the verdict.
	Reasons []string

	// Restarted is true when this tick remediated by restarting the node.
	Restarted bool

	// CooldownRemaining is nonzero when remediation was due but gated.
	CooldownRemaining time.Duration
}

// HeightRPC is the slice of the node RPC client the structured probe needs.
type HeightRPC interface {
	BestHeight(ctx context.Context) (uint64, error)
}

// Watchdog evaluates node health and remediates under the cooldown policy.
type Watchdog struct {
	store    *state.Store
	mgr      nodemgr.Manager
	tracker  *synctrack.Tracker
	logs     nodelog.Source
	rpc      HeightRPC
	lockPath string
	logf     func(format string, args ...interface{})
	now      func() time.Time
}

// New creates a watchdog. logf may be nil.
func New(store *state.Store, mgr nodemgr.Manager, tracker *synctrack.Tracker,
	logs nodelog.Source, rpc HeightRPC, lockPath string, logf func(string, ...interface{})) *Watchdog {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Watchdog{
		store: store, mgr: mgr, tracker: tracker, logs: logs, rpc: rpc,
		lockPath: lockPath, logf: logf, now: time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (w *Watchdog) SetNow(now func() time.Time) { w.now = now }

// Tick performs one watchdog invocation. It never propagates node failure as
// its own failure: the returned error covers only supervisor-internal faults
// (state store I/O), and the scheduled unit logs those rather than exiting
// nonzero, so the watchdog unit itself cannot crash-loop.
func (w *Watchdog) Tick(ctx context.Context) (Report, error) {
	// One watchdog evaluation at a time across processes. A held lock means
	// another invocation (interactive supervisor or timer tick) is mid-check.
	lock := util.NewFileLock(w.lockPath)
	held, err := lock.TryLock()
	if err != nil {
		return Report{}, fmt.Errorf("acquiring watchdog lock: %w", err)
	}
	if !held {
		return Report{Verdict: Inconclusive,
			Reasons: []string{"another watchdog invocation is active"}}, nil
	}
	defer func() { _ = lock.Unlock() }()

	snap, err := w.store.Load()
	if err != nil {
		return Report{}, fmt.Errorf("loading state: %w", err)
	}

	// Sync-only mode: mining has not been granted yet, so "no mining
	// progress" is expected. Run only the sync-completion detection step.
	if !snap.SyncCompleted {
		upgraded, err := w.tracker.EnsureMiningUpgrade(ctx)
		switch {
		case err != nil && errors.Is(err, noderpc.ErrNodeOffline):
			return Report{Verdict: Inconclusive,
				Reasons: []string{"node offline during sync check"}}, nil
		case err != nil:
			return Report{Verdict: Inconclusive,
				Reasons: []string{fmt.Sprintf("sync check failed: %v", err)}}, nil
		case upgraded:
			return Report{Verdict: Healthy, Restarted: true,
				Reasons: []string{"initial sync complete, mining enabled"}}, nil
		default:
			return Report{Verdict: Healthy,
				Reasons: []string{"initial sync in progress"}}, nil
		}
	}

	report := w.evaluate(ctx, snap)

	if report.Verdict != Unhealthy {
		return report, nil
	}

	// Anti-flapping gate: shared, persisted cooldown timestamp.
	now := w.now()
	if !snap.LastRestartAt.IsZero() {
		elapsed := now.Sub(snap.LastRestartAt)
		if elapsed < RestartCooldown {
			report.CooldownRemaining = RestartCooldown - elapsed
			w.logf("Node unhealthy (%v) but cooldown has %v remaining, skipping restart",
				report.Reasons, report.CooldownRemaining.Round(time.Second))
			return report, nil
		}
	}

	reason := "unhealthy"
	if len(report.Reasons) > 0 {
		reason = report.Reasons[0]
	}
	w.logf("Node unhealthy (%v), restarting", report.Reasons)

	if err := nodemgr.Restart(ctx, w.mgr); err != nil {
		w.logf("Error: restart failed: %v", err)
		report.Reasons = append(report.Reasons, fmt.Sprintf("restart failed: %v", err))
		return report, nil
	}

	if err := w.store.RecordRestart(reason, now); err != nil {
		return report, fmt.Errorf("recording restart: %w", err)
	}
	report.Restarted = true
	return report, nil
}

// evaluate runs both log-window signals plus the structured height probe and
// combines them: any unhealthy signal wins; otherwise healthy evidence wins;
// otherwise the tick is inconclusive and takes no action.
func (w *Watchdog) evaluate(ctx context.Context, snap *state.Snapshot) Report {
	now := w.now()
	var reasons []string
	unhealthy := false
	healthyEvidence := false

	entries, err := w.logs.Recent()
	if err != nil {
		reasons = append(reasons, fmt.Sprintf("log window unavailable: %v", err))
	}

	// Signal 1: mining progress.
	progress := nodelog.LatestBlockProduced(entries)
	if progress.Found {
		age := now.Sub(progress.At)
		if age > NoProgressAfter {
			unhealthy = true
			reasons = append(reasons, fmt.Sprintf(
				"no block produced for %v (last: #%d)", age.Round(time.Second), progress.Height))
		} else {
			healthyEvidence = true
			reasons = append(reasons, fmt.Sprintf(
				"produced block #%d %v ago", progress.Height, age.Round(time.Second)))
		}
	} else {
		reasons = append(reasons, "no block-production line in window")
	}

	// Signal 2: sustained zero throughput.
	hashrate := nodelog.LatestHashrate(entries)
	switch {
	case !hashrate.Found:
		reasons = append(reasons, "no hashrate line in window")
	case hashrate.Rate > 0:
		healthyEvidence = true
		if !snap.ZeroActivitySince.IsZero() {
			w.clearZeroTimer()
		}
		reasons = append(reasons, fmt.Sprintf("hashrate %.0f H/s", hashrate.Rate))
	default: // exactly zero
		zeroSince := snap.ZeroActivitySince
		if zeroSince.IsZero() {
			zeroSince = now
			w.setZeroTimer(zeroSince)
		}
		sustained := now.Sub(zeroSince)
		if sustained >= ZeroActivityAfter {
			unhealthy = true
			reasons = append(reasons, fmt.Sprintf(
				"zero hashrate sustained for %v", sustained.Round(time.Second)))
		} else {
			reasons = append(reasons, fmt.Sprintf(
				"zero hashrate for %v (threshold %v)", sustained.Round(time.Second), ZeroActivityAfter))
		}
	}

	// Structured probe: best-height advancement between ticks. RPC failure
	// is "unknown", never unhealthy on its own.
	if height, err := w.rpc.BestHeight(ctx); err == nil {
		if snap.LastHeightAt.IsZero() || height > snap.LastHeight {
			healthyEvidence = healthyEvidence || height > snap.LastHeight
			w.recordHeight(height, now)
			reasons = append(reasons, fmt.Sprintf("best height %d", height))
		} else {
			w.recordHeight(height, now)
			reasons = append(reasons, fmt.Sprintf("best height stalled at %d", height))
		}
	} else if errors.Is(err, noderpc.ErrNodeOffline) {
		reasons = append(reasons, "rpc offline")
	} else {
		reasons = append(reasons, fmt.Sprintf("rpc error: %v", err))
	}

	verdict := Inconclusive
	switch {
	case unhealthy:
		verdict = Unhealthy
	case healthyEvidence:
		verdict = Healthy
	}
	return Report{Verdict: verdict, Reasons: reasons}
}

func (w *Watchdog) setZeroTimer(at time.Time) {
	if _, err := w.store.Update(func(snap *state.Snapshot) error {
		if snap.ZeroActivitySince.IsZero() {
			snap.ZeroActivitySince = at
		}
		return nil
	}); err != nil {
		w.logf("Warning: failed to persist zero-activity timer: %v", err)
	}
}

func (w *Watchdog) clearZeroTimer() {
	if _, err := w.store.Update(func(snap *state.Snapshot) error {
		snap.ZeroActivitySince = time.Time{}
		return nil
	}); err != nil {
		w.logf("Warning: failed to clear zero-activity timer: %v", err)
	}
}

func (w *Watchdog) recordHeight(height uint64, at time.Time) {
	if _, err := w.store.Update(func(snap *state.Snapshot) error {
		snap.LastHeight = height
		snap.LastHeightAt = at
		return nil
	}); err != nil {
		w.logf("Warning: failed to record height sample: %v", err)
	}
}
