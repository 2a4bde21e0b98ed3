// Package state persists supervisor runtime state as a single versioned JSON
// document. It replaces the scattered marker files of earlier installs: the
// sync-completion flag, the pool-mode setting, and the watchdog's cooldown
// and zero-activity timers all live in one file with one writer discipline.
//
// Writers serialize through a flock and replace the file atomically, so a
// timer-scheduled watchdog tick and an interactive CLI invocation can never
// interleave a read-modify-write or expose a torn document.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/lumenyx/lumenyxctl/internal/util"
)

// CurrentVersion is the state document schema version.
const CurrentVersion = 1

// maxRestartEvents caps the restart journal length.
const maxRestartEvents = 32

// RestartEvent records one supervisor-initiated node restart.
type RestartEvent struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason"`
}

// Snapshot is the full persisted state document.
type Snapshot struct {
	Version int `json:"version"`

	// SyncCompleted is the one-way sync-completion marker. Once true it is
	// never cleared; every subsequent node launch includes the mining flag.
	SyncCompleted   bool      `json:"sync_completed"`
	SyncCompletedAt time.Time `json:"sync_completed_at,omitzero"`

	// PoolMode selects pool (true) vs solo (false) mining.
	PoolMode bool `json:"pool_mode"`

	// LastRestartAt drives the watchdog's restart cooldown. It doubles as
	// the coarse cross-process mutex between a scheduled watchdog tick and
	// a long-lived interactive supervisor.
	LastRestartAt time.Time `json:"last_restart_at,omitzero"`

	// ZeroActivitySince is set when the node first reports zero hashrate
	// and cleared by any nonzero reading or by a restart.
	ZeroActivitySince time.Time `json:"zero_activity_since,omitzero"`

	// LastHeight/LastHeightAt is the watchdog's best-height progress sample,
	// used as structured evidence alongside the log-window signals.
	LastHeight   uint64    `json:"last_height"`
	LastHeightAt time.Time `json:"last_height_at,omitzero"`

	RestartEvents []RestartEvent `json:"restart_events,omitempty"`
}

// Store reads and writes the supervisor state document.
type Store struct {
	path     string
	lockPath string
}

// Open returns a store backed by the given state file, with writer
// serialization through the given lock file.
func Open(path, lockPath string) *Store {
	return &Store{path: path, lockPath: lockPath}
}

// Load reads the current state. A missing file yields a fresh zero-valued
// snapshot; readers need no lock because writers replace the file atomically.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{Version: CurrentVersion}, nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}
	if snap.Version == 0 {
		snap.Version = CurrentVersion
	}
	if snap.Version > CurrentVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported %d",
			snap.Version, CurrentVersion)
	}

	return &snap, nil
}

// Update applies fn to the current state under the writer lock and replaces
// the file atomically. fn returning an error abandons the write.
func (s *Store) Update(fn func(*Snapshot) error) (*Snapshot, error) {
	lock := util.NewFileLock(s.lockPath)
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("locking state: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	snap, err := s.Load()
	if err != nil {
		return nil, err
	}

	if err := fn(snap); err != nil {
		return nil, err
	}
	snap.Version = CurrentVersion

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling state: %w", err)
	}
	if err := util.WriteFileAtomic(s.path, data, 0644); err != nil {
		return nil, fmt.Errorf("writing state: %w", err)
	}

	return snap, nil
}

// MarkSyncCompleted sets the one-way sync-completion marker. Returns true if
// the marker was already present; concurrent callers must treat that as
// success, not a failure to surface.
func (s *Store) MarkSyncCompleted(now time.Time) (already bool, err error) {
	_, err = s.Update(func(snap *Snapshot) error {
		if snap.SyncCompleted {
			already = true
			return nil
		}
		snap.SyncCompleted = true
		snap.SyncCompletedAt = now
		return nil
	})
	return already, err
}

// SetPoolMode persists the solo/pool mining mode.
func (s *Store) SetPoolMode(pool bool) error {
	_, err := s.Update(func(snap *Snapshot) error {
		snap.PoolMode = pool
		return nil
	})
	return err
}

// RecordRestart journals a supervisor-initiated restart, advances the
// cooldown timestamp, and clears the zero-activity timer.
func (s *Store) RecordRestart(reason string, now time.Time) error {
	_, err := s.Update(func(snap *Snapshot) error {
		snap.LastRestartAt = now
		snap.ZeroActivitySince = time.Time{}
		snap.RestartEvents = append(snap.RestartEvents, RestartEvent{
			ID:     uuid.NewString(),
			At:     now,
			Reason: reason,
		})
		if len(snap.RestartEvents) > maxRestartEvents {
			snap.RestartEvents = snap.RestartEvents[len(snap.RestartEvents)-maxRestartEvents:]
		}
		return nil
	})
	return err
}
