// Package connection implements the per-user connection state machine:
// first-connect vs. reconnect vs. disconnect, the backfill and
// trigger-creation locks, and the 5-minute trigger-lock staleness rule.
package connection

import "time"

// TriggerLockStaleAfter is the sole staleness threshold in the state
// machine; it applies only to the trigger-creation lock, never to the
// backfill lock (spec §9 open question: backfill lock has no staleness
// recovery by design, see DESIGN.md).
const TriggerLockStaleAfter = 5 * time.Minute

// Coarse sync-status values surfaced at the HTTP boundary; the system
// never exposes raw aggregator/extractor errors, only these.
const (
	SyncNotConnected = "not_connected"
	SyncCompleted    = "completed"
	SyncInProgress   = "in_progress"
	SyncReconnecting = "reconnecting"
	SyncStarted      = "started"
	SyncReconnected  = "reconnected"
)

// State is one user's connection record: the lock region and the
// data region live in the same row but are treated as logically
// separate per the "lock state mixed with data state" redesign note.
type State struct {
	UserID string

	FounderName   string
	FounderEmail  string
	FounderDomain string

	FirstConnectedAt  *time.Time
	ConnectionEnabled bool
	EntityID          string

	InboxTriggerID *string
	SentTriggerID  *string

	InitialSyncCompleted    bool
	InitialSyncStartedAt    *time.Time
	InitialSyncCompletedAt  *time.Time
	LastSyncTime            *time.Time
	TotalCommitmentsFound   int

	SyncInProgress bool

	TriggerCreationInProgress  bool
	TriggerCreationStartedAt  *time.Time
}

// ShouldRunInitialSync reports whether this user has never completed a
// first connect — the sole decision rule gating backfill.
func ShouldRunInitialSync(s *State) bool {
	return s.FirstConnectedAt == nil
}

// TriggerLockIsStale reports whether an in-progress trigger-creation
// lock is old enough to be force-cleared by another caller.
func TriggerLockIsStale(s *State, now time.Time) bool {
	if !s.TriggerCreationInProgress || s.TriggerCreationStartedAt == nil {
		return false
	}
	return now.Sub(*s.TriggerCreationStartedAt) > TriggerLockStaleAfter
}

// HasBothTriggers reports whether both trigger ids are recorded.
func HasBothTriggers(s *State) bool {
	return s.InboxTriggerID != nil && *s.InboxTriggerID != "" &&
		s.SentTriggerID != nil && *s.SentTriggerID != ""
}

// ComputeSyncStatus derives the coarse sync_status surfaced to
// check-connection/sync-status callers from the state and current
// credit availability. It never exposes raw internal error detail.
func ComputeSyncStatus(s *State, hasCredits bool) string {
	if !s.ConnectionEnabled {
		return SyncNotConnected
	}
	if s.SyncInProgress {
		return SyncInProgress
	}
	if !s.InitialSyncCompleted {
		return SyncStarted
	}
	if !HasBothTriggers(s) {
		return SyncReconnecting
	}
	if !hasCredits {
		return SyncCompleted // reads still ok when paused; see connection.Connected
	}
	return SyncCompleted
}

// Connected reports the coarse boolean surfaced at check-connection:
// true once the connection is enabled, initial sync is done, and both
// triggers are provisioned, regardless of credit exhaustion (paused
// connections still read fine, per spec's paused state: "reads ok").
func Connected(s *State) bool {
	return s.ConnectionEnabled && s.InitialSyncCompleted && HasBothTriggers(s)
}
