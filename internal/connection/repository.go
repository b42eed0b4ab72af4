package connection

import (
	"context"
	"errors"

	"github.com/commitloop/engine/internal/apperrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists connection state on the users table, sharing the
// row with internal/credit's balance columns.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository over a shared connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectState = `
	SELECT id AS user_id, founder_name, founder_email, founder_domain,
	       first_connected_at, connection_enabled, entity_id,
	       inbox_trigger_id, sent_trigger_id,
	       initial_sync_completed, initial_sync_started_at, initial_sync_completed_at, last_sync_time,
	       total_commitments_found, sync_in_progress,
	       trigger_creation_in_progress, trigger_creation_started_at
	FROM users
`

func scanState(row pgx.Row) (*State, error) {
	s := &State{}
	err := row.Scan(
		&s.UserID, &s.FounderName, &s.FounderEmail, &s.FounderDomain,
		&s.FirstConnectedAt, &s.ConnectionEnabled, &s.EntityID,
		&s.InboxTriggerID, &s.SentTriggerID,
		&s.InitialSyncCompleted, &s.InitialSyncStartedAt, &s.InitialSyncCompletedAt, &s.LastSyncTime,
		&s.TotalCommitmentsFound, &s.SyncInProgress,
		&s.TriggerCreationInProgress, &s.TriggerCreationStartedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserMissing
		}
		return nil, err
	}
	return s, nil
}

// Get fetches a user's connection state.
func (r *Repository) Get(ctx context.Context, userID string) (*State, error) {
	return scanState(r.pool.QueryRow(ctx, selectState+` WHERE id = $1`, userID))
}

// GetByEntityID resolves the connected aggregator entity back to its
// owning user's connection state, used by the live pipeline to turn a
// webhook's entity id into a user id.
func (r *Repository) GetByEntityID(ctx context.Context, entityID string) (*State, error) {
	return scanState(r.pool.QueryRow(ctx, selectState+` WHERE entity_id = $1`, entityID))
}

// Connect marks the connection enabled and records the entity id. If the
// user has never connected before, first_connected_at is set to now;
// otherwise it is left untouched (monotone, per the testable property).
func (r *Repository) Connect(ctx context.Context, userID, entityID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET connection_enabled = true,
		    entity_id = $2,
		    first_connected_at = COALESCE(first_connected_at, now())
		WHERE id = $1
	`, userID, entityID)
	return err
}

// Disconnect tears down the live link but preserves first_connected_at
// and last_sync_time so backfill never re-runs on reconnect.
func (r *Repository) Disconnect(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET connection_enabled = false,
		    inbox_trigger_id = NULL,
		    sent_trigger_id = NULL
		WHERE id = $1
	`, userID)
	return err
}

// AcquireSyncLock sets sync_in_progress if it is not already set,
// returning false without error if another backfill is already running.
// This lock has no staleness recovery (spec §9 open question).
func (r *Repository) AcquireSyncLock(ctx context.Context, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET sync_in_progress = true, initial_sync_started_at = now()
		WHERE id = $1 AND sync_in_progress = false
	`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseSyncLock clears sync_in_progress unconditionally; callers
// invoke this in a deferred "finally" regardless of backfill outcome.
func (r *Repository) ReleaseSyncLock(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET sync_in_progress = false WHERE id = $1`, userID)
	return err
}

// CompleteInitialSync records backfill completion and the commitment
// count snapshot.
func (r *Repository) CompleteInitialSync(ctx context.Context, userID string, totalFound int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET initial_sync_completed = true,
		    initial_sync_completed_at = now(),
		    last_sync_time = now(),
		    total_commitments_found = $2
		WHERE id = $1
	`, userID, totalFound)
	return err
}

// AcquireTriggerLock sets the trigger-creation lock if it is free or
// stale (older than TriggerLockStaleAfter), force-clearing a stale lock
// in the same statement. Returns false if a fresh lock is held elsewhere.
func (r *Repository) AcquireTriggerLock(ctx context.Context, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET trigger_creation_in_progress = true, trigger_creation_started_at = now()
		WHERE id = $1
		  AND (trigger_creation_in_progress = false
		       OR trigger_creation_started_at < now() - interval '5 minutes')
	`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseTriggerLock clears the trigger-creation lock unconditionally.
func (r *Repository) ReleaseTriggerLock(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET trigger_creation_in_progress = false WHERE id = $1`, userID)
	return err
}

// SetTriggers persists both trigger ids atomically.
func (r *Repository) SetTriggers(ctx context.Context, userID string, inboxID, sentID *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET inbox_trigger_id = $2, sent_trigger_id = $3 WHERE id = $1
	`, userID, inboxID, sentID)
	return err
}
