package commitment

import (
	"context"
	"errors"
	"fmt"

	"github.com/commitloop/engine/internal/apperrors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres-backed store for a single user's commitments.
// Only the `completed` flag is pushed down into SQL; every other filter
// in Filter is applied in-process by Query after status recomputation,
// per the implementation note in the filter model.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository over a shared connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert assigns a fresh opaque id and persists a new commitment row. No
// dedupe is applied here — backfill permits multiple commitments per
// source message; live ingestion dedupes by checking ExistsByMessageID
// before extraction (see internal/live), and redelivery/concurrency is
// additionally guarded by the task queue's idempotency key.
func (r *Repository) Insert(ctx context.Context, c *Commitment) error {
	c.ID = uuid.NewString()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO commitments (
			id, user_id, what, to_whom, given_by,
			deadline_raw, deadline_iso,
			status, days_overdue, overdue_flag,
			priority, commitment_type, estimated_hours, confidence, sender_role,
			direction, assigned_to_me,
			message_id, email_subject, email_sender, email_sender_name, email_date, source_email_folder,
			completed, completed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17,
			$18, $19, $20, $21, $22, $23,
			$24, $25, now(), now()
		)
	`,
		c.ID, c.UserID, c.What, c.ToWhom, c.GivenBy,
		nullableString(c.DeadlineRaw), nullableString(c.DeadlineISOValue),
		c.Status, c.DaysOverdue, c.OverdueFlag,
		c.Priority, c.CommitmentType, c.EstimatedHours, c.Confidence, c.SenderRole,
		c.Direction, c.AssignedToMe,
		c.MessageID, c.EmailSubject, c.EmailSender, c.EmailSenderName, c.EmailDate, c.SourceEmailFolder,
		c.Completed, c.CompletedAt,
	)
	return err
}

// GetByCommitmentID resolves by the commitment's own id — the spec's
// "stored field commitment_id" and "document id" collapse to the same
// primary key here since the id is minted once at Insert and never
// re-derived, so the two-step lookup it describes is a single query.
func (r *Repository) GetByCommitmentID(ctx context.Context, userID, id string) (*Commitment, error) {
	row := r.pool.QueryRow(ctx, selectColumns+` WHERE user_id = $1 AND id = $2`, userID, id)
	c, err := scanCommitment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// MarkCompleted requires the commitment to exist and toggles completion,
// freezing status per the completed invariant.
func (r *Repository) MarkCompleted(ctx context.Context, userID, id string, completed bool) error {
	status := StatusActive
	if completed {
		status = StatusCompleted
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE commitments
		SET completed = $3,
		    status = $4,
		    completed_at = CASE WHEN $3 THEN now() ELSE NULL END,
		    updated_at = now()
		WHERE user_id = $1 AND id = $2
	`, userID, id, completed, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes the row outright; the caller (Service) is responsible
// for writing the TTL shadow copy first.
func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM commitments WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Restore re-inserts a commitment exactly as shadowed, preserving its
// original id, with completed reset to false and status to active.
func (r *Repository) Restore(ctx context.Context, c *Commitment) error {
	c.Completed = false
	c.Status = StatusActive
	c.CompletedAt = nil

	_, err := r.pool.Exec(ctx, `
		INSERT INTO commitments (
			id, user_id, what, to_whom, given_by,
			deadline_raw, deadline_iso,
			status, days_overdue, overdue_flag,
			priority, commitment_type, estimated_hours, confidence, sender_role,
			direction, assigned_to_me,
			message_id, email_subject, email_sender, email_sender_name, email_date, source_email_folder,
			completed, completed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17,
			$18, $19, $20, $21, $22, $23,
			$24, $25, $26, now()
		)
	`,
		c.ID, c.UserID, c.What, c.ToWhom, c.GivenBy,
		nullableString(c.DeadlineRaw), nullableString(c.DeadlineISOValue),
		c.Status, c.DaysOverdue, c.OverdueFlag,
		c.Priority, c.CommitmentType, c.EstimatedHours, c.Confidence, c.SenderRole,
		c.Direction, c.AssignedToMe,
		c.MessageID, c.EmailSubject, c.EmailSender, c.EmailSenderName, c.EmailDate, c.SourceEmailFolder,
		c.Completed, c.CompletedAt, c.CreatedAt,
	)
	return err
}

// ExistsByMessageID reports whether a commitment sourced from this
// message already exists for the user, so the live pipeline can skip
// re-extracting and re-persisting a message it has already processed.
func (r *Repository) ExistsByMessageID(ctx context.Context, userID, messageID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM commitments WHERE user_id = $1 AND message_id = $2)`,
		userID, messageID,
	).Scan(&exists)
	return exists, err
}

// ListAll fetches every commitment for a user with only the completed
// flag pushed down, for Service.Query to filter and categorize in-process.
func (r *Repository) ListAll(ctx context.Context, userID string, includeCompleted, onlyCompleted bool) ([]*Commitment, error) {
	var rows pgx.Rows
	var err error

	switch {
	case onlyCompleted:
		rows, err = r.pool.Query(ctx, selectColumns+` WHERE user_id = $1 AND completed = true`, userID)
	case includeCompleted:
		rows, err = r.pool.Query(ctx, selectColumns+` WHERE user_id = $1`, userID)
	default:
		rows, err = r.pool.Query(ctx, selectColumns+` WHERE user_id = $1 AND completed = false`, userID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const selectColumns = `
	SELECT id, user_id, what, to_whom, given_by,
	       coalesce(deadline_raw, ''), coalesce(deadline_iso, ''),
	       status, days_overdue, overdue_flag,
	       priority, commitment_type, estimated_hours, confidence, sender_role,
	       direction, assigned_to_me,
	       message_id, email_subject, email_sender, email_sender_name, email_date, source_email_folder,
	       completed, completed_at, created_at, updated_at
	FROM commitments
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommitment(row rowScanner) (*Commitment, error) {
	c := &Commitment{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.What, &c.ToWhom, &c.GivenBy,
		&c.DeadlineRaw, &c.DeadlineISOValue,
		&c.Status, &c.DaysOverdue, &c.OverdueFlag,
		&c.Priority, &c.CommitmentType, &c.EstimatedHours, &c.Confidence, &c.SenderRole,
		&c.Direction, &c.AssignedToMe,
		&c.MessageID, &c.EmailSubject, &c.EmailSender, &c.EmailSenderName, &c.EmailDate, &c.SourceEmailFolder,
		&c.Completed, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan commitment: %w", err)
	}
	return c, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
