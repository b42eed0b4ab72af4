// Package credit implements the metered credit accounting that gates
// every LLM extraction call: a linear token-to-credit conversion, an
// atomic debit transaction, and the auto-pause hook fired once a user's
// balance is exhausted.
package credit

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/commitloop/engine/internal/apperrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PauseHook is invoked, best-effort, after every debit that leaves a
// user's remaining balance at zero. Its failure is logged but never rolls back
// the debit that triggered it.
type PauseHook func(ctx context.Context, userID string) error

// Rates is the process-wide linear token->credit conversion
// configuration (spec "Configuration (process-wide constants at startup)").
type Rates struct {
	InputTokensPerCredit  float64
	OutputTokensPerCredit float64
	DefaultFreeTrial      float64
}

// Meter reads and writes a user's credit balance in Postgres.
type Meter struct {
	pool      *pgxpool.Pool
	rates     Rates
	pauseHook PauseHook
	logger    *slog.Logger
}

// NewMeter constructs a Meter. pauseHook may be nil, in which case the
// post-commit pause side effect is skipped entirely.
func NewMeter(pool *pgxpool.Pool, rates Rates, pauseHook PauseHook, logger *slog.Logger) *Meter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Meter{pool: pool, rates: rates, pauseHook: pauseHook, logger: logger}
}

// CreditsSpent converts token counts into a credit amount: a linear
// combination of input and output tokens, rounded half-up to two
// decimal places. Negative or missing inputs are normalized to zero.
func CreditsSpent(inTokens, outTokens int, rates Rates) float64 {
	if inTokens < 0 {
		inTokens = 0
	}
	if outTokens < 0 {
		outTokens = 0
	}
	in := float64(inTokens) / rates.InputTokensPerCredit
	out := float64(outTokens) / rates.OutputTokensPerCredit
	return roundHalfUp(in+out+1e-8, 2)
}

func roundHalfUp(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Floor(v*mult+0.5) / mult
}

// InitializeIfMissing sets a user's credit fields to the default free
// trial balance if they have never been set. Idempotent: a user who
// already has a total is left untouched.
func (m *Meter) InitializeIfMissing(ctx context.Context, userID string) error {
	tag, err := m.pool.Exec(ctx, `
		UPDATE users
		SET credits_total = $2, credits_used = 0, credits_remaining = $2
		WHERE id = $1 AND credits_total IS NULL
	`, userID, m.rates.DefaultFreeTrial)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either already initialized, or the user doesn't exist yet;
		// distinguish so callers can react to a truly missing user.
		var exists bool
		if err := m.pool.QueryRow(ctx, `SELECT true FROM users WHERE id = $1`, userID).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrUserMissing
			}
			return err
		}
	}
	return nil
}

// HasCredits reports whether the user's remaining balance is positive.
func (m *Meter) HasCredits(ctx context.Context, userID string) (bool, error) {
	var remaining float64
	err := m.pool.QueryRow(ctx, `SELECT credits_remaining FROM users WHERE id = $1`, userID).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, apperrors.ErrUserMissing
		}
		return false, err
	}
	return remaining > 0, nil
}

// Deduct atomically debits amount credits from a user's balance, floors
// remaining at zero, and records a ledger row for the call in the same
// transaction. If the balance is zero after the debit, the pause hook
// fires after commit, best-effort; this includes a debit against a
// balance that was already zero, so each such call fires it again.
func (m *Meter) Deduct(ctx context.Context, userID string, amount float64, inTokens, outTokens int) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var remaining, used float64
	err = tx.QueryRow(ctx, `
		SELECT credits_remaining, credits_used FROM users WHERE id = $1 FOR UPDATE
	`, userID).Scan(&remaining, &used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrUserMissing
		}
		return err
	}

	newRemaining := remaining - amount
	if newRemaining < 0 {
		newRemaining = 0
	}
	newUsed := used + amount

	if _, err := tx.Exec(ctx, `
		UPDATE users SET credits_remaining = $2, credits_used = $3 WHERE id = $1
	`, userID, newRemaining, newUsed); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO credit_ledger (user_id, amount, in_tokens, out_tokens)
		VALUES ($1, $2, $3, $4)
	`, userID, amount, inTokens, outTokens); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if newRemaining <= 0 && m.pauseHook != nil {
		if err := m.pauseHook(ctx, userID); err != nil {
			m.logger.Error("pause hook failed", "user_id", userID, "error", err)
		}
	}

	return nil
}
