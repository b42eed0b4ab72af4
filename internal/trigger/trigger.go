// Package trigger provisions and reconciles the two aggregator-side
// webhook subscriptions (NEW_MESSAGE, EMAIL_SENT) a connected account
// needs before the live pipeline (C9) can run. It shares the
// trigger-creation lock columns with internal/connection, since both
// concerns live on the same user row.
package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/commitloop/engine/internal/aggregator"
	"github.com/commitloop/engine/internal/connection"
	"github.com/commitloop/engine/pkg/cache"
)

// Service provisions triggers for a user's connected entity.
type Service struct {
	repo   *connection.Repository
	agg    aggregator.Client
	cache  *cache.Client // optional fast non-transactional lock mirror
	logger *slog.Logger
}

// NewService constructs a Service. cache may be nil (the Postgres lock
// column remains the source of truth either way). logger may be nil,
// defaulting to slog.Default().
func NewService(repo *connection.Repository, agg aggregator.Client, cacheClient *cache.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, agg: agg, cache: cacheClient, logger: logger}
}

func lockMirrorKey(userID string) string {
	return "lock:trigger:" + userID
}

// EnsureTriggers provisions whichever of the NEW_MESSAGE/EMAIL_SENT
// triggers are missing for userID's entity, under the trigger-creation
// lock. It creates nothing if both triggers already exist, and only
// rewrites their stored ids. Returns false,nil
// if another caller currently holds a fresh lock.
func (s *Service) EnsureTriggers(ctx context.Context, userID, entityID string) (bool, error) {
	acquired, err := s.repo.AcquireTriggerLock(ctx, userID)
	if err != nil || !acquired {
		return acquired, err
	}
	if s.cache != nil {
		if _, err := s.cache.AcquireLock(ctx, lockMirrorKey(userID), connection.TriggerLockStaleAfter); err != nil {
			s.logger.Warn("trigger lock cache mirror failed", "error", err, "user_id", userID)
		}
	}
	defer func() {
		if err := s.repo.ReleaseTriggerLock(ctx, userID); err != nil {
			s.logger.Error("release trigger lock", "error", err, "user_id", userID)
		}
		if s.cache != nil {
			if err := s.cache.ReleaseLock(ctx, lockMirrorKey(userID)); err != nil {
				s.logger.Warn("trigger lock cache mirror release failed", "error", err, "user_id", userID)
			}
		}
	}()

	existing, err := s.agg.ListTriggers(ctx, entityID)
	if err != nil {
		return true, err
	}

	var inboxID, sentID *string
	for _, t := range existing {
		if !t.Active {
			continue
		}
		switch t.Kind {
		case aggregator.KindNewMessage:
			id := t.ID
			inboxID = &id
		case aggregator.KindEmailSent:
			id := t.ID
			sentID = &id
		}
	}

	if inboxID == nil {
		created, err := s.agg.CreateTrigger(ctx, entityID, aggregator.KindNewMessage)
		if err != nil {
			return true, err
		}
		inboxID = &created.ID
	}
	if sentID == nil {
		created, err := s.agg.CreateTrigger(ctx, entityID, aggregator.KindEmailSent)
		if err != nil {
			return true, err
		}
		sentID = &created.ID
	}

	return true, s.repo.SetTriggers(ctx, userID, inboxID, sentID)
}

// ForceClearStaleLock is the explicit operator escape hatch for a
// trigger-creation lock that outlived its owner — exposed so
// cmd/worker reconcile-triggers can call it directly rather than only
// relying on automatic staleness recovery.
func (s *Service) ForceClearStaleLock(ctx context.Context, userID string) error {
	if s.cache != nil {
		if err := s.cache.ReleaseLock(ctx, lockMirrorKey(userID)); err != nil {
			s.logger.Warn("trigger lock cache mirror release failed", "error", err, "user_id", userID)
		}
	}
	return s.repo.ReleaseTriggerLock(ctx, userID)
}

// Reconcile is the health-check / operator path: it clears a stale
// trigger lock if present, then re-runs EnsureTriggers so a connection
// missing one or both triggers self-heals.
func (s *Service) Reconcile(ctx context.Context, userID, entityID string, now time.Time) error {
	state, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if connection.HasBothTriggers(state) {
		return nil
	}
	if connection.TriggerLockIsStale(state, now) {
		if err := s.ForceClearStaleLock(ctx, userID); err != nil {
			return err
		}
	}
	_, err = s.EnsureTriggers(ctx, userID, entityID)
	return err
}
