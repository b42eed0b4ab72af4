package connection

import (
	"context"
	"log/slog"
)

// Service orchestrates the connection state machine: it wires the pure
// decision functions in connection.go to the persisted state in
// Repository. Trigger provisioning itself lives in internal/trigger,
// which reuses this package's Repository for the lock columns.
type Service struct {
	repo   *Repository
	logger *slog.Logger
}

// NewService constructs a Service. logger may be nil, defaulting to
// slog.Default().
func NewService(repo *Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// GetState returns the current persisted state for userID.
func (s *Service) GetState(ctx context.Context, userID string) (*State, error) {
	return s.repo.Get(ctx, userID)
}

// GetStateByEntityID resolves a connected aggregator entity id back to
// its owning user's connection state.
func (s *Service) GetStateByEntityID(ctx context.Context, entityID string) (*State, error) {
	return s.repo.GetByEntityID(ctx, entityID)
}

// Connect records entityID as the user's connected account, starting
// first_connected_at only on the first-ever connect. It does not run
// backfill itself. Because first_connected_at is always set once this
// returns, ShouldRunInitialSync reports false for the returned state.
func (s *Service) Connect(ctx context.Context, userID, entityID string) (*State, error) {
	if err := s.repo.Connect(ctx, userID, entityID); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

// Disconnect tears down the live connection, preserving backfill
// history so a later reconnect skips the initial sync.
func (s *Service) Disconnect(ctx context.Context, userID string) error {
	return s.repo.Disconnect(ctx, userID)
}

// AcquireSyncLock attempts to take the backfill lock for userID. No
// staleness recovery is applied here; a stuck lock requires an
// operator to clear it directly in the database.
func (s *Service) AcquireSyncLock(ctx context.Context, userID string) (bool, error) {
	return s.repo.AcquireSyncLock(ctx, userID)
}

// ReleaseSyncLock clears the backfill lock regardless of outcome.
func (s *Service) ReleaseSyncLock(ctx context.Context, userID string) error {
	return s.repo.ReleaseSyncLock(ctx, userID)
}

// CompleteInitialSync records a finished backfill and its commitment count.
func (s *Service) CompleteInitialSync(ctx context.Context, userID string, totalFound int) error {
	return s.repo.CompleteInitialSync(ctx, userID, totalFound)
}

// SyncStatus reports the coarse status string for the check-connection
// and sync-status endpoints.
func (s *Service) SyncStatus(ctx context.Context, userID string, hasCredits bool) (string, error) {
	state, err := s.repo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return ComputeSyncStatus(state, hasCredits), nil
}
