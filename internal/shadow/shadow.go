// Package shadow implements the soft-delete TTL shadow store: a deleted
// commitment's full prior state is mirrored into Redis for 24 hours so
// it can be restored, then falls out of the cache on its own.
package shadow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/commitloop/engine/pkg/cache"
)

const ttl = 24 * time.Hour

// Entry is the shadow payload: the deleted commitment plus the moment
// it was deleted, used to sort list_deleted results.
type Entry struct {
	DeletedAt time.Time       `json:"deleted_at"`
	Document  json.RawMessage `json:"document"`
}

// Store wraps the shared Redis client with the shadow key scheme.
type Store struct {
	client *cache.Client
}

// NewStore constructs a Store over a shared Redis client.
func NewStore(client *cache.Client) *Store {
	return &Store{client: client}
}

func key(userID, commitmentID string) string {
	return fmt.Sprintf("deleted:%s:%s", userID, commitmentID)
}

// Put writes a deleted commitment's full prior document into the shadow
// with a 24-hour expiry. Caller is responsible for marshaling doc.
func (s *Store) Put(ctx context.Context, userID, commitmentID string, doc json.RawMessage) error {
	entry := Entry{DeletedAt: time.Now().UTC(), Document: doc}
	blob, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.SetJSON(ctx, key(userID, commitmentID), blob, ttl)
}

// Get retrieves a shadowed commitment by id. Returns cache.ErrNotFound
// if the entry has expired or was never shadowed — restore callers must
// translate this into apperrors.ErrNotFound.
func (s *Store) Get(ctx context.Context, userID, commitmentID string) (*Entry, error) {
	blob, err := s.client.GetJSON(ctx, key(userID, commitmentID))
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(blob, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete clears a shadow entry, used after a successful restore.
func (s *Store) Delete(ctx context.Context, userID, commitmentID string) error {
	return s.client.DeleteKey(ctx, key(userID, commitmentID))
}

// List enumerates every shadow entry for a user, newest deletion first,
// bounded by limit.
func (s *Store) List(ctx context.Context, userID string, limit int) ([]*Entry, error) {
	keys, err := s.client.ScanKeys(ctx, fmt.Sprintf("deleted:%s:*", userID))
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(keys))
	for _, k := range keys {
		blob, err := s.client.GetJSON(ctx, k)
		if err != nil {
			continue // expired between scan and get; skip
		}
		var entry Entry
		if err := json.Unmarshal(blob, &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DeletedAt.After(entries[j].DeletedAt)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
