// Package aggregator is the thin adapter around the third-party mail
// aggregator SDK. The aggregator itself is treated as an opaque client;
// this package exists only to normalize its responses into the single
// id/kind shape the rest of the engine depends on, instead of scattering
// ad-hoc field lookups across every caller.
package aggregator

import (
	"context"
	"time"
)

// Trigger kinds the provisioner cares about.
const (
	KindNewMessage = "NEW_MESSAGE"
	KindEmailSent  = "EMAIL_SENT"
)

// Folder names a message can be sourced from.
const (
	FolderInbox = "INBOX"
	FolderSent  = "SENT"
)

// Message is a normalized view of one aggregator message, independent
// of whatever field names the underlying SDK response used.
type Message struct {
	ID             string
	Sender         string
	SenderName     string
	Subject        string
	Body           string
	Date           time.Time
	Folder         string
	RecipientEmail string
	RecipientName  string
	Headers        map[string]string
	Labels         []string
}

// Trigger is a normalized aggregator-side webhook subscription.
type Trigger struct {
	ID                string
	Kind              string // NEW_MESSAGE | EMAIL_SENT
	ConnectedAccountID string
	Active            bool
}

// Client is the normalized surface the rest of the engine depends on.
// Implementations translate to whatever the underlying aggregator SDK
// actually returns.
type Client interface {
	// ListMessages fetches a folder's messages for entity, paged in
	// batches of batchSize, capped at limit total results.
	ListMessages(ctx context.Context, entityID, folder string, limit, batchSize int) ([]Message, error)

	// GetMessage fetches a single message by id.
	GetMessage(ctx context.Context, entityID, messageID string) (Message, error)

	// ListTriggers returns the active triggers for entity.
	ListTriggers(ctx context.Context, entityID string) ([]Trigger, error)

	// CreateTrigger provisions a new trigger of the given kind for entity.
	CreateTrigger(ctx context.Context, entityID, kind string) (Trigger, error)
}
