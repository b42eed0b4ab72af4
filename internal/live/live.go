// Package live handles the steady-state webhook path: one aggregator
// trigger fires per new or sent message, and this package validates,
// credit-gates, and enqueues it for background extraction.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/commitloop/engine/internal/aggregator"
	"github.com/commitloop/engine/internal/commitment"
	"github.com/commitloop/engine/internal/credit"
	"github.com/commitloop/engine/internal/extraction"
	"github.com/commitloop/engine/internal/taskqueue"
)

// WebhookPayload is the normalized shape a trigger delivery is parsed
// into before being enqueued; EntityID ties it back to a user.
type WebhookPayload struct {
	EntityID  string   `json:"entity_id"`
	MessageID string   `json:"message_id"`
	Kind      string   `json:"kind"` // NEW_MESSAGE | EMAIL_SENT
	Labels    []string `json:"labels"`
}

// UserResolver maps an aggregator entity id back to the owning user and
// their founder profile, used both for the credit gate and for the
// extractor's direction/assignment classification.
type UserResolver interface {
	ResolveEntity(ctx context.Context, entityID string) (userID string, uc extraction.UserContext, err error)
}

// Handler wires the webhook surface to the task queue; actual
// extraction happens asynchronously in ExtractTask.Handle.
type Handler struct {
	agg     aggregator.Client
	users   UserResolver
	meter   *credit.Meter
	queue   *taskqueue.Queue
	logger  *slog.Logger
}

// NewHandler constructs a Handler. logger may be nil, defaulting to slog.Default().
func NewHandler(agg aggregator.Client, users UserResolver, meter *credit.Meter, queue *taskqueue.Queue, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{agg: agg, users: users, meter: meter, queue: queue, logger: logger}
}

// extractPayload is what gets marshaled onto the task queue for
// ExtractTask to consume.
type extractPayload struct {
	UserID    string `json:"user_id"`
	EntityID  string `json:"entity_id"`
	MessageID string `json:"message_id"`
	Folder    string `json:"folder"`
}

// Ingest validates the webhook delivery, skips silently (acking to the
// aggregator) if the user has no credits left, and otherwise enqueues
// background extraction. The idempotency key is (user, message_id),
// so a redelivered webhook for the same message is a silent no-op.
func (h *Handler) Ingest(ctx context.Context, payload WebhookPayload) error {
	if payload.EntityID == "" || payload.MessageID == "" {
		return fmt.Errorf("webhook payload missing entity_id or message_id")
	}

	userID, _, err := h.users.ResolveEntity(ctx, payload.EntityID)
	if err != nil {
		return err
	}

	hasCredits, err := h.meter.HasCredits(ctx, userID)
	if err != nil {
		return err
	}
	if !hasCredits {
		h.logger.Info("webhook skipped: no credits remaining", "user_id", userID, "message_id", payload.MessageID)
		return nil
	}

	folder := resolveFolder(payload)

	body, err := json.Marshal(extractPayload{
		UserID: userID, EntityID: payload.EntityID, MessageID: payload.MessageID, Folder: folder,
	})
	if err != nil {
		return err
	}

	opts := taskqueue.DefaultEnqueueOptions()
	opts.IdempotencyKey = fmt.Sprintf("extract:%s:%s", userID, payload.MessageID)

	_, err = h.queue.Enqueue(ctx, taskqueue.TypeExtractMessage, json.RawMessage(body), opts)
	if err != nil && err != taskqueue.ErrDuplicateTask {
		return err
	}
	return nil
}

func resolveFolder(p WebhookPayload) string {
	if p.Kind == aggregator.KindEmailSent {
		return aggregator.FolderSent
	}
	if len(p.Labels) > 0 {
		return resolveFolderFromLabelsLocal(p.Labels)
	}
	return aggregator.FolderInbox
}

func resolveFolderFromLabelsLocal(labels []string) string {
	for _, l := range labels {
		if l == aggregator.FolderSent {
			return aggregator.FolderSent
		}
	}
	return aggregator.FolderInbox
}

// ExtractTask is the taskqueue.Handler that performs the actual
// message fetch + extraction + persist for one queued message.
type ExtractTask struct {
	agg         aggregator.Client
	users       UserResolver
	extractor   *extraction.Extractor
	commitments *commitment.Service
	logger      *slog.Logger
}

// NewExtractTask constructs an ExtractTask. logger may be nil, defaulting to slog.Default().
func NewExtractTask(agg aggregator.Client, users UserResolver, extractor *extraction.Extractor, commitments *commitment.Service, logger *slog.Logger) *ExtractTask {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractTask{agg: agg, users: users, extractor: extractor, commitments: commitments, logger: logger}
}

// Handle implements taskqueue.Handler.
func (t *ExtractTask) Handle(ctx context.Context, task *taskqueue.Task) (json.RawMessage, error) {
	var p extractPayload
	if err := task.PayloadTo(&p); err != nil {
		return nil, fmt.Errorf("decode extract payload: %w", err)
	}

	_, uc, err := t.users.ResolveEntity(ctx, p.EntityID)
	if err != nil {
		return nil, err
	}

	exists, err := t.commitments.ExistsByMessageID(ctx, p.UserID, p.MessageID)
	if err != nil {
		return nil, err
	}
	if exists {
		t.logger.Info("live extraction skipped: commitment already exists for message", "user_id", p.UserID, "message_id", p.MessageID)
		return nil, nil
	}

	msg, err := t.agg.GetMessage(ctx, p.EntityID, p.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.Folder == "" {
		msg.Folder = p.Folder
	}

	email := extraction.EmailInput{
		Sender: msg.Sender, SenderName: msg.SenderName, Subject: msg.Subject, Body: msg.Body,
		Date: msg.Date, MessageID: msg.ID, Folder: msg.Folder,
		RecipientEmail: msg.RecipientEmail, RecipientName: msg.RecipientName,
	}

	result := t.extractor.Extract(ctx, email, uc)
	commitments := extraction.PostProcess(result, email, p.UserID)

	for _, c := range commitments {
		if err := t.commitments.Upsert(ctx, c); err != nil {
			return nil, err
		}
	}

	t.logger.Info("live extraction complete", "user_id", p.UserID, "message_id", p.MessageID, "commitments_found", len(commitments))
	return nil, nil
}
