// Package backfill runs the one-time historical ingest triggered on a
// user's first connect: pull INBOX and SENT for a fixed window,
// filter newsletters, extract, persist, then provision triggers.
package backfill

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/commitloop/engine/internal/aggregator"
	"github.com/commitloop/engine/internal/commitment"
	"github.com/commitloop/engine/internal/connection"
	"github.com/commitloop/engine/internal/credit"
	"github.com/commitloop/engine/internal/extraction"
	"github.com/commitloop/engine/internal/trigger"
	"golang.org/x/sync/errgroup"
)

// WindowBefore is the fixed lookback applied to first_connected_at; it is
// inclusive of both endpoints.
const WindowBefore = -2 * 24 * time.Hour

var newsletterSenderRe = regexp.MustCompile(`(?i)no-?reply@|noreply@|newsletter@|do-not-reply@|bounce@`)
var newsletterSubjectRe = regexp.MustCompile(`(?i)receipt|order confirmation|unsubscribe|invoice`)

// isNewsletter applies the filter rules: a matching sender or
// subject pattern, or any of the standard bulk-mail headers.
func isNewsletter(msg aggregator.Message) bool {
	if newsletterSenderRe.MatchString(msg.Sender) {
		return true
	}
	if newsletterSubjectRe.MatchString(msg.Subject) {
		return true
	}
	for _, h := range []string{"List-Unsubscribe", "Precedence", "Auto-Submitted"} {
		if v, ok := msg.Headers[h]; ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Result summarizes one backfill run for logging and for
// total_commitments_found bookkeeping.
type Result struct {
	MessagesScanned     int
	NewslettersSkipped  int
	CommitmentsFound    int
	CreditExhausted     bool
}

// Runner orchestrates one user's backfill.
type Runner struct {
	agg         aggregator.Client
	extractor   *extraction.Extractor
	commitments *commitment.Service
	connections *connection.Service
	triggers    *trigger.Service
	meter       *credit.Meter
	logger      *slog.Logger

	maxInbox  int
	maxSent   int
	batchSize int
}

// Config bundles the fixed sizing knobs read from configuration.
type Config struct {
	MaxInbox  int
	MaxSent   int
	BatchSize int
}

// NewRunner constructs a Runner. logger may be nil, defaulting to slog.Default().
func NewRunner(
	agg aggregator.Client,
	extractor *extraction.Extractor,
	commitments *commitment.Service,
	connections *connection.Service,
	triggers *trigger.Service,
	meter *credit.Meter,
	cfg Config,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		agg: agg, extractor: extractor, commitments: commitments, connections: connections, triggers: triggers, meter: meter,
		maxInbox: cfg.MaxInbox, maxSent: cfg.MaxSent, batchSize: cfg.BatchSize, logger: logger,
	}
}

// Run executes the full backfill for userID against entityID, fetching
// INBOX and SENT concurrently, then running extraction message by
// message. It returns without fetching anything if the user's initial
// sync is already completed. It halts early (preserving whatever was
// already persisted) the moment credits run out, and aborts a folder
// entirely on an aggregator fetch failure while leaving the other
// folder's results intact.
func (r *Runner) Run(ctx context.Context, userID, entityID string, connectedAt time.Time, uc extraction.UserContext) (Result, error) {
	acquired, err := r.connections.AcquireSyncLock(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if !acquired {
		return Result{}, nil // another backfill is already running for this user
	}
	defer func() {
		if err := r.connections.ReleaseSyncLock(ctx, userID); err != nil {
			r.logger.Error("release sync lock", "error", err, "user_id", userID)
		}
	}()

	state, err := r.connections.GetState(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if state.InitialSyncCompleted {
		r.logger.Info("backfill skipped: initial sync already completed", "user_id", userID)
		return Result{}, nil
	}

	windowStart := connectedAt.Add(WindowBefore)

	var inbox, sent []aggregator.Message
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := r.agg.ListMessages(gctx, entityID, aggregator.FolderInbox, r.maxInbox, r.batchSize)
		if err != nil {
			r.logger.Error("backfill: inbox fetch failed, skipping folder", "error", err, "user_id", userID)
			return nil
		}
		inbox = inWindow(msgs, windowStart, connectedAt)
		return nil
	})
	g.Go(func() error {
		msgs, err := r.agg.ListMessages(gctx, entityID, aggregator.FolderSent, r.maxSent, r.batchSize)
		if err != nil {
			r.logger.Error("backfill: sent fetch failed, skipping folder", "error", err, "user_id", userID)
			return nil
		}
		sent = inWindow(msgs, windowStart, connectedAt)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	result := Result{}
	for _, msg := range append(inbox, sent...) {
		result.MessagesScanned++

		if msg.Folder == aggregator.FolderInbox && isNewsletter(msg) {
			result.NewslettersSkipped++
			continue
		}

		hasCredits, err := r.meter.HasCredits(ctx, userID)
		if err != nil {
			r.logger.Error("backfill: credit check failed", "error", err, "user_id", userID)
			continue
		}
		if !hasCredits {
			result.CreditExhausted = true
			break
		}

		found, err := r.processOne(ctx, userID, msg, uc)
		if err != nil {
			r.logger.Error("backfill: persisting extracted commitment failed", "error", err, "user_id", userID, "message_id", msg.ID)
			continue
		}
		result.CommitmentsFound += found
	}

	if err := r.connections.CompleteInitialSync(ctx, userID, result.CommitmentsFound); err != nil {
		return result, err
	}

	if _, err := r.triggers.EnsureTriggers(ctx, userID, entityID); err != nil {
		r.logger.Error("backfill: trigger provisioning failed", "error", err, "user_id", userID)
	}

	return result, nil
}

func (r *Runner) processOne(ctx context.Context, userID string, msg aggregator.Message, uc extraction.UserContext) (int, error) {
	email := extraction.EmailInput{
		Sender: msg.Sender, SenderName: msg.SenderName, Subject: msg.Subject, Body: msg.Body,
		Date: msg.Date, MessageID: msg.ID, Folder: msg.Folder,
		RecipientEmail: msg.RecipientEmail, RecipientName: msg.RecipientName,
	}

	result := r.extractor.Extract(ctx, email, uc)
	commitments := extraction.PostProcess(result, email, userID)
	if len(commitments) == 0 {
		return 0, nil
	}

	for _, c := range commitments {
		if err := r.commitments.Upsert(ctx, c); err != nil {
			return 0, err
		}
	}
	return len(commitments), nil
}

func inWindow(msgs []aggregator.Message, start, end time.Time) []aggregator.Message {
	out := make([]aggregator.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.Date.Before(start) && !m.Date.After(end) {
			out = append(out, m)
		}
	}
	return out
}
