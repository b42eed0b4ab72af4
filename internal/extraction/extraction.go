// Package extraction implements the typed boundary to the commitment
// extractor: a schema-validated request/response contract around an LLM
// call, with retry-then-safe-empty-result semantics and credit metering
// wired in after every call attempt.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/commitloop/engine/internal/credit"
)

// EmailInput is the normalized view of a single message handed to the
// extractor, independent of which folder or aggregator it came from.
type EmailInput struct {
	Sender         string
	SenderName     string
	Subject        string
	Body           string // capped at 4000 chars by the caller
	Date           time.Time
	MessageID      string
	Folder         string // INBOX | SENT
	RecipientEmail string
	RecipientName  string
}

// UserContext carries the founder identity the extractor reasons about
// for direction/assignment classification.
type UserContext struct {
	UserID        string
	FounderName   string
	FounderEmail  string
	FounderDomain string
}

// ResolvedFounderDomain returns FounderDomain, defaulting to the domain
// portion of FounderEmail when unset.
func (u UserContext) ResolvedFounderDomain() string {
	if u.FounderDomain != "" {
		return u.FounderDomain
	}
	if i := strings.LastIndex(u.FounderEmail, "@"); i >= 0 {
		return u.FounderEmail[i+1:]
	}
	return ""
}

// RawCommitment is one extracted obligation, prior to the pipeline's
// post-processing pass.
type RawCommitment struct {
	What           string  `json:"what"`
	ToWhom         string  `json:"to_whom"`
	AssignedToMe   bool    `json:"assigned_to_me"`
	DeadlineRaw    *string `json:"deadline_raw"`
	Priority       string  `json:"priority"`
	Confidence     float64 `json:"confidence"`
	CommitmentType string  `json:"commitment_type"`
	EstimatedHours float64 `json:"estimated_hours"`
}

// Reasoning is the classifier's explanation for its sender_role guess.
type Reasoning struct {
	DomainMatch   bool   `json:"domain_match"`
	Domain        string `json:"domain"`
	SignatureMatch bool  `json:"signature_match"`
	SubjectHint   bool   `json:"subject_hint"`
	BodyHint      bool   `json:"body_hint"`
	FallbackUsed  bool   `json:"fallback_used"`
}

// Classification is the sender-role guess and its confidence.
type Classification struct {
	SenderRole string    `json:"sender_role"`
	Confidence float64   `json:"confidence"`
	Reasoning  Reasoning `json:"reasoning"`
}

// EmailMetadata echoes the input message's identifying fields.
type EmailMetadata struct {
	Sender     string    `json:"sender"`
	SenderName string    `json:"sender_name"`
	Subject    string    `json:"subject"`
	Date       time.Time `json:"date"`
	MessageID  string    `json:"message_id"`
	Folder     string    `json:"folder"`
}

// Result is the validated extractor output, before post-processing.
type Result struct {
	HasCommitment  bool            `json:"has_commitment"`
	Direction      string          `json:"direction"`
	EmailMetadata  EmailMetadata   `json:"email_metadata"`
	Classification Classification  `json:"classification"`
	Commitments    []RawCommitment `json:"commitments"`
	Summary        string          `json:"summary"`
}

// empty returns the safe empty result produced after retries are exhausted.
func empty(email EmailInput) Result {
	return Result{
		HasCommitment: false,
		Direction:     directionForFolder(email.Folder),
		EmailMetadata: EmailMetadata{
			Sender: email.Sender, SenderName: email.SenderName, Subject: email.Subject,
			Date: email.Date, MessageID: email.MessageID, Folder: email.Folder,
		},
	}
}

func directionForFolder(folder string) string {
	if folder == "SENT" {
		return "outgoing"
	}
	return "incoming"
}

// LLMClient is the minimal boundary to the underlying model: one
// completion call returning raw text plus the token usage it cost.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (text string, inputTokens, outputTokens int, err error)
}

// Extractor wires an LLMClient to the credit meter and retry policy.
type Extractor struct {
	client    LLMClient
	meter     *credit.Meter
	rates     credit.Rates
	retries   int
	maxTokens int
	retryWait time.Duration
	logger    *slog.Logger
}

// NewExtractor constructs an Extractor. retries and maxTokens come from
// internal/config (EXTRACTION_RETRIES, EXTRACTION_MAX_TOKENS).
func NewExtractor(client LLMClient, meter *credit.Meter, rates credit.Rates, retries, maxTokens int, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		client: client, meter: meter, rates: rates,
		retries: retries, maxTokens: maxTokens,
		retryWait: time.Second, logger: logger,
	}
}

// Extract calls the LLM, validating its response against the schema and
// retrying up to e.retries times with e.retryWait spacing on failure.
// The meter is invoked after every attempt (success or failure) using
// that attempt's token usage, before any further attempt is made. If all
// attempts fail, a safe empty result is returned instead of an error.
// When a meter is set and the user has no credits left, no call is made
// and the empty result is returned.
func (e *Extractor) Extract(ctx context.Context, email EmailInput, uc UserContext) Result {
	if e.meter != nil {
		hasCredits, err := e.meter.HasCredits(ctx, uc.UserID)
		if err != nil {
			e.logger.Error("credit check failed before extraction", "user_id", uc.UserID, "error", err)
		} else if !hasCredits {
			e.logger.Info("extraction skipped: no credits remaining", "user_id", uc.UserID, "message_id", email.MessageID)
			return empty(email)
		}
	}

	prompt := buildPrompt(email, uc)

	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		text, inTokens, outTokens, err := e.client.Complete(ctx, prompt, e.maxTokens)

		if meterErr := e.meterUsage(ctx, uc.UserID, inTokens, outTokens); meterErr != nil {
			e.logger.Error("credit meter failed during extraction", "user_id", uc.UserID, "error", meterErr)
		}

		if err != nil {
			lastErr = err
		} else if result, ok := parseResult(text, email); ok {
			return result
		} else {
			lastErr = fmt.Errorf("extraction response failed schema validation")
		}

		if attempt < e.retries {
			select {
			case <-ctx.Done():
				return empty(email)
			case <-time.After(e.retryWait):
			}
		}
	}

	e.logger.Warn("extraction exhausted retries, returning empty result",
		"message_id", email.MessageID, "error", lastErr)
	return empty(email)
}

func (e *Extractor) meterUsage(ctx context.Context, userID string, inTokens, outTokens int) error {
	if e.meter == nil {
		return nil
	}
	amount := credit.CreditsSpent(inTokens, outTokens, e.rates)
	if amount == 0 {
		return nil
	}
	return e.meter.Deduct(ctx, userID, amount, inTokens, outTokens)
}

func parseResult(text string, email EmailInput) (Result, bool) {
	var r Result
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return Result{}, false
	}
	if !validateSchema(r) {
		return Result{}, false
	}
	r.EmailMetadata.MessageID = email.MessageID
	r.EmailMetadata.Folder = email.Folder
	return r, true
}

// validateSchema checks that direction and every commitment's priority
// are within their closed enums. estimated_hours is not checked here;
// PostProcess defaults a missing or non-positive value.
func validateSchema(r Result) bool {
	if r.Direction != "incoming" && r.Direction != "outgoing" {
		return false
	}
	for _, c := range r.Commitments {
		switch c.Priority {
		case "high", "medium", "low":
		default:
			return false
		}
	}
	return true
}

func buildPrompt(email EmailInput, uc UserContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "founder=%s (%s) domain=%s\n", uc.FounderName, uc.FounderEmail, uc.ResolvedFounderDomain())
	fmt.Fprintf(&b, "folder=%s sender=%s<%s> subject=%q\n", email.Folder, email.SenderName, email.Sender, email.Subject)
	fmt.Fprintf(&b, "body:\n%s\n", truncate(email.Body, 4000))
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
