package commitment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/commitloop/engine/internal/apperrors"
	"github.com/commitloop/engine/internal/shadow"
	"github.com/commitloop/engine/internal/status"
	"github.com/commitloop/engine/pkg/cache"
)

// Service orchestrates the repository, status recomputation, and the
// soft-delete shadow store behind a single commitment-lifecycle API.
type Service struct {
	repo         *Repository
	shadow       *shadow.Store
	upcomingDays int
	logger       *slog.Logger
}

// NewService constructs a Service.
func NewService(repo *Repository, shadowStore *shadow.Store, upcomingDays int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, shadow: shadowStore, upcomingDays: upcomingDays, logger: logger}
}

// Upsert assigns a fresh id, recomputes status as of now, and persists a
// new commitment. No dedupe is applied here (spec: backfill permits
// multiples per message); live-ingestion dedupe lives at the caller.
func (s *Service) Upsert(ctx context.Context, c *Commitment) error {
	applyRecompute(c, time.Now())
	return s.repo.Insert(ctx, c)
}

// ExistsByMessageID reports whether any commitment already exists for
// this (user, message_id) pair — the live pipeline's dedupe check,
// since a retried task would otherwise re-extract and re-insert
// commitments already persisted from an earlier attempt on the same
// message.
func (s *Service) ExistsByMessageID(ctx context.Context, userID, messageID string) (bool, error) {
	return s.repo.ExistsByMessageID(ctx, userID, messageID)
}

// GetByCommitmentID fetches a commitment and recomputes its status as of
// now before returning it, since the stored status is cached at
// extraction/write time.
func (s *Service) GetByCommitmentID(ctx context.Context, userID, id string) (*Commitment, error) {
	c, err := s.repo.GetByCommitmentID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	applyRecompute(c, time.Now())
	return c, nil
}

// MarkCompleted requires the commitment to exist and toggles completion.
func (s *Service) MarkCompleted(ctx context.Context, userID, id string, completed bool) error {
	return s.repo.MarkCompleted(ctx, userID, id, completed)
}

// Delete copies the commitment into the 24h TTL shadow, then removes it.
// A shadow-store failure is logged and does not block the delete.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	c, err := s.repo.GetByCommitmentID(ctx, userID, id)
	if err != nil {
		return err
	}

	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := s.shadow.Put(ctx, userID, id, doc); err != nil {
		s.logger.Warn("shadow store unavailable, deleting without backup",
			"user_id", userID, "commitment_id", id, "error", err)
	}

	return s.repo.Delete(ctx, userID, id)
}

// Restore reads a shadowed commitment, fails NotFound if it has expired,
// never existed, or the shadow store cannot be read, and rewrites it
// active with a fresh updated_at, preserving the original id and every
// other field.
func (s *Service) Restore(ctx context.Context, userID, id string) (*Commitment, error) {
	entry, err := s.shadow.Get(ctx, userID, id)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.Warn("shadow store unavailable, restore not possible",
				"user_id", userID, "commitment_id", id, "error", err)
		}
		return nil, apperrors.ErrNotFound
	}

	var c Commitment
	if err := json.Unmarshal(entry.Document, &c); err != nil {
		return nil, err
	}

	if err := s.repo.Restore(ctx, &c); err != nil {
		return nil, err
	}
	if err := s.shadow.Delete(ctx, userID, id); err != nil {
		s.logger.Warn("failed to clear shadow entry after restore", "user_id", userID, "commitment_id", id, "error", err)
	}
	return &c, nil
}

// ListDeleted enumerates shadowed commitments for a user, newest first.
func (s *Service) ListDeleted(ctx context.Context, userID string, limit int) ([]*Commitment, error) {
	entries, err := s.shadow.List(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*Commitment, 0, len(entries))
	for _, entry := range entries {
		var c Commitment
		if err := json.Unmarshal(entry.Document, &c); err != nil {
			continue
		}
		out = append(out, &c)
	}
	return out, nil
}

// Result is the categorized view of a user's commitments, matching the
// query-side contract consumed by the chat layer.
type Result struct {
	QueryDescription string
	FiltersApplied   Filter
	TotalFound       int

	Overdue    []*Commitment
	DueToday   []*Commitment
	Upcoming   []*Commitment
	Later      []*Commitment
	NoDeadline []*Commitment
	Completed  []*Commitment

	Flat []*Commitment

	Summary Summary

	// IsEmpty, EmptyMessage, and Suggestions are populated only when
	// TotalFound is zero, giving the chat layer a contextual hint
	// instead of a bare "no results" reply.
	IsEmpty      bool
	EmptyMessage string
	Suggestions  []string
}

// Summary is the per-bucket count breakdown of a Result, independent of
// the actual commitment slices — cheap to render in a chat reply
// without walking Flat again.
type Summary struct {
	Total      int
	Overdue    int
	DueToday   int
	Upcoming   int
	Later      int
	NoDeadline int
	Completed  int
}

// Query fetches, recomputes, filters in-process, sorts, and categorizes
// a user's commitments per the filter model. Only the completed flag is
// pushed into SQL; everything else is applied here.
func (s *Service) Query(ctx context.Context, userID string, filter Filter) (*Result, error) {
	rows, err := s.repo.ListAll(ctx, userID, filter.IncludeCompleted, filter.OnlyCompleted)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	matched := make([]*Commitment, 0, len(rows))
	for _, c := range rows {
		applyRecompute(c, now)
		if matchesFilter(c, filter) {
			matched = append(matched, c)
		}
	}

	sortCommitments(matched, filter, now)

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	result := &Result{FiltersApplied: filter, TotalFound: len(matched), Flat: matched}
	for _, c := range matched {
		bucket := status.Categorize(status.Result{Status: c.Status, DaysOverdue: c.DaysOverdue, IsOverdue: c.OverdueFlag}, c.DeadlineISOValue, now, s.upcomingDays)
		switch bucket {
		case status.BucketOverdue:
			result.Overdue = append(result.Overdue, c)
		case status.BucketDueToday:
			result.DueToday = append(result.DueToday, c)
		case status.BucketUpcoming:
			result.Upcoming = append(result.Upcoming, c)
		case status.BucketLater:
			result.Later = append(result.Later, c)
		case status.BucketNoDeadline:
			result.NoDeadline = append(result.NoDeadline, c)
		case status.BucketCompleted:
			result.Completed = append(result.Completed, c)
		}
	}

	result.Summary = Summary{
		Total:      result.TotalFound,
		Overdue:    len(result.Overdue),
		DueToday:   len(result.DueToday),
		Upcoming:   len(result.Upcoming),
		Later:      len(result.Later),
		NoDeadline: len(result.NoDeadline),
		Completed:  len(result.Completed),
	}

	if result.TotalFound == 0 {
		result.IsEmpty = true
		result.EmptyMessage, result.Suggestions = emptyResultHint(filter)
	}

	return result, nil
}

// emptyResultHint picks the contextual empty-state message and follow-up
// suggestions for a zero-result query, keyed off whichever filter field
// most specifically explains why nothing matched. The precedence order
// mirrors how a user would describe their own query: a status filter is
// more specific than a bare search term, which is more specific than no
// filter at all.
func emptyResultHint(f Filter) (string, []string) {
	switch emptyResultFilterType(f) {
	case "status":
		return "No commitments match that status.",
			[]string{"Try a different status", "Ask for all active commitments"}
	case "sender":
		return "No commitments found from that sender.",
			[]string{"Check the spelling of the sender's name or email", "Ask for commitments from everyone instead"}
	case "date":
		return "No commitments fall in that date range.",
			[]string{"Widen the date range", "Ask what's overdue or due soon instead"}
	case "search":
		return "No commitments matched that search.",
			[]string{"Try a shorter or different search term", "Ask for all active commitments"}
	case "completed":
		return "No completed commitments yet.",
			[]string{"Ask what's still active instead"}
	case "priority":
		return "No commitments at that priority.",
			[]string{"Try a different priority level", "Ask for all active commitments"}
	default:
		return "No commitments found.",
			[]string{"Try asking what's overdue", "Ask what's due today", "Ask for everything active"}
	}
}

func emptyResultFilterType(f Filter) string {
	switch {
	case len(f.Status) > 0:
		return "status"
	case f.SenderEmail != "" || f.SenderName != "" || len(f.SenderRole) > 0:
		return "sender"
	case f.CreatedAfter != nil || f.CreatedBefore != nil || f.DeadlineAfter != nil || f.DeadlineBefore != nil || f.HasDeadline != nil:
		return "date"
	case f.SearchText != "":
		return "search"
	case f.OnlyCompleted:
		return "completed"
	case f.Priority != "":
		return "priority"
	default:
		return "general"
	}
}

func applyRecompute(c *Commitment, now time.Time) {
	r := status.Recompute(c, now)
	c.Status = r.Status
	c.DaysOverdue = r.DaysOverdue
	c.OverdueFlag = r.IsOverdue
}

func matchesFilter(c *Commitment, f Filter) bool {
	if len(f.Status) > 0 && !contains(f.Status, c.Status) {
		return false
	}
	if f.SenderEmail != "" && !strings.Contains(strings.ToLower(c.EmailSender), strings.ToLower(f.SenderEmail)) {
		return false
	}
	if f.SenderName != "" && !strings.Contains(strings.ToLower(c.EmailSenderName), strings.ToLower(f.SenderName)) {
		return false
	}
	if len(f.SenderRole) > 0 && !contains(f.SenderRole, c.SenderRole) {
		return false
	}
	if len(f.Direction) > 0 && !contains(f.Direction, c.Direction) {
		return false
	}
	if f.AssignedToMe != nil && c.AssignedToMe != *f.AssignedToMe {
		return false
	}
	if f.CreatedAfter != nil && c.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && c.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	if f.HasDeadline != nil {
		has := c.DeadlineISOValue != ""
		if has != *f.HasDeadline {
			return false
		}
	}
	if f.DeadlineAfter != nil {
		parsed, err := time.Parse("2006-01-02", c.DeadlineISOValue)
		if err != nil || parsed.Before(*f.DeadlineAfter) {
			return false
		}
	}
	if f.DeadlineBefore != nil {
		parsed, err := time.Parse("2006-01-02", c.DeadlineISOValue)
		if err != nil || parsed.After(*f.DeadlineBefore) {
			return false
		}
	}
	if f.Priority != "" && c.Priority != f.Priority {
		return false
	}
	if f.CommitmentType != "" && c.CommitmentType != f.CommitmentType {
		return false
	}
	if f.SearchText != "" {
		needle := strings.ToLower(f.SearchText)
		if !strings.Contains(strings.ToLower(c.What), needle) && !strings.Contains(strings.ToLower(c.EmailSubject), needle) {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func sortCommitments(items []*Commitment, f Filter, now time.Time) {
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = "deadline"
	}
	order := f.SortOrder
	if order == "" {
		if sortBy == "days_overdue" {
			order = "desc"
		} else {
			order = "asc"
		}
	}
	desc := order == "desc"

	less := func(i, j int) bool {
		a, b := items[i], items[j]
		switch sortBy {
		case "priority":
			sa, sb := status.PriorityScore(a.Priority), status.PriorityScore(b.Priority)
			if sa != sb {
				return sa < sb
			}
			return urgency(a, now) < urgency(b, now)
		case "days_overdue":
			// defaults to descending per spec; honored via the desc flag below.
			return a.DaysOverdue < b.DaysOverdue
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		default: // "deadline"
			return urgency(a, now) < urgency(b, now)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}

func urgency(c *Commitment, now time.Time) int {
	return status.UrgencyScore(status.Result{Status: c.Status, DaysOverdue: c.DaysOverdue, IsOverdue: c.OverdueFlag}, c.DeadlineISOValue, now)
}
