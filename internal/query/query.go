// Package query is the thin, named-preset surface the chat layer calls
// into: it never touches SQL directly, delegating everything to
// commitment.Service.Query and shaping the presets the product names
// (overdue, urgent, this week, ...).
package query

import (
	"context"
	"time"

	"github.com/commitloop/engine/internal/commitment"
)

// Service wraps commitment.Service with the named preset filters and
// the today-snapshot aggregate.
type Service struct {
	commitments *commitment.Service
	defaultLimit int
}

// NewService constructs a Service.
func NewService(commitments *commitment.Service, defaultLimit int) *Service {
	return &Service{commitments: commitments, defaultLimit: defaultLimit}
}

// FetchCommitments is the general-purpose entry point: any Filter is
// accepted as-is, applying DefaultFilter's limit if Limit is unset.
func (s *Service) FetchCommitments(ctx context.Context, userID string, filter commitment.Filter) (*commitment.Result, error) {
	if filter.Limit == 0 {
		filter.Limit = s.defaultLimit
	}
	return s.commitments.Query(ctx, userID, filter)
}

// Snapshot is the today view the dashboard/chat opener renders.
type Snapshot struct {
	Overdue       *commitment.Result
	DueToday      *commitment.Result
	ReceivedToday *commitment.Result
	DueTomorrow   *commitment.Result
	TomorrowHours float64
}

// TodaySnapshot aggregates four named views into the dashboard payload:
// overdue and due-today filter on deadline, received-today filters on
// when the source email arrived (CreatedToday) rather than when it's
// due, and due-tomorrow additionally totals estimated hours.
func (s *Service) TodaySnapshot(ctx context.Context, userID string) (*Snapshot, error) {
	overdue, err := s.commitments.Query(ctx, userID, OverdueOnly())
	if err != nil {
		return nil, err
	}
	dueToday, err := s.commitments.Query(ctx, userID, DueTodayOnly())
	if err != nil {
		return nil, err
	}
	receivedToday, err := s.commitments.Query(ctx, userID, CreatedToday())
	if err != nil {
		return nil, err
	}
	dueTomorrow, err := s.commitments.Query(ctx, userID, dueOnDate(time.Now().AddDate(0, 0, 1)))
	if err != nil {
		return nil, err
	}

	var tomorrowHours float64
	for _, c := range dueTomorrow.Flat {
		tomorrowHours += c.EstimatedHours
	}

	return &Snapshot{
		Overdue: overdue, DueToday: dueToday, ReceivedToday: receivedToday,
		DueTomorrow: dueTomorrow, TomorrowHours: tomorrowHours,
	}, nil
}

// OverdueOnly matches commitments whose computed status is overdue.
func OverdueOnly() commitment.Filter {
	f := commitment.DefaultFilter(0)
	f.Status = []string{commitment.StatusOverdue}
	f.SortBy, f.SortOrder = "days_overdue", "desc"
	return f
}

// Urgent matches high-priority commitments, soonest deadline first.
func Urgent() commitment.Filter {
	f := commitment.DefaultFilter(0)
	f.Priority = commitment.PriorityHigh
	return f
}

// FromInvestors matches commitments whose sender was classified as an investor.
func FromInvestors() commitment.Filter {
	f := commitment.DefaultFilter(0)
	f.SenderRole = []string{commitment.RoleInvestor}
	return f
}

// DueTodayOnly matches commitments due today.
func DueTodayOnly() commitment.Filter {
	f := commitment.DefaultFilter(0)
	f.Status = []string{commitment.StatusDueToday}
	return f
}

// CreatedToday matches commitments extracted today regardless of deadline.
func CreatedToday() commitment.Filter {
	start := startOfDay(time.Now())
	end := start.AddDate(0, 0, 1)
	f := commitment.DefaultFilter(0)
	f.CreatedAfter, f.CreatedBefore = &start, &end
	f.SortBy = "created_at"
	return f
}

// DueThisWeek matches commitments with a deadline in the next 7 days.
func DueThisWeek() commitment.Filter {
	now := time.Now()
	start := startOfDay(now)
	end := start.AddDate(0, 0, 7)
	f := commitment.DefaultFilter(0)
	f.DeadlineAfter, f.DeadlineBefore = &start, &end
	return f
}

// AssignedToMe matches commitments the founder personally owes.
func AssignedToMe() commitment.Filter {
	t := true
	f := commitment.DefaultFilter(0)
	f.AssignedToMe = &t
	return f
}

// OutgoingPromises matches commitments the founder made to others.
func OutgoingPromises() commitment.Filter {
	f := commitment.DefaultFilter(0)
	f.Direction = []string{commitment.DirectionOutgoing}
	return f
}

func dueOnDate(d time.Time) commitment.Filter {
	start := startOfDay(d)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	f := commitment.DefaultFilter(0)
	f.DeadlineAfter, f.DeadlineBefore = &start, &end
	return f
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
