package commitment

import (
	"testing"
	"time"
)

func mk(what, priority, status string, daysOverdue int, deadlineISO string, createdAt time.Time) *Commitment {
	return &Commitment{
		What:             what,
		Priority:         priority,
		Status:           status,
		DaysOverdue:      daysOverdue,
		DeadlineISOValue: deadlineISO,
		CreatedAt:        createdAt,
	}
}

func TestMatchesFilter_SearchText(t *testing.T) {
	c := mk("Send the deck", "high", StatusActive, 0, "", time.Now())
	if !matchesFilter(c, Filter{SearchText: "deck"}) {
		t.Error("expected match on What substring")
	}
	if matchesFilter(c, Filter{SearchText: "invoice"}) {
		t.Error("expected no match")
	}
}

func TestMatchesFilter_HasDeadline(t *testing.T) {
	withDeadline := mk("a", "low", StatusActive, 0, "2026-08-01", time.Now())
	without := mk("b", "low", StatusNoDeadline, 0, "", time.Now())

	yes := true
	if !matchesFilter(withDeadline, Filter{HasDeadline: &yes}) {
		t.Error("expected commitment with deadline to match has_deadline=true")
	}
	if matchesFilter(without, Filter{HasDeadline: &yes}) {
		t.Error("expected commitment without deadline to fail has_deadline=true")
	}
}

func TestMatchesFilter_StatusSet(t *testing.T) {
	c := mk("a", "low", StatusOverdue, 2, "2026-01-01", time.Now())
	if !matchesFilter(c, Filter{Status: []string{StatusOverdue, StatusDueToday}}) {
		t.Error("expected status set match")
	}
	if matchesFilter(c, Filter{Status: []string{StatusActive}}) {
		t.Error("expected status set mismatch")
	}
}

func TestSortCommitments_Priority(t *testing.T) {
	high := mk("high-pri", "high", StatusActive, 0, "2026-08-01", time.Now())
	low := mk("low-pri", "low", StatusActive, 0, "2026-08-01", time.Now())
	items := []*Commitment{low, high}

	sortCommitments(items, Filter{SortBy: "priority", SortOrder: "asc"}, time.Now())

	if items[0] != high || items[1] != low {
		t.Errorf("expected high priority first, got %v then %v", items[0].What, items[1].What)
	}
}

func TestSortCommitments_DaysOverdue_DefaultDescending(t *testing.T) {
	mild := mk("mild", "low", StatusOverdue, 1, "2026-07-28", time.Now())
	severe := mk("severe", "low", StatusOverdue, 10, "2026-07-19", time.Now())
	items := []*Commitment{mild, severe}

	sortCommitments(items, Filter{SortBy: "days_overdue"}, time.Now())

	if items[0] != severe {
		t.Errorf("expected days_overdue to sort descending by default, got %v first", items[0].What)
	}
}

func TestApplyRecompute_FrozenWhenCompleted(t *testing.T) {
	c := mk("done", "low", StatusActive, 0, "2020-01-01", time.Now())
	c.Completed = true
	applyRecompute(c, time.Now())
	if c.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q (frozen)", c.Status, StatusCompleted)
	}
}
