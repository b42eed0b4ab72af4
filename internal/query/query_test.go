package query

import (
	"testing"

	"github.com/commitloop/engine/internal/commitment"
)

func TestOverdueOnly(t *testing.T) {
	f := OverdueOnly()
	if len(f.Status) != 1 || f.Status[0] != commitment.StatusOverdue {
		t.Errorf("Status = %v, want [%s]", f.Status, commitment.StatusOverdue)
	}
	if f.SortBy != "days_overdue" || f.SortOrder != "desc" {
		t.Errorf("sort = %s/%s, want days_overdue/desc", f.SortBy, f.SortOrder)
	}
}

func TestAssignedToMe(t *testing.T) {
	f := AssignedToMe()
	if f.AssignedToMe == nil || !*f.AssignedToMe {
		t.Error("expected AssignedToMe filter to be *true")
	}
}

func TestOutgoingPromises(t *testing.T) {
	f := OutgoingPromises()
	if len(f.Direction) != 1 || f.Direction[0] != commitment.DirectionOutgoing {
		t.Errorf("Direction = %v, want [%s]", f.Direction, commitment.DirectionOutgoing)
	}
}

func TestDueThisWeek_WindowIsSevenDays(t *testing.T) {
	f := DueThisWeek()
	if f.DeadlineAfter == nil || f.DeadlineBefore == nil {
		t.Fatal("expected both deadline bounds set")
	}
	got := f.DeadlineBefore.Sub(*f.DeadlineAfter)
	if got.Hours() != 7*24 {
		t.Errorf("window = %v, want 7 days", got)
	}
}

func TestCreatedToday_WindowIsOneDay(t *testing.T) {
	f := CreatedToday()
	if f.CreatedAfter == nil || f.CreatedBefore == nil {
		t.Fatal("expected both created bounds set")
	}
	got := f.CreatedBefore.Sub(*f.CreatedAfter)
	if got.Hours() != 24 {
		t.Errorf("window = %v, want 24h", got)
	}
}
