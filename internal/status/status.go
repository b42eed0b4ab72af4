// Package status implements the pure status-recomputation and
// urgency/priority scoring rules that back every read path over
// commitments — nothing here touches storage.
package status

import "time"

// Status values a commitment can hold.
const (
	Overdue   = "overdue"
	DueToday  = "due_today"
	Active    = "active"
	NoDeadline = "no_deadline"
	Completed = "completed"
)

// Bucket values used by categorize, beyond the raw status.
const (
	BucketOverdue    = "overdue"
	BucketDueToday   = "due_today"
	BucketUpcoming   = "upcoming"
	BucketLater      = "later"
	BucketNoDeadline = "no_deadline"
	BucketCompleted  = "completed"
)

const dateLayout = "2006-01-02"

// Result is the recomputed status triple: status, days overdue
// (0 unless overdue), and whether the commitment is overdue.
type Result struct {
	Status      string
	DaysOverdue int
	IsOverdue   bool
}

// Recomputable is the minimal shape Recompute needs from a commitment;
// satisfied by internal/commitment.Commitment without an import cycle.
type Recomputable interface {
	IsCompleted() bool
	DeadlineISO() string
}

// Recompute derives status from a commitment's completion flag and
// deadline relative to today. Completed commitments are frozen and
// returned unchanged (spec invariant I3).
func Recompute(c Recomputable, today time.Time) Result {
	if c.IsCompleted() {
		return Result{Status: Completed}
	}

	today = today.UTC().Truncate(24 * time.Hour)

	deadline, ok := parseDate(c.DeadlineISO())
	if !ok {
		return Result{Status: NoDeadline}
	}

	switch {
	case deadline.Before(today):
		days := int(today.Sub(deadline).Hours() / 24)
		return Result{Status: Overdue, DaysOverdue: days, IsOverdue: true}
	case deadline.Equal(today):
		return Result{Status: DueToday}
	default:
		return Result{Status: Active}
	}
}

// Categorize places a recomputed commitment into one of the six
// query-side buckets. upcomingWindow is the number of days (inclusive)
// beyond today that still counts as "upcoming" rather than "later".
func Categorize(r Result, deadlineISO string, today time.Time, upcomingWindow int) string {
	switch r.Status {
	case Completed:
		return BucketCompleted
	case Overdue:
		return BucketOverdue
	case DueToday:
		return BucketDueToday
	case NoDeadline:
		return BucketNoDeadline
	}

	deadline, ok := parseDate(deadlineISO)
	if !ok {
		return BucketNoDeadline
	}
	today = today.UTC().Truncate(24 * time.Hour)
	if !deadline.After(today.AddDate(0, 0, upcomingWindow)) {
		return BucketUpcoming
	}
	return BucketLater
}

// UrgencyScore ranks commitments by urgency; lower means more urgent.
func UrgencyScore(r Result, deadlineISO string, today time.Time) int {
	switch r.Status {
	case Overdue:
		score := 100 - r.DaysOverdue
		if score < 0 {
			score = 0
		}
		return score
	case DueToday:
		return 100
	case Active:
		deadline, ok := parseDate(deadlineISO)
		if !ok {
			return 1000
		}
		daysUntil := int(deadline.Sub(today.UTC().Truncate(24 * time.Hour)).Hours() / 24)
		if daysUntil <= 7 {
			return 200 + daysUntil
		}
		return 300 + daysUntil
	default:
		return 1000
	}
}

// PriorityScore maps a priority label to its sort weight; lower sorts first.
func PriorityScore(priority string) int {
	switch priority {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 2
	}
}

func parseDate(iso string) (time.Time, bool) {
	if iso == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, iso)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
