// Package commitment is the persistence and query layer for extracted
// commitments: the per-user child records created by the backfill and
// live pipelines and read back by the chat query surface.
package commitment

import "time"

// Status values, mirrored from internal/status to avoid every caller
// importing both packages for a single string comparison.
const (
	StatusOverdue    = "overdue"
	StatusDueToday   = "due_today"
	StatusActive     = "active"
	StatusNoDeadline = "no_deadline"
	StatusCompleted  = "completed"
)

// Direction values.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Folder values a message was sourced from.
const (
	FolderInbox = "INBOX"
	FolderSent  = "SENT"
)

// SenderRole values.
const (
	RoleInvestor  = "investor"
	RoleCustomer  = "customer"
	RoleTeammate  = "teammate"
	RoleUnknown   = "unknown"
)

// Priority values.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Commitment is a single actionable obligation extracted from one email.
type Commitment struct {
	ID     string
	UserID string

	What    string
	ToWhom  string
	GivenBy string

	DeadlineRaw string
	DeadlineISOValue string

	Status      string
	DaysOverdue int
	OverdueFlag bool

	Priority       string
	CommitmentType string
	EstimatedHours float64
	Confidence     float64
	SenderRole     string

	Direction    string
	AssignedToMe bool

	MessageID         string
	EmailSubject      string
	EmailSender       string
	EmailSenderName   string
	EmailDate         time.Time
	SourceEmailFolder string

	Completed   bool
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsCompleted and DeadlineISO satisfy internal/status.Recomputable.
func (c *Commitment) IsCompleted() bool   { return c.Completed }
func (c *Commitment) DeadlineISO() string { return c.DeadlineISOValue }

// Filter is the combined (AND) query-side filter model. Zero values mean
// "unconstrained" except where a pointer distinguishes unset from false.
type Filter struct {
	IncludeCompleted bool
	OnlyCompleted    bool

	Status []string

	SenderEmail string
	SenderName  string
	SenderRole  []string

	Direction    []string
	AssignedToMe *bool

	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	DeadlineAfter  *time.Time
	DeadlineBefore *time.Time
	HasDeadline    *bool

	Priority       string
	CommitmentType string
	SearchText     string

	SortBy    string // deadline | created_at | priority | days_overdue
	SortOrder string // asc | desc
	Limit     int
}

// DefaultFilter returns a filter with the query-side default limit applied.
func DefaultFilter(defaultLimit int) Filter {
	return Filter{SortBy: "deadline", SortOrder: "asc", Limit: defaultLimit}
}
