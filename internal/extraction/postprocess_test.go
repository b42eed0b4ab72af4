package extraction

import (
	"testing"
	"time"
)

func TestPostProcess_NoCommitment_ReturnsNil(t *testing.T) {
	out := PostProcess(Result{HasCommitment: false}, EmailInput{}, "u1")
	if out != nil {
		t.Errorf("expected nil for has_commitment=false, got %v", out)
	}
}

func TestPostProcess_DefaultsEstimatedHoursByType(t *testing.T) {
	result := Result{
		HasCommitment: true,
		Direction:     "incoming",
		Commitments: []RawCommitment{
			{What: "join standup", CommitmentType: "meeting", EstimatedHours: 0},
			{What: "send report", CommitmentType: "report", EstimatedHours: -1},
			{What: "something else", CommitmentType: "unknown-type", EstimatedHours: 0},
			{What: "keep given", CommitmentType: "meeting", EstimatedHours: 3},
		},
	}
	email := EmailInput{Sender: "a@b.com", Folder: "INBOX", Date: time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)}

	out := PostProcess(result, email, "u1")
	if len(out) != 4 {
		t.Fatalf("got %d commitments, want 4", len(out))
	}
	if out[0].EstimatedHours != 1 {
		t.Errorf("meeting default = %v, want 1", out[0].EstimatedHours)
	}
	if out[1].EstimatedHours != 3 {
		t.Errorf("report default = %v, want 3", out[1].EstimatedHours)
	}
	if out[2].EstimatedHours != 2 {
		t.Errorf("unknown-type fallback = %v, want 2", out[2].EstimatedHours)
	}
	if out[3].EstimatedHours != 3 {
		t.Errorf("explicit estimated_hours overridden, got %v, want 3", out[3].EstimatedHours)
	}
}

func TestPostProcess_GivenByIsEmailSender(t *testing.T) {
	result := Result{HasCommitment: true, Direction: "outgoing", Commitments: []RawCommitment{{What: "ship it"}}}
	email := EmailInput{Sender: "founder@acme.com", Folder: "SENT", Date: time.Now()}

	out := PostProcess(result, email, "u1")
	if out[0].GivenBy != "founder@acme.com" {
		t.Errorf("GivenBy = %q, want founder@acme.com", out[0].GivenBy)
	}
}

func TestPostProcess_DeadlineNormalized(t *testing.T) {
	raw := "tomorrow"
	result := Result{HasCommitment: true, Direction: "incoming", Commitments: []RawCommitment{{What: "x", DeadlineRaw: &raw}}}
	email := EmailInput{Date: time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)}

	out := PostProcess(result, email, "u1")
	if out[0].DeadlineISOValue != "2026-07-30" {
		t.Errorf("DeadlineISOValue = %q, want 2026-07-30", out[0].DeadlineISOValue)
	}
}
