package extraction

import (
	"strings"

	"github.com/commitloop/engine/internal/commitment"
	"github.com/commitloop/engine/internal/deadline"
)

// defaultEstimatedHours is applied when a raw commitment's estimated_hours
// is absent or non-positive, keyed by commitment_type.
var defaultEstimatedHours = map[string]float64{
	"meeting":      1,
	"call":         1,
	"email":        0.5,
	"message":      0.5,
	"report":       3,
	"document":     3,
	"presentation": 5,
	"feature":      8,
}

const fallbackEstimatedHours = 2

// PostProcess turns a validated extraction Result into persistable
// commitments: given_by resolution, estimated_hours defaulting, deadline
// normalization, and lifecycle initialization. Status is left for the
// caller's commitment.Service.Upsert to recompute.
func PostProcess(result Result, email EmailInput, userID string) []*commitment.Commitment {
	if !result.HasCommitment {
		return nil
	}

	out := make([]*commitment.Commitment, 0, len(result.Commitments))
	for _, raw := range result.Commitments {
		hours := raw.EstimatedHours
		if hours <= 0 {
			hours = defaultEstimatedHours[strings.ToLower(raw.CommitmentType)]
			if hours == 0 {
				hours = fallbackEstimatedHours
			}
		}

		deadlineRaw := ""
		if raw.DeadlineRaw != nil {
			deadlineRaw = *raw.DeadlineRaw
		}
		deadlineISO, _ := deadline.Normalize(deadlineRaw, email.Date)

		out = append(out, &commitment.Commitment{
			UserID:            userID,
			What:              raw.What,
			ToWhom:            raw.ToWhom,
			GivenBy:           email.Sender,
			DeadlineRaw:       deadlineRaw,
			DeadlineISOValue:  deadlineISO,
			Priority:          raw.Priority,
			CommitmentType:    raw.CommitmentType,
			EstimatedHours:    hours,
			Confidence:        raw.Confidence,
			SenderRole:        result.Classification.SenderRole,
			Direction:         result.Direction,
			AssignedToMe:      raw.AssignedToMe,
			MessageID:         email.MessageID,
			EmailSubject:      email.Subject,
			EmailSender:       email.Sender,
			EmailSenderName:   email.SenderName,
			EmailDate:         email.Date,
			SourceEmailFolder: email.Folder,
			Completed:         false,
			CompletedAt:       nil,
		})
	}
	return out
}
