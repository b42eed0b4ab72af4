package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/commitloop/engine/internal/credit"
)

type stubClient struct {
	responses []stubResponse
	calls     int
}

type stubResponse struct {
	text         string
	inTok, outTok int
	err          error
}

func (s *stubClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, int, int, error) {
	r := s.responses[s.calls]
	s.calls++
	return r.text, r.inTok, r.outTok, r.err
}

func validJSON(t *testing.T, r Result) string {
	t.Helper()
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestExtract_SucceedsFirstTry(t *testing.T) {
	want := Result{HasCommitment: true, Direction: "incoming", Commitments: []RawCommitment{{Priority: "high"}}}
	client := &stubClient{responses: []stubResponse{{text: validJSON(t, want), inTok: 100, outTok: 50}}}

	e := NewExtractor(client, nil, testRates(), 2, 1500, nil)
	e.retryWait = time.Millisecond

	got := e.Extract(context.Background(), EmailInput{Folder: "INBOX"}, UserContext{UserID: "u1"})
	if !got.HasCommitment || got.Direction != "incoming" {
		t.Errorf("Extract() = %+v, want a valid populated result", got)
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1 (first attempt succeeded)", client.calls)
	}
}

func TestExtract_RetriesThenSucceeds(t *testing.T) {
	want := Result{HasCommitment: true, Direction: "outgoing", Commitments: []RawCommitment{{Priority: "low"}}}
	client := &stubClient{responses: []stubResponse{
		{text: "not json", inTok: 10, outTok: 5},
		{text: validJSON(t, want), inTok: 10, outTok: 5},
	}}

	e := NewExtractor(client, nil, testRates(), 2, 1500, nil)
	e.retryWait = time.Millisecond

	got := e.Extract(context.Background(), EmailInput{Folder: "SENT"}, UserContext{UserID: "u1"})
	if !got.HasCommitment {
		t.Errorf("expected eventual success, got %+v", got)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want 2", client.calls)
	}
}

func TestExtract_ExhaustsRetries_ReturnsSafeEmpty(t *testing.T) {
	client := &stubClient{responses: []stubResponse{
		{err: errors.New("boom")},
		{err: errors.New("boom")},
		{err: errors.New("boom")},
	}}

	e := NewExtractor(client, nil, testRates(), 2, 1500, nil)
	e.retryWait = time.Millisecond

	got := e.Extract(context.Background(), EmailInput{Folder: "INBOX", MessageID: "m1"}, UserContext{UserID: "u1"})
	if got.HasCommitment {
		t.Errorf("expected has_commitment=false after exhausting retries, got %+v", got)
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", client.calls)
	}
}

func TestExtract_InvalidSchemaRetried(t *testing.T) {
	badPriority := Result{HasCommitment: true, Direction: "incoming", Commitments: []RawCommitment{{Priority: "urgent-ish"}}}
	good := Result{HasCommitment: true, Direction: "incoming"}
	client := &stubClient{responses: []stubResponse{
		{text: validJSON(t, badPriority)},
		{text: validJSON(t, good)},
	}}

	e := NewExtractor(client, nil, testRates(), 2, 1500, nil)
	e.retryWait = time.Millisecond

	got := e.Extract(context.Background(), EmailInput{}, UserContext{})
	if !got.HasCommitment {
		t.Errorf("expected schema-invalid response to be retried into a valid one, got %+v", got)
	}
}

func testRates() credit.Rates {
	return credit.Rates{InputTokensPerCredit: 1000, OutputTokensPerCredit: 500, DefaultFreeTrial: 100}
}
