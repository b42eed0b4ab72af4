package backfill

import (
	"testing"
	"time"

	"github.com/commitloop/engine/internal/aggregator"
)

func TestIsNewsletter(t *testing.T) {
	cases := []struct {
		name string
		msg  aggregator.Message
		want bool
	}{
		{"noreply sender", aggregator.Message{Sender: "noreply@service.com"}, true},
		{"no-reply with hyphen", aggregator.Message{Sender: "no-reply@service.com"}, true},
		{"receipt subject", aggregator.Message{Sender: "billing@shop.com", Subject: "Your receipt for order #123"}, true},
		{"unsubscribe header", aggregator.Message{Sender: "a@b.com", Headers: map[string]string{"List-Unsubscribe": "<mailto:x>"}}, true},
		{"ordinary email", aggregator.Message{Sender: "jane@acme.com", Subject: "quick question"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := isNewsletter(c.msg); got != c.want {
				t.Errorf("isNewsletter(%+v) = %v, want %v", c.msg, got, c.want)
			}
		})
	}
}

func TestInWindow(t *testing.T) {
	connectedAt := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	windowStart := connectedAt.Add(WindowBefore)

	msgs := []aggregator.Message{
		{ID: "before", Date: windowStart.Add(-time.Hour)},
		{ID: "at-start", Date: windowStart},
		{ID: "inside", Date: connectedAt.Add(-time.Hour)},
		{ID: "at-end", Date: connectedAt},
		{ID: "after", Date: connectedAt.Add(time.Hour)},
	}

	got := inWindow(msgs, windowStart, connectedAt)
	if len(got) != 3 {
		t.Fatalf("inWindow returned %d messages, want 3", len(got))
	}
	ids := map[string]bool{}
	for _, m := range got {
		ids[m.ID] = true
	}
	for _, want := range []string{"at-start", "inside", "at-end"} {
		if !ids[want] {
			t.Errorf("expected %q in window result, got %v", want, ids)
		}
	}
}
