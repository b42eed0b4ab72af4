package live

import (
	"testing"

	"github.com/commitloop/engine/internal/aggregator"
)

func TestResolveFolder(t *testing.T) {
	cases := []struct {
		name string
		p    WebhookPayload
		want string
	}{
		{"explicit sent kind", WebhookPayload{Kind: aggregator.KindEmailSent}, aggregator.FolderSent},
		{"new message kind, no labels", WebhookPayload{Kind: aggregator.KindNewMessage}, aggregator.FolderInbox},
		{"new message kind, sent label present", WebhookPayload{Kind: aggregator.KindNewMessage, Labels: []string{"INBOX", "SENT"}}, aggregator.FolderSent},
		{"new message kind, only inbox label", WebhookPayload{Kind: aggregator.KindNewMessage, Labels: []string{"INBOX"}}, aggregator.FolderInbox},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := resolveFolder(c.p); got != c.want {
				t.Errorf("resolveFolder(%+v) = %q, want %q", c.p, got, c.want)
			}
		})
	}
}
