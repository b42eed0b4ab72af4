package aggregator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func TestRawMessage_NormalizeFallsBackToAlternateFields(t *testing.T) {
	raw := rawMessage{MessageID: "m-1", Sender: "a@b.com", Snippet: "hello"}
	msg := raw.normalize("INBOX")
	if msg.ID != "m-1" || msg.Sender != "a@b.com" || msg.Body != "hello" {
		t.Errorf("normalize() = %+v, want fields from alternate keys", msg)
	}
}

func TestRawMessage_NormalizeTruncatesBody(t *testing.T) {
	big := make([]byte, 5000)
	for i := range big {
		big[i] = 'x'
	}
	raw := rawMessage{ID: "m-2", Body: string(big)}
	msg := raw.normalize("INBOX")
	if len(msg.Body) != 4000 {
		t.Errorf("body length = %d, want 4000", len(msg.Body))
	}
}

func TestRawMessage_FirstRecipientWins(t *testing.T) {
	raw := rawMessage{ID: "m-3", To: []string{"first@x.com", "second@x.com"}}
	msg := raw.normalize("SENT")
	if msg.RecipientEmail != "first@x.com" {
		t.Errorf("RecipientEmail = %q, want first@x.com", msg.RecipientEmail)
	}
}

func TestResolveFolderFromLabels(t *testing.T) {
	if got := resolveFolderFromLabels([]string{"INBOX", "SENT"}); got != FolderSent {
		t.Errorf("resolveFolderFromLabels = %q, want SENT when SENT label present", got)
	}
	if got := resolveFolderFromLabels([]string{"INBOX"}); got != FolderInbox {
		t.Errorf("resolveFolderFromLabels = %q, want INBOX", got)
	}
}

func TestRawTrigger_NormalizeFallsBackToTriggerID(t *testing.T) {
	raw := rawTrigger{TriggerID: "t-1", EventType: KindNewMessage, ConnectedAccountID: "e-1"}
	trig := raw.normalize()
	if trig.ID != "t-1" || trig.Kind != KindNewMessage || !trig.Active {
		t.Errorf("normalize() = %+v", trig)
	}
}

func TestHTTPClient_ListTriggers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]rawTrigger{
			{ID: "t-1", Kind: KindNewMessage, ConnectedAccountID: "e-1", Status: "active"},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test"}))
	triggers, err := client.ListTriggers(context.Background(), "e-1")
	if err != nil {
		t.Fatalf("ListTriggers: %v", err)
	}
	if len(triggers) != 1 || triggers[0].ID != "t-1" {
		t.Errorf("triggers = %+v", triggers)
	}
}

func TestHTTPClient_FatalOn4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test"}))
	_, err := client.ListTriggers(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error for 404 response")
	}
}
