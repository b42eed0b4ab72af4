package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/commitloop/engine/internal/apperrors"
	"golang.org/x/oauth2"
)

// HTTPClient implements Client over the aggregator's REST API, using an
// oauth2 client-credentials token source for auth. It retries a
// transient failure once with a short backoff before surfacing
// apperrors.ErrAggregatorTransient; a malformed response is surfaced as
// apperrors.ErrAggregatorFatal immediately.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient wraps an oauth2 token source in a ready-to-use *http.Client
// and binds it to the aggregator's base URL.
func NewHTTPClient(baseURL string, tokenSource oauth2.TokenSource) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: oauth2.NewClient(context.Background(), tokenSource),
	}
}

func (c *HTTPClient) ListMessages(ctx context.Context, entityID, folder string, limit, batchSize int) ([]Message, error) {
	var all []Message
	offset := 0

	for len(all) < limit {
		batch := batchSize
		if remaining := limit - len(all); remaining < batch {
			batch = remaining
		}

		url := fmt.Sprintf("%s/entities/%s/messages?folder=%s&limit=%d&offset=%d",
			c.baseURL, entityID, folder, batch, offset)

		var page []rawMessage
		if err := c.getJSONWithRetry(ctx, url, &page); err != nil {
			return all, err
		}
		if len(page) == 0 {
			break
		}

		for _, m := range page {
			all = append(all, m.normalize(folder))
		}
		offset += len(page)
		if len(page) < batch {
			break
		}
	}

	return all, nil
}

func (c *HTTPClient) GetMessage(ctx context.Context, entityID, messageID string) (Message, error) {
	url := fmt.Sprintf("%s/entities/%s/messages/%s", c.baseURL, entityID, messageID)
	var raw rawMessage
	if err := c.getJSONWithRetry(ctx, url, &raw); err != nil {
		return Message{}, err
	}
	return raw.normalize(""), nil
}

func (c *HTTPClient) ListTriggers(ctx context.Context, entityID string) ([]Trigger, error) {
	url := fmt.Sprintf("%s/entities/%s/triggers", c.baseURL, entityID)
	var raw []rawTrigger
	if err := c.getJSONWithRetry(ctx, url, &raw); err != nil {
		return nil, err
	}

	out := make([]Trigger, 0, len(raw))
	for _, t := range raw {
		out = append(out, t.normalize())
	}
	return out, nil
}

func (c *HTTPClient) CreateTrigger(ctx context.Context, entityID, kind string) (Trigger, error) {
	url := fmt.Sprintf("%s/entities/%s/triggers", c.baseURL, entityID)
	body := map[string]string{"kind": kind}
	buf, err := json.Marshal(body)
	if err != nil {
		return Trigger{}, err
	}

	var raw rawTrigger
	if err := c.postJSONWithRetry(ctx, url, buf, &raw); err != nil {
		return Trigger{}, err
	}
	return raw.normalize(), nil
}

func (c *HTTPClient) getJSONWithRetry(ctx context.Context, url string, dest any) error {
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}, dest)
}

func (c *HTTPClient) postJSONWithRetry(ctx context.Context, url string, body []byte, dest any) error {
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, dest)
}

// doWithRetry runs newReq up to twice, treating a transport error or a
// 5xx as transient (retried with backoff) and a 4xx or decode failure
// as fatal (returned immediately, no retry).
func (c *HTTPClient) doWithRetry(ctx context.Context, newReq func() (*http.Request, error), dest any) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := newReq()
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", apperrors.ErrAggregatorTransient, err)
			time.Sleep(backoff(attempt))
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: status %d", apperrors.ErrAggregatorTransient, resp.StatusCode)
			time.Sleep(backoff(attempt))
			continue
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return fmt.Errorf("%w: status %d", apperrors.ErrAggregatorFatal, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(dest)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrAggregatorFatal, err)
		}
		return nil
	}
	return lastErr
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 200 * time.Millisecond
}

// rawMessage mirrors the aggregator's loosely-typed message payload;
// the id/sender/recipient fields are normalized through accessor
// methods rather than assumed to use one canonical key.
type rawMessage struct {
	ID           string            `json:"id"`
	MessageID    string            `json:"message_id"`
	From         string            `json:"from"`
	Sender       string            `json:"sender"`
	FromName     string            `json:"from_name"`
	Subject      string            `json:"subject"`
	Body         string            `json:"body"`
	Snippet      string            `json:"snippet"`
	DateUnix     int64             `json:"date_unix"`
	DateRFC3339  string            `json:"date"`
	To           []string          `json:"to"`
	Headers      map[string]string `json:"headers"`
	Labels       []string          `json:"labels"`
}

func (r rawMessage) normalize(folder string) Message {
	id := r.ID
	if id == "" {
		id = r.MessageID
	}
	sender := r.From
	if sender == "" {
		sender = r.Sender
	}
	body := r.Body
	if body == "" {
		body = r.Snippet
	}
	if len(body) > 4000 {
		body = body[:4000]
	}

	date := parseDate(r.DateRFC3339, r.DateUnix)

	recipientEmail := ""
	if len(r.To) > 0 {
		recipientEmail = r.To[0] // first recipient wins on multi-recipient To; CC/BCC unspecified
	}

	if folder == "" {
		folder = resolveFolderFromLabels(r.Labels)
	}

	senderName := r.FromName
	if folder == FolderSent {
		// The founder is the sender on every SENT message; display "You"
		// rather than whatever the From header happened to contain.
		senderName = "You"
	}

	return Message{
		ID: id, Sender: sender, SenderName: senderName,
		Subject: r.Subject, Body: body, Date: date, Folder: folder,
		RecipientEmail: recipientEmail, Headers: r.Headers, Labels: r.Labels,
	}
}

func resolveFolderFromLabels(labels []string) string {
	for _, l := range labels {
		if l == FolderSent {
			return FolderSent
		}
	}
	return FolderInbox
}

func parseDate(rfc3339 string, unix int64) time.Time {
	if rfc3339 != "" {
		if t, err := time.Parse(time.RFC3339, rfc3339); err == nil {
			return t
		}
	}
	if unix != 0 {
		return time.Unix(unix, 0).UTC()
	}
	return time.Time{}
}

// rawTrigger mirrors the aggregator's trigger payload, normalizing
// whichever of "id"/"trigger_id" the response actually used — the
// ad-hoc getattr-chain pattern this adapter replaces.
type rawTrigger struct {
	ID                 string `json:"id"`
	TriggerID          string `json:"trigger_id"`
	Kind               string `json:"kind"`
	EventType          string `json:"event_type"`
	ConnectedAccountID string `json:"connected_account_id"`
	Status             string `json:"status"`
}

func (r rawTrigger) normalize() Trigger {
	id := r.ID
	if id == "" {
		id = r.TriggerID
	}
	kind := r.Kind
	if kind == "" {
		kind = r.EventType
	}
	return Trigger{
		ID: id, Kind: kind, ConnectedAccountID: r.ConnectedAccountID,
		Active: r.Status == "" || r.Status == "active",
	}
}

