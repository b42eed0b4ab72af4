package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/commitloop/engine/internal/api"
	"github.com/commitloop/engine/internal/live"
)

// handleWebhook verifies the aggregator's HMAC-SHA256 signature over
// the raw body (stdlib crypto/hmac — no teacher dependency covers this
// primitive better, see DESIGN.md), then hands the payload to the live
// pipeline for credit-gated, idempotent enqueue.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		api.BadRequest(w, "failed to read request body")
		return
	}

	if len(s.WebhookSecret) > 0 {
		sig := r.Header.Get("X-Signature")
		if sig == "" || !validSignature(s.WebhookSecret, body, sig) {
			api.Unauthorized(w, "invalid webhook signature")
			return
		}
	}

	var payload live.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		api.BadRequest(w, "malformed webhook payload")
		return
	}

	if err := s.Webhooks.Ingest(r.Context(), payload); err != nil {
		s.Logger.Error("webhook ingest failed", "error", err)
		api.InternalError(w)
		return
	}

	api.JSONResponse(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func validSignature(secret, body []byte, sigHex string) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	given, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, given)
}
