package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/commitloop/engine/internal/api"
	"github.com/commitloop/engine/internal/apperrors"
	"github.com/commitloop/engine/internal/commitment"
	"github.com/commitloop/engine/internal/connection"
	"github.com/go-chi/chi/v5"
)

// handleCheckConnection reports whether the authenticated user's
// connection is live, alongside the coarse sync status. A synced, enabled
// connection missing a trigger is reconciled first via trigger.Reconcile.
func (s *Server) handleCheckConnection(w http.ResponseWriter, r *http.Request) {
	userID := api.GetUserID(r.Context())
	if userID == "" {
		api.Unauthorized(w, "missing user")
		return
	}

	state, err := s.Connections.GetState(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.Triggers != nil && state.ConnectionEnabled && state.InitialSyncCompleted && !connection.HasBothTriggers(state) {
		if err := s.Triggers.Reconcile(r.Context(), userID, state.EntityID, time.Now()); err != nil {
			s.Logger.Error("check-connection: trigger reconcile failed", "error", err, "user_id", userID)
		} else if state, err = s.Connections.GetState(r.Context(), userID); err != nil {
			s.writeError(w, err)
			return
		}
	}

	hasCredits, err := s.Credits.HasCredits(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	status, err := s.Connections.SyncStatus(r.Context(), userID, hasCredits)
	if err != nil {
		s.writeError(w, err)
		return
	}

	api.JSONResponse(w, http.StatusOK, map[string]any{
		"connected":   connection.Connected(state),
		"sync_status": status,
		"has_credits": hasCredits,
	})
}

// handleDisconnect tears down the user's live connection.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID := api.GetUserID(r.Context())
	if userID == "" {
		api.Unauthorized(w, "missing user")
		return
	}

	if err := s.Connections.Disconnect(r.Context(), userID); err != nil {
		s.writeError(w, err)
		return
	}

	api.JSONResponse(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// handleSyncStatus reports only the coarse sync status string.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	userID := api.GetUserID(r.Context())
	if userID == "" {
		api.Unauthorized(w, "missing user")
		return
	}

	hasCredits, err := s.Credits.HasCredits(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	status, err := s.Connections.SyncStatus(r.Context(), userID, hasCredits)
	if err != nil {
		s.writeError(w, err)
		return
	}

	api.JSONResponse(w, http.StatusOK, map[string]string{"sync_status": status})
}

// handleCompleteCommitment toggles a commitment's completed flag to the
// request body's "completed" value; an empty body or a missing field
// marks it completed.
func (s *Server) handleCompleteCommitment(w http.ResponseWriter, r *http.Request) {
	userID := api.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	var body struct {
		Completed *bool `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		api.BadRequest(w, "malformed request body")
		return
	}
	completed := body.Completed == nil || *body.Completed

	if err := s.Commitments.MarkCompleted(r.Context(), userID, id, completed); err != nil {
		s.writeError(w, err)
		return
	}

	status := commitment.StatusActive
	if completed {
		status = commitment.StatusCompleted
	}
	api.JSONResponse(w, http.StatusOK, map[string]string{"status": status})
}

// handleDeleteCommitment soft-deletes a commitment into the shadow store.
func (s *Server) handleDeleteCommitment(w http.ResponseWriter, r *http.Request) {
	userID := api.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.Commitments.Delete(r.Context(), userID, id); err != nil {
		s.writeError(w, err)
		return
	}

	api.JSONResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleRestoreCommitment undoes a soft delete within the shadow TTL.
func (s *Server) handleRestoreCommitment(w http.ResponseWriter, r *http.Request) {
	userID := api.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	restored, err := s.Commitments.Restore(r.Context(), userID, id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	api.JSONResponse(w, http.StatusOK, restored)
}

// handleListCompleted lists completed commitments for the user.
func (s *Server) handleListCompleted(w http.ResponseWriter, r *http.Request) {
	userID := api.GetUserID(r.Context())

	result, err := s.Commitments.Query(r.Context(), userID, commitment.Filter{OnlyCompleted: true})
	if err != nil {
		s.writeError(w, err)
		return
	}

	api.JSONResponse(w, http.StatusOK, result)
}

// handleListDeleted lists the user's soft-deleted commitments still
// within their shadow TTL.
func (s *Server) handleListDeleted(w http.ResponseWriter, r *http.Request) {
	userID := api.GetUserID(r.Context())

	const defaultListLimit = 50
	deleted, err := s.Commitments.ListDeleted(r.Context(), userID, defaultListLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	api.JSONResponse(w, http.StatusOK, deleted)
}

// writeError maps the shared sentinel taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		api.NotFound(w, "not found")
	case errors.Is(err, apperrors.ErrUserMissing):
		s.Logger.Error("httpapi: user missing", "error", err)
		api.InternalError(w)
	case errors.Is(err, apperrors.ErrAuthMissing), errors.Is(err, apperrors.ErrAuthInvalid):
		api.Unauthorized(w, "unauthorized")
	case errors.Is(err, apperrors.ErrCreditsExhausted):
		api.Conflict(w, "credits exhausted")
	case errors.Is(err, apperrors.ErrLockStale):
		api.Conflict(w, "operation already in progress")
	default:
		s.Logger.Error("httpapi: unhandled error", "error", err)
		api.InternalError(w)
	}
}
