package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arogyahq/arogya/api"
	"github.com/arogyahq/arogya/store"
)

// SessionHandler serves the session read and delete endpoints. Read views are
// cacheable and carry the full cache-header set.
type SessionHandler struct {
	store  *store.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewSessionHandler wires the session endpoints. ttl drives the max-age
// header on cacheable reads.
func NewSessionHandler(st *store.Store, ttl time.Duration, logger *zap.Logger) *SessionHandler {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionHandler{
		store:  st,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "session_handler")),
	}
}

// Get handles GET /session/{sid}: the full session plus messages.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	sid := r.PathValue("sid")
	if !requireUUID(w, sid) {
		return
	}

	hit := cachedView(r.Context(), h.store.Cache(), h.store.Cache().Keys().SessionFull(sid))
	full, err := h.store.GetSessionFull(r.Context(), sid, id.CustomerID, id.IsAdmin())
	if err != nil {
		WriteStoreError(w, h.logger, err)
		return
	}
	WriteCachedJSON(w, r, full, h.ttl, hit)
}

// Messages handles GET /session/{sid}/messages.
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	sid := r.PathValue("sid")
	if !requireUUID(w, sid) {
		return
	}

	// Ownership is checked on the session row before the message read.
	if _, err := h.store.GetOwnedSession(r.Context(), sid, id.CustomerID, id.IsAdmin()); err != nil {
		WriteStoreError(w, h.logger, err)
		return
	}

	limit := store.DefaultHistoryLimit
	key := h.store.Cache().Keys().SessionMessages(sid, limit)
	hit := cachedView(r.Context(), h.store.Cache(), key)
	messages, err := h.store.ListMessages(r.Context(), sid, limit)
	if err != nil {
		WriteStoreError(w, h.logger, err)
		return
	}
	WriteCachedJSON(w, r, map[string]any{"messages": messages}, h.ttl, hit)
}

// Delete handles DELETE /session/{sid}. The delete cascades to messages and
// evicts every cached view of the session.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	sid := r.PathValue("sid")
	if !requireUUID(w, sid) {
		return
	}

	if err := h.store.DeleteSession(r.Context(), sid, id.CustomerID, id.IsAdmin()); err != nil {
		WriteStoreError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// List handles GET /customer/{uid}/sessions. Self-or-admin only.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	uid := r.PathValue("uid")
	if !requireUUID(w, uid) {
		return
	}
	if uid != id.CustomerID && !id.IsAdmin() {
		WriteError(w, http.StatusForbidden, "forbidden", "access denied")
		return
	}

	limit := store.DefaultListLimit
	key := h.store.Cache().Keys().Sessions(uid, limit)
	hit := cachedView(r.Context(), h.store.Cache(), key)
	sessions, err := h.store.ListSessions(r.Context(), uid, limit)
	if err != nil {
		WriteStoreError(w, h.logger, err)
		return
	}
	WriteCachedJSON(w, r, map[string]any{"sessions": sessions}, h.ttl, hit)
}

// Feedback handles POST /message/{mid}/feedback.
func (h *SessionHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerIdentity(r); !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	mid := r.PathValue("mid")
	if !requireUUID(w, mid) {
		return
	}

	var req api.FeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		WriteError(w, http.StatusBadRequest, "validation", "rating must be between 1 and 5")
		return
	}

	comment := req.Comment
	if len(comment) > 2000 {
		comment = comment[:2000]
	}
	if err := h.store.AddFeedback(r.Context(), mid, req.Rating, api.SanitizeField(comment)); err != nil {
		WriteStoreError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}
