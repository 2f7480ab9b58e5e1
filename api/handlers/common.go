// Package handlers implements the HTTP handlers for the service.
package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arogyahq/arogya/api"
	"github.com/arogyahq/arogya/internal/cache"
	"github.com/arogyahq/arogya/internal/ctxkeys"
	"github.com/arogyahq/arogya/store"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError writes the uniform error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, api.ErrorResponse{Error: api.ErrorBody{Code: code, Message: message}})
}

// WriteStoreError maps store errors onto HTTP statuses. Unexpected errors are
// logged and surface as an opaque 500.
func WriteStoreError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, store.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "access denied")
	default:
		logger.Error("request failed", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "internal", "Internal server error")
	}
}

// staleWindow is the stale-while-revalidate grace on cacheable reads.
const staleWindow = 300

// WriteCachedJSON writes a cacheable read response: strong ETag over the
// body, public max-age with a stale-while-revalidate grace, and the cache
// disposition header. A matching If-None-Match short-circuits to 304.
func WriteCachedJSON(w http.ResponseWriter, r *http.Request, v any, ttl time.Duration, hit bool) {
	body, err := json.Marshal(v)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	sum := sha256.Sum256(body)
	etag := fmt.Sprintf("%q", hex.EncodeToString(sum[:16]))

	h := w.Header()
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d",
		int(ttl.Seconds()), staleWindow))
	h.Set("ETag", etag)
	h.Set("Vary", "Accept-Encoding")
	if hit {
		h.Set("X-Cache", "HIT")
	} else {
		h.Set("X-Cache", "MISS")
	}

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

// cachedView reports whether a read view is already present in the cache.
// Used only for the X-Cache disposition header; the store performs its own
// cache read on the same key.
func cachedView(ctx context.Context, m *cache.Manager, key string) bool {
	var raw json.RawMessage
	return m.GetFast(ctx, key, &raw) == nil
}

// callerIdentity extracts the authenticated caller injected by the JWT
// middleware.
func callerIdentity(r *http.Request) (ctxkeys.Identity, bool) {
	return ctxkeys.IdentityFrom(r.Context())
}

// decodeBody decodes a JSON request body with a size cap.
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dest); err != nil {
		WriteError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return false
	}
	return true
}

// requireUUID validates a path identifier, writing a 400 on failure.
func requireUUID(w http.ResponseWriter, id string) bool {
	if err := api.ValidateUUID(id); err != nil {
		WriteError(w, http.StatusBadRequest, "validation", err.Error())
		return false
	}
	return true
}
