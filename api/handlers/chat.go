package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/arogyahq/arogya/api"
	"github.com/arogyahq/arogya/orchestrator"
	"github.com/arogyahq/arogya/types"
)

// ChatHandler serves the unary and streaming answer endpoints.
type ChatHandler struct {
	orc    *orchestrator.Orchestrator
	logger *zap.Logger
}

// NewChatHandler wires the chat endpoints.
func NewChatHandler(orc *orchestrator.Orchestrator, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{orc: orc, logger: logger.With(zap.String("component", "chat_handler"))}
}

// buildInput validates the request body and binds it to the authenticated
// caller. Returns false after writing the error response.
func (h *ChatHandler) buildInput(w http.ResponseWriter, r *http.Request) (orchestrator.Input, bool) {
	id, ok := callerIdentity(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return orchestrator.Input{}, false
	}

	var req api.ChatRequest
	if !decodeBody(w, r, &req) {
		return orchestrator.Input{}, false
	}

	if req.CustomerID != "" && req.CustomerID != id.CustomerID && !id.IsAdmin() {
		WriteError(w, http.StatusForbidden, "forbidden", "customer_id does not match token subject")
		return orchestrator.Input{}, false
	}

	text, err := api.ValidateText(req.Text)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation", err.Error())
		return orchestrator.Input{}, false
	}
	if req.SessionID != "" {
		if err := api.ValidateUUID(req.SessionID); err != nil {
			WriteError(w, http.StatusBadRequest, "validation", "session_id must be a UUID")
			return orchestrator.Input{}, false
		}
	}

	return orchestrator.Input{
		CustomerID: id.CustomerID,
		IsAdmin:    id.IsAdmin(),
		Text:       text,
		Lang:       types.ParseLanguage(req.Lang),
		Profile:    types.NewProfile(req.Profile),
		Debug:      req.Debug,
		SessionID:  req.SessionID,
	}, true
}

// Chat handles POST /chat. Chat responses are never cached.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	in, ok := h.buildInput(w, r)
	if !ok {
		return
	}

	resp, err := h.orc.Answer(r.Context(), in)
	if err != nil {
		WriteStoreError(w, h.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, resp)
}

// ChatStream handles POST /chat/stream with server-sent events.
func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	in, ok := h.buildInput(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		WriteError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	h.setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(ev orchestrator.StreamEvent) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := h.orc.AnswerStream(r.Context(), in, emit); err != nil {
		// Headers are already on the wire; ownership failures become a
		// terminal error event instead of a status code.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		h.logger.Warn("stream aborted", zap.Error(err))
		_ = emit(orchestrator.StreamEvent{Type: "error", Content: "stream failed"})
	}
}

func (h *ChatHandler) setSSEHeaders(w http.ResponseWriter) {
	hd := w.Header()
	hd.Set("Content-Type", "text/event-stream")
	hd.Set("Cache-Control", "no-cache")
	hd.Set("Connection", "keep-alive")
	hd.Set("X-Accel-Buffering", "no")
}
