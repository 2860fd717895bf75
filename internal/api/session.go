package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/finplan/internal/domain"
	"github.com/ashureev/finplan/internal/identity"
	"github.com/ashureev/finplan/internal/session"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// SessionHandler exposes the planner session to the browser.
type SessionHandler struct {
	sessions    *session.Store
	maxBodySize int64
	keepalive   time.Duration
	isDev       bool
}

// SessionHandlerConfig configures a SessionHandler.
type SessionHandlerConfig struct {
	MaxRequestBodySize int64
	KeepaliveInterval  time.Duration
	IsDevelopment      bool
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions *session.Store, cfg SessionHandlerConfig) *SessionHandler {
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = 10 * time.Second
	}
	return &SessionHandler{
		sessions:    sessions,
		maxBodySize: cfg.MaxRequestBodySize,
		keepalive:   cfg.KeepaliveInterval,
		isDev:       cfg.IsDevelopment,
	}
}

// RegisterRoutes registers the session routes. generate is wrapped
// separately so it can be rate limited.
func (h *SessionHandler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Put("/credentials/{kind}", h.PutCredential)
		r.Put("/fields/{field}", h.PutField)
		if limit != nil {
			r.With(limit).Post("/plan", h.Generate)
		} else {
			r.Post("/plan", h.Generate)
		}
	})
}

type valueRequest struct {
	Value string `json:"value"`
}

func (h *SessionHandler) current(r *http.Request) *session.Session {
	return h.sessions.GetOrCreate(identity.SessionIDFromContext(r.Context()))
}

// Get returns the current session view.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.current(r).Snapshot())
}

// PutCredential stores one provider credential. An empty value clears it.
func (h *SessionHandler) PutCredential(w http.ResponseWriter, r *http.Request) {
	kind, ok := domain.ParseCredentialKind(chi.URLParam(r, "kind"))
	if !ok {
		Error(w, http.StatusNotFound, "unknown_credential")
		return
	}
	var req valueRequest
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}

	sess := h.current(r)
	if err := sess.SetCredential(kind, req.Value); err != nil {
		writeSessionError(w, err)
		return
	}
	JSON(w, http.StatusOK, sess.Snapshot())
}

// PutField replaces the goals or situation text.
func (h *SessionHandler) PutField(w http.ResponseWriter, r *http.Request) {
	field, ok := domain.ParseField(chi.URLParam(r, "field"))
	if !ok {
		Error(w, http.StatusNotFound, "unknown_field")
		return
	}
	var req valueRequest
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}

	sess := h.current(r)
	if err := sess.SetField(field, req.Value); err != nil {
		writeSessionError(w, err)
		return
	}
	JSON(w, http.StatusOK, sess.Snapshot())
}

// Delete ends the session, wiping its credentials, and issues a new id.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(identity.SessionIDFromContext(r.Context()))
	identity.Rotate(w, h.isDev)
	w.WriteHeader(http.StatusNoContent)
}

type planResult struct {
	plan domain.FinancialPlan
	err  error
}

// Generate runs the planner and streams the outcome as server-sent events:
// "processing" once accepted, then "plan" or "error". The generation keeps
// running if the client goes away; its result is kept on the session.
func (h *SessionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	sess := h.current(r)
	switch sess.State() {
	case session.AwaitingCredentials:
		writeSessionError(w, session.ErrMissingCredentials)
		return
	case session.Generating:
		writeSessionError(w, session.ErrBusy)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	logger := slog.With("session_id", sess.ID(), "request_id", reqID)
	logger.Info("Plan requested")

	done := make(chan planResult, 1)
	go func() {
		plan, err := sess.Generate(context.WithoutCancel(r.Context()))
		done <- planResult{plan: plan, err: err}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "processing", `{"state":"generating"}`); err != nil {
		logger.Warn("failed to write SSE processing event", "error", err)
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Info("Client disconnected during plan generation")
			return
		case <-ticker.C:
			if err := writeSSEComment(w, "keepalive"); err != nil {
				return
			}
			flusher.Flush()
		case res := <-done:
			h.writeResult(w, logger, res)
			flusher.Flush()
			return
		}
	}
}

func (h *SessionHandler) writeResult(w http.ResponseWriter, logger *slog.Logger, res planResult) {
	if res.err != nil {
		_, code := sessionErrorCode(res.err)
		if code == "internal_error" {
			code = "generation_failed"
		}
		data, _ := json.Marshal(map[string]string{"error": code, "message": res.err.Error()})
		if err := writeSSE(w, "error", string(data)); err != nil {
			logger.Warn("failed to write SSE error event", "error", err)
		}
		return
	}

	data, err := json.Marshal(res.plan)
	if err != nil {
		logger.Warn("failed to marshal plan", "error", err)
		if writeErr := writeSSE(w, "error", `{"error":"failed to serialize response"}`); writeErr != nil {
			logger.Warn("failed to write SSE serialization error", "error", writeErr)
		}
		return
	}
	if err := writeSSE(w, "plan", string(data)); err != nil {
		logger.Warn("failed to write SSE plan event", "error", err)
	}
}
