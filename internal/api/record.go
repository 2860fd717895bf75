package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/finplan/internal/config"
	"github.com/ashureev/finplan/internal/domain"
	"github.com/ashureev/finplan/internal/identity"
	"github.com/ashureev/finplan/internal/session"
	"github.com/ashureev/finplan/internal/speech"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

// recordMessage is sent to the browser over the recording socket.
type recordMessage struct {
	Type        string  `json:"type"`
	Field       string  `json:"field,omitempty"`
	Text        string  `json:"text,omitempty"`
	Code        string  `json:"code,omitempty"`
	Message     string  `json:"message,omitempty"`
	WaitSeconds float64 `json:"wait_seconds,omitempty"`
}

// RecordHandler captures one spoken phrase over a WebSocket and writes the
// transcript into a session field.
type RecordHandler struct {
	sessions      *session.Store
	cfg           config.SpeechConfig
	allowedOrigin string
	isDev         bool
}

// NewRecordHandler creates a recording handler.
func NewRecordHandler(sessions *session.Store, cfg config.SpeechConfig, allowedOrigin string, isDev bool) *RecordHandler {
	return &RecordHandler{
		sessions:      sessions,
		cfg:           cfg,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *RecordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())

	field, ok := domain.ParseField(chi.URLParam(r, "field"))
	if !ok {
		Error(w, http.StatusNotFound, "unknown_field")
		return
	}
	format, err := speech.ParseStreamFormat(r.URL.Query().Get("format"))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	sampleRate := 16000
	if v := r.URL.Query().Get("sample_rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 8000 || n > 48000 {
			Error(w, http.StatusBadRequest, "sample_rate must be between 8000 and 48000")
			return
		}
		sampleRate = n
	}
	if !h.checkOrigin(r) {
		Error(w, http.StatusForbidden, "origin not allowed")
		return
	}

	slog.Info("Recording connection request", "session_id", sessionID, "field", field, "format", format, "ip", identity.IPFromRequest(r))

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "recording ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	// Leave room for recognition after the longest phrase.
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.WaitTimeout+h.cfg.MaxPhrase+time.Minute)
	defer cancel()

	h.write(ctx, ws, recordMessage{Type: "listening", Field: string(field), WaitSeconds: h.cfg.WaitTimeout.Seconds()})

	capturer := speech.NewWebSocketCapturer(ws, speech.WebSocketCapturerConfig{
		Format:          format,
		SampleRate:      sampleRate,
		MaxPhrase:       h.cfg.MaxPhrase,
		MaxBytes:        h.cfg.MaxClipBytes,
		EnergyThreshold: float64(h.cfg.EnergyThreshold),
	})

	sess := h.sessions.GetOrCreate(sessionID)
	text, err := sess.Record(ctx, field, capturer)
	if err != nil {
		h.write(ctx, ws, recordErrorMessage(err))
		return
	}
	h.write(ctx, ws, recordMessage{Type: "transcript", Field: string(field), Text: text})
}

func recordErrorMessage(err error) recordMessage {
	var sErr *speech.Error
	if errors.As(err, &sErr) {
		return recordMessage{Type: "error", Code: sErr.Kind.String(), Message: sErr.Kind.Message()}
	}
	_, code := sessionErrorCode(err)
	return recordMessage{Type: "error", Code: code, Message: err.Error()}
}

func (h *RecordHandler) write(ctx context.Context, ws *websocket.Conn, msg recordMessage) {
	if err := wsjson.Write(ctx, ws, msg); err != nil {
		slog.Debug("Failed to send recording message", "type", msg.Type, "error", err)
	}
}

func (h *RecordHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
