// Package speech captures a spoken phrase and turns it into text.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/finplan/internal/metrics"
)

// ErrorKind classifies transcription failures for the user.
type ErrorKind int

const (
	// NoSpeechDetected means nothing audible was captured in time.
	NoSpeechDetected ErrorKind = iota + 1
	// ServiceUnavailable means the recognition service could not be reached or refused the request.
	ServiceUnavailable
	// Unintelligible means audio was captured but could not be recognized.
	Unintelligible
)

func (k ErrorKind) String() string {
	switch k {
	case NoSpeechDetected:
		return "no_speech_detected"
	case ServiceUnavailable:
		return "service_unavailable"
	case Unintelligible:
		return "unintelligible"
	default:
		return "unknown"
	}
}

// Message is the user-facing text for the failure.
func (k ErrorKind) Message() string {
	switch k {
	case NoSpeechDetected:
		return "No speech detected. Please try again."
	case ServiceUnavailable:
		return "Speech service is unavailable. Please try again later."
	case Unintelligible:
		return "Could not understand audio. Please try again."
	default:
		return "Transcription failed."
	}
}

// Error is a classified transcription failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "speech: " + e.Kind.String()
	}
	return fmt.Sprintf("speech: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the failure kind of err, if it is a transcription failure.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

var (
	// ErrCaptureTimeout is returned by capturers when no audio arrives within the wait timeout.
	ErrCaptureTimeout = errors.New("no audio before wait timeout")
	// ErrSilence is returned by capturers when the captured audio holds no speech.
	ErrSilence = errors.New("captured audio is silent")
)

// Format is the container format of a clip.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatWebM Format = "webm"
)

// Clip is one captured phrase ready for recognition.
type Clip struct {
	Data   []byte
	Format Format
}

// Filename is the upload name recognition services use to sniff the format.
func (c Clip) Filename() string {
	return "speech." + string(c.Format)
}

// Capturer records a single phrase.
type Capturer interface {
	// Capture waits up to wait for speech to begin, then records until the
	// speaker stops or the phrase limit is reached.
	Capture(ctx context.Context, wait time.Duration) (Clip, error)
}

// Recognizer converts a clip into text.
type Recognizer interface {
	Recognize(ctx context.Context, clip Clip) (string, error)
}

// Transcriber runs capture then recognition and classifies failures.
type Transcriber struct {
	recognizer  Recognizer
	waitTimeout time.Duration
	logger      *slog.Logger
}

// NewTranscriber creates a Transcriber.
func NewTranscriber(recognizer Recognizer, waitTimeout time.Duration, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	if waitTimeout <= 0 {
		waitTimeout = 5 * time.Second
	}
	return &Transcriber{recognizer: recognizer, waitTimeout: waitTimeout, logger: logger}
}

// Transcribe captures one phrase and returns its text. Classified failures
// are *Error; capture transport failures and cancellation are returned
// wrapped as-is. No retry is attempted.
func (t *Transcriber) Transcribe(ctx context.Context, capturer Capturer) (string, error) {
	text, err := t.transcribe(ctx, capturer)
	if err != nil {
		outcome := "capture_failed"
		if kind, ok := KindOf(err); ok {
			outcome = kind.String()
		}
		metrics.TranscriptionsTotal.WithLabelValues(outcome).Inc()
		t.logger.Info("Transcription failed", "outcome", outcome, "error", err)
		return "", err
	}
	metrics.TranscriptionsTotal.WithLabelValues("success").Inc()
	return text, nil
}

func (t *Transcriber) transcribe(ctx context.Context, capturer Capturer) (string, error) {
	clip, err := capturer.Capture(ctx, t.waitTimeout)
	if err != nil {
		if errors.Is(err, ErrCaptureTimeout) || errors.Is(err, ErrSilence) {
			return "", &Error{Kind: NoSpeechDetected, Err: err}
		}
		return "", fmt.Errorf("capture audio: %w", err)
	}
	if len(clip.Data) == 0 {
		return "", &Error{Kind: NoSpeechDetected, Err: ErrSilence}
	}

	start := time.Now()
	text, err := t.recognizer.Recognize(ctx, clip)
	if err != nil {
		return "", &Error{Kind: ClassifyRecognitionError(err), Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &Error{Kind: Unintelligible, Err: errors.New("recognizer returned no text")}
	}

	t.logger.Debug("Transcription completed",
		"format", clip.Format,
		"bytes", len(clip.Data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
