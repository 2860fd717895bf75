package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// AudioClient is the subset of the OpenAI client used for recognition.
type AudioClient interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

var _ AudioClient = (*openai.Client)(nil)

// WhisperRecognizer recognizes clips with the OpenAI transcription endpoint.
type WhisperRecognizer struct {
	client AudioClient
	model  string
}

// NewWhisperRecognizer creates a recognizer authorized by apiKey. An empty
// baseURL uses the public endpoint.
func NewWhisperRecognizer(apiKey, baseURL, model string) *WhisperRecognizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewRecognizer(openai.NewClientWithConfig(cfg), model)
}

// NewRecognizer wraps an existing audio client.
func NewRecognizer(client AudioClient, model string) *WhisperRecognizer {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperRecognizer{client: client, model: model}
}

// Recognize uploads clip and returns the transcript.
func (r *WhisperRecognizer) Recognize(ctx context.Context, clip Clip) (string, error) {
	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.model,
		FilePath: clip.Filename(),
		Reader:   bytes.NewReader(clip.Data),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return resp.Text, nil
}

// ClassifyRecognitionError maps a recognition error to a failure kind.
// Unreachable service, quota and auth problems are ServiceUnavailable;
// any other rejection of the audio is Unintelligible.
func ClassifyRecognitionError(err error) ErrorKind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode)
	}
	return ServiceUnavailable
}

func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized,
		code == http.StatusForbidden,
		code == http.StatusTooManyRequests,
		code >= 500,
		code == 0:
		return ServiceUnavailable
	case code >= 400:
		return Unintelligible
	default:
		return ServiceUnavailable
	}
}
