package api

import (
	"context"
	"encoding/binary"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/finplan/internal/session"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) dialRecord(t *testing.T, ctx context.Context, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: e.client})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readRecordMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) recordMessage {
	t.Helper()
	var msg recordMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	return msg
}

// pcmFrame returns n little-endian 16-bit samples of a tone at amplitude.
func pcmFrame(n int, amplitude float64) []byte {
	b := make([]byte, 2*n)
	for i := range n {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(int16(amplitude*math.Sin(float64(i)/8))))
	}
	return b
}

func TestRecordWritesTranscriptIntoField(t *testing.T) {
	env := newTestEnv(t, 100)
	env.setCredentials(t, "sk", "serp")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := env.dialRecord(t, ctx, "/ws/session/record/goals?format=pcm16&sample_rate=16000")

	msg := readRecordMessage(t, ctx, conn)
	assert.Equal(t, "listening", msg.Type)
	assert.Equal(t, "goals", msg.Field)

	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, pcmFrame(800, 20)))
	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, pcmFrame(1600, 6000)))
	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, pcmFrame(1600, 6000)))
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("end")))

	msg = readRecordMessage(t, ctx, conn)
	assert.Equal(t, "transcript", msg.Type)
	assert.Equal(t, "Retire by 50", msg.Text)

	v := decode[session.View](t, env.do(t, http.MethodGet, "/api/session/", ""))
	assert.Equal(t, "Retire by 50", v.Input.FinancialGoals)
}

func TestRecordReportsNoSpeech(t *testing.T) {
	env := newTestEnv(t, 100)
	env.setCredentials(t, "sk", "serp")
	env.do(t, http.MethodPut, "/api/session/fields/situation", `{"value":"unchanged"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := env.dialRecord(t, ctx, "/ws/session/record/situation")

	assert.Equal(t, "listening", readRecordMessage(t, ctx, conn).Type)

	msg := readRecordMessage(t, ctx, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "no_speech_detected", msg.Code)
	assert.NotEmpty(t, msg.Message)

	v := decode[session.View](t, env.do(t, http.MethodGet, "/api/session/", ""))
	assert.Equal(t, "unchanged", v.Input.CurrentSituation)
}

func TestRecordReportsNoSpeechWhileSilentFramesStream(t *testing.T) {
	env := newTestEnv(t, 100)
	env.setCredentials(t, "sk", "serp")
	env.do(t, http.MethodPut, "/api/session/fields/goals", `{"value":"unchanged"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := env.dialRecord(t, ctx, "/ws/session/record/goals")
	assert.Equal(t, "listening", readRecordMessage(t, ctx, conn).Type)

	writeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-writeCtx.Done():
				return
			case <-ticker.C:
				if err := conn.Write(writeCtx, websocket.MessageBinary, pcmFrame(800, 20)); err != nil {
					return
				}
			}
		}
	}()

	start := time.Now()
	msg := readRecordMessage(t, ctx, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "no_speech_detected", msg.Code)
	assert.Less(t, time.Since(start), 1700*time.Millisecond)
	stop()

	v := decode[session.View](t, env.do(t, http.MethodGet, "/api/session/", ""))
	assert.Equal(t, "unchanged", v.Input.FinancialGoals)
}

func TestRecordRequiresCredentials(t *testing.T) {
	env := newTestEnv(t, 100)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := env.dialRecord(t, ctx, "/ws/session/record/goals")

	assert.Equal(t, "listening", readRecordMessage(t, ctx, conn).Type)
	msg := readRecordMessage(t, ctx, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "missing_credentials", msg.Code)
}

func TestRecordRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, 100)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown field", "/ws/session/record/notes", http.StatusNotFound},
		{"unknown format", "/ws/session/record/goals?format=mp3", http.StatusBadRequest},
		{"webm format", "/ws/session/record/goals?format=webm", http.StatusBadRequest},
		{"sample rate too low", "/ws/session/record/goals?sample_rate=100", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
