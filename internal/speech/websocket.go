package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// EndOfPhrase is the text message a client sends when the speaker stops.
const EndOfPhrase = "end"

// leadIn is how much unvoiced audio before the first voiced frame is kept
// so the start of the first word is not clipped.
const leadIn = 300 * time.Millisecond

// StreamFormat is the encoding of audio frames sent by the browser.
type StreamFormat string

// StreamPCM16 frames carry little-endian signed 16-bit mono samples.
const StreamPCM16 StreamFormat = "pcm16"

// ParseStreamFormat validates a client-supplied stream format.
func ParseStreamFormat(s string) (StreamFormat, error) {
	switch f := StreamFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", StreamPCM16:
		return StreamPCM16, nil
	default:
		return "", fmt.Errorf("unsupported audio format %q", s)
	}
}

// WebSocketCapturerConfig configures a WebSocketCapturer.
type WebSocketCapturerConfig struct {
	Format          StreamFormat
	SampleRate      int
	MaxPhrase       time.Duration
	MaxBytes        int64
	EnergyThreshold float64
	// Pause is how much trailing unvoiced audio ends the phrase.
	Pause time.Duration
}

// WebSocketCapturer receives one phrase of audio frames from a browser.
// Binary messages carry audio. The phrase starts at the first voiced frame
// and ends on a pause, a text message "end" or a normal close.
type WebSocketCapturer struct {
	conn *websocket.Conn
	cfg  WebSocketCapturerConfig
}

// NewWebSocketCapturer wraps an accepted connection.
func NewWebSocketCapturer(conn *websocket.Conn, cfg WebSocketCapturerConfig) *WebSocketCapturer {
	if cfg.Format == "" {
		cfg.Format = StreamPCM16
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.MaxPhrase <= 0 {
		cfg.MaxPhrase = 15 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 8 << 20
	}
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = 300
	}
	if cfg.Pause <= 0 {
		cfg.Pause = 800 * time.Millisecond
	}
	conn.SetReadLimit(cfg.MaxBytes)
	return &WebSocketCapturer{conn: conn, cfg: cfg}
}

type frame struct {
	typ  websocket.MessageType
	data []byte
	err  error
}

// Capture implements Capturer. Reads run in a separate goroutine so that
// the wait timeout does not close the connection; the caller still needs it
// to report the outcome.
func (c *WebSocketCapturer) Capture(ctx context.Context, wait time.Duration) (Clip, error) {
	frames := make(chan frame)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			typ, data, err := c.conn.Read(ctx)
			select {
			case frames <- frame{typ: typ, data: data, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	waitTimer := time.NewTimer(wait)
	defer waitTimer.Stop()

	var (
		rate         = c.cfg.SampleRate
		maxSamples   = int(c.cfg.MaxBytes / 2)
		pauseSamples = int(c.cfg.Pause.Seconds() * float64(rate))
		leadSamples  = int(leadIn.Seconds() * float64(rate))

		samples  []int
		received bool
		started  bool
		quiet    int
		phraseCh <-chan time.Time
	)

loop:
	for {
		select {
		case <-ctx.Done():
			return Clip{}, ctx.Err()
		case <-waitTimer.C:
			if !started {
				return Clip{}, ErrCaptureTimeout
			}
		case <-phraseCh:
			break loop
		case f := <-frames:
			if f.err != nil {
				if websocket.CloseStatus(f.err) == websocket.StatusNormalClosure {
					break loop
				}
				return Clip{}, fmt.Errorf("read audio frame: %w", f.err)
			}
			if f.typ == websocket.MessageText {
				if strings.TrimSpace(string(f.data)) == EndOfPhrase {
					break loop
				}
				continue
			}

			pcm := DecodePCM16(f.data)
			if len(pcm) == 0 {
				continue
			}
			received = true
			voiced := HasSpeech(pcm, rate, c.cfg.EnergyThreshold)

			if !started {
				samples = append(samples, pcm...)
				if !voiced {
					if n := len(samples) - leadSamples; n > 0 {
						samples = samples[n:]
					}
					continue
				}
				started = true
				phrase := time.NewTimer(c.cfg.MaxPhrase)
				defer phrase.Stop()
				phraseCh = phrase.C
				continue
			}

			if len(samples)+len(pcm) > maxSamples {
				break loop
			}
			samples = append(samples, pcm...)
			if voiced {
				quiet = 0
			} else if quiet += len(pcm); quiet >= pauseSamples {
				break loop
			}
		}
	}

	if !started {
		if received {
			return Clip{}, ErrSilence
		}
		return Clip{}, ErrCaptureTimeout
	}
	return PCMClip(samples, rate, c.cfg.EnergyThreshold)
}
