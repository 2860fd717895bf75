// Package mic captures a phrase from the default input device with PortAudio.
package mic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/finplan/internal/speech"
	"github.com/gordonklaus/portaudio"
)

// Config configures a Capturer.
type Config struct {
	SampleRate      int
	MaxPhrase       time.Duration
	EnergyThreshold float64
	// Pause is how long the speaker must be quiet before the phrase ends.
	Pause time.Duration
}

// Capturer records from the default microphone. It implements speech.Capturer.
type Capturer struct {
	cfg Config
}

// New creates a microphone capturer.
func New(cfg Config) *Capturer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.MaxPhrase <= 0 {
		cfg.MaxPhrase = 15 * time.Second
	}
	if cfg.Pause <= 0 {
		cfg.Pause = 800 * time.Millisecond
	}
	return &Capturer{cfg: cfg}
}

// Capture waits for speech to begin and records until a pause or the phrase limit.
func (c *Capturer) Capture(ctx context.Context, wait time.Duration) (_ speech.Clip, err error) {
	if err = portaudio.Initialize(); err != nil {
		return speech.Clip{}, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer func() {
		if e := portaudio.Terminate(); e != nil {
			err = errors.Join(err, fmt.Errorf("terminate portaudio: %w", e))
		}
	}()

	// 30 ms frames match the energy window used by speech.HasSpeech.
	in := make([]int16, c.cfg.SampleRate*30/1000)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.cfg.SampleRate), len(in), in)
	if err != nil {
		return speech.Clip{}, fmt.Errorf("open audio stream: %w", err)
	}
	defer func() {
		if e := stream.Close(); e != nil {
			err = errors.Join(err, fmt.Errorf("close audio stream: %w", e))
		}
	}()

	if err = stream.Start(); err != nil {
		return speech.Clip{}, fmt.Errorf("start audio stream: %w", err)
	}
	defer func() {
		if e := stream.Stop(); e != nil {
			err = errors.Join(err, fmt.Errorf("stop audio stream: %w", e))
		}
	}()

	samples, err := c.record(ctx, stream, in, wait)
	if err != nil {
		return speech.Clip{}, err
	}
	return speech.PCMClip(samples, c.cfg.SampleRate, c.cfg.EnergyThreshold)
}

func (c *Capturer) record(ctx context.Context, stream *portaudio.Stream, in []int16, wait time.Duration) ([]int, error) {
	var (
		samples   []int
		started   time.Time
		lastVoice time.Time
		frame     = make([]int, len(in))
		deadline  = time.Now().Add(wait)
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read audio stream: %w", err)
		}
		for i, s := range in {
			frame[i] = int(s)
		}
		now := time.Now()
		voiced := speech.RMS(frame) >= c.cfg.EnergyThreshold

		if started.IsZero() {
			if !voiced {
				if now.After(deadline) {
					return nil, speech.ErrCaptureTimeout
				}
				continue
			}
			started = now
		}

		samples = append(samples, frame...)
		if voiced {
			lastVoice = now
		}
		if now.Sub(lastVoice) >= c.cfg.Pause || now.Sub(started) >= c.cfg.MaxPhrase {
			return samples, nil
		}
	}
}
