package speech

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeSeekerBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks
// back to patch chunk sizes on Close.
type writeSeekerBuffer struct {
	b []byte
	i int64
}

func (b *writeSeekerBuffer) Bytes() []byte { return b.b }

func (b *writeSeekerBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	end := b.i + int64(len(p))
	if n := end - int64(cap(b.b)); n > 0 {
		b.b = slices.Grow(b.b, int(n))
	}
	if end > int64(len(b.b)) {
		b.b = b.b[:end]
	}
	copy(b.b[b.i:end], p)
	b.i = end
	return len(p), nil
}

func (b *writeSeekerBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = b.i + offset
	case io.SeekEnd:
		pos = int64(len(b.b)) + offset
	default:
		return 0, errors.New("seek: invalid whence")
	}
	if pos < 0 {
		return 0, errors.New("seek: negative position")
	}
	b.i = pos
	return pos, nil
}

// DecodePCM16 reads little-endian signed 16-bit mono samples. A trailing odd
// byte is ignored.
func DecodePCM16(data []byte) []int {
	samples := make([]int, len(data)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	return samples
}

// RMS returns the root mean square amplitude of samples.
func RMS(samples []int) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// HasSpeech reports whether any 30 ms window of samples reaches threshold.
func HasSpeech(samples []int, sampleRate int, threshold float64) bool {
	window := sampleRate * 30 / 1000
	if window <= 0 {
		window = len(samples)
	}
	for chunk := range slices.Chunk(samples, window) {
		if RMS(chunk) >= threshold {
			return true
		}
	}
	return false
}

// EncodeWAV wraps 16-bit mono samples in a WAV container.
func EncodeWAV(samples []int, sampleRate int) ([]byte, error) {
	buf := &writeSeekerBuffer{}
	enc := wav.NewEncoder(buf, sampleRate, 16, 1, 1)

	err := enc.Write(&audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           samples,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// PCMClip turns raw 16-bit samples into a WAV clip, rejecting audio whose
// energy never reaches threshold.
func PCMClip(samples []int, sampleRate int, threshold float64) (Clip, error) {
	if len(samples) == 0 || !HasSpeech(samples, sampleRate, threshold) {
		return Clip{}, ErrSilence
	}
	data, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		return Clip{}, err
	}
	return Clip{Data: data, Format: FormatWAV}, nil
}
