// Package audio provides small PCM/WAV helpers used when handing captured
// or synthesized audio to providers that expect a RIFF container, adapted
// from the teacher's pkg/audio/wav.go.
package audio

import (
	"bytes"
	"encoding/binary"
)

// NewWavBuffer wraps 16-bit little-endian PCM samples in a minimal RIFF/WAVE
// header at the given sample rate and channel count.
func NewWavBuffer(pcm []byte, sampleRate, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := new(bytes.Buffer)
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// RingBuffer accumulates raw PCM chunks for a capture in progress, tracking
// total duration so the session can enforce spec §4.2's max-capture-duration
// cutoff without re-walking the whole buffer on every chunk.
type RingBuffer struct {
	sampleRate int
	channels   int
	data       []byte
}

// NewRingBuffer creates an empty capture buffer for the given audio format.
func NewRingBuffer(sampleRate, channels int) *RingBuffer {
	return &RingBuffer{sampleRate: sampleRate, channels: channels}
}

// Append adds a chunk of raw PCM to the buffer.
func (r *RingBuffer) Append(chunk []byte) {
	r.data = append(r.data, chunk...)
}

// Len returns the number of PCM bytes currently buffered.
func (r *RingBuffer) Len() int {
	return len(r.data)
}

// DurationSeconds estimates the buffered audio's duration from its format.
func (r *RingBuffer) DurationSeconds() float64 {
	blockAlign := r.channels * 2
	if blockAlign == 0 || r.sampleRate == 0 {
		return 0
	}
	frames := len(r.data) / blockAlign
	return float64(frames) / float64(r.sampleRate)
}

// Bytes returns the buffered PCM.
func (r *RingBuffer) Bytes() []byte {
	return r.data
}

// WAV wraps the buffered PCM in a RIFF/WAVE container.
func (r *RingBuffer) WAV() []byte {
	return NewWavBuffer(r.data, r.sampleRate, r.channels)
}

// Reset clears the buffer for reuse on the next capture.
func (r *RingBuffer) Reset() {
	r.data = r.data[:0]
}
