package audio

import (
	"bytes"
	"testing"
)

func TestNewWavBuffer(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := NewWavBuffer(pcm, 44100, 1)

	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Errorf("expected RIFF prefix")
	}
	if !bytes.Contains(wav, []byte("WAVE")) {
		t.Errorf("expected WAVE format identifier")
	}
	if expected := 44 + len(pcm); len(wav) != expected {
		t.Errorf("expected length %d, got %d", expected, len(wav))
	}
}

func TestRingBufferDuration(t *testing.T) {
	rb := NewRingBuffer(16000, 1)
	// 16000 samples/sec * 2 bytes/sample = 32000 bytes/sec; write 1 second.
	rb.Append(make([]byte, 32000))

	if d := rb.DurationSeconds(); d < 0.99 || d > 1.01 {
		t.Errorf("expected ~1s duration, got %f", d)
	}
	if rb.Len() != 32000 {
		t.Errorf("expected 32000 buffered bytes, got %d", rb.Len())
	}

	rb.Reset()
	if rb.Len() != 0 {
		t.Errorf("expected buffer cleared after Reset, got %d bytes", rb.Len())
	}
}

func TestRingBufferWAV(t *testing.T) {
	rb := NewRingBuffer(8000, 1)
	rb.Append([]byte{0xAA, 0xBB})
	wav := rb.WAV()
	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Errorf("expected RIFF prefix")
	}
}
