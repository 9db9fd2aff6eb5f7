package wire

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{Type: TTSAudio, Flags: FlagIsFinal, Payload: []byte{1, 2, 3, 4}}
	raw := Encode(f)

	if raw[0] != byte(TTSAudio) {
		t.Fatalf("expected type byte 0x%02X, got 0x%02X", TTSAudio, raw[0])
	}
	if raw[1] != byte(FlagIsFinal) {
		t.Fatalf("expected flags byte 0x%02X, got 0x%02X", FlagIsFinal, raw[1])
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if decoded.Type != f.Type || decoded.Flags != f.Flags {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, f)
	}
	if !bytes.Equal(decoded.Payload, f.Payload) {
		t.Errorf("payload mismatch: got %v, want %v", decoded.Payload, f.Payload)
	}
}

func TestDecodeShortFrame(t *testing.T) {
	if _, err := Decode([]byte{0x01}); err != ErrShortFrame {
		t.Errorf("expected ErrShortFrame, got %v", err)
	}
}

func TestFlagsHas(t *testing.T) {
	f := FlagIsFinal | FlagNeedsFollowUp
	if !f.Has(FlagIsFinal) || !f.Has(FlagNeedsFollowUp) {
		t.Errorf("expected both flags set in %v", f)
	}
	if Flags(0).Has(FlagIsFinal) {
		t.Errorf("zero flags should not report FlagIsFinal set")
	}
}

func TestKnownType(t *testing.T) {
	if !KnownType(AudioStart) {
		t.Errorf("AudioStart should be known")
	}
	if KnownType(Type(0xFF)) {
		t.Errorf("0xFF should not be a known type")
	}
}

func TestJSONRoundTripAudioChunk(t *testing.T) {
	f := Frame{Type: AudioChunk, Payload: []byte{10, 20, 30}}
	raw, err := EncodeJSON(f)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}

	decoded, err := DecodeJSON(raw)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if decoded.Type != f.Type || !bytes.Equal(decoded.Payload, f.Payload) {
		t.Errorf("json round trip mismatch: got %+v, want %+v", decoded, f)
	}
}

func TestJSONRoundTripAudioStart(t *testing.T) {
	startPayload, err := json.Marshal(AudioStartPayload{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	f := Frame{Type: AudioStart, Payload: startPayload}
	raw, err := EncodeJSON(f)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	decoded, err := DecodeJSON(raw)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	p, err := DecodeAudioStart(decoded.Payload)
	if err != nil {
		t.Fatalf("DecodeAudioStart: %v", err)
	}
	if p.SampleRate != 16000 || p.Channels != 1 {
		t.Errorf("unexpected round-tripped payload: %+v", p)
	}
}
