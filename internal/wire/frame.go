// Package wire implements the binary frame format that carries audio and
// control messages between the browser client and the voice gateway.
package wire

import "fmt"

// Type is the one-byte message type carried in byte 0 of every frame.
type Type byte

const (
	AudioStart   Type = 0x01
	AudioChunk   Type = 0x02
	AudioEnd     Type = 0x03
	Transcript   Type = 0x04
	LLMChunk     Type = 0x05
	TTSAudio     Type = 0x06
	ErrorFrame   Type = 0x07
	Ready        Type = 0x08
	Done         Type = 0x09
	Synthesize   Type = 0x0A
	Ping         Type = 0x0B
	Pong         Type = 0x0C
)

// Flags are the bits carried in byte 1 of every frame.
type Flags byte

const (
	FlagIsFinal       Flags = 0x01
	FlagNeedsFollowUp Flags = 0x02
)

func (f Flags) Has(bit Flags) bool {
	return f&bit != 0
}

// Frame is a decoded wire message: a type, flag bits, and a raw payload
// whose interpretation depends on Type (see package doc and spec §4.1).
type Frame struct {
	Type    Type
	Flags   Flags
	Payload []byte
}

// headerLen is the fixed two-byte header every frame carries.
const headerLen = 2

// Encode serializes f into the wire format: [type][flags][payload...].
// The payload is copied into a newly allocated slice after the header, so
// the result does not alias f.Payload; only Decode avoids copying.
func Encode(f Frame) []byte {
	out := make([]byte, headerLen, headerLen+len(f.Payload))
	out[0] = byte(f.Type)
	out[1] = byte(f.Flags)
	return append(out, f.Payload...)
}

// ErrShortFrame is returned by Decode when fewer than two bytes are given.
var ErrShortFrame = fmt.Errorf("wire: frame shorter than header (%d bytes)", headerLen)

// Decode parses raw bytes received from the socket into a Frame. The
// returned Payload aliases the input slice — callers that retain it across
// the next socket read must copy.
func Decode(raw []byte) (Frame, error) {
	if len(raw) < headerLen {
		return Frame{}, ErrShortFrame
	}
	return Frame{
		Type:    Type(raw[0]),
		Flags:   Flags(raw[1]),
		Payload: raw[headerLen:],
	}, nil
}

// KnownType reports whether t is one of the defined message types.
func KnownType(t Type) bool {
	switch t {
	case AudioStart, AudioChunk, AudioEnd, Transcript, LLMChunk, TTSAudio,
		ErrorFrame, Ready, Done, Synthesize, Ping, Pong:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	switch t {
	case AudioStart:
		return "AUDIO_START"
	case AudioChunk:
		return "AUDIO_CHUNK"
	case AudioEnd:
		return "AUDIO_END"
	case Transcript:
		return "TRANSCRIPTION"
	case LLMChunk:
		return "LLM_CHUNK"
	case TTSAudio:
		return "TTS_AUDIO"
	case ErrorFrame:
		return "ERROR"
	case Ready:
		return "READY"
	case Done:
		return "DONE"
	case Synthesize:
		return "SYNTHESIZE"
	case Ping:
		return "PING"
	case Pong:
		return "PONG"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", byte(t))
	}
}
