package wire

import "encoding/json"

// AudioStartPayload is the JSON payload of an AUDIO_START frame.
type AudioStartPayload struct {
	SampleRate int `json:"sampleRate"`
	Channels   int `json:"channels"`
}

// ErrorPayload is the JSON payload of an ERROR frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SynthesizePayload is the JSON payload of a client-initiated SYNTHESIZE frame.
type SynthesizePayload struct {
	Text        string  `json:"text"`
	Exaggeration float64 `json:"exaggeration"`
	SpeechRate  float64 `json:"speechRate"`
}

// Error classification codes, referenced by ErrorPayload.Code.
const (
	CodeProtocol      = "PROTOCOL"
	CodeInputTooLong  = "INPUT_TOO_LONG"
	CodeInputInvalid  = "INPUT_INVALID"
	CodeUpstream      = "UPSTREAM"
	CodeUpstreamFatal = "UPSTREAM_FATAL"
	CodeInternal      = "INTERNAL"
	CodeSlowClient    = "SLOW_CLIENT"
)

// DecodeAudioStart parses an AUDIO_START payload.
func DecodeAudioStart(payload []byte) (AudioStartPayload, error) {
	var p AudioStartPayload
	err := json.Unmarshal(payload, &p)
	return p, err
}

// DecodeSynthesize parses a SYNTHESIZE payload.
func DecodeSynthesize(payload []byte) (SynthesizePayload, error) {
	var p SynthesizePayload
	err := json.Unmarshal(payload, &p)
	return p, err
}

// EncodeError builds the ERROR payload bytes for code/message.
func EncodeError(code, message string) []byte {
	b, _ := json.Marshal(ErrorPayload{Code: code, Message: message})
	return b
}

// EncodeAudioStart builds an AUDIO_START payload, used server-side to open
// the spoken-audio stream for a turn (spec.md §4.1's S->C direction).
func EncodeAudioStart(sampleRate, channels int) []byte {
	b, _ := json.Marshal(AudioStartPayload{SampleRate: sampleRate, Channels: channels})
	return b
}
