package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// jsonEnvelope is the wire shape of the JSON fallback protocol (spec §6):
// the same message set as the binary codec, identified by a "type" string,
// with binary payloads base64-encoded.
type jsonEnvelope struct {
	Type       string          `json:"type"`
	IsFinal    bool            `json:"isFinal,omitempty"`
	NeedsFollowUp bool         `json:"needsFollowUp,omitempty"`
	Text       string          `json:"text,omitempty"`
	Audio      string          `json:"audio,omitempty"`
	SampleRate int             `json:"sampleRate,omitempty"`
	Channels   int             `json:"channels,omitempty"`
	Code       string          `json:"code,omitempty"`
	Message    string          `json:"message,omitempty"`
	Exaggeration float64       `json:"exaggeration,omitempty"`
	SpeechRate float64         `json:"speechRate,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

var typeToName = map[Type]string{
	AudioStart: "audio_start",
	AudioChunk: "audio_chunk",
	AudioEnd:   "audio_end",
	Transcript: "transcription",
	LLMChunk:   "llm_chunk",
	TTSAudio:   "tts_audio",
	ErrorFrame: "error",
	Ready:      "ready",
	Done:       "done",
	Synthesize: "synthesize",
	Ping:       "ping",
	Pong:       "pong",
}

var nameToType = func() map[string]Type {
	m := make(map[string]Type, len(typeToName))
	for t, n := range typeToName {
		m[n] = t
	}
	return m
}()

// EncodeJSON renders f as a JSON fallback message (spec §6).
func EncodeJSON(f Frame) ([]byte, error) {
	name, ok := typeToName[f.Type]
	if !ok {
		return nil, fmt.Errorf("wire: unknown type %v for json encoding", f.Type)
	}

	env := jsonEnvelope{
		Type:    name,
		IsFinal: f.Flags.Has(FlagIsFinal),
		NeedsFollowUp: f.Flags.Has(FlagNeedsFollowUp),
	}

	switch f.Type {
	case AudioChunk, TTSAudio:
		env.Audio = base64.StdEncoding.EncodeToString(f.Payload)
	case AudioStart:
		p, err := DecodeAudioStart(f.Payload)
		if err != nil {
			return nil, err
		}
		env.SampleRate = p.SampleRate
		env.Channels = p.Channels
	case Transcript, LLMChunk:
		env.Text = string(f.Payload)
	case ErrorFrame:
		var p ErrorPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, err
		}
		env.Code = p.Code
		env.Message = p.Message
	case Synthesize:
		p, err := DecodeSynthesize(f.Payload)
		if err != nil {
			return nil, err
		}
		env.Text = p.Text
		env.Exaggeration = p.Exaggeration
		env.SpeechRate = p.SpeechRate
	}

	return json.Marshal(env)
}

// DecodeJSON parses a JSON fallback message into a Frame.
func DecodeJSON(raw []byte) (Frame, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Frame{}, err
	}

	t, ok := nameToType[env.Type]
	if !ok {
		return Frame{}, fmt.Errorf("wire: unknown json message type %q", env.Type)
	}

	var flags Flags
	if env.IsFinal {
		flags |= FlagIsFinal
	}
	if env.NeedsFollowUp {
		flags |= FlagNeedsFollowUp
	}

	var payload []byte
	var err error
	switch t {
	case AudioChunk, TTSAudio:
		payload, err = base64.StdEncoding.DecodeString(env.Audio)
	case AudioStart:
		payload, err = json.Marshal(AudioStartPayload{SampleRate: env.SampleRate, Channels: env.Channels})
	case Transcript, LLMChunk:
		payload = []byte(env.Text)
	case ErrorFrame:
		payload = EncodeError(env.Code, env.Message)
	case Synthesize:
		payload, err = json.Marshal(SynthesizePayload{Text: env.Text, Exaggeration: env.Exaggeration, SpeechRate: env.SpeechRate})
	}
	if err != nil {
		return Frame{}, err
	}

	return Frame{Type: t, Flags: flags, Payload: payload}, nil
}
