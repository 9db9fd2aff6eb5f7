// Package tts adapts third-party speech-synthesis APIs to the
// providers.TTS contract.
package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/voicewire/gateway/internal/providers"
)

// sampleRate is the fixed PCM rate Lokutor emits on its binary frames.
const sampleRate = 24000

// Lokutor holds a persistent websocket connection to Lokutor's streaming
// synthesis endpoint, ported from the teacher's pkg/providers/tts/lokutor.go
// and generalized from the teacher's voice/lang request fields to the
// spec's exaggeration/speechRate prosody knobs (internal/voicestyle).
type Lokutor struct {
	apiKey string
	host   string
	scheme string
	mu     sync.Mutex
	conn   *websocket.Conn
}

func NewLokutor(apiKey string) *Lokutor {
	return &Lokutor{apiKey: apiKey, host: "api.lokutor.com", scheme: "wss"}
}

func (t *Lokutor) Name() string { return "lokutor" }

func (t *Lokutor) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lokutor: %w", err)
	}

	t.conn = conn
	return conn, nil
}

func (t *Lokutor) StreamSynthesize(ctx context.Context, text string, exaggeration, speechRate float64, onChunk func(providers.TTSChunk) error) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req := map[string]any{
		"text":         text,
		"exaggeration": exaggeration,
		"speed":        speechRate,
		"steps":        5,
		"version":      "versa-1.0",
	}

	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("failed to read from lokutor: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(providers.TTSChunk{PCM: payload, SampleRate: sampleRate}); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("lokutor error: %s", msg)
			}
		}
	}
}

func (t *Lokutor) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}
