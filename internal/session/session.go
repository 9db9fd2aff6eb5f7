package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voicewire/gateway/internal/audio"
	"github.com/voicewire/gateway/internal/chunker"
	"github.com/voicewire/gateway/internal/logging"
	"github.com/voicewire/gateway/internal/memory"
	"github.com/voicewire/gateway/internal/metrics"
	"github.com/voicewire/gateway/internal/providers"
	"github.com/voicewire/gateway/internal/resilience"
	"github.com/voicewire/gateway/internal/tools"
	"github.com/voicewire/gateway/internal/voicestyle"
	"github.com/voicewire/gateway/internal/wire"
)

// Providers bundles the egress adapters one session drives, selected at
// gateway startup per spec.md §6's provider-selection env vars.
type Providers struct {
	STT     providers.STT
	Fast    providers.FastLLM
	Main    providers.MainLLM
	TTS     providers.TTS
}

// Config tunes a Session's runtime limits, matching spec.md §6's
// configuration surface.
type Config struct {
	UserID                string
	ChunkMode             chunker.Mode
	OutboundQueueCapacity int
	CaptureMaxDuration    time.Duration
	SummaryStaleThreshold  int
	SummaryFallbackTopN    int
	ContextEntityLimit     int
	RecentConversationSize int
}

// sttHardTimeout and related stage timeouts are spec.md §5's "cancellation
// and timeouts" constants.
const (
	sttHardTimeout       = 8 * time.Second
	sttRetryMinBackoff   = 200 * time.Millisecond
	sttRetryMaxBackoff   = 500 * time.Millisecond
	mainFirstTokenTimeout = 15 * time.Second
	mainTotalTurnTimeout  = 60 * time.Second
	ttsChunkTimeout       = 10 * time.Second
)

// Session owns one WebSocket connection's state machine and the task tree
// rooted at it (spec.md §5: "one lightweight task per session ... all
// session tasks share a structured cancellation scope rooted at the
// session"). Grounded on the teacher's ManagedStream, generalized from its
// ad hoc event channel to the wire-typed OutboundQueue and spec.md's state
// table.
type Session struct {
	cfg       Config
	providers Providers
	memory    *memory.Engine
	tools     *tools.Registry
	metrics   *metrics.Metrics
	sttBreak  *resilience.Breaker
	log       logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	outbound *OutboundQueue

	mu         sync.Mutex
	state      State
	capture    *audio.RingBuffer
	sampleRate int
	channels   int
	style      voicestyle.Style
	turnCancel context.CancelFunc

	turnSeq atomic.Int64
}

// New builds a Session rooted at parentCtx. Cancelling parentCtx (socket
// close) tears down every child task within spec.md §5's 100ms bound.
func New(parentCtx context.Context, cfg Config, p Providers, mem *memory.Engine, reg *tools.Registry, m *metrics.Metrics, sttBreak *resilience.Breaker, log logging.Logger) *Session {
	ctx, cancel := context.WithCancel(parentCtx)
	if log == nil {
		log = logging.NoOpLogger{}
	}
	s := &Session{
		cfg:       cfg,
		providers: p,
		memory:    mem,
		tools:     reg,
		metrics:   m,
		sttBreak:  sttBreak,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
		style:     voicestyle.Get(voicestyle.Normal),
	}
	// Turn ids start at 1: id 0 is reserved for control-plane frames, which
	// the outbound queue never drops on barge-in.
	s.turnSeq.Store(1)
	s.outbound = NewOutboundQueue(cfg.OutboundQueueCapacity, func() int64 { return s.turnSeq.Load() })
	return s
}

// Outbound exposes the queue the connection's writer goroutine drains.
func (s *Session) Outbound() *OutboundQueue { return s.outbound }

// Close cancels the session's task tree (socket close, spec.md §4.10's
// "any -> socket close -> CLOSED").
func (s *Session) Close() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.cancel()
	s.outbound.Close()
}

// SetStyle applies a voice style selection (out-of-band, e.g. from a
// client control message not modeled in the core wire protocol).
func (s *Session) SetStyle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.style = voicestyle.Get(id)
}

// SendReady pushes the READY frame that opens a connection (spec.md §4.2:
// "send READY, enter IDLE" on accept).
func (s *Session) SendReady() {
	s.pushControl(wire.Frame{Type: wire.Ready})
}

// EmitProtocolError pushes a PROTOCOL error frame for a transport-level
// violation (malformed frame, unknown message type) detected before the
// frame could be decoded and handed to HandleFrame.
func (s *Session) EmitProtocolError(message string) {
	s.emitError(wire.CodeProtocol, message)
}

func (s *Session) pushControl(f wire.Frame) {
	s.metrics.RecordFrameOut(s.ctx, f.Type.String())
	if err := s.outbound.Push(s.ctx, 0, f); err != nil {
		s.log.Warn("failed to push control frame", "type", f.Type.String(), "error", err)
	}
}

func (s *Session) emitError(code, message string) {
	s.pushControl(wire.Frame{Type: wire.ErrorFrame, Payload: wire.EncodeError(code, message)})
}

func (s *Session) emitDone() {
	s.pushControl(wire.Frame{Type: wire.Done})
}

// HandleFrame processes one inbound frame, advancing the state machine per
// spec.md §4.10.
func (s *Session) HandleFrame(f wire.Frame) {
	s.metrics.RecordFrameIn(s.ctx, f.Type.String())

	switch f.Type {
	case wire.AudioStart:
		s.handleAudioStart(f)
	case wire.AudioChunk:
		s.handleAudioChunk(f)
	case wire.AudioEnd:
		s.handleAudioEnd()
	case wire.Synthesize:
		s.handleSynthesize(f)
	case wire.Ping:
		s.pushControl(wire.Frame{Type: wire.Pong})
	default:
		s.emitError(wire.CodeProtocol, fmt.Sprintf("unexpected frame type %s", f.Type))
	}
}

func (s *Session) handleAudioStart(f wire.Frame) {
	p, err := wire.DecodeAudioStart(f.Payload)
	if err != nil {
		s.emitError(wire.CodeProtocol, "malformed AUDIO_START payload")
		return
	}
	if p.SampleRate <= 0 || p.SampleRate > 48000 {
		s.emitError(wire.CodeInputInvalid, "sample rate out of range")
		return
	}

	s.mu.Lock()
	switch s.state {
	case StateGenerating, StateSpeaking:
		// Barge-in: cancel the in-flight turn and invalidate its queued
		// audio by advancing turnSeq (spec.md §4.10, P4).
		if s.turnCancel != nil {
			s.turnCancel()
		}
		s.turnSeq.Add(1)
		s.metrics.RecordBargeIn(s.ctx)
	}
	s.capture = audio.NewRingBuffer(p.SampleRate, p.Channels)
	s.sampleRate = p.SampleRate
	s.channels = p.Channels
	s.state = StateListening
	s.mu.Unlock()
}

func (s *Session) handleAudioChunk(f wire.Frame) {
	s.mu.Lock()
	if s.state != StateListening || s.capture == nil {
		s.mu.Unlock()
		return
	}
	s.capture.Append(f.Payload)
	tooLong := s.capture.DurationSeconds() > s.cfg.CaptureMaxDuration.Seconds()
	if tooLong {
		s.state = StateIdle
		s.capture = nil
	}
	s.mu.Unlock()

	if tooLong {
		s.emitError(wire.CodeInputTooLong, "capture buffer exceeded max duration")
	}
}

func (s *Session) handleAudioEnd() {
	s.mu.Lock()
	if s.state != StateListening || s.capture == nil {
		s.mu.Unlock()
		return
	}
	pcm := s.capture.Bytes()
	sampleRate := s.sampleRate
	s.capture = nil
	s.state = StateProcessing
	turnCtx, cancel := context.WithCancel(s.ctx)
	s.turnCancel = cancel
	turn := s.turnSeq.Load()
	style := s.style
	s.mu.Unlock()

	go s.processUtterance(turnCtx, turn, pcm, sampleRate, style)
}

func (s *Session) handleSynthesize(f wire.Frame) {
	p, err := wire.DecodeSynthesize(f.Payload)
	if err != nil {
		s.emitError(wire.CodeProtocol, "malformed SYNTHESIZE payload")
		return
	}
	s.mu.Lock()
	style := s.style
	s.mu.Unlock()

	exaggeration, speechRate := style.Prosody.Exaggeration, style.Prosody.SpeechRate
	if p.Exaggeration != 0 {
		exaggeration = p.Exaggeration
	}
	if p.SpeechRate != 0 {
		speechRate = p.SpeechRate
	}

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, ttsChunkTimeout)
		defer cancel()
		if err := s.synthesizeAndEnqueue(ctx, 0, p.Text, exaggeration, speechRate); err != nil {
			s.log.Warn("ad hoc synthesize failed", "error", err)
		}
	}()
}
