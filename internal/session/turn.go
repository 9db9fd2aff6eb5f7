package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/voicewire/gateway/internal/chunker"
	"github.com/voicewire/gateway/internal/fastlayer"
	"github.com/voicewire/gateway/internal/mainlayer"
	"github.com/voicewire/gateway/internal/memory"
	"github.com/voicewire/gateway/internal/providers"
	"github.com/voicewire/gateway/internal/resilience"
	"github.com/voicewire/gateway/internal/voicestyle"
	"github.com/voicewire/gateway/internal/wire"
)

// turnRuntime holds the state scoped to one in-flight turn: the fast and
// main layer pipelines share it to coordinate the SPEAKING transition and
// the TTS audio ordering guarantee (spec.md §5's "fast layer audio is
// always fully enqueued before any main layer audio for the same turn").
type turnRuntime struct {
	session *Session
	ctx     context.Context
	turn    int64
	style   voicestyle.Style

	speakingOnce sync.Once
}

func (tr *turnRuntime) ensureSpeaking() {
	tr.speakingOnce.Do(func() {
		tr.session.mu.Lock()
		if tr.session.turnSeq.Load() == tr.turn {
			tr.session.state = StateSpeaking
		}
		tr.session.mu.Unlock()
		_ = tr.session.pushTagged(tr.turn, wire.Frame{
			Type:    wire.AudioStart,
			Payload: wire.EncodeAudioStart(audioSampleRate, 1),
		})
	})
}

// synthesizeChunk synthesizes one text chunk and enqueues its audio,
// transitioning the session to SPEAKING before the turn's first audio frame
// (once per turn, not once per chunk).
func (tr *turnRuntime) synthesizeChunk(text string, exaggeration, speechRate float64) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(tr.ctx, ttsChunkTimeout)
	defer cancel()

	start := time.Now()
	err := tr.session.providers.TTS.StreamSynthesize(ctx, text, exaggeration, speechRate, func(chunk providers.TTSChunk) error {
		tr.ensureSpeaking()
		return tr.session.pushTagged(tr.turn, wire.Frame{Type: wire.TTSAudio, Payload: chunk.PCM})
	})
	tr.session.metrics.RecordTTSChunkDuration(tr.ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		tr.session.metrics.RecordProviderError(tr.ctx, "tts", classifyErr(err))
	}
	return err
}

// runFastLayer resolves and speaks the acknowledgment, closing the returned
// channel once it has finished enqueuing (or decided not to run at all).
func (tr *turnRuntime) runFastLayer(transcript string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		if !fastlayer.NeedsAcknowledgment(transcript, tr.style) {
			return
		}

		start := time.Now()
		result := fastlayer.Run(tr.ctx, transcript, tr.session.providers.Fast)
		tr.session.metrics.RecordFastLayerDuration(tr.ctx, float64(time.Since(start).Milliseconds()))

		c := chunker.New(chunker.Config{Mode: tr.session.cfg.ChunkMode})
		chunks := c.Feed(result.Text)
		chunks = append(chunks, c.Flush()...)
		for _, chunk := range chunks {
			if err := tr.synthesizeChunk(chunk, tr.style.Prosody.Exaggeration, tr.style.Prosody.SpeechRate); err != nil {
				tr.session.log.Warn("fast layer synthesis failed", "error", err)
				return
			}
		}
	}()
	return done
}

// runMainLayer drives the authoritative response. Its first TTS chunk
// blocks on fastDone so the fast layer's audio is always fully enqueued
// first. Deltas before that first chunk go out as LLM_CHUNK at once; the
// wait runs inside the stream callback, so while it lasts the model stream
// and later LLM_CHUNK deltas wait too.
func (tr *turnRuntime) runMainLayer(fastDone <-chan struct{}, systemPrompt string, messages []providers.Message) (string, error) {
	var waitForFast sync.Once

	onDelta := func(delta string) error {
		return tr.session.pushTagged(tr.turn, wire.Frame{Type: wire.LLMChunk, Payload: []byte(delta)})
	}
	onChunk := func(text string) error {
		waitForFast.Do(func() {
			select {
			case <-fastDone:
			case <-tr.ctx.Done():
			}
		})
		return tr.synthesizeChunk(text, tr.style.Prosody.Exaggeration, tr.style.Prosody.SpeechRate)
	}

	start := time.Now()
	finalText, err := mainlayer.Run(
		tr.ctx,
		tr.session.providers.Main,
		tr.session.tools,
		tr.session.metrics,
		tr.session.cfg.UserID,
		systemPrompt,
		messages,
		chunker.Config{Mode: tr.session.cfg.ChunkMode},
		onDelta,
		onChunk,
	)
	tr.session.metrics.RecordMainLayerDuration(tr.ctx, float64(time.Since(start).Milliseconds()))
	return finalText, err
}

// audioSampleRate is the fixed PCM sample rate the TTS provider emits
// (the rate providers/tts/lokutor.go requests; it is not configurable).
const audioSampleRate = 24000

// processUtterance runs one full turn: STT, the fast/main layer race, and
// the turn-completion transition back to IDLE (spec.md §4.10/§5).
func (s *Session) processUtterance(ctx context.Context, turn int64, pcm []byte, sampleRate int, style voicestyle.Style) {
	defer s.finishTurn(turn)

	transcript, err := s.transcribe(ctx, pcm, sampleRate)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.metrics.RecordProviderError(ctx, "stt", classifyErr(err))
		if providers.IsFatal(err) {
			s.emitError(wire.CodeUpstreamFatal, "speech-to-text unavailable")
		} else {
			s.emitError(wire.CodeUpstream, "speech-to-text failed")
		}
		return
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		s.emitDone()
		return
	}
	s.pushTagged(turn, wire.Frame{Type: wire.Transcript, Flags: wire.FlagIsFinal, Payload: []byte(transcript)})

	userID := s.cfg.UserID
	handle := s.memory.For(userID)
	if err := handle.AppendTurn(ctx, memory.RoleUser, transcript); err != nil {
		s.log.Warn("failed to append user turn", "error", err)
	}

	entities, summary, err := handle.ContextSnapshot(ctx, s.cfg.ContextEntityLimit, s.cfg.SummaryStaleThreshold)
	if err != nil {
		s.log.Warn("failed to read memory context", "error", err)
	}
	systemPrompt := BuildSystemPrompt(BuildUserContextBlock(entities, summary), style)

	recent, err := handle.GetRecentConversation(ctx, s.cfg.RecentConversationSize)
	if err != nil {
		s.log.Warn("failed to read recent conversation", "error", err)
	}
	messages := toProviderMessages(recent, transcript)

	s.mu.Lock()
	s.state = StateGenerating
	s.mu.Unlock()

	tr := &turnRuntime{session: s, ctx: ctx, turn: turn, style: style}

	fastDone := tr.runFastLayer(transcript)
	finalText, err := tr.runMainLayer(fastDone, systemPrompt, messages)
	<-fastDone

	if err != nil && ctx.Err() == nil {
		var slow ErrSlowClient
		if errors.As(err, &slow) {
			s.emitError(wire.CodeSlowClient, "client is not draining audio")
			return
		}
		s.metrics.RecordProviderError(ctx, "llm", classifyErr(err))
		if providers.IsFatal(err) {
			s.emitError(wire.CodeUpstreamFatal, "assistant model unavailable")
		} else {
			s.emitError(wire.CodeUpstream, "assistant model failed")
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	if strings.TrimSpace(finalText) != "" {
		if err := handle.AppendTurn(ctx, memory.RoleAssistant, finalText); err != nil {
			s.log.Warn("failed to append assistant turn", "error", err)
		}
	}

	s.mu.Lock()
	if s.turnSeq.Load() == turn {
		s.state = StateIdle
	}
	s.mu.Unlock()

	s.pushTagged(turn, wire.Frame{Type: wire.AudioEnd})
	s.emitDone()
}

// finishTurn clears turnCancel once a turn (superseding or naturally
// completing) is done running, so a later HandleFrame doesn't call a
// stale cancel func. A turn that ended early (empty transcript or an
// error) is still in PROCESSING, GENERATING or SPEAKING; it goes back to
// IDLE here.
func (s *Session) finishTurn(turn int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turnSeq.Load() == turn {
		s.turnCancel = nil
		switch s.state {
		case StateProcessing, StateGenerating, StateSpeaking:
			s.state = StateIdle
		}
	}
}

// transcribe runs STT under the breaker, the single-retry rule, and the
// hard timeout, matching spec.md §4.4.
func (s *Session) transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, sttHardTimeout)
	defer cancel()

	start := time.Now()
	var transcript string
	err := s.sttBreak.Execute(func() (bool, error) {
		callErr := resilience.RetryOnce(ctx, sttRetryMinBackoff, sttRetryMaxBackoff, func() error {
			var err error
			transcript, err = s.providers.STT.Transcribe(ctx, pcm, sampleRate)
			return err
		})
		return providers.IsFatal(callErr), callErr
	})
	s.metrics.RecordSTTDuration(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return "", err
	}
	return transcript, nil
}

// synthesizeAndEnqueue drives one ad hoc synthesis request outside of the
// STT->fast/main pipeline (spec.md §4.1's client-initiated SYNTHESIZE
// frame), reusing the same per-chunk timeout and frame shape.
func (s *Session) synthesizeAndEnqueue(ctx context.Context, turn int64, text string, exaggeration, speechRate float64) error {
	start := time.Now()
	err := s.providers.TTS.StreamSynthesize(ctx, text, exaggeration, speechRate, func(chunk providers.TTSChunk) error {
		return s.pushTagged(turn, wire.Frame{Type: wire.TTSAudio, Payload: chunk.PCM})
	})
	s.metrics.RecordTTSChunkDuration(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.metrics.RecordProviderError(ctx, "tts", classifyErr(err))
	}
	return err
}

func (s *Session) pushTagged(turn int64, f wire.Frame) error {
	s.metrics.RecordFrameOut(s.ctx, f.Type.String())
	return s.outbound.Push(s.ctx, turn, f)
}

func toProviderMessages(recent []memory.Turn, latestTranscript string) []providers.Message {
	out := make([]providers.Message, 0, len(recent)+1)
	for _, t := range recent {
		out = append(out, providers.Message{Role: string(t.Role), Content: t.Content})
	}
	out = append(out, providers.Message{Role: string(memory.RoleUser), Content: latestTranscript})
	return out
}

func classifyErr(err error) string {
	if err == nil {
		return ""
	}
	if providers.IsFatal(err) {
		return "fatal"
	}
	return "transient"
}
