// Command gateway runs the voice gateway: a WebSocket server accepting
// browser clients at /ws/voice, driving STT, the fast/main layer race, the
// memory engine, and TTS per connection, generalized from the teacher's
// cmd/agent (a single local-mic CLI loop) into a multi-connection server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"

	"github.com/voicewire/gateway/internal/chunker"
	"github.com/voicewire/gateway/internal/config"
	"github.com/voicewire/gateway/internal/domain"
	"github.com/voicewire/gateway/internal/logging"
	"github.com/voicewire/gateway/internal/memory"
	"github.com/voicewire/gateway/internal/metrics"
	"github.com/voicewire/gateway/internal/providers"
	"github.com/voicewire/gateway/internal/providers/llm"
	"github.com/voicewire/gateway/internal/providers/stt"
	"github.com/voicewire/gateway/internal/providers/tts"
	"github.com/voicewire/gateway/internal/resilience"
	"github.com/voicewire/gateway/internal/session"
	"github.com/voicewire/gateway/internal/tools"
	"github.com/voicewire/gateway/internal/wire"
)

func main() {
	cfg := config.Load()
	log := logging.NewSlog(cfg.LogLevel)

	sttAdapter, err := buildSTT(cfg)
	if err != nil {
		fatal(log, "build stt provider", err)
	}
	fastAdapter, err := buildFastLLM(cfg)
	if err != nil {
		fatal(log, "build fast llm provider", err)
	}
	mainAdapter, err := buildMainLLM(cfg)
	if err != nil {
		fatal(log, "build main llm provider", err)
	}
	ttsAdapter, err := buildTTS(cfg)
	if err != nil {
		fatal(log, "build tts provider", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := memory.Open(ctx, cfg.MemoryDBPath, log)
	if err != nil {
		fatal(log, "open memory store", err)
	}
	defer store.Close()
	engine := memory.NewEngine(store)

	registry := tools.NewRegistry()
	tools.RegisterMemoryTools(registry, engine, tools.DefaultMemoryToolsConfig())
	domain.RegisterWalletBalance(registry, cfg.DomainWalletEndpoint)
	domain.RegisterFleetStatus(registry, cfg.DomainFleetEndpoint)

	m, shutdownMetrics, err := metrics.Init(ctx)
	if err != nil {
		fatal(log, "init metrics", err)
	}
	defer shutdownMetrics(context.Background())

	sttBreaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "stt", Logger: log})

	go runMemoryPruner(ctx, engine, cfg.ConversationTTL, log)

	srv := &server{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		memory:   engine,
		tools:    registry,
		sttBreak: sttBreaker,
		providers: session.Providers{
			STT:  sttAdapter,
			Fast: fastAdapter,
			Main: mainAdapter,
			TTS:  ttsAdapter,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/voice", srv.handleWS)
	mux.Handle("/metrics", metrics.Handler())

	httpSrv := &http.Server{Addr: cfg.WSAddr, Handler: mux}
	go func() {
		log.Info("gateway listening", "addr", cfg.WSAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
}

func fatal(log logging.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}

func runMemoryPruner(ctx context.Context, engine *memory.Engine, ttl time.Duration, log logging.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := engine.PruneExpiredTurns(ctx, ttl)
			if err != nil {
				log.Warn("conversation ttl sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("pruned expired conversation turns", "count", n)
			}
		}
	}
}

// server holds the shared state every accepted connection's Session is
// built from (spec.md §4.2's Session lifecycle: one per accepted socket).
type server struct {
	cfg       config.Config
	log       logging.Logger
	metrics   *metrics.Metrics
	memory    *memory.Engine
	tools     *tools.Registry
	sttBreak  *resilience.Breaker
	providers session.Providers
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("userId")
	binary := q.Get("binary") == "true"

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	if userID == "" {
		conn.Close(websocket.StatusCode(4001), "missing userId query parameter")
		return
	}

	ctx := r.Context()

	sess := session.New(ctx, session.Config{
		UserID:                 userID,
		ChunkMode:              chunker.Mode(s.cfg.ChunkModeDefault),
		OutboundQueueCapacity:  s.cfg.OutboundQueueCap,
		CaptureMaxDuration:     s.cfg.CaptureMaxDuration,
		SummaryStaleThreshold:  10,
		SummaryFallbackTopN:    10,
		ContextEntityLimit:     20,
		RecentConversationSize: 10,
	}, s.providers, s.memory, s.tools, s.metrics, s.sttBreak, s.log)
	defer sess.Close()

	writerDone := make(chan struct{})
	go s.writeLoop(ctx, conn, sess, binary, writerDone)

	sess.SendReady()

	closeCode := websocket.StatusNormalClosure
	closeReason := ""
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		f, err := decodeFrame(typ, data, binary)
		if err != nil {
			sess.EmitProtocolError(err.Error())
			closeCode, closeReason = websocket.StatusCode(4002), "protocol violation"
			break
		}
		sess.HandleFrame(f)
	}

	// Give the writer a chance to flush any frame queued right before the
	// break (the PROTOCOL error, or a final DONE) before the close frame
	// goes out.
	sess.Close()
	<-writerDone
	conn.Close(closeCode, closeReason)
}

func (s *server) writeLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session, binary bool, done chan<- struct{}) {
	defer close(done)
	for {
		f, ok := sess.Outbound().Next(ctx)
		if !ok {
			return
		}
		if err := writeFrame(ctx, conn, f, binary); err != nil {
			s.log.Warn("write to client failed", "error", err)
			return
		}
	}
}

func decodeFrame(typ websocket.MessageType, data []byte, binary bool) (wire.Frame, error) {
	if binary && typ == websocket.MessageBinary {
		f, err := wire.Decode(data)
		if err == nil && !wire.KnownType(f.Type) {
			return f, fmt.Errorf("unknown message type %s", f.Type)
		}
		return f, err
	}
	return wire.DecodeJSON(data)
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f wire.Frame, binary bool) error {
	if binary {
		return conn.Write(ctx, websocket.MessageBinary, wire.Encode(f))
	}
	payload, err := wire.EncodeJSON(f)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

func buildSTT(cfg config.Config) (providers.STT, error) {
	switch cfg.STTProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai STT")
		}
		return stt.NewOpenAI(cfg.OpenAIAPIKey, "whisper-1"), nil
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY must be set for deepgram STT")
		}
		return stt.NewDeepgram(cfg.DeepgramAPIKey), nil
	case "assemblyai":
		if cfg.AssemblyAIAPIKey == "" {
			return nil, fmt.Errorf("ASSEMBLYAI_API_KEY must be set for assemblyai STT")
		}
		return stt.NewAssemblyAI(cfg.AssemblyAIAPIKey), nil
	case "groq", "":
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for groq STT")
		}
		return stt.NewGroq(cfg.GroqAPIKey, "whisper-large-v3-turbo"), nil
	default:
		return nil, fmt.Errorf("unknown STT_PROVIDER %q", cfg.STTProvider)
	}
}

func buildFastLLM(cfg config.Config) (providers.FastLLM, error) {
	switch cfg.LLMFastProvider {
	case "google":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY must be set for google fast LLM")
		}
		return llm.NewGoogleFast(cfg.GoogleAPIKey, ""), nil
	case "groq", "":
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for groq fast LLM")
		}
		return llm.NewGroq(cfg.GroqAPIKey, ""), nil
	default:
		return nil, fmt.Errorf("unknown LLM_FAST_PROVIDER %q (fast layer requires a one-shot provider)", cfg.LLMFastProvider)
	}
}

func buildMainLLM(cfg config.Config) (providers.MainLLM, error) {
	switch cfg.LLMMainProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai main LLM")
		}
		return llm.NewOpenAIMain(cfg.OpenAIAPIKey, ""), nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set for anthropic main LLM")
		}
		return llm.NewAnthropicMain(cfg.AnthropicAPIKey, ""), nil
	case "google":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY must be set for google main LLM")
		}
		return llm.NewGoogleMain(cfg.GoogleAPIKey, ""), nil
	case "groq", "":
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for groq main LLM")
		}
		return llm.NewGroqMain(cfg.GroqAPIKey, ""), nil
	default:
		return nil, fmt.Errorf("unknown LLM_MAIN_PROVIDER %q", cfg.LLMMainProvider)
	}
}

func buildTTS(cfg config.Config) (providers.TTS, error) {
	switch cfg.TTSProvider {
	case "lokutor", "":
		if cfg.LokutorAPIKey == "" {
			return nil, fmt.Errorf("LOKUTOR_API_KEY must be set")
		}
		return tts.NewLokutor(cfg.LokutorAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown TTS_PROVIDER %q", cfg.TTSProvider)
	}
}
