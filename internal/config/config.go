// Package config loads the gateway's configuration from environment
// variables, matching the teacher's cmd/agent/main.go pattern of
// godotenv.Load() followed by os.Getenv reads, generalized into a typed
// struct instead of inlined locals.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the gateway's full runtime configuration, covering every
// environment variable enumerated in spec §6.
type Config struct {
	WSAddr      string
	MetricsAddr string
	LogLevel    string

	STTEndpoint     string // informational; concrete providers use their own base URLs
	TTSEndpoint     string
	LLMMainEndpoint string
	LLMFastEndpoint string

	MemoryDBPath string

	ConversationTTL    time.Duration
	CaptureMaxDuration time.Duration
	OutboundQueueCap   int
	ChunkModeDefault   string

	STTProvider     string
	LLMMainProvider string
	LLMFastProvider string
	TTSProvider     string

	GroqAPIKey       string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	GoogleAPIKey     string
	DeepgramAPIKey   string
	AssemblyAIAPIKey string
	LokutorAPIKey    string

	DomainWalletEndpoint string
	DomainFleetEndpoint  string
}

// Load reads configuration from the process environment (loading a local
// .env file first, if present — identical to the teacher's behavior).
func Load() Config {
	if err := godotenv.Load(); err != nil {
		// No .env file is normal in production; nothing to report.
	}

	return Config{
		WSAddr:      getenv("VOICE_WS_ADDR", ":8443"),
		MetricsAddr: getenv("METRICS_ADDR", ":9090"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		STTEndpoint:     os.Getenv("STT_ENDPOINT"),
		TTSEndpoint:     os.Getenv("TTS_ENDPOINT"),
		LLMMainEndpoint: os.Getenv("LLM_MAIN_ENDPOINT"),
		LLMFastEndpoint: os.Getenv("LLM_FAST_ENDPOINT"),

		MemoryDBPath: getenv("MEMORY_DB_PATH", "voicegateway.db"),

		ConversationTTL:    getenvHours("CONVERSATION_TTL_HOURS", 48),
		CaptureMaxDuration: getenvSeconds("CAPTURE_MAX_SECONDS", 60),
		OutboundQueueCap:   getenvInt("OUTBOUND_QUEUE_CAPACITY", 64),
		ChunkModeDefault:   getenv("CHUNK_MODE_DEFAULT", "sentence"),

		STTProvider:     getenv("STT_PROVIDER", "groq"),
		LLMMainProvider: getenv("LLM_MAIN_PROVIDER", "groq"),
		LLMFastProvider: getenv("LLM_FAST_PROVIDER", "groq"),
		TTSProvider:     getenv("TTS_PROVIDER", "lokutor"),

		GroqAPIKey:       os.Getenv("GROQ_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		DeepgramAPIKey:   os.Getenv("DEEPGRAM_API_KEY"),
		AssemblyAIAPIKey: os.Getenv("ASSEMBLYAI_API_KEY"),
		LokutorAPIKey:    os.Getenv("LOKUTOR_API_KEY"),

		DomainWalletEndpoint: os.Getenv("DOMAIN_WALLET_ENDPOINT"),
		DomainFleetEndpoint:  os.Getenv("DOMAIN_FLEET_ENDPOINT"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvHours(key string, fallbackHours int) time.Duration {
	return time.Duration(getenvInt(key, fallbackHours)) * time.Hour
}

func getenvSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getenvInt(key, fallbackSeconds)) * time.Second
}
