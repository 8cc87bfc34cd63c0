// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// Telegram transport, the generation and search API clients, persistence,
// concurrency limits, logging, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Transport selects how updates are received from Telegram.
const (
	TransportPolling = "polling"
	TransportWebhook = "webhook"
)

// Config holds all configuration values for the application.
type Config struct {
	// Telegram
	TelegramToken string // TELEGRAM_BOT_TOKEN (required)
	Transport     string // polling|webhook
	WebhookURL    string // public base URL, required for webhook transport
	Port          string // webhook/metrics listen port (just the number)
	GinMode       string // debug|release|test

	// Generation API (OpenAI-compatible chat completions endpoint)
	GenAIKey     string // GENAI_API_KEY (required)
	GenAIBaseURL string // override for self-hosted / compatible gateways
	TextModel    string // model used for plain text prompts
	VisionModel  string // model used for image and document prompts

	// Search API
	SerpAPIKey     string // SERPAPI_KEY; empty disables /websearch
	SerpAPIBaseURL string
	SearchResults  int // max results rendered per query

	// Persistence / files
	DBPath      string // SQLite path
	DownloadDir string // transient storage for fetched attachments

	// Concurrency & timeouts
	MaxConcurrent   int           // cap on concurrently handled updates
	GenerateTimeout time.Duration // per generation call
	SearchTimeout   time.Duration // per search call
	StoreTimeout    time.Duration // per persistence call
	DownloadTimeout time.Duration // per file download

	// Outbound rate limiting (Telegram sends)
	SendRPS   float64 // tokens per second (>= 0)
	SendBurst int     // bucket size (>= 1)

	// Logging / metrics
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	MetricsEnabled bool   // expose /metrics (standalone server in polling mode)

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
// A .env file in the working directory is loaded first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		// Telegram
		TelegramToken: getenv("TELEGRAM_BOT_TOKEN", ""),
		Transport:     strings.ToLower(getenv("TRANSPORT", TransportPolling)),
		WebhookURL:    strings.TrimRight(getenv("WEBHOOK_URL", ""), "/"),
		Port:          getenv("PORT", "8080"),
		GinMode:       strings.ToLower(getenv("GIN_MODE", "release")),

		// Generation API
		GenAIKey:     getenv("GENAI_API_KEY", ""),
		GenAIBaseURL: getenv("GENAI_BASE_URL", ""),
		TextModel:    getenv("GENAI_TEXT_MODEL", "gpt-4o-mini"),
		VisionModel:  getenv("GENAI_VISION_MODEL", "gpt-4o-mini"),

		// Search API
		SerpAPIKey:     getenv("SERPAPI_KEY", ""),
		SerpAPIBaseURL: getenv("SERPAPI_BASE_URL", "https://serpapi.com/search"),
		SearchResults:  getint("SEARCH_RESULTS", 5),

		// Persistence / files
		DBPath:      getenv("DB_PATH", "bot.db"),
		DownloadDir: getenv("DOWNLOAD_DIR", "downloads"),

		// Concurrency & timeouts
		MaxConcurrent:   getint("MAX_CONCURRENT", 32),
		GenerateTimeout: getdur("GENERATE_TIMEOUT", 60*time.Second),
		SearchTimeout:   getdur("SEARCH_TIMEOUT", 15*time.Second),
		StoreTimeout:    getdur("STORE_TIMEOUT", 5*time.Second),
		DownloadTimeout: getdur("DOWNLOAD_TIMEOUT", 30*time.Second),

		// Outbound rate limiting
		SendRPS:   getfloat("SEND_RPS", 25.0),
		SendBurst: getint("SEND_BURST", 5),

		// Logging / metrics
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		MetricsEnabled: getbool("METRICS_ENABLED", false),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-telegram-ai-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return cfg, errors.New("TELEGRAM_BOT_TOKEN must not be empty")
	}
	switch cfg.Transport {
	case TransportPolling, TransportWebhook:
	default:
		return cfg, errors.New("TRANSPORT must be one of: polling, webhook")
	}
	if cfg.Transport == TransportWebhook && cfg.WebhookURL == "" {
		return cfg, errors.New("WEBHOOK_URL must be set for webhook transport")
	}
	if strings.TrimSpace(cfg.GenAIKey) == "" {
		return cfg, errors.New("GENAI_API_KEY must not be empty")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.DownloadDir) == "" {
		return cfg, errors.New("DOWNLOAD_DIR must not be empty")
	}
	if cfg.SearchResults < 1 {
		return cfg, errors.New("SEARCH_RESULTS must be >= 1")
	}
	if cfg.MaxConcurrent < 1 {
		return cfg, errors.New("MAX_CONCURRENT must be >= 1")
	}
	if cfg.GenerateTimeout <= 0 || cfg.SearchTimeout <= 0 || cfg.StoreTimeout <= 0 || cfg.DownloadTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.SendRPS < 0 {
		return cfg, errors.New("SEND_RPS must be >= 0")
	}
	if cfg.SendBurst < 1 {
		return cfg, errors.New("SEND_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
