// Command bot runs the Telegram AI relay: it receives updates over polling
// or a webhook, routes each one through the update router, and serves
// operational endpoints (health, metrics) when configured.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-telegram-ai-bot/internal/bot"
	"github.com/tbourn/go-telegram-ai-bot/internal/config"
	"github.com/tbourn/go-telegram-ai-bot/internal/extract"
	"github.com/tbourn/go-telegram-ai-bot/internal/genai"
	"github.com/tbourn/go-telegram-ai-bot/internal/observability"
	"github.com/tbourn/go-telegram-ai-bot/internal/repo"
	"github.com/tbourn/go-telegram-ai-bot/internal/services"
	"github.com/tbourn/go-telegram-ai-bot/internal/transport"
	"github.com/tbourn/go-telegram-ai-bot/internal/websearch"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	cfg := config.MustLoad()

	log := newLogger(cfg)
	log.Info().Str("version", version).Str("transport", cfg.Transport).Msg("starting bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database failed")
	}

	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DownloadDir).Msg("create download dir failed")
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram authorization failed")
	}
	log.Info().Str("username", api.Self.UserName).Msg("authorized on telegram")

	store := services.NewStore(db, log)
	gen := genai.NewClient(cfg.GenAIKey, cfg.GenAIBaseURL, cfg.TextModel, cfg.VisionModel, log)

	// A missing search key disables /websearch rather than failing startup.
	var search bot.Searcher
	if cfg.SerpAPIKey != "" {
		search = websearch.NewClient(cfg.SerpAPIBaseURL, cfg.SerpAPIKey, cfg.SearchTimeout, log)
	} else {
		log.Warn().Msg("SERPAPI_KEY not set, /websearch disabled")
	}

	router := bot.NewRouter(
		store,
		gen,
		search,
		extract.New(),
		bot.NewFileDownloader(api, cfg.TelegramToken, cfg.DownloadDir, log),
		bot.NewSender(api, cfg.SendRPS, cfg.SendBurst, log),
		bot.Timeouts{
			Generate: cfg.GenerateTimeout,
			Search:   cfg.SearchTimeout,
			Store:    cfg.StoreTimeout,
			Download: cfg.DownloadTimeout,
		},
		cfg.SearchResults,
		log,
	)

	dispatcher := bot.NewDispatcher(ctx, cfg.MaxConcurrent, router.HandleUpdate, log)

	switch cfg.Transport {
	case config.TransportWebhook:
		runWebhook(ctx, cfg, api, dispatcher, log)
	default:
		runPolling(ctx, cfg, api, dispatcher, log)
	}

	dispatcher.Wait()
	log.Info().Msg("bot stopped")
}

// runPolling blocks on the long-poll loop; when metrics are enabled a
// standalone HTTP server exposes them alongside the liveness probe.
func runPolling(ctx context.Context, cfg config.Config, api *tgbotapi.BotAPI, d *bot.Dispatcher, log zerolog.Logger) {
	var srv *http.Server
	if cfg.MetricsEnabled {
		srv = transport.NewServer(cfg.Port, transport.NewMetricsHandler(cfg))
		go func() {
			log.Info().Str("port", cfg.Port).Msg("metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	if err := transport.RunPolling(ctx, api, d, log); err != nil {
		log.Error().Err(err).Msg("polling loop failed")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// runWebhook registers the webhook with Telegram and serves it until ctx is
// cancelled.
func runWebhook(ctx context.Context, cfg config.Config, api *tgbotapi.BotAPI, d *bot.Dispatcher, log zerolog.Logger) {
	if err := transport.RegisterWebhook(api, cfg); err != nil {
		log.Fatal().Err(err).Msg("webhook registration failed")
	}

	srv := transport.NewServer(cfg.Port, transport.NewWebhookHandler(cfg, d, log))
	go func() {
		log.Info().Str("port", cfg.Port).Msg("webhook server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("webhook server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("webhook server shutdown failed")
	}
}

// newLogger builds the process logger from config: leveled, UTC timestamps,
// optionally pretty for local development.
func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Str("service", "telegram-ai-bot").Logger()
}
