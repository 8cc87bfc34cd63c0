package transport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-telegram-ai-bot/internal/config"
	// Registers the bot's collectors with the default registry.
	_ "github.com/tbourn/go-telegram-ai-bot/internal/metrics"
)

// webhookRegistrar is the slice of the Telegram API needed to register the
// webhook; *tgbotapi.BotAPI satisfies it.
type webhookRegistrar interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// RegisterWebhook points Telegram at the public webhook endpoint. The route
// path embeds the bot token, so only Telegram (which knows the token) can
// reach the update handler.
func RegisterWebhook(api webhookRegistrar, cfg config.Config) error {
	wh, err := tgbotapi.NewWebhook(cfg.WebhookURL + "/" + cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}
	return nil
}

// NewWebhookHandler builds the gin engine serving the webhook endpoint, a
// liveness probe, and (when enabled) Prometheus metrics.
func NewWebhookHandler(cfg config.Config, q enqueuer, log zerolog.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/"+cfg.TelegramToken, func(c *gin.Context) {
		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			log.Warn().Err(err).Msg("malformed webhook payload")
			c.String(http.StatusBadRequest, "bad request")
			return
		}
		q.Enqueue(update)
		c.String(http.StatusOK, "OK")
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return r
}

// NewServer wraps a handler in an http.Server with sane timeouts. The
// webhook body is small and Telegram retries on failure, so short limits
// are safe.
func NewServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// NewMetricsHandler serves /metrics and /healthz only, for polling mode
// where no webhook endpoint exists.
func NewMetricsHandler(cfg config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}
