// Package transport receives Telegram updates and feeds them to the
// dispatcher. Two mutually exclusive modes are provided: long polling and a
// webhook HTTP server. Neither mode interprets updates; classification and
// handling live one layer down.
package transport

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// pollTimeout is the long-poll hold, in seconds, passed to getUpdates.
const pollTimeout = 60

// enqueuer accepts one inbound update for asynchronous handling;
// *bot.Dispatcher satisfies it.
type enqueuer interface {
	Enqueue(update tgbotapi.Update)
}

// updateSource is the slice of the Telegram API the polling loop needs;
// *tgbotapi.BotAPI satisfies it.
type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RunPolling consumes updates via long polling until ctx is cancelled,
// handing each one to q. It blocks for the lifetime of the loop and returns
// nil on a clean shutdown.
func RunPolling(ctx context.Context, api updateSource, q enqueuer, log zerolog.Logger) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout

	updates := api.GetUpdatesChan(u)
	log.Info().Msg("polling for updates")

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			log.Info().Msg("polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			q.Enqueue(update)
		}
	}
}
