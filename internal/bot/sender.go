package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// telegramSender is the slice of the Telegram API the Sender needs;
// *tgbotapi.BotAPI satisfies it.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender delivers replies through Telegram behind a process-wide token
// bucket, so burst load cannot trip the platform's send limits.
// Safe for concurrent use.
type Sender struct {
	api     telegramSender
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewSender constructs a Sender with the given tokens-per-second and burst
// size. rps <= 0 disables limiting.
func NewSender(api telegramSender, rps float64, burst int, log zerolog.Logger) *Sender {
	lim := rate.Limit(rate.Inf)
	if rps > 0 {
		lim = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &Sender{
		api:     api,
		limiter: rate.NewLimiter(lim, burst),
		log:     log.With().Str("component", "sender").Logger(),
	}
}

// Send delivers a plain-text reply.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	return s.deliver(ctx, tgbotapi.NewMessage(chatID, text))
}

// SendMarkdown delivers a Markdown-formatted reply.
func (s *Sender) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return s.deliver(ctx, msg)
}

// SendContactPrompt delivers text together with a one-time reply keyboard
// carrying a single contact-request button.
func (s *Sender) SendContactPrompt(ctx context.Context, chatID int64, text, buttonLabel string) error {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(buttonLabel)),
	)
	kb.OneTimeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	return s.deliver(ctx, msg)
}

func (s *Sender) deliver(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.api.Send(msg)
	return err
}
