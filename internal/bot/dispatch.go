package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// chatQueueDepth bounds each per-chat queue. Telegram delivers updates for
// one chat roughly one at a time, so depth only matters when a handler is
// slower than the user; overflow drops the update (at-least-once source).
const chatQueueDepth = 16

// Dispatcher runs one logical task per inbound update. Updates for the same
// chat identity are handled strictly in arrival order by a per-chat worker;
// across chats, workers run concurrently up to a global cap, so burst load
// cannot spawn unbounded tasks.
type Dispatcher struct {
	ctx    context.Context
	handle func(context.Context, tgbotapi.Update)
	sem    chan struct{}
	log    zerolog.Logger

	mu     sync.Mutex
	queues map[int64]chan tgbotapi.Update
	wg     sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher handling updates with handle, capped
// at maxConcurrent simultaneous handlers. ctx cancellation stops all
// workers; Wait blocks until they have drained.
func NewDispatcher(ctx context.Context, maxConcurrent int, handle func(context.Context, tgbotapi.Update), log zerolog.Logger) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		ctx:    ctx,
		handle: handle,
		sem:    make(chan struct{}, maxConcurrent),
		log:    log.With().Str("component", "dispatcher").Logger(),
		queues: make(map[int64]chan tgbotapi.Update),
	}
}

// Enqueue hands one update to its chat's worker, creating the worker on
// first contact. Updates without a message (nothing to classify) and
// updates overflowing a stuck chat queue are dropped.
func (d *Dispatcher) Enqueue(update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	d.mu.Lock()
	q, ok := d.queues[chatID]
	if !ok {
		q = make(chan tgbotapi.Update, chatQueueDepth)
		d.queues[chatID] = q
		d.wg.Add(1)
		go d.drain(chatID, q)
	}
	d.mu.Unlock()

	select {
	case q <- update:
	case <-d.ctx.Done():
	default:
		d.log.Warn().Int64("chat_id", chatID).Msg("chat queue full, update dropped")
	}
}

// drain processes one chat's updates in FIFO order. The semaphore is
// acquired per update, so a quiet chat holds no slot.
func (d *Dispatcher) drain(chatID int64, q <-chan tgbotapi.Update) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case update := <-q:
			select {
			case d.sem <- struct{}{}:
			case <-d.ctx.Done():
				return
			}
			d.handle(d.ctx, update)
			<-d.sem
		}
	}
}

// Wait blocks until all per-chat workers have observed cancellation.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
