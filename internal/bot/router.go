// Package bot implements the update router: the component that classifies
// each inbound Telegram update into exactly one content kind, dispatches it
// to exactly one handler, and enforces the side-effect contract around user
// registration and record persistence.
//
// The router is stateless across updates; all durable state lives behind the
// Store. Collaborators are injected as interfaces constructed once at
// process start — no ambient globals. Every collaborator failure is caught
// here and converted to a fixed user-facing reply; nothing propagates to the
// transport layer.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-telegram-ai-bot/internal/metrics"
	"github.com/tbourn/go-telegram-ai-bot/internal/websearch"
)

// Update kinds, in classification precedence order. An update matching none
// of them is dropped silently: no reply, no persistence.
const (
	kindCommand  = "command"
	kindContact  = "contact"
	kindDocument = "document"
	kindPhoto    = "photo"
	kindText     = "text"
	kindDropped  = "dropped"
)

// pdfMimeType is the only document MIME type the bot accepts.
const pdfMimeType = "application/pdf"

// Store is the persistence gateway contract required by the router.
// It is the sole writer to the document store.
type Store interface {
	// UpsertUser registers a chat identity idempotently; reports creation.
	UpsertUser(ctx context.Context, chatID int64, firstName, username string) (bool, error)

	// SetPhone records a shared phone number; no-op for unknown identities.
	SetPhone(ctx context.Context, chatID int64, phone string) error

	// AppendChat records one text exchange.
	AppendChat(ctx context.Context, chatID int64, userInput, botReply string) error

	// AppendFile records one processed attachment.
	AppendFile(ctx context.Context, chatID int64, filePath, botReply string) error
}

// Generator is the generation-API contract required by the router.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWithAttachment(ctx context.Context, prompt string, data []byte, mimeType string) (string, error)
}

// Searcher is the web-search contract required by the router.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]websearch.Result, error)
}

// Extractor converts downloaded payloads into model-ready representations.
type Extractor interface {
	ImageJPEG(path string) ([]byte, error)
	PDFText(path string) (string, error)
}

// Downloader fetches a platform file to transient local storage and returns
// the local path.
type Downloader interface {
	Download(ctx context.Context, fileID, name string) (string, error)
}

// Replier sends replies back through the platform.
type Replier interface {
	Send(ctx context.Context, chatID int64, text string) error
	SendMarkdown(ctx context.Context, chatID int64, text string) error
	SendContactPrompt(ctx context.Context, chatID int64, text, buttonLabel string) error
}

// Timeouts bounds each outbound call; a hung upstream must not leak a task.
type Timeouts struct {
	Generate time.Duration
	Search   time.Duration
	Store    time.Duration
	Download time.Duration
}

// Router classifies inbound updates and orchestrates the collaborators.
// Safe for concurrent use; per-chat ordering is the dispatcher's concern.
type Router struct {
	Store     Store
	Gen       Generator
	Search    Searcher // nil when the search API key is not configured
	Extract   Extractor
	Files     Downloader
	Reply     Replier
	Timeouts  Timeouts
	SearchMax int // max results rendered per /websearch

	Log zerolog.Logger
}

// NewRouter wires a Router with its collaborators. search may be nil, which
// disables /websearch with a static notice.
func NewRouter(store Store, gen Generator, search Searcher, extract Extractor, files Downloader, reply Replier, timeouts Timeouts, searchMax int, log zerolog.Logger) *Router {
	if searchMax <= 0 {
		searchMax = 5
	}
	return &Router{
		Store:     store,
		Gen:       gen,
		Search:    search,
		Extract:   extract,
		Files:     files,
		Reply:     reply,
		Timeouts:  timeouts,
		SearchMax: searchMax,
		Log:       log.With().Str("component", "router").Logger(),
	}
}

// classify maps a message to exactly one update kind. Kinds are mutually
// exclusive and checked in fixed precedence order:
// command > contact > document > photo > text.
func classify(msg *tgbotapi.Message) string {
	switch {
	case msg.IsCommand():
		return kindCommand
	case msg.Contact != nil:
		return kindContact
	case msg.Document != nil:
		return kindDocument
	case len(msg.Photo) > 0:
		return kindPhoto
	case msg.Text != "":
		return kindText
	default:
		return kindDropped
	}
}

// HandleUpdate processes one inbound update to completion: classification,
// handler dispatch, persistence, reply. It never returns an error; by the
// time it returns, the failure path (if any) has already been replied.
func (r *Router) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		metrics.UpdateClassified(kindDropped)
		return
	}
	done := metrics.HandlerStarted()
	defer done()

	kind := classify(msg)
	metrics.UpdateClassified(kind)

	tr := otel.Tracer("bot/Router")
	ctx, span := tr.Start(ctx, "HandleUpdate",
		trace.WithAttributes(
			attribute.String("update.kind", kind),
			attribute.Int64("chat.id", msg.Chat.ID),
		),
	)
	defer span.End()

	switch kind {
	case kindCommand:
		r.handleCommand(ctx, msg)
	case kindContact:
		r.handleContact(ctx, msg)
	case kindDocument:
		r.handleDocument(ctx, msg)
	case kindPhoto:
		r.handlePhoto(ctx, msg)
	case kindText:
		r.handleText(ctx, msg)
	default:
		// No recognizable payload: dropped without reply or persistence.
	}
}

// handleCommand routes the explicit command surface. Unknown commands are
// dropped silently, matching the implicit-route-only design.
func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		r.handleStart(ctx, msg)
	case "websearch":
		r.handleSearch(ctx, msg)
	default:
		r.Log.Debug().Str("command", msg.Command()).Int64("chat_id", msg.Chat.ID).Msg("unknown command dropped")
	}
}

// handleStart registers the chat identity. First contact creates the user
// (phone unset) and prompts for contact sharing; repeats are a no-op with a
// fixed acknowledgement. Registration is idempotent per chat identity.
func (r *Router) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	var firstName, username string
	if msg.From != nil {
		firstName, username = msg.From.FirstName, msg.From.UserName
	}

	storeCtx, cancel := withTimeout(ctx, r.Timeouts.Store)
	defer cancel()

	start := time.Now()
	created, err := r.Store.UpsertUser(storeCtx, chatID, firstName, username)
	metrics.ObserveCollaborator("store", time.Since(start))
	if err != nil {
		metrics.HandlerFailed(kindCommand)
		r.send(ctx, chatID, msgInternalError)
		return
	}

	if created {
		if err := r.Reply.SendContactPrompt(ctx, chatID, msgWelcome, btnShareContact); err != nil {
			r.Log.Error().Err(err).Int64("chat_id", chatID).Msg("send contact prompt failed")
		}
		return
	}
	r.send(ctx, chatID, msgAlreadyRegistered)
}

// handleContact stores the shared phone number. A contact share from an
// unregistered chat identity is a silent no-op on the store side; the
// confirmation reply is sent either way.
func (r *Router) handleContact(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	storeCtx, cancel := withTimeout(ctx, r.Timeouts.Store)
	defer cancel()

	start := time.Now()
	err := r.Store.SetPhone(storeCtx, chatID, msg.Contact.PhoneNumber)
	metrics.ObserveCollaborator("store", time.Since(start))
	if err != nil {
		metrics.HandlerFailed(kindContact)
		r.send(ctx, chatID, msgInternalError)
		return
	}
	r.send(ctx, chatID, msgPhoneSaved)
}

// handleText relays free text to the generation API. Every text exchange is
// recorded exactly once, success or failure: on generation failure the fixed
// fallback becomes both the persisted reply and the user-visible reply.
func (r *Router) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	input := msg.Text

	genCtx, cancel := withTimeout(ctx, r.Timeouts.Generate)
	defer cancel()

	start := time.Now()
	reply, err := r.Gen.Generate(genCtx, input)
	metrics.ObserveCollaborator("generate", time.Since(start))
	if err != nil {
		metrics.HandlerFailed(kindText)
		r.Log.Warn().Err(err).Int64("chat_id", chatID).Msg("generation failed, using fallback")
		reply = msgGenerationFallback
	}

	storeCtx, cancel2 := withTimeout(ctx, r.Timeouts.Store)
	defer cancel2()

	start = time.Now()
	if err := r.Store.AppendChat(storeCtx, chatID, input, reply); err != nil {
		// The reply still goes out; the missing record is only in the logs.
		metrics.HandlerFailed(kindText)
	}
	metrics.ObserveCollaborator("store", time.Since(start))

	r.send(ctx, chatID, reply)
}

// handlePhoto fetches the highest-resolution variant, re-encodes it as JPEG,
// and asks the generation API for a description. Any failure on the way
// collapses into one generic apology; no FileRecord is written on failure.
func (r *Router) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	photo := msg.Photo[len(msg.Photo)-1]

	path, err := r.download(ctx, photo.FileID, photo.FileID+".jpg")
	if err != nil {
		metrics.HandlerFailed(kindPhoto)
		r.Log.Error().Err(err).Int64("chat_id", chatID).Msg("photo download failed")
		r.send(ctx, chatID, msgImageFailed)
		return
	}

	data, err := r.Extract.ImageJPEG(path)
	if err != nil {
		metrics.HandlerFailed(kindPhoto)
		r.Log.Error().Err(err).Int64("chat_id", chatID).Str("file", path).Msg("image re-encode failed")
		r.send(ctx, chatID, msgImageFailed)
		return
	}

	genCtx, cancel := withTimeout(ctx, r.Timeouts.Generate)
	defer cancel()

	start := time.Now()
	answer, err := r.Gen.GenerateWithAttachment(genCtx, imagePrompt, data, "image/jpeg")
	metrics.ObserveCollaborator("generate", time.Since(start))
	if err != nil {
		metrics.HandlerFailed(kindPhoto)
		r.Log.Error().Err(err).Int64("chat_id", chatID).Msg("image description failed")
		r.send(ctx, chatID, msgImageFailed)
		return
	}

	r.appendFile(ctx, chatID, path, answer, kindPhoto)
	r.send(ctx, chatID, answer)
}

// handleDocument accepts PDFs only. Non-PDF documents are rejected up front:
// no download, no extraction, no record. For PDFs, pages without extractable
// text contribute nothing; an entirely empty extraction is reported to the
// user and leaves no record. Generation failure falls back to a fixed
// analysis string but still persists, mirroring the one-record-per-
// successful-extraction contract.
func (r *Router) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	doc := msg.Document

	if doc.MimeType != pdfMimeType {
		r.send(ctx, chatID, msgSendPDF)
		return
	}

	path, err := r.download(ctx, doc.FileID, doc.FileName)
	if err != nil {
		metrics.HandlerFailed(kindDocument)
		r.Log.Error().Err(err).Int64("chat_id", chatID).Msg("document download failed")
		r.send(ctx, chatID, msgPDFExtractFailed)
		return
	}

	text, err := r.Extract.PDFText(path)
	if err != nil {
		metrics.HandlerFailed(kindDocument)
		r.Log.Error().Err(err).Int64("chat_id", chatID).Str("file", path).Msg("pdf parse failed")
		r.send(ctx, chatID, msgPDFExtractFailed)
		return
	}
	if strings.TrimSpace(text) == "" {
		r.send(ctx, chatID, msgPDFExtractFailed)
		return
	}

	genCtx, cancel := withTimeout(ctx, r.Timeouts.Generate)
	defer cancel()

	start := time.Now()
	analysis, err := r.Gen.Generate(genCtx, text)
	metrics.ObserveCollaborator("generate", time.Since(start))
	if err != nil {
		metrics.HandlerFailed(kindDocument)
		r.Log.Warn().Err(err).Int64("chat_id", chatID).Msg("pdf analysis failed, using fallback")
		analysis = msgAnalysisFallback
	}

	r.appendFile(ctx, chatID, path, analysis, kindDocument)
	r.send(ctx, chatID, pdfReplyPrefix+analysis)
}

// handleSearch proxies /websearch to the search API and renders up to
// SearchMax ranked results. No persistence on this path.
func (r *Router) handleSearch(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	query := strings.TrimSpace(msg.CommandArguments())
	if query == "" {
		r.send(ctx, chatID, msgSearchUsage)
		return
	}
	if r.Search == nil {
		r.send(ctx, chatID, msgSearchDisabled)
		return
	}

	searchCtx, cancel := withTimeout(ctx, r.Timeouts.Search)
	defer cancel()

	start := time.Now()
	results, err := r.Search.Search(searchCtx, query, r.SearchMax)
	metrics.ObserveCollaborator("search", time.Since(start))
	if err != nil {
		metrics.HandlerFailed(kindCommand)
		r.Log.Error().Err(err).Int64("chat_id", chatID).Str("query", query).Msg("web search failed")
		r.send(ctx, chatID, msgSearchFailed)
		return
	}
	if len(results) == 0 {
		r.send(ctx, chatID, msgNoResults)
		return
	}

	lines := make([]string, 0, len(results))
	for _, res := range results {
		lines = append(lines, fmt.Sprintf("🔗 [%s](%s)", res.Title, res.Link))
	}
	reply := fmt.Sprintf("🔍 **Search results for:** `%s`\n\n%s", query, strings.Join(lines, "\n"))
	if err := r.Reply.SendMarkdown(ctx, chatID, reply); err != nil {
		r.Log.Error().Err(err).Int64("chat_id", chatID).Msg("send search results failed")
	}
}

// download fetches a platform file under the download timeout.
func (r *Router) download(ctx context.Context, fileID, name string) (string, error) {
	dlCtx, cancel := withTimeout(ctx, r.Timeouts.Download)
	defer cancel()

	start := time.Now()
	path, err := r.Files.Download(dlCtx, fileID, name)
	metrics.ObserveCollaborator("download", time.Since(start))
	return path, err
}

// appendFile records a processed attachment. A failed append does not change
// the user-visible outcome; the gap lives in the logs and metrics.
func (r *Router) appendFile(ctx context.Context, chatID int64, path, reply, kind string) {
	storeCtx, cancel := withTimeout(ctx, r.Timeouts.Store)
	defer cancel()

	start := time.Now()
	if err := r.Store.AppendFile(storeCtx, chatID, path, reply); err != nil {
		metrics.HandlerFailed(kind)
	}
	metrics.ObserveCollaborator("store", time.Since(start))
}

// send delivers a plain-text reply, logging delivery failures.
func (r *Router) send(ctx context.Context, chatID int64, text string) {
	if err := r.Reply.Send(ctx, chatID, text); err != nil {
		r.Log.Error().Err(err).Int64("chat_id", chatID).Msg("send reply failed")
	}
}

// withTimeout derives a bounded context; a non-positive duration means the
// parent's deadline applies unchanged.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
