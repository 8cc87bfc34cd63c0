package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-telegram-ai-bot/internal/services"
	"github.com/tbourn/go-telegram-ai-bot/internal/websearch"
)

// ----- Fakes -----

type chatAppend struct {
	chatID       int64
	input, reply string
}

type fileAppend struct {
	chatID      int64
	path, reply string
}

type fakeStore struct {
	created   bool
	upsertErr error
	upserts   int

	phones   map[int64]string
	phoneErr error

	chats   []chatAppend
	chatErr error

	files   []fileAppend
	fileErr error
}

func (s *fakeStore) UpsertUser(ctx context.Context, chatID int64, firstName, username string) (bool, error) {
	s.upserts++
	return s.created, s.upsertErr
}

func (s *fakeStore) SetPhone(ctx context.Context, chatID int64, phone string) error {
	if s.phoneErr != nil {
		return s.phoneErr
	}
	if s.phones == nil {
		s.phones = map[int64]string{}
	}
	s.phones[chatID] = phone
	return nil
}

func (s *fakeStore) AppendChat(ctx context.Context, chatID int64, userInput, botReply string) error {
	s.chats = append(s.chats, chatAppend{chatID, userInput, botReply})
	return s.chatErr
}

func (s *fakeStore) AppendFile(ctx context.Context, chatID int64, filePath, botReply string) error {
	if s.fileErr != nil {
		return s.fileErr
	}
	s.files = append(s.files, fileAppend{chatID, filePath, botReply})
	return nil
}

type fakeGen struct {
	reply string
	err   error

	prompts    []string
	attPrompt  string
	attMime    string
	attData    []byte
	attCalls   int
	plainCalls int
}

func (g *fakeGen) Generate(ctx context.Context, prompt string) (string, error) {
	g.plainCalls++
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func (g *fakeGen) GenerateWithAttachment(ctx context.Context, prompt string, data []byte, mimeType string) (string, error) {
	g.attCalls++
	g.attPrompt, g.attData, g.attMime = prompt, data, mimeType
	return g.reply, g.err
}

type fakeSearch struct {
	results []websearch.Result
	err     error

	calls int
	query string
	limit int
}

func (s *fakeSearch) Search(ctx context.Context, query string, limit int) ([]websearch.Result, error) {
	s.calls++
	s.query, s.limit = query, limit
	return s.results, s.err
}

type fakeExtract struct {
	jpeg    []byte
	jpegErr error
	pdfText string
	pdfErr  error

	imageCalls int
	pdfCalls   int
	lastPath   string
}

func (e *fakeExtract) ImageJPEG(path string) ([]byte, error) {
	e.imageCalls++
	e.lastPath = path
	return e.jpeg, e.jpegErr
}

func (e *fakeExtract) PDFText(path string) (string, error) {
	e.pdfCalls++
	e.lastPath = path
	return e.pdfText, e.pdfErr
}

type fakeFiles struct {
	path string
	err  error

	calls  int
	fileID string
	name   string
}

func (f *fakeFiles) Download(ctx context.Context, fileID, name string) (string, error) {
	f.calls++
	f.fileID, f.name = fileID, name
	return f.path, f.err
}

type sentMsg struct {
	chatID   int64
	text     string
	markdown bool
}

type fakeReplier struct {
	sent           []sentMsg
	contactPrompts []sentMsg
}

func (r *fakeReplier) Send(ctx context.Context, chatID int64, text string) error {
	r.sent = append(r.sent, sentMsg{chatID, text, false})
	return nil
}

func (r *fakeReplier) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	r.sent = append(r.sent, sentMsg{chatID, text, true})
	return nil
}

func (r *fakeReplier) SendContactPrompt(ctx context.Context, chatID int64, text, buttonLabel string) error {
	r.contactPrompts = append(r.contactPrompts, sentMsg{chatID, text, false})
	return nil
}

func (r *fakeReplier) lastText(t *testing.T) string {
	t.Helper()
	if len(r.sent) == 0 {
		t.Fatal("no reply was sent")
	}
	return r.sent[len(r.sent)-1].text
}

// ----- Message builders -----

func baseMessage(chatID int64) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID, FirstName: "Test", UserName: "tester"},
	}
}

func cmdMessage(chatID int64, text string) *tgbotapi.Message {
	msg := baseMessage(chatID)
	msg.Text = text
	cmdLen := len(text)
	if i := strings.Index(text, " "); i >= 0 {
		cmdLen = i
	}
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	return msg
}

func textMessage(chatID int64, text string) *tgbotapi.Message {
	msg := baseMessage(chatID)
	msg.Text = text
	return msg
}

func contactMessage(chatID int64, phone string) *tgbotapi.Message {
	msg := baseMessage(chatID)
	msg.Contact = &tgbotapi.Contact{PhoneNumber: phone}
	return msg
}

func photoMessage(chatID int64) *tgbotapi.Message {
	msg := baseMessage(chatID)
	msg.Photo = []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90},
		{FileID: "large", Width: 800},
	}
	return msg
}

func docMessage(chatID int64, mime, name string) *tgbotapi.Message {
	msg := baseMessage(chatID)
	msg.Document = &tgbotapi.Document{FileID: "doc1", FileName: name, MimeType: mime}
	return msg
}

// ----- Router under test -----

type routerFixture struct {
	store   *fakeStore
	gen     *fakeGen
	search  *fakeSearch
	extract *fakeExtract
	files   *fakeFiles
	reply   *fakeReplier
	router  *Router
}

func newFixture() *routerFixture {
	f := &routerFixture{
		store:   &fakeStore{},
		gen:     &fakeGen{},
		search:  &fakeSearch{},
		extract: &fakeExtract{},
		files:   &fakeFiles{},
		reply:   &fakeReplier{},
	}
	f.router = NewRouter(f.store, f.gen, f.search, f.extract, f.files, f.reply, Timeouts{}, 5, zerolog.Nop())
	return f
}

func (f *routerFixture) handle(msg *tgbotapi.Message) {
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{Message: msg})
}

// ----- Classification -----

func TestClassify_Precedence(t *testing.T) {
	// A command outranks every other payload...
	msg := cmdMessage(1, "/start")
	msg.Photo = []tgbotapi.PhotoSize{{FileID: "p"}}
	if got := classify(msg); got != kindCommand {
		t.Errorf("classify = %q; want command", got)
	}

	// ...contact outranks document, photo, and text...
	msg = contactMessage(1, "+1")
	msg.Document = &tgbotapi.Document{FileID: "d"}
	msg.Photo = []tgbotapi.PhotoSize{{FileID: "p"}}
	msg.Text = "hi"
	if got := classify(msg); got != kindContact {
		t.Errorf("classify = %q; want contact", got)
	}

	// ...document outranks photo and text...
	msg = docMessage(1, "application/pdf", "a.pdf")
	msg.Photo = []tgbotapi.PhotoSize{{FileID: "p"}}
	if got := classify(msg); got != kindDocument {
		t.Errorf("classify = %q; want document", got)
	}

	// ...photo outranks text...
	msg = photoMessage(1)
	msg.Text = "caption-ish"
	if got := classify(msg); got != kindPhoto {
		t.Errorf("classify = %q; want photo", got)
	}

	// ...and an empty message matches nothing.
	if got := classify(baseMessage(1)); got != kindDropped {
		t.Errorf("classify = %q; want dropped", got)
	}
}

// ----- /start -----

func TestStart_NewUserGetsContactPrompt(t *testing.T) {
	f := newFixture()
	f.store.created = true

	f.handle(cmdMessage(123, "/start"))

	if f.store.upserts != 1 {
		t.Fatalf("upserts = %d; want 1", f.store.upserts)
	}
	if len(f.reply.contactPrompts) != 1 {
		t.Fatalf("contact prompts = %d; want 1", len(f.reply.contactPrompts))
	}
	if got := f.reply.contactPrompts[0].text; got != msgWelcome {
		t.Errorf("prompt = %q; want %q", got, msgWelcome)
	}
}

func TestStart_SecondTimeIsAcknowledged(t *testing.T) {
	f := newFixture()
	f.store.created = false // already registered

	f.handle(cmdMessage(123, "/start"))

	if len(f.reply.contactPrompts) != 0 {
		t.Fatal("contact prompt sent for an existing user")
	}
	if got := f.reply.lastText(t); got != msgAlreadyRegistered {
		t.Errorf("reply = %q; want %q", got, msgAlreadyRegistered)
	}
}

func TestStart_PersistenceFailureGetsGenericReply(t *testing.T) {
	f := newFixture()
	f.store.upsertErr = services.ErrPersistence

	f.handle(cmdMessage(123, "/start"))

	if got := f.reply.lastText(t); got != msgInternalError {
		t.Errorf("reply = %q; want %q", got, msgInternalError)
	}
}

// ----- contact-share -----

func TestContact_StoresPhoneAndConfirms(t *testing.T) {
	f := newFixture()

	f.handle(contactMessage(42, "+4915512345678"))

	if f.store.phones[42] != "+4915512345678" {
		t.Errorf("phone = %q", f.store.phones[42])
	}
	if got := f.reply.lastText(t); got != msgPhoneSaved {
		t.Errorf("reply = %q; want %q", got, msgPhoneSaved)
	}
}

func TestContact_BeforeStartDoesNotFail(t *testing.T) {
	// The store treats unknown identities as a no-op; the handler must
	// behave identically regardless of store state.
	f := newFixture()

	f.handle(contactMessage(999, "+10000000000"))

	if got := f.reply.lastText(t); got != msgPhoneSaved {
		t.Errorf("reply = %q; want %q", got, msgPhoneSaved)
	}
}

// ----- plain text -----

func TestText_SuccessAppendsRecordAndReplies(t *testing.T) {
	f := newFixture()
	f.gen.reply = "hi there"

	f.handle(textMessage(5, "hello"))

	if len(f.store.chats) != 1 {
		t.Fatalf("chat appends = %d; want 1", len(f.store.chats))
	}
	got := f.store.chats[0]
	if got.chatID != 5 || got.input != "hello" || got.reply != "hi there" {
		t.Errorf("record = %+v", got)
	}
	if reply := f.reply.lastText(t); reply != "hi there" {
		t.Errorf("reply = %q; want %q", reply, "hi there")
	}
}

func TestText_GenerationFailureStillAppendsExactlyOneRecord(t *testing.T) {
	f := newFixture()
	f.gen.err = services.ErrGeneration

	f.handle(textMessage(5, "hello"))

	if len(f.store.chats) != 1 {
		t.Fatalf("chat appends = %d; want 1", len(f.store.chats))
	}
	if f.store.chats[0].reply != msgGenerationFallback {
		t.Errorf("persisted reply = %q; want fallback", f.store.chats[0].reply)
	}
	if reply := f.reply.lastText(t); reply != msgGenerationFallback {
		t.Errorf("reply = %q; want fallback", reply)
	}
}

func TestText_PersistenceFailureStillReplies(t *testing.T) {
	f := newFixture()
	f.gen.reply = "hi there"
	f.store.chatErr = services.ErrPersistence

	f.handle(textMessage(5, "hello"))

	if reply := f.reply.lastText(t); reply != "hi there" {
		t.Errorf("reply = %q; want generated text despite failed append", reply)
	}
}

// ----- photo -----

func TestPhoto_HappyPath(t *testing.T) {
	f := newFixture()
	f.files.path = "downloads/large.jpg"
	f.extract.jpeg = []byte{0xFF, 0xD8, 0x01}
	f.gen.reply = "a cat on a sofa"

	f.handle(photoMessage(7))

	// Highest-resolution variant is fetched.
	if f.files.fileID != "large" {
		t.Errorf("downloaded fileID = %q; want large", f.files.fileID)
	}
	if f.gen.attCalls != 1 || f.gen.attPrompt != imagePrompt || f.gen.attMime != "image/jpeg" {
		t.Errorf("attachment call = (%d, %q, %q)", f.gen.attCalls, f.gen.attPrompt, f.gen.attMime)
	}
	if len(f.store.files) != 1 {
		t.Fatalf("file appends = %d; want 1", len(f.store.files))
	}
	if f.store.files[0].path != "downloads/large.jpg" || f.store.files[0].reply != "a cat on a sofa" {
		t.Errorf("record = %+v", f.store.files[0])
	}
	if reply := f.reply.lastText(t); reply != "a cat on a sofa" {
		t.Errorf("reply = %q", reply)
	}
}

func TestPhoto_DownloadFailure(t *testing.T) {
	f := newFixture()
	f.files.err = services.ErrDownload

	f.handle(photoMessage(7))

	if f.extract.imageCalls != 0 || f.gen.attCalls != 0 {
		t.Error("extractor or generator called after failed download")
	}
	if len(f.store.files) != 0 {
		t.Error("file record written on failure")
	}
	if reply := f.reply.lastText(t); reply != msgImageFailed {
		t.Errorf("reply = %q; want %q", reply, msgImageFailed)
	}
}

func TestPhoto_GenerationFailureWritesNoRecord(t *testing.T) {
	f := newFixture()
	f.files.path = "downloads/large.jpg"
	f.extract.jpeg = []byte{0xFF, 0xD8}
	f.gen.err = services.ErrGeneration

	f.handle(photoMessage(7))

	if len(f.store.files) != 0 {
		t.Error("file record written on generation failure")
	}
	if reply := f.reply.lastText(t); reply != msgImageFailed {
		t.Errorf("reply = %q; want %q", reply, msgImageFailed)
	}
}

// ----- document -----

func TestDocument_NonPDFIsRejectedUpFront(t *testing.T) {
	f := newFixture()

	f.handle(docMessage(9, "image/png", "pic.png"))

	if f.files.calls != 0 || f.extract.pdfCalls != 0 || f.gen.plainCalls != 0 {
		t.Error("collaborators called for a non-PDF document")
	}
	if len(f.store.files) != 0 {
		t.Error("file record written for a rejected document")
	}
	if reply := f.reply.lastText(t); reply != msgSendPDF {
		t.Errorf("reply = %q; want %q", reply, msgSendPDF)
	}
}

func TestDocument_EmptyExtractionWritesNoRecord(t *testing.T) {
	f := newFixture()
	f.files.path = "downloads/scan.pdf"
	f.extract.pdfText = "   " // pages yielded nothing

	f.handle(docMessage(9, "application/pdf", "scan.pdf"))

	if f.gen.plainCalls != 0 {
		t.Error("generator called with empty extraction")
	}
	if len(f.store.files) != 0 {
		t.Error("file record written for empty extraction")
	}
	if reply := f.reply.lastText(t); reply != msgPDFExtractFailed {
		t.Errorf("reply = %q; want %q", reply, msgPDFExtractFailed)
	}
}

func TestDocument_HappyPath(t *testing.T) {
	f := newFixture()
	f.files.path = "downloads/paper.pdf"
	f.extract.pdfText = "lorem ipsum"
	f.gen.reply = "a summary"

	f.handle(docMessage(9, "application/pdf", "paper.pdf"))

	if f.gen.plainCalls != 1 || f.gen.prompts[0] != "lorem ipsum" {
		t.Errorf("generator prompts = %v", f.gen.prompts)
	}
	if len(f.store.files) != 1 || f.store.files[0].reply != "a summary" {
		t.Errorf("file records = %+v", f.store.files)
	}
	want := pdfReplyPrefix + "a summary"
	if reply := f.reply.lastText(t); reply != want {
		t.Errorf("reply = %q; want %q", reply, want)
	}
}

func TestDocument_GenerationFailureFallsBackButPersists(t *testing.T) {
	f := newFixture()
	f.files.path = "downloads/paper.pdf"
	f.extract.pdfText = "lorem ipsum"
	f.gen.err = services.ErrGeneration

	f.handle(docMessage(9, "application/pdf", "paper.pdf"))

	if len(f.store.files) != 1 || f.store.files[0].reply != msgAnalysisFallback {
		t.Errorf("file records = %+v", f.store.files)
	}
	want := pdfReplyPrefix + msgAnalysisFallback
	if reply := f.reply.lastText(t); reply != want {
		t.Errorf("reply = %q; want %q", reply, want)
	}
}

// ----- /websearch -----

func TestSearch_EmptyQueryNeverCallsClient(t *testing.T) {
	f := newFixture()

	f.handle(cmdMessage(3, "/websearch"))

	if f.search.calls != 0 {
		t.Fatal("search client invoked for empty query")
	}
	if reply := f.reply.lastText(t); reply != msgSearchUsage {
		t.Errorf("reply = %q; want %q", reply, msgSearchUsage)
	}
}

func TestSearch_DisabledWithoutAPIKey(t *testing.T) {
	f := newFixture()
	f.router.Search = nil

	f.handle(cmdMessage(3, "/websearch golang"))

	if reply := f.reply.lastText(t); reply != msgSearchDisabled {
		t.Errorf("reply = %q; want %q", reply, msgSearchDisabled)
	}
}

func TestSearch_RendersRankedMarkdownList(t *testing.T) {
	f := newFixture()
	f.search.results = []websearch.Result{
		{Title: "Go", Link: "https://go.dev"},
		{Title: "Go blog", Link: "https://go.dev/blog"},
	}

	f.handle(cmdMessage(3, "/websearch golang news"))

	if f.search.query != "golang news" || f.search.limit != 5 {
		t.Errorf("search call = (%q, %d)", f.search.query, f.search.limit)
	}
	last := f.reply.sent[len(f.reply.sent)-1]
	if !last.markdown {
		t.Error("search results not sent as Markdown")
	}
	if !strings.Contains(last.text, "[Go](https://go.dev)") || !strings.Contains(last.text, "[Go blog](https://go.dev/blog)") {
		t.Errorf("reply = %q", last.text)
	}
	if !strings.Contains(last.text, "`golang news`") {
		t.Errorf("reply missing query echo: %q", last.text)
	}
}

func TestSearch_UpstreamFailure(t *testing.T) {
	f := newFixture()
	f.search.err = services.ErrSearch

	f.handle(cmdMessage(3, "/websearch golang"))

	if reply := f.reply.lastText(t); reply != msgSearchFailed {
		t.Errorf("reply = %q; want %q", reply, msgSearchFailed)
	}
}

func TestSearch_NoResults(t *testing.T) {
	f := newFixture()
	f.search.results = nil

	f.handle(cmdMessage(3, "/websearch fhqwhgads"))

	if reply := f.reply.lastText(t); reply != msgNoResults {
		t.Errorf("reply = %q; want %q", reply, msgNoResults)
	}
}

// ----- drops -----

func TestHandleUpdate_NilMessageIsDropped(t *testing.T) {
	f := newFixture()

	f.router.HandleUpdate(context.Background(), tgbotapi.Update{})

	if len(f.reply.sent) != 0 || len(f.store.chats) != 0 || len(f.store.files) != 0 {
		t.Error("side effects observed for an empty update")
	}
}

func TestHandleUpdate_UnknownCommandIsDropped(t *testing.T) {
	f := newFixture()

	f.handle(cmdMessage(1, "/frobnicate now"))

	if len(f.reply.sent) != 0 {
		t.Errorf("replies = %v; want none", f.reply.sent)
	}
	if f.store.upserts != 0 || f.search.calls != 0 {
		t.Error("collaborators called for unknown command")
	}
}

func TestHandleUpdate_EmptyPayloadIsDropped(t *testing.T) {
	f := newFixture()

	f.handle(baseMessage(1))

	if len(f.reply.sent) != 0 || len(f.store.chats) != 0 {
		t.Error("side effects observed for a payload-less message")
	}
}

// Sanity: collaborator errors never escape HandleUpdate.
func TestHandleUpdate_NeverPanics(t *testing.T) {
	f := newFixture()
	f.store.upsertErr = errors.New("boom")
	f.store.chatErr = errors.New("boom")
	f.gen.err = errors.New("boom")
	f.search.err = errors.New("boom")
	f.files.err = errors.New("boom")

	for _, msg := range []*tgbotapi.Message{
		cmdMessage(1, "/start"),
		cmdMessage(1, "/websearch x"),
		contactMessage(1, "+1"),
		textMessage(1, "hi"),
		photoMessage(1),
		docMessage(1, "application/pdf", "a.pdf"),
	} {
		f.handle(msg)
	}
}
