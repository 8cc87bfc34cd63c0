package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-ai-bot/internal/domain"
)

// ----- Fake repo -----

type fakeStoreRepo struct {
	upsertChatID  int64
	upsertCreated bool
	upsertErr     error

	phoneChatID int64
	phoneValue  string
	phoneErr    error

	chatCalls int
	chatInput string
	chatReply string
	chatErr   error

	fileCalls int
	filePath  string
	fileErr   error
}

func (r *fakeStoreRepo) UpsertUser(ctx context.Context, db *gorm.DB, chatID int64, firstName, username string) (bool, error) {
	r.upsertChatID = chatID
	return r.upsertCreated, r.upsertErr
}

func (r *fakeStoreRepo) SetPhone(ctx context.Context, db *gorm.DB, chatID int64, phone string) error {
	r.phoneChatID, r.phoneValue = chatID, phone
	return r.phoneErr
}

func (r *fakeStoreRepo) AppendChat(ctx context.Context, db *gorm.DB, chatID int64, userInput, botReply string) (*domain.ChatRecord, error) {
	r.chatCalls++
	r.chatInput, r.chatReply = userInput, botReply
	if r.chatErr != nil {
		return nil, r.chatErr
	}
	return &domain.ChatRecord{ID: "r1", ChatID: chatID, UserInput: userInput, BotReply: botReply}, nil
}

func (r *fakeStoreRepo) AppendFile(ctx context.Context, db *gorm.DB, chatID int64, filePath, botReply string) (*domain.FileRecord, error) {
	r.fileCalls++
	r.filePath = filePath
	if r.fileErr != nil {
		return nil, r.fileErr
	}
	return &domain.FileRecord{ID: "f1", ChatID: chatID, FilePath: filePath, BotReply: botReply}, nil
}

func newTestStore(r StoreRepo) *Store {
	return &Store{Repo: r, Log: zerolog.Nop()}
}

// ----- Tests -----

func TestStore_UpsertUser(t *testing.T) {
	r := &fakeStoreRepo{upsertCreated: true}
	s := newTestStore(r)

	created, err := s.UpsertUser(context.Background(), 123, "Alice", "alice")
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if !created {
		t.Error("created = false; want true")
	}
	if r.upsertChatID != 123 {
		t.Errorf("chatID = %d; want 123", r.upsertChatID)
	}
}

func TestStore_UpsertUser_MapsToPersistenceError(t *testing.T) {
	r := &fakeStoreRepo{upsertErr: errors.New("disk full")}
	s := newTestStore(r)

	_, err := s.UpsertUser(context.Background(), 1, "", "")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v; want ErrPersistence", err)
	}
}

func TestStore_SetPhone(t *testing.T) {
	r := &fakeStoreRepo{}
	s := newTestStore(r)

	if err := s.SetPhone(context.Background(), 42, "+1555"); err != nil {
		t.Fatalf("SetPhone: %v", err)
	}
	if r.phoneChatID != 42 || r.phoneValue != "+1555" {
		t.Errorf("got (%d, %q)", r.phoneChatID, r.phoneValue)
	}
}

func TestStore_AppendChat_MapsToPersistenceError(t *testing.T) {
	r := &fakeStoreRepo{chatErr: errors.New("locked")}
	s := newTestStore(r)

	err := s.AppendChat(context.Background(), 5, "hello", "hi")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v; want ErrPersistence", err)
	}
	if r.chatCalls != 1 {
		t.Errorf("chatCalls = %d; want 1", r.chatCalls)
	}
}

func TestStore_AppendFile(t *testing.T) {
	r := &fakeStoreRepo{}
	s := newTestStore(r)

	if err := s.AppendFile(context.Background(), 9, "downloads/x.pdf", "summary"); err != nil {
		t.Fatalf("AppendFile: %v", err)
	}
	if r.filePath != "downloads/x.pdf" {
		t.Errorf("filePath = %q", r.filePath)
	}
}
