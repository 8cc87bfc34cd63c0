// Package services – Store
//
// This file implements the Store, the persistence gateway the update router
// talks to. It wraps the thin repo functions, normalizes every storage
// failure to ErrPersistence, and logs failed writes (a failed append may
// still be followed by a success-looking reply, so the log line is the only
// trace of the gap).
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-ai-bot/internal/domain"
	"github.com/tbourn/go-telegram-ai-bot/internal/repo"
)

// StoreRepo defines the repository contract required by Store.
// The default implementation delegates to the repo package; tests supply
// fakes.
type StoreRepo interface {
	// UpsertUser inserts a user row keyed by chat identity unless one
	// exists; reports whether a new row was created.
	UpsertUser(ctx context.Context, db *gorm.DB, chatID int64, firstName, username string) (bool, error)

	// SetPhone stores a phone number for a registered chat identity;
	// silently a no-op when the identity is unknown.
	SetPhone(ctx context.Context, db *gorm.DB, chatID int64, phone string) error

	// AppendChat inserts one text-exchange record.
	AppendChat(ctx context.Context, db *gorm.DB, chatID int64, userInput, botReply string) (*domain.ChatRecord, error)

	// AppendFile inserts one processed-attachment record.
	AppendFile(ctx context.Context, db *gorm.DB, chatID int64, filePath, botReply string) (*domain.FileRecord, error)
}

// GormStoreRepo is the production StoreRepo backed by the repo package.
type GormStoreRepo struct{}

func (GormStoreRepo) UpsertUser(ctx context.Context, db *gorm.DB, chatID int64, firstName, username string) (bool, error) {
	return repo.UpsertUser(ctx, db, chatID, firstName, username)
}

func (GormStoreRepo) SetPhone(ctx context.Context, db *gorm.DB, chatID int64, phone string) error {
	return repo.SetPhone(ctx, db, chatID, phone)
}

func (GormStoreRepo) AppendChat(ctx context.Context, db *gorm.DB, chatID int64, userInput, botReply string) (*domain.ChatRecord, error) {
	return repo.AppendChat(ctx, db, chatID, userInput, botReply)
}

func (GormStoreRepo) AppendFile(ctx context.Context, db *gorm.DB, chatID int64, filePath, botReply string) (*domain.FileRecord, error) {
	return repo.AppendFile(ctx, db, chatID, filePath, botReply)
}

// Store is the persistence gateway: the sole writer to the document store.
// All methods are single-row operations; SQLite row atomicity is sufficient,
// no cross-record transactions are needed.
type Store struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the repository used by this gateway.
	Repo StoreRepo
	// Log receives failed-write diagnostics.
	Log zerolog.Logger
}

// NewStore constructs a Store over the given database handle.
func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{
		DB:   db,
		Repo: GormStoreRepo{},
		Log:  log.With().Str("component", "store").Logger(),
	}
}

// UpsertUser registers the chat identity if it is new and reports whether a
// record was created. Idempotent: repeated calls leave exactly one row.
func (s *Store) UpsertUser(ctx context.Context, chatID int64, firstName, username string) (bool, error) {
	created, err := s.Repo.UpsertUser(ctx, s.DB, chatID, firstName, username)
	if err != nil {
		s.Log.Error().Err(err).Int64("chat_id", chatID).Msg("upsert user failed")
		return false, fmt.Errorf("%w: upsert user: %v", ErrPersistence, err)
	}
	return created, nil
}

// SetPhone records a shared phone number. Unknown chat identities are a
// silent no-op, not an error.
func (s *Store) SetPhone(ctx context.Context, chatID int64, phone string) error {
	if err := s.Repo.SetPhone(ctx, s.DB, chatID, phone); err != nil {
		s.Log.Error().Err(err).Int64("chat_id", chatID).Msg("set phone failed")
		return fmt.Errorf("%w: set phone: %v", ErrPersistence, err)
	}
	return nil
}

// AppendChat records one text exchange (input plus the reply actually sent,
// fallback included).
func (s *Store) AppendChat(ctx context.Context, chatID int64, userInput, botReply string) error {
	if _, err := s.Repo.AppendChat(ctx, s.DB, chatID, userInput, botReply); err != nil {
		s.Log.Error().Err(err).Int64("chat_id", chatID).Msg("append chat record failed")
		return fmt.Errorf("%w: append chat: %v", ErrPersistence, err)
	}
	return nil
}

// AppendFile records one processed attachment.
func (s *Store) AppendFile(ctx context.Context, chatID int64, filePath, botReply string) error {
	if _, err := s.Repo.AppendFile(ctx, s.DB, chatID, filePath, botReply); err != nil {
		s.Log.Error().Err(err).Int64("chat_id", chatID).Str("file", filePath).Msg("append file record failed")
		return fmt.Errorf("%w: append file: %v", ErrPersistence, err)
	}
	return nil
}
