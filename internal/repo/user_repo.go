// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - UpsertUser never reports "already exists" as an error; the boolean
//     result distinguishes creation from a no-op.
//   - SetPhone on an unknown chat identity affects zero rows and returns nil.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-ai-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertUser creates a User row for chatID unless one already exists.
// It returns true when a new row was inserted, false when the chat identity
// was already registered. The phone number starts out unset.
//
// The unique index on chat_id backs the at-most-one-user invariant; a
// concurrent duplicate insert surfaces as a constraint error and is reported
// as created=false.
func UpsertUser(ctx context.Context, db *gorm.DB, chatID int64, firstName, username string) (bool, error) {
	var existing domain.User
	err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	u := &domain.User{
		ChatID:    chatID,
		FirstName: firstName,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetUser fetches a user by chat identity, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, chatID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// SetPhone stores a phone number on the user registered for chatID.
// When no such user exists the update affects zero rows and SetPhone
// returns nil; callers rely on this being a silent no-op.
func SetPhone(ctx context.Context, db *gorm.DB, chatID int64, phone string) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("chat_id = ?", chatID).
		Update("phone_number", phone).Error
}
