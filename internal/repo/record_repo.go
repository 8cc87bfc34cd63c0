// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides append-only repository functions for
// chat history and file metadata.
//
// Both appends are single-row inserts; SQLite's row-level atomicity is all
// the consistency the callers need. Rows are never updated or deleted.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-ai-bot/internal/domain"
)

// AppendChat inserts one chat exchange for chatID. The record ID is a
// randomly generated UUID (string), and CreatedAt is set to UTC.
func AppendChat(ctx context.Context, db *gorm.DB, chatID int64, userInput, botReply string) (*domain.ChatRecord, error) {
	rec := &domain.ChatRecord{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		UserInput: userInput,
		BotReply:  botReply,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// AppendFile inserts one processed-attachment record for chatID. filePath is
// the transient local path the attachment was fetched to.
func AppendFile(ctx context.Context, db *gorm.DB, chatID int64, filePath, botReply string) (*domain.FileRecord, error) {
	rec := &domain.FileRecord{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		FilePath:  filePath,
		BotReply:  botReply,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// CountChats returns the number of chat records stored for chatID.
func CountChats(ctx context.Context, db *gorm.DB, chatID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ChatRecord{}).
		Where("chat_id = ?", chatID).
		Count(&total).Error
	return total, err
}
