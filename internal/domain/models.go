// Package domain defines the persistence models for registered users, chat
// exchanges, and analyzed file attachments. These types are mapped with GORM
// and form the data layer of the bot.
package domain

import "time"

// User represents a registered Telegram user, keyed by chat identity.
// A user is created on the first /start and is never deleted. The phone
// number is only populated after the user shares a contact.
//
// Fields:
//   - ChatID: Telegram chat identity; unique, at most one row per chat.
//   - FirstName / Username: display data captured at registration time.
//   - PhoneNumber: nil until a contact-share supplies it.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID          uint    `json:"-"            gorm:"primaryKey"`
	ChatID      int64   `json:"chat_id"      gorm:"not null;uniqueIndex:ux_users_chat_id"`
	FirstName   string  `json:"first_name"   gorm:"type:varchar(128)"`
	Username    string  `json:"username"     gorm:"type:varchar(64)"`
	PhoneNumber *string `json:"phone_number,omitempty" gorm:"type:varchar(32)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// ChatRecord is one text exchange: the user input together with the reply
// that was sent back (generated text or the fixed fallback). Append-only;
// rows are never updated or deleted.
type ChatRecord struct {
	ID        string `json:"id"         gorm:"type:char(36);primaryKey"`
	ChatID    int64  `json:"chat_id"    gorm:"not null;index:idx_chat_history"`
	UserInput string `json:"user_input" gorm:"type:text;not null"`
	BotReply  string `json:"bot_reply"  gorm:"type:text;not null"`
	CreatedAt time.Time
}

// TableName returns the database table name for ChatRecord.
func (ChatRecord) TableName() string { return "chat_history" }

// FileRecord is one processed attachment (photo or PDF): the transient local
// path the file was fetched to and the analysis that was sent back.
// Append-only; one row per successfully processed attachment.
type FileRecord struct {
	ID        string `json:"id"        gorm:"type:char(36);primaryKey"`
	ChatID    int64  `json:"chat_id"   gorm:"not null;index:idx_file_metadata"`
	FilePath  string `json:"file_path" gorm:"type:varchar(512);not null"`
	BotReply  string `json:"bot_reply" gorm:"type:text;not null"`
	CreatedAt time.Time
}

// TableName returns the database table name for FileRecord.
func (FileRecord) TableName() string { return "file_metadata" }
