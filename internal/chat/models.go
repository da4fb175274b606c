package chat

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/suPer8Hu/hugg-chat/internal/apperr"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

const (
	DefaultTitle       = "New Chat"
	MaxContentRunes    = 32000
	MaxTitleRunes      = 200
	PreviewRunes       = 100
	FailedTurnMarker   = "LLM inference failed for session"
	maxPageLimit       = 100
	defaultPageLimit   = 20
	defaultSessionPage = 10
)

type Session struct {
	ID                 uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	ChatID             string `gorm:"type:varchar(26);uniqueIndex;not null" json:"chat_id"`
	UserID             string `gorm:"type:varchar(128);not null;index:idx_chat_sess_user_recent,priority:1" json:"user_id"`
	Title              string `gorm:"type:varchar(255);not null" json:"title"`
	MessageCount       int64  `gorm:"not null;default:0" json:"message_count"`
	LastMessageTs      *int64 `json:"last_message_at,omitempty"`
	LastMessagePreview string `gorm:"type:varchar(512);not null;default:''" json:"last_message_preview,omitempty"`
	Deleted            bool   `gorm:"not null;default:false;index:idx_chat_sess_user_recent,priority:2" json:"-"`
	DeletedTs          *int64 `json:"-"`
	// Unix milliseconds. updated_ts is the listing sort key.
	CreatedTs int64 `gorm:"not null" json:"created_at"`
	UpdatedTs int64 `gorm:"not null;index:idx_chat_sess_user_recent,priority:3" json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"message_id"`
	ChatID    string    `gorm:"type:varchar(26);not null;uniqueIndex:uniq_chat_msg_seq,priority:1" json:"chat_id"`
	Sequence  int64     `gorm:"not null;uniqueIndex:uniq_chat_msg_seq,priority:2" json:"sequence"`
	UserID    string    `gorm:"type:varchar(128);index;not null" json:"-"`
	Role      Role      `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:mediumtext;not null" json:"content"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
}

func (Message) TableName() string { return "chat_messages" }

// chatSequence holds the next free sequence number of a chat.
type chatSequence struct {
	ChatID  string `gorm:"type:varchar(26);primaryKey"`
	NextSeq int64  `gorm:"not null;default:0"`
}

func (chatSequence) TableName() string { return "chat_sequences" }

// Models lists every table owned by this package, for AutoMigrate.
func Models() []any {
	return []any{&Session{}, &Message{}, &chatSequence{}}
}

// NewMessage validates role and content. MessageID, ChatID, UserID and
// Sequence are assigned by the message repo at append time.
func NewMessage(role Role, content string, at time.Time) (Message, error) {
	if !role.Valid() {
		return Message{}, apperr.Validation("invalid role")
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, apperr.Validation("message content is empty")
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return Message{}, apperr.Validation("message content is too long")
	}
	now := time.Now()
	if at.IsZero() || at.After(now) {
		at = now
	}
	return Message{Role: role, Content: content, Timestamp: at.UTC()}, nil
}

// NormalizeTitle trims a user supplied title; empty titles become DefaultTitle.
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle, nil
	}
	if utf8.RuneCountInString(title) > MaxTitleRunes {
		return "", apperr.Validation("title is too long")
	}
	return title, nil
}

// MessagePage is one window of a chat's history. Limit is the page size
// actually applied after defaulting and clamping; HasMore is relative to it.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	Limit      int       `json:"limit"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

type SessionPage struct {
	Sessions   []Session `json:"sessions"`
	Limit      int       `json:"limit"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

type Stats struct {
	TotalChats    int64  `json:"total_chats"`
	TotalMessages int64  `json:"total_messages"`
	OldestChat    *int64 `json:"oldest_chat,omitempty"`
	NewestChat    *int64 `json:"newest_chat,omitempty"`
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func preview(content string) string {
	return truncateRunes(strings.Join(strings.Fields(content), " "), PreviewRunes)
}

// clampLimit maps a requested page size onto [1, maxPageLimit], using def
// when none was given.
func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }
