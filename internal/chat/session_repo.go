package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/suPer8Hu/hugg-chat/internal/apperr"
	"github.com/suPer8Hu/hugg-chat/internal/common"
)

const createAttempts = 3

// SessionRepo stores per-chat metadata. All lookups are scoped to the owning
// user; soft-deleted rows are invisible to every read except DeletedChatIDs.
type SessionRepo struct {
	db      *gorm.DB
	cursors *CursorCodec
	timeout time.Duration
	now     func() time.Time
	newID   func() (string, error)
}

func NewSessionRepo(db *gorm.DB, cursors *CursorCodec, timeout time.Duration) *SessionRepo {
	if timeout <= 0 {
		timeout = defaultStorageTimeout
	}
	return &SessionRepo{
		db:      db,
		cursors: cursors,
		timeout: timeout,
		now:     time.Now,
		newID:   common.NewULID,
	}
}

func (r *SessionRepo) Create(ctx context.Context, userID, title string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		id, err := r.newID()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "generate chat id", err)
		}
		now := toMillis(r.now())
		s := &Session{
			ChatID:    id,
			UserID:    userID,
			Title:     title,
			CreatedTs: now,
			UpdatedTs: now,
		}
		err = r.db.WithContext(ctx).Create(s).Error
		if err == nil {
			return s, nil
		}
		if !isDuplicate(err) {
			return nil, apperr.Storage("create session", err)
		}
		lastErr = apperr.DuplicateID(err)
	}
	return nil, lastErr
}

// List returns the caller's live chats, most recently updated first. The
// limit is clamped like MessageRepo.Page.
func (r *SessionRepo) List(ctx context.Context, userID string, limit int, cursor string) (SessionPage, error) {
	limit = clampLimit(limit, defaultSessionPage)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	q := r.db.WithContext(ctx).
		Where("user_id = ? AND deleted = ?", userID, false).
		Order("updated_ts DESC").
		Order("chat_id ASC").
		Limit(limit + 1)

	if cursor != "" {
		cur, err := r.cursors.DecodeFor(cursor, FieldUpdatedAt, Desc)
		if err != nil {
			return SessionPage{}, err
		}
		ts, err := strconv.ParseInt(cur.Value, 10, 64)
		if err != nil || cur.Tiebreak == "" {
			return SessionPage{}, apperr.InvalidCursor(err)
		}
		q = q.Where("updated_ts < ? OR (updated_ts = ? AND chat_id > ?)", ts, ts, cur.Tiebreak)
	}

	var rows []Session
	if err := q.Find(&rows).Error; err != nil {
		return SessionPage{}, apperr.Storage("list sessions", err)
	}

	page := SessionPage{Sessions: []Session{}, Limit: limit}
	if len(rows) > limit {
		page.HasMore = true
		rows = rows[:limit]
	}
	page.Sessions = append(page.Sessions, rows...)

	if page.HasMore {
		last := rows[len(rows)-1]
		token, err := r.cursors.Encode(Cursor{
			Field:     FieldUpdatedAt,
			Value:     strconv.FormatInt(last.UpdatedTs, 10),
			Tiebreak:  last.ChatID,
			Direction: Desc,
		})
		if err != nil {
			return SessionPage{}, apperr.Wrap(apperr.KindInternal, "encode cursor", err)
		}
		page.NextCursor = token
	}
	return page, nil
}

// TouchOnAppend records delta new messages, last being the newest, in one
// atomic update.
func (r *SessionRepo) TouchOnAppend(ctx context.Context, chatID, userID string, delta int64, last Message) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	lastTs := toMillis(last.Timestamp)
	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("chat_id = ? AND user_id = ? AND deleted = ?", chatID, userID, false).
		Updates(map[string]any{
			"updated_ts":           toMillis(r.now()),
			"message_count":        gorm.Expr("message_count + ?", delta),
			"last_message_ts":      lastTs,
			"last_message_preview": preview(last.Content),
		})
	if res.Error != nil {
		return apperr.Storage("touch session", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("chat not found")
	}
	return nil
}

func (r *SessionRepo) Rename(ctx context.Context, chatID, userID, title string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("chat_id = ? AND user_id = ? AND deleted = ?", chatID, userID, false).
		Updates(map[string]any{
			"title":      title,
			"updated_ts": toMillis(r.now()),
		})
	if res.Error != nil {
		return apperr.Storage("rename session", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("chat not found")
	}
	return nil
}

// RenameIfTitle renames only while the current title still equals expected.
// It reports whether a row changed.
func (r *SessionRepo) RenameIfTitle(ctx context.Context, chatID, userID, expected, title string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("chat_id = ? AND user_id = ? AND deleted = ? AND title = ?", chatID, userID, false, expected).
		Updates(map[string]any{
			"title":      title,
			"updated_ts": toMillis(r.now()),
		})
	if res.Error != nil {
		return false, apperr.Storage("rename session", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *SessionRepo) SoftDelete(ctx context.Context, chatID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := toMillis(r.now())
	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("chat_id = ? AND user_id = ? AND deleted = ?", chatID, userID, false).
		Updates(map[string]any{
			"deleted":    true,
			"deleted_ts": now,
			"updated_ts": now,
		})
	if res.Error != nil {
		return apperr.Storage("delete session", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("chat not found")
	}
	return nil
}

// ResetCounters zeroes the message count and clears the last-message fields.
func (r *SessionRepo) ResetCounters(ctx context.Context, chatID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("chat_id = ? AND user_id = ? AND deleted = ?", chatID, userID, false).
		Updates(map[string]any{
			"message_count":        0,
			"last_message_ts":      nil,
			"last_message_preview": "",
			"updated_ts":           toMillis(r.now()),
		})
	if res.Error != nil {
		return apperr.Storage("reset session counters", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("chat not found")
	}
	return nil
}

func (r *SessionRepo) ExistsAndOwned(ctx context.Context, chatID, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var n int64
	if err := r.db.WithContext(ctx).Model(&Session{}).
		Where("chat_id = ? AND user_id = ? AND deleted = ?", chatID, userID, false).
		Count(&n).Error; err != nil {
		return false, apperr.Storage("check session owner", err)
	}
	return n > 0, nil
}

func (r *SessionRepo) Get(ctx context.Context, chatID, userID string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var s Session
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ? AND deleted = ?", chatID, userID, false).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("chat not found")
	}
	if err != nil {
		return nil, apperr.Storage("get session", err)
	}
	return &s, nil
}

func (r *SessionRepo) Stats(ctx context.Context, userID string) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row struct {
		TotalChats    int64
		TotalMessages *int64
		OldestChat    *int64
		NewestChat    *int64
	}
	err := r.db.WithContext(ctx).Model(&Session{}).
		Select("COUNT(*) AS total_chats, SUM(message_count) AS total_messages, MIN(created_ts) AS oldest_chat, MAX(created_ts) AS newest_chat").
		Where("user_id = ? AND deleted = ?", userID, false).
		Scan(&row).Error
	if err != nil {
		return Stats{}, apperr.Storage("session stats", err)
	}

	st := Stats{TotalChats: row.TotalChats, OldestChat: row.OldestChat, NewestChat: row.NewestChat}
	if row.TotalMessages != nil {
		st.TotalMessages = *row.TotalMessages
	}
	return st, nil
}

// DeletedChatIDs lists soft-deleted chats that still hold messages, oldest
// deletion first.
func (r *SessionRepo) DeletedChatIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = maxPageLimit
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var ids []string
	if err := r.db.WithContext(ctx).Model(&Session{}).
		Where("deleted = ?", true).
		Where("chat_id IN (?)", r.db.Model(&chatSequence{}).Select("chat_id")).
		Order("deleted_ts ASC").
		Limit(limit).
		Pluck("chat_id", &ids).Error; err != nil {
		return nil, apperr.Storage("list deleted sessions", err)
	}
	return ids, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "Duplicate entry")
}
