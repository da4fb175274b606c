package chat

import (
	"context"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/suPer8Hu/hugg-chat/internal/apperr"
	"github.com/suPer8Hu/hugg-chat/internal/common"
)

const defaultStorageTimeout = 5 * time.Second

// MessageRepo is the append-only message log. Sequence numbers are reserved
// from a per-chat counter row, so concurrent appends to one chat serialize on
// that row and never collide.
type MessageRepo struct {
	db      *gorm.DB
	cursors *CursorCodec
	timeout time.Duration
}

func NewMessageRepo(db *gorm.DB, cursors *CursorCodec, timeout time.Duration) *MessageRepo {
	if timeout <= 0 {
		timeout = defaultStorageTimeout
	}
	return &MessageRepo{db: db, cursors: cursors, timeout: timeout}
}

// Append stores msgs in order as the next len(msgs) entries of the chat and
// returns them with ids and sequences filled in.
func (r *MessageRepo) Append(ctx context.Context, chatID, userID string, msgs []Message) ([]Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out := make([]Message, len(msgs))
	copy(out, msgs)
	n := int64(len(out))

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&chatSequence{ChatID: chatID}).Error; err != nil {
			return err
		}
		if err := tx.Model(&chatSequence{}).
			Where("chat_id = ?", chatID).
			UpdateColumn("next_seq", gorm.Expr("next_seq + ?", n)).Error; err != nil {
			return err
		}
		var seq chatSequence
		if err := tx.Where("chat_id = ?", chatID).First(&seq).Error; err != nil {
			return err
		}

		start := seq.NextSeq - n
		for i := range out {
			out[i].ID = 0
			out[i].MessageID = common.NewUUID()
			out[i].ChatID = chatID
			out[i].UserID = userID
			out[i].Sequence = start + int64(i)
		}
		return tx.Create(&out).Error
	})
	if err != nil {
		return nil, apperr.Storage("append messages", err)
	}
	return out, nil
}

// Page returns up to limit messages oldest to newest. Without a cursor it is
// the newest page; with one, the page just before the cursor position. A limit
// above 100 is clamped; the returned page reports the limit it used.
func (r *MessageRepo) Page(ctx context.Context, chatID string, limit int, cursor string) (MessagePage, error) {
	limit = clampLimit(limit, defaultPageLimit)

	var before int64 = -1
	if cursor != "" {
		cur, err := r.cursors.DecodeFor(cursor, FieldSequence, Desc)
		if err != nil {
			return MessagePage{}, err
		}
		v, err := strconv.ParseInt(cur.Value, 10, 64)
		if err != nil || v < 0 {
			return MessagePage{}, apperr.InvalidCursor(err)
		}
		before = v
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	q := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("sequence DESC").
		Limit(limit + 1)
	if before >= 0 {
		q = q.Where("sequence < ?", before)
	}

	var rows []Message
	if err := q.Find(&rows).Error; err != nil {
		return MessagePage{}, apperr.Storage("page messages", err)
	}

	page := MessagePage{Messages: []Message{}, Limit: limit}
	if len(rows) > limit {
		page.HasMore = true
		rows = rows[:limit]
	}
	reverse(rows)
	page.Messages = append(page.Messages, rows...)

	if page.HasMore {
		token, err := r.cursors.Encode(Cursor{
			Field:     FieldSequence,
			Value:     strconv.FormatInt(rows[0].Sequence, 10),
			Direction: Desc,
		})
		if err != nil {
			return MessagePage{}, apperr.Wrap(apperr.KindInternal, "encode cursor", err)
		}
		page.NextCursor = token
	}
	return page, nil
}

// Recent returns the last n messages of the chat, oldest first.
func (r *MessageRepo) Recent(ctx context.Context, chatID string, n int) ([]Message, error) {
	if n <= 0 {
		return []Message{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("sequence DESC").
		Limit(n).
		Find(&rows).Error; err != nil {
		return nil, apperr.Storage("recent messages", err)
	}
	reverse(rows)
	return rows, nil
}

// Clear removes every message of the chat and restarts its sequence at zero.
func (r *MessageRepo) Clear(ctx context.Context, chatID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("chat_id = ?", chatID).Delete(&Message{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return tx.Where("chat_id = ?", chatID).Delete(&chatSequence{}).Error
	})
	if err != nil {
		return 0, apperr.Storage("clear messages", err)
	}
	return deleted, nil
}

// PurgeDeleted drops messages and counters of the given chats.
func (r *MessageRepo) PurgeDeleted(ctx context.Context, chatIDs []string) (int64, error) {
	if len(chatIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var purged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("chat_id IN ?", chatIDs).Delete(&Message{})
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return tx.Where("chat_id IN ?", chatIDs).Delete(&chatSequence{}).Error
	})
	if err != nil {
		return 0, apperr.Storage("purge messages", err)
	}
	return purged, nil
}

// Count is the number of stored messages of the chat.
func (r *MessageRepo) Count(ctx context.Context, chatID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var n int64
	if err := r.db.WithContext(ctx).Model(&Message{}).
		Where("chat_id = ?", chatID).
		Count(&n).Error; err != nil {
		return 0, apperr.Storage("count messages", err)
	}
	return n, nil
}

func reverse(ms []Message) {
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
}
