package chat

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/suPer8Hu/hugg-chat/internal/db"
)

const testCursorSecret = "cursor-test-secret"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(Models()...))
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

func newTestRepos(t *testing.T) (*gorm.DB, *MessageRepo, *SessionRepo) {
	t.Helper()
	gdb := openTestDB(t)
	codec := NewCursorCodec(testCursorSecret)
	return gdb, NewMessageRepo(gdb, codec, time.Second*5), NewSessionRepo(gdb, codec, time.Second*5)
}

func mustMessage(t *testing.T, role Role, content string) Message {
	t.Helper()
	m, err := NewMessage(role, content, time.Time{})
	require.NoError(t, err)
	return m
}

func seedMessages(t *testing.T, repo *MessageRepo, chatID, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := repo.Append(context.Background(), chatID, userID, []Message{mustMessage(t, RoleUser, "m")})
		require.NoError(t, err)
	}
}
