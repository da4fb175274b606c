package chat

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"github.com/suPer8Hu/hugg-chat/internal/apperr"
)

// utf8mb4 content of MaxContentRunes runes overflows a MySQL TEXT column.
func TestMessageContentColumnFitsMaxContent(t *testing.T) {
	s, err := schema.Parse(&Message{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)
	field := s.LookUpField("Content")
	require.NotNil(t, field)
	assert.Equal(t, "mediumtext", field.TagSettings["TYPE"])
	assert.Greater(t, 1<<24-1, MaxContentRunes*4)
}

func TestNewMessage(t *testing.T) {
	past := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	m, err := NewMessage(RoleUser, "hello", past)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, m.Timestamp.Location())
	assert.True(t, m.Timestamp.Equal(past))

	future, err := NewMessage(RoleAssistant, "hi", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, future.Timestamp.After(time.Now()))

	for _, tc := range []struct {
		role    Role
		content string
	}{
		{"tool", "x"},
		{RoleUser, ""},
		{RoleUser, " \n "},
		{RoleUser, strings.Repeat("a", MaxContentRunes+1)},
	} {
		_, err := NewMessage(tc.role, tc.content, time.Time{})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	}
}

func TestNormalizeTitle(t *testing.T) {
	got, err := NormalizeTitle("  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, got)

	got, err = NormalizeTitle(" Trip ")
	require.NoError(t, err)
	assert.Equal(t, "Trip", got)

	_, err = NormalizeTitle(strings.Repeat("t", MaxTitleRunes+1))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestPreviewAndClamp(t *testing.T) {
	assert.Equal(t, "a b", preview(" a \n\n b "))
	assert.Len(t, []rune(preview(strings.Repeat("ü", 300))), PreviewRunes)

	assert.Equal(t, defaultPageLimit, clampLimit(0, defaultPageLimit))
	assert.Equal(t, defaultSessionPage, clampLimit(-5, defaultSessionPage))
	assert.Equal(t, maxPageLimit, clampLimit(1000, defaultPageLimit))
	assert.Equal(t, 7, clampLimit(7, defaultPageLimit))
}
