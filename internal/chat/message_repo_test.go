package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/hugg-chat/internal/apperr"
)

func TestMessageRepo_AppendAssignsConsecutiveSequences(t *testing.T) {
	_, repo, _ := newTestRepos(t)
	ctx := context.Background()

	out, err := repo.Append(ctx, "chat-a", "u1", []Message{
		mustMessage(t, RoleUser, "hello"),
		mustMessage(t, RoleAssistant, "hi"),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(0), out[0].Sequence)
	assert.Equal(t, int64(1), out[1].Sequence)
	assert.NotEmpty(t, out[0].MessageID)
	assert.NotEqual(t, out[0].MessageID, out[1].MessageID)
	assert.Equal(t, "chat-a", out[1].ChatID)

	out, err = repo.Append(ctx, "chat-a", "u1", []Message{mustMessage(t, RoleUser, "again")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out[0].Sequence)

	// other chats count independently
	out, err = repo.Append(ctx, "chat-b", "u1", []Message{mustMessage(t, RoleUser, "x")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), out[0].Sequence)
}

func TestMessageRepo_ConcurrentAppendsAreLinearized(t *testing.T) {
	_, repo, _ := newTestRepos(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := repo.Append(ctx, "chat-c", "u1", []Message{
					{Role: RoleUser, Content: "q"},
					{Role: RoleAssistant, Content: "a"},
				})
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	page, err := repo.Page(ctx, "chat-c", 100, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, workers*perWorker*2)

	seqs := make([]int, 0, len(page.Messages))
	for _, m := range page.Messages {
		seqs = append(seqs, int(m.Sequence))
	}
	assert.True(t, sort.IntsAreSorted(seqs))
	for i, s := range seqs {
		assert.Equal(t, i, s)
	}
	// each batch occupies a contiguous pair
	for i := 0; i < len(page.Messages); i += 2 {
		assert.Equal(t, RoleUser, page.Messages[i].Role)
		assert.Equal(t, RoleAssistant, page.Messages[i+1].Role)
	}
}

func TestMessageRepo_PagesTwentyFiveMessages(t *testing.T) {
	_, repo, _ := newTestRepos(t)
	ctx := context.Background()
	seedMessages(t, repo, "chat-p", "u1", 25)

	first, err := repo.Page(ctx, "chat-p", 10, "")
	require.NoError(t, err)
	require.Len(t, first.Messages, 10)
	assert.True(t, first.HasMore)
	assert.Equal(t, int64(15), first.Messages[0].Sequence)
	assert.Equal(t, int64(24), first.Messages[9].Sequence)

	second, err := repo.Page(ctx, "chat-p", 10, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Messages, 10)
	assert.True(t, second.HasMore)
	assert.Equal(t, int64(5), second.Messages[0].Sequence)
	assert.Equal(t, int64(14), second.Messages[9].Sequence)

	third, err := repo.Page(ctx, "chat-p", 10, second.NextCursor)
	require.NoError(t, err)
	require.Len(t, third.Messages, 5)
	assert.False(t, third.HasMore)
	assert.Empty(t, third.NextCursor)
	assert.Equal(t, int64(0), third.Messages[0].Sequence)
}

func TestMessageRepo_PagingHasNoDuplicatesOrGaps(t *testing.T) {
	_, repo, _ := newTestRepos(t)
	ctx := context.Background()

	for _, total := range []int{0, 1, 7, 10, 11, 30} {
		chatID := fmt.Sprintf("chat-total-%d", total)
		seedMessages(t, repo, chatID, "u1", total)

		for _, limit := range []int{1, 3, 10} {
			seen := map[int64]bool{}
			cursor := ""
			for {
				page, err := repo.Page(ctx, chatID, limit, cursor)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(page.Messages), limit)
				for _, m := range page.Messages {
					assert.False(t, seen[m.Sequence], "duplicate sequence %d", m.Sequence)
					seen[m.Sequence] = true
				}
				assert.Equal(t, page.HasMore, page.NextCursor != "")
				if !page.HasMore {
					break
				}
				cursor = page.NextCursor
			}
			assert.Len(t, seen, total, "total=%d limit=%d", total, limit)
		}
	}
}

func TestMessageRepo_HasMoreOnlyWhenRowsExceedLimit(t *testing.T) {
	_, repo, _ := newTestRepos(t)
	ctx := context.Background()
	seedMessages(t, repo, "chat-h", "u1", 10)

	page, err := repo.Page(ctx, "chat-h", 10, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 10)
	assert.False(t, page.HasMore)

	page, err = repo.Page(ctx, "chat-h", 9, "")
	require.NoError(t, err)
	assert.True(t, page.HasMore)
}

func TestMessageRepo_OversizedLimitIsClampedAndReported(t *testing.T) {
	_, repo, _ := newTestRepos(t)
	ctx := context.Background()

	batch := make([]Message, 120)
	for i := range batch {
		batch[i] = mustMessage(t, RoleUser, fmt.Sprintf("m%d", i))
	}
	_, err := repo.Append(ctx, "chat-big", "u1", batch)
	require.NoError(t, err)

	page, err := repo.Page(ctx, "chat-big", 150, "")
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
	assert.Len(t, page.Messages, page.Limit)
	assert.True(t, page.HasMore)

	page, err = repo.Page(ctx, "chat-big", 150, page.NextCursor)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 20)
	assert.False(t, page.HasMore)

	page, err = repo.Page(ctx, "chat-big", 0, "")
	require.NoError(t, err)
	assert.Equal(t, 20, page.Limit)
}

func TestMessageRepo_StoresMaximumMultibyteContent(t *testing.T) {
	_, repo, _ := newTestRepos(t)
	ctx := context.Background()

	content := strings.Repeat("漢", MaxContentRunes)
	_, err := repo.Append(ctx, "chat-cjk", "u1", []Message{mustMessage(t, RoleUser, content)})
	require.NoError(t, err)

	page, err := repo.Page(ctx, "chat-cjk", 1, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, content, page.Messages[0].Content)
}

func TestMessageRepo_PageEmptyAndBadCursor(t *testing.T) {
	_, repo, _ := newTestRepos(t)
	ctx := context.Background()

	page, err := repo.Page(ctx, "missing", 0, "")
	require.NoError(t, err)
	assert.NotNil(t, page.Messages)
	assert.Empty(t, page.Messages)
	assert.False(t, page.HasMore)

	_, err = repo.Page(ctx, "missing", 10, "not-a-cursor")
	assert.True(t, apperr.Is(err, apperr.KindInvalidCursor))

	// a session cursor cannot page messages
	token, err := NewCursorCodec(testCursorSecret).Encode(Cursor{Field: FieldUpdatedAt, Value: "1", Tiebreak: "x", Direction: Desc})
	require.NoError(t, err)
	_, err = repo.Page(ctx, "missing", 10, token)
	assert.True(t, apperr.Is(err, apperr.KindInvalidCursor))
}

func TestMessageRepo_Recent(t *testing.T) {
	_, repo, _ := newTestRepos(t)
	ctx := context.Background()
	seedMessages(t, repo, "chat-r", "u1", 6)

	got, err := repo.Recent(ctx, "chat-r", 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, int64(2), got[0].Sequence)
	assert.Equal(t, int64(5), got[3].Sequence)

	got, err = repo.Recent(ctx, "chat-r", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMessageRepo_ClearRestartsSequence(t *testing.T) {
	_, repo, _ := newTestRepos(t)
	ctx := context.Background()
	seedMessages(t, repo, "chat-x", "u1", 3)
	seedMessages(t, repo, "chat-y", "u1", 2)

	n, err := repo.Clear(ctx, "chat-x")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	page, err := repo.Page(ctx, "chat-x", 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.Messages)

	out, err := repo.Append(ctx, "chat-x", "u1", []Message{mustMessage(t, RoleUser, "fresh")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), out[0].Sequence)

	count, err := repo.Count(ctx, "chat-y")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMessageRepo_PurgeDeleted(t *testing.T) {
	_, repo, _ := newTestRepos(t)
	ctx := context.Background()
	seedMessages(t, repo, "gone-1", "u1", 2)
	seedMessages(t, repo, "gone-2", "u1", 3)
	seedMessages(t, repo, "kept", "u1", 1)

	n, err := repo.PurgeDeleted(ctx, []string{"gone-1", "gone-2"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = repo.PurgeDeleted(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := repo.Count(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
