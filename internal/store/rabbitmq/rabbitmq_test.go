package rabbitmq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/hugg-chat/internal/chat"
)

func TestTitleJobCodec(t *testing.T) {
	job := chat.TitleJob{
		ChatID:            "01J00000000000000000000001",
		UserID:            "user-1",
		FirstMessage:      "how do tides work",
		AssistantResponse: "the moon",
		ExpectedTitle:     chat.DefaultTitle,
	}
	body, err := EncodeTitleJob(job)
	require.NoError(t, err)

	got, err := DecodeTitleJob(body)
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestDecodeTitleJob_Rejects(t *testing.T) {
	for _, body := range []string{`not json`, `{}`, `{"chat_id":"x"}`, `{"user_id":"u"}`} {
		_, err := DecodeTitleJob([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, retryCount(nil))
	assert.Equal(t, 0, retryCount(amqp.Table{retryHeader: "two"}))
	assert.Equal(t, 2, retryCount(amqp.Table{retryHeader: int32(2)}))
	assert.Equal(t, 3, retryCount(amqp.Table{retryHeader: int64(3)}))
}

func TestRetryExpiration(t *testing.T) {
	assert.Equal(t, "10000", retryExpiration(10*time.Second))
}
