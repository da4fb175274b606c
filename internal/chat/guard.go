package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/suPer8Hu/hugg-chat/internal/apperr"
	"github.com/suPer8Hu/hugg-chat/internal/logging"
)

type ownershipChecker interface {
	ExistsAndOwned(ctx context.Context, chatID, userID string) (bool, error)
}

// Guard rejects access to chats the caller does not own. Missing and
// soft-deleted chats are rejected the same way.
type Guard struct {
	sessions ownershipChecker
	log      *zap.Logger
}

func NewGuard(sessions ownershipChecker, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{sessions: sessions, log: log}
}

func (g *Guard) Authorize(ctx context.Context, chatID, userID string) error {
	if chatID == "" || userID == "" {
		return apperr.Forbidden("chat not accessible")
	}
	ok, err := g.sessions.ExistsAndOwned(ctx, chatID, userID)
	if err != nil {
		return apperr.Storage("authorize chat", err)
	}
	if !ok {
		g.log.Warn("chat access rejected",
			zap.String("chat_id", logging.Short(chatID)),
			zap.String("user_id", logging.Short(userID)))
		return apperr.Forbidden("chat not accessible")
	}
	return nil
}
