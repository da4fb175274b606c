package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/suPer8Hu/hugg-chat/internal/apperr"
	"github.com/suPer8Hu/hugg-chat/internal/logging"
)

const (
	defaultContextWindow = 50
	maxContextWindow     = 100
	purgeBatch           = 100
)

type MessageStore interface {
	Append(ctx context.Context, chatID, userID string, msgs []Message) ([]Message, error)
	Page(ctx context.Context, chatID string, limit int, cursor string) (MessagePage, error)
	Recent(ctx context.Context, chatID string, n int) ([]Message, error)
	Clear(ctx context.Context, chatID string) (int64, error)
	PurgeDeleted(ctx context.Context, chatIDs []string) (int64, error)
}

type SessionStore interface {
	Create(ctx context.Context, userID, title string) (*Session, error)
	List(ctx context.Context, userID string, limit int, cursor string) (SessionPage, error)
	Get(ctx context.Context, chatID, userID string) (*Session, error)
	TouchOnAppend(ctx context.Context, chatID, userID string, delta int64, last Message) error
	Rename(ctx context.Context, chatID, userID, title string) error
	RenameIfTitle(ctx context.Context, chatID, userID, expected, title string) (bool, error)
	SoftDelete(ctx context.Context, chatID, userID string) error
	ResetCounters(ctx context.Context, chatID, userID string) error
	ExistsAndOwned(ctx context.Context, chatID, userID string) (bool, error)
	Stats(ctx context.Context, userID string) (Stats, error)
	DeletedChatIDs(ctx context.Context, limit int) ([]string, error)
}

type Service struct {
	messages          MessageStore
	sessions          SessionStore
	guard             *Guard
	inference         *Orchestrator
	titles            TitlePublisher
	log               *zap.Logger
	contextWindowSize int
	now               func() time.Time
}

type Option func(*Service)

// WithTitlePublisher enables background title generation for new chats.
func WithTitlePublisher(p TitlePublisher) Option {
	return func(s *Service) { s.titles = p }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(messages MessageStore, sessions SessionStore, inference *Orchestrator, contextWindowSize int, opts ...Option) *Service {
	if contextWindowSize <= 0 {
		contextWindowSize = defaultContextWindow
	}
	if contextWindowSize > maxContextWindow {
		contextWindowSize = maxContextWindow
	}
	s := &Service{
		messages:          messages,
		sessions:          sessions,
		inference:         inference,
		log:               zap.NewNop(),
		contextWindowSize: contextWindowSize,
		now:               time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.guard = NewGuard(sessions, s.log)
	return s
}

// TurnResult is the outcome of a successful prompt.
type TurnResult struct {
	ChatID    string  `json:"chat_id"`
	Reply     string  `json:"response"`
	User      Message `json:"user_message"`
	Assistant Message `json:"assistant_message"`
}

func validatePrompt(prompt string) (string, error) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return "", apperr.Validation("prompt must not be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxContentRunes {
		return "", apperr.Validation("prompt is too long")
	}
	return trimmed, nil
}

// SendPrompt runs one conversational turn. The user message is persisted even
// when the model fails or its reply cannot be stored; in that case a failure
// marker takes the place of the reply and CompletionFailure is returned.
// Writes after the model call ignore cancellation of ctx so an abandoned
// request still leaves the attempted turn in the history.
func (s *Service) SendPrompt(ctx context.Context, userID, chatID, prompt string) (*TurnResult, error) {
	prompt, err := validatePrompt(prompt)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, chatID, userID); err != nil {
		return nil, err
	}

	history, err := s.messages.Recent(ctx, chatID, s.contextWindowSize)
	if err != nil {
		return nil, err
	}

	userMsg, err := NewMessage(RoleUser, prompt, s.now())
	if err != nil {
		return nil, err
	}

	reply, inferErr := s.inference.Complete(ctx, history, prompt)
	wctx := context.WithoutCancel(ctx)

	var assistantMsg Message
	if inferErr == nil {
		assistantMsg, err = NewMessage(RoleAssistant, reply, s.now())
		if err != nil {
			inferErr = apperr.CompletionFailure("unusable completion", err)
		}
	}
	if inferErr != nil {
		return nil, s.recordFailedTurn(wctx, chatID, userID, userMsg, inferErr)
	}

	stored, err := s.messages.Append(wctx, chatID, userID, []Message{userMsg, assistantMsg})
	if err != nil {
		return nil, err
	}
	s.touch(wctx, chatID, userID, stored)

	if len(history) == 0 {
		s.enqueueTitle(wctx, chatID, userID, prompt, reply)
	}

	s.log.Info("prompt answered",
		zap.String("chat_id", logging.Short(chatID)),
		zap.String("user_id", logging.Short(userID)),
		zap.Int("context_messages", len(history)))

	return &TurnResult{ChatID: chatID, Reply: reply, User: stored[0], Assistant: stored[1]}, nil
}

// recordFailedTurn stores the user message with the failure marker and
// returns inferErr unless the write itself fails.
func (s *Service) recordFailedTurn(ctx context.Context, chatID, userID string, userMsg Message, inferErr error) error {
	s.log.Error("completion failed",
		zap.String("chat_id", logging.Short(chatID)),
		zap.String("user_id", logging.Short(userID)),
		zap.Error(inferErr))

	marker, _ := NewMessage(RoleAssistant, FailedTurnMarker, s.now())
	stored, err := s.messages.Append(ctx, chatID, userID, []Message{userMsg, marker})
	if err != nil {
		return err
	}
	s.touch(ctx, chatID, userID, stored)
	return inferErr
}

// touch updates counters after an append. The messages are already durable,
// so a failure here is logged and not returned.
func (s *Service) touch(ctx context.Context, chatID, userID string, stored []Message) {
	if len(stored) == 0 {
		return
	}
	last := stored[len(stored)-1]
	if err := s.sessions.TouchOnAppend(ctx, chatID, userID, int64(len(stored)), last); err != nil {
		s.log.Warn("session metadata update failed",
			zap.String("chat_id", logging.Short(chatID)),
			zap.Error(err))
	}
}

func (s *Service) enqueueTitle(ctx context.Context, chatID, userID, first, reply string) {
	if s.titles == nil {
		return
	}
	sess, err := s.sessions.Get(ctx, chatID, userID)
	if err != nil || sess.Title != DefaultTitle {
		return
	}
	job := TitleJob{
		ChatID:            chatID,
		UserID:            userID,
		FirstMessage:      first,
		AssistantResponse: reply,
		ExpectedTitle:     sess.Title,
	}
	if err := s.titles.PublishTitleJob(ctx, job); err != nil {
		s.log.Warn("title job publish failed",
			zap.String("chat_id", logging.Short(chatID)),
			zap.Error(err))
	}
}

func (s *Service) GetHistory(ctx context.Context, userID, chatID string, limit int, cursor string) (MessagePage, error) {
	if err := s.guard.Authorize(ctx, chatID, userID); err != nil {
		return MessagePage{}, err
	}
	return s.messages.Page(ctx, chatID, limit, cursor)
}

// ClearHistory deletes every message of the chat and zeroes its counters.
// The two writes are not atomic: if the reset fails after the delete, the
// counters keep their old values until the next successful clear.
func (s *Service) ClearHistory(ctx context.Context, userID, chatID string) (int64, error) {
	if err := s.guard.Authorize(ctx, chatID, userID); err != nil {
		return 0, err
	}
	deleted, err := s.messages.Clear(ctx, chatID)
	if err != nil {
		return 0, err
	}
	if err := s.sessions.ResetCounters(ctx, chatID, userID); err != nil {
		s.log.Error("reset counters after clear failed",
			zap.String("chat_id", logging.Short(chatID)),
			zap.Int64("deleted", deleted),
			zap.Error(err))
		return deleted, apperr.Wrap(apperr.KindStorageUnavailable, "history cleared but counters not reset", err)
	}
	s.log.Info("history cleared",
		zap.String("chat_id", logging.Short(chatID)),
		zap.Int64("deleted", deleted))
	return deleted, nil
}

func (s *Service) CreateSession(ctx context.Context, userID, title string) (*Session, error) {
	title, err := NormalizeTitle(title)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Create(ctx, userID, title)
	if err != nil {
		return nil, err
	}
	s.log.Info("chat created",
		zap.String("chat_id", logging.Short(sess.ChatID)),
		zap.String("user_id", logging.Short(userID)))
	return sess, nil
}

func (s *Service) ListSessions(ctx context.Context, userID string, limit int, cursor string) (SessionPage, error) {
	return s.sessions.List(ctx, userID, limit, cursor)
}

func (s *Service) GetSession(ctx context.Context, userID, chatID string) (*Session, error) {
	if err := s.guard.Authorize(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.sessions.Get(ctx, chatID, userID)
}

func (s *Service) RenameSession(ctx context.Context, userID, chatID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return apperr.Validation("title must not be empty")
	}
	title, err := NormalizeTitle(title)
	if err != nil {
		return err
	}
	if err := s.guard.Authorize(ctx, chatID, userID); err != nil {
		return err
	}
	if err := s.sessions.Rename(ctx, chatID, userID, title); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn("rename matched no chat", zap.String("chat_id", logging.Short(chatID)))
		}
		return err
	}
	return nil
}

// DeleteSession soft-deletes the chat. Its messages stay until the reaper
// purges them.
func (s *Service) DeleteSession(ctx context.Context, userID, chatID string) error {
	if err := s.guard.Authorize(ctx, chatID, userID); err != nil {
		return err
	}
	if err := s.sessions.SoftDelete(ctx, chatID, userID); err != nil {
		return err
	}
	s.log.Info("chat deleted", zap.String("chat_id", logging.Short(chatID)))
	return nil
}

func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	return s.sessions.Stats(ctx, userID)
}

// GenerateTitle never fails; fallback reports that the model was not used.
func (s *Service) GenerateTitle(ctx context.Context, userID, firstMessage, assistantResponse string) (string, bool) {
	title, fallback := s.inference.GenerateTitle(ctx, firstMessage, assistantResponse)
	if fallback {
		s.log.Info("title generation fell back", zap.String("user_id", logging.Short(userID)))
	}
	return title, fallback
}

// ApplyGeneratedTitle handles a queued title job. A chat renamed or deleted
// since the job was queued is left untouched.
func (s *Service) ApplyGeneratedTitle(ctx context.Context, job TitleJob) error {
	expected := job.ExpectedTitle
	if expected == "" {
		expected = DefaultTitle
	}
	title, fallback := s.inference.GenerateTitle(ctx, job.FirstMessage, job.AssistantResponse)
	changed, err := s.sessions.RenameIfTitle(ctx, job.ChatID, job.UserID, expected, title)
	if err != nil {
		return err
	}
	s.log.Info("title job done",
		zap.String("chat_id", logging.Short(job.ChatID)),
		zap.Bool("fallback", fallback),
		zap.Bool("applied", changed))
	return nil
}

// PurgeDeletedChats removes the messages of soft-deleted chats in batches
// and returns how many rows were dropped.
func (s *Service) PurgeDeletedChats(ctx context.Context) (int64, error) {
	var total int64
	for {
		ids, err := s.sessions.DeletedChatIDs(ctx, purgeBatch)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}
		n, err := s.messages.PurgeDeleted(ctx, ids)
		if err != nil {
			return total, err
		}
		total += n
		if len(ids) < purgeBatch {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
