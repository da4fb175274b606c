package chat

import "context"

// TitleJob asks the worker to replace the default title of a new chat.
type TitleJob struct {
	ChatID            string `json:"chat_id"`
	UserID            string `json:"user_id"`
	FirstMessage      string `json:"first_message"`
	AssistantResponse string `json:"assistant_response,omitempty"`
	// Title the chat had when the job was queued; a different title means the
	// user renamed it and the job is dropped.
	ExpectedTitle string `json:"expected_title"`
}

type TitlePublisher interface {
	PublishTitleJob(ctx context.Context, job TitleJob) error
}
