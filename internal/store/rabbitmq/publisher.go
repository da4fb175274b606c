package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/hugg-chat/internal/chat"
)

const publishTimeout = 5 * time.Second

// Publisher sends title jobs to the main queue.
type Publisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("rabbitmq: url is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) PublishTitleJob(ctx context.Context, job chat.TitleJob) error {
	body, err := EncodeTitleJob(job)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishes
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ChatID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

func EncodeTitleJob(job chat.TitleJob) ([]byte, error) {
	return json.Marshal(job)
}

func DecodeTitleJob(body []byte) (chat.TitleJob, error) {
	var job chat.TitleJob
	if err := json.Unmarshal(body, &job); err != nil {
		return chat.TitleJob{}, err
	}
	if job.ChatID == "" || job.UserID == "" {
		return chat.TitleJob{}, errors.New("title job missing chat or user id")
	}
	return job, nil
}
