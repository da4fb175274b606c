package rabbitmq

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer reads title jobs with a bounded number of unacked deliveries.
type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	queue    string
	prefetch int
}

func NewConsumer(url, queue string, prefetch int) (*Consumer, error) {
	if url == "" {
		return nil, errors.New("rabbitmq: url is empty")
	}
	if prefetch <= 0 {
		prefetch = 1
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
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, prefetch: prefetch}, nil
}

func (c *Consumer) Deliveries() (<-chan amqp.Delivery, error) {
	return c.ch.Consume(c.queue, "", false, false, false, false, nil)
}

// Retry acks d and republishes it to the delay queue, or sends it to the dead
// letter queue once MaxAttempts is reached. It reports whether the job was
// dead-lettered.
func (c *Consumer) Retry(ctx context.Context, d amqp.Delivery) (bool, error) {
	attempt := retryCount(d.Headers) + 1
	if attempt >= MaxAttempts {
		return true, d.Nack(false, false)
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(attempt)

	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err := c.ch.PublishWithContext(cctx, "", c.queue+retrySuffix, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Headers:      headers,
		Expiration:   retryExpiration(retryDelay),
		Body:         d.Body,
	})
	if err != nil {
		// leave it to the broker's dead letter path
		return true, d.Nack(false, false)
	}
	return false, d.Ack(false)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
