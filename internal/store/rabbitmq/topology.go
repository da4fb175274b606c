package rabbitmq

import (
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	retryHeader = "x-retry-count"
	retryDelay  = 10 * time.Second
	MaxAttempts = 3
	retrySuffix = ".retry"
	deadSuffix  = ".dlq"
)

// declareTopology declares the main queue, its delayed retry queue and the
// dead letter queue. Publisher and consumer both call it so either can start
// first.
func declareTopology(ch *amqp.Channel, queue string) error {
	mainQ := queue
	retryQ := queue + retrySuffix
	dlqQ := queue + deadSuffix

	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		return err
	}

	// retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": mainQ,
	}); err != nil {
		return err
	}

	// main queue: dead-letter to DLQ on nack(requeue=false)
	_, err := ch.QueueDeclare(mainQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	})
	return err
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func retryExpiration(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
