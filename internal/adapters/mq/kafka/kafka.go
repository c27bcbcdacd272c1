// Package kafka moves chat messages and task events over Kafka: a consumer
// feeds the message topic into the service and a publisher writes task
// events to the tasks topic.
package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Config holds the broker settings shared by the consumer and publisher.
type Config struct {
	Brokers       []string
	GroupID       string
	MessagesTopic string
	TasksTopic    string
	PollTimeout   time.Duration
}

// Sentinel configuration errors.
var (
	ErrNoBrokers = errors.New("at least one broker is required")
	ErrNoTopic   = errors.New("topic must not be empty")
	ErrNoGroup   = errors.New("consumer group must not be empty")
)

const defaultPollTimeout = 5 * time.Second

// messageFetcher is the read side of *kafkago.Reader.
type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// messageWriter is the write side of *kafkago.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

func (c Config) validate(topic string) error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	if strings.TrimSpace(topic) == "" {
		return ErrNoTopic
	}
	return nil
}
