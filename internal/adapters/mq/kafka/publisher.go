package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/okian/taskrouter/internal/domain/model"
	"github.com/okian/taskrouter/pkg/logger"
	"github.com/okian/taskrouter/pkg/metrics"
)

// eventHeader carries the task event type on every record.
const eventHeader = "event-type"

// Publisher writes task events as JSON to the tasks topic, keyed by task
// ID so every event for a task lands on the same partition.
type Publisher struct {
	topic  string
	writer messageWriter
	log    logger.Logger
}

// NewPublisher builds a synchronous writer on cfg.TasksTopic.
func NewPublisher(cfg Config) (*Publisher, error) {
	if err := cfg.validate(cfg.TasksTopic); err != nil {
		return nil, err
	}
	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.TasksTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(cfg.TasksTopic, writer), nil
}

func newPublisher(topic string, writer messageWriter) *Publisher {
	return &Publisher{
		topic:  topic,
		writer: writer,
		log:    logger.Get().Named("kafka-publisher"),
	}
}

// OnTask publishes ev. It satisfies the service's task listener contract.
func (p *Publisher) OnTask(ctx context.Context, ev model.TaskEvent) error { //nolint:gocritic // hugeParam
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode task event: %w", err)
	}
	msg := kafkago.Message{
		Key:     []byte(ev.Task.ID),
		Value:   value,
		Headers: []kafkago.Header{{Key: eventHeader, Value: []byte(ev.Type)}},
		Time:    time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordErrorByComponent("kafka_publisher", "write")
		return fmt.Errorf("publish task %s to %s: %w", ev.Task.ID, p.topic, err)
	}
	p.log.Debug(ctx, "task event published",
		logger.String("taskID", ev.Task.ID),
		logger.String("event", ev.Type),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
