package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	service "github.com/okian/taskrouter/internal/app"
	"github.com/okian/taskrouter/internal/domain/model"
	"github.com/okian/taskrouter/pkg/logger"
	"github.com/okian/taskrouter/pkg/metrics"
)

// Submitter accepts messages into the pipeline.
type Submitter interface {
	Submit(ctx context.Context, msg model.Message) service.SubmitStatus
}

// retryDelay is the pause before resubmitting a message the queue rejected.
const retryDelay = 200 * time.Millisecond

// Consumer reads JSON chat messages and submits them. Offsets are committed
// once the service has accepted, deduplicated or ignored a message, so a
// rejected message is retried rather than lost.
type Consumer struct {
	cfg     Config
	fetcher messageFetcher
	submit  Submitter
	log     logger.Logger
	poll    time.Duration
}

// NewConsumer builds a consumer-group reader on cfg.MessagesTopic.
func NewConsumer(cfg Config, submit Submitter) (*Consumer, error) {
	if err := cfg.validate(cfg.MessagesTopic); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, ErrNoGroup
	}
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.MessagesTopic,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newConsumer(cfg, reader, submit), nil
}

func newConsumer(cfg Config, fetcher messageFetcher, submit Submitter) *Consumer {
	poll := cfg.PollTimeout
	if poll <= 0 {
		poll = defaultPollTimeout
	}
	return &Consumer{
		cfg:     cfg,
		fetcher: fetcher,
		submit:  submit,
		log:     logger.Get().Named("kafka-consumer"),
		poll:    poll,
	}
}

// Close shuts down the underlying reader.
func (c *Consumer) Close() error {
	return c.fetcher.Close()
}

// Run consumes until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info(ctx, "kafka consumer started",
		logger.String("topic", c.cfg.MessagesTopic),
		logger.String("group", c.cfg.GroupID),
		logger.Strings("brokers", c.cfg.Brokers),
	)
	defer c.log.Info(ctx, "kafka consumer stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.poll)
		msg, err := c.fetcher.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafkago.ErrGroupClosed):
				return nil
			}
			metrics.RecordErrorByComponent("kafka_consumer", "fetch")
			c.log.Error(ctx, "kafka fetch failed", logger.Error(err))
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			return err
		}

		if err := c.fetcher.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.RecordErrorByComponent("kafka_consumer", "commit")
			c.log.Error(ctx, "kafka commit failed", logger.Error(err), logger.Int("partition", msg.Partition))
		}
	}
}

// handle submits one record, retrying while the queue pushes back. It only
// returns an error when ctx ends.
func (c *Consumer) handle(ctx context.Context, rec kafkago.Message) error {
	msg, err := decodeMessage(rec)
	if err != nil {
		metrics.RecordMessageRejected("undecodable")
		c.log.Warn(ctx, "skipping undecodable message",
			logger.Error(err),
			logger.Int("partition", rec.Partition),
			logger.Any("offset", rec.Offset),
		)
		return nil
	}

	for {
		status := c.submit.Submit(ctx, msg)
		if status != service.StatusRejected {
			c.log.Debug(ctx, "message submitted",
				logger.String("messageID", msg.ID),
				logger.String("status", string(status)),
			)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// decodeMessage parses a record value. Records without an ID get one
// derived from their position so redeliveries still deduplicate.
func decodeMessage(rec kafkago.Message) (model.Message, error) {
	var msg model.Message
	if err := json.Unmarshal(rec.Value, &msg); err != nil {
		return model.Message{}, fmt.Errorf("decode message: %w", err)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return model.Message{}, errors.New("message text is empty")
	}
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("%s-%d-%d", rec.Topic, rec.Partition, rec.Offset)
	}
	if msg.TS.IsZero() && !rec.Time.IsZero() {
		msg.TS = rec.Time
	}
	return msg, nil
}
