package replay

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/taskrouter/pkg/logger"
)

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeAccepted
	outcomeDuplicate
	outcomeIgnored
)

// submitMessages posts msgs with a bounded number of concurrent workers.
// Individual failures are counted, not returned.
func submitMessages(ctx context.Context, config *Config, c *client, msgs []Message, stats *Stats) error {
	log := logger.Get().Named("replay")
	log.Info(ctx, "submitting messages", logger.Int("count", len(msgs)), logger.Int("workers", config.Workers))

	var (
		counts     [4]atomic.Int64
		done       atomic.Int64
		lastReport atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for i := range msgs {
		msg := msgs[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			counts[submitOne(gctx, c, msg)].Add(1)

			n := done.Add(1)
			now := time.Now().Unix()
			if config.Verbose && lastReport.Swap(now) != now {
				log.Debug(gctx, "progress", logger.Int("submitted", int(n)), logger.Int("total", len(msgs)))
			}
			return nil
		})
	}
	err := g.Wait()

	stats.Submitted = int(done.Load())
	stats.Accepted = int(counts[outcomeAccepted].Load())
	stats.Duplicate = int(counts[outcomeDuplicate].Load())
	stats.Ignored = int(counts[outcomeIgnored].Load())
	stats.Failed = int(counts[outcomeFailed].Load())

	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("ignored", stats.Ignored),
		logger.Int("failed", stats.Failed),
	)
	return err
}

func submitOne(ctx context.Context, c *client, msg Message) outcome { //nolint:gocritic // hugeParam
	var ack AckResponse
	code, err := c.do(ctx, http.MethodPost, "/messages", msg, &ack)
	if err != nil {
		return outcomeFailed
	}
	switch {
	case code == http.StatusAccepted:
		return outcomeAccepted
	case code == http.StatusOK && ack.Duplicate:
		return outcomeDuplicate
	case code == http.StatusOK:
		return outcomeIgnored
	}
	return outcomeFailed
}
