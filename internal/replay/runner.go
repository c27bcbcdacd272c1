package replay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/taskrouter/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// ErrUnhealthy is returned when the service does not answer /healthz.
var ErrUnhealthy = errors.New("service unhealthy")

// Run executes a complete replay: health check, load or generate, submit,
// drain and verify.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("replay")

	log.Info(ctx, "starting replay",
		logger.String("baseURL", config.BaseURL),
		logger.String("input", config.InputFile),
		logger.Int("messages", config.NumMessages),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
	)

	c := newClient(config.BaseURL, config.Timeout)
	if err := checkServiceHealth(ctx, c); err != nil {
		return stats, err
	}

	msgs, err := prepareMessages(ctx, config, stats)
	if err != nil {
		return stats, err
	}

	if err := submitMessages(ctx, config, c, msgs, stats); err != nil {
		return stats, fmt.Errorf("submit messages: %w", err)
	}

	if err := waitForDrain(ctx, c, config.Settle); err != nil {
		log.Warn(ctx, "continuing before the queue drained", logger.Error(err))
	}

	tasks, err := fetchTasks(ctx, c)
	if err != nil {
		return stats, fmt.Errorf("fetch tasks: %w", err)
	}
	if err := verifyTasks(ctx, msgs, tasks, stats); err != nil {
		return stats, fmt.Errorf("verify tasks: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

func prepareMessages(ctx context.Context, config *Config, stats *Stats) ([]Message, error) {
	if config.InputFile != "" {
		msgs, err := readMessagesFile(config.InputFile)
		if err != nil {
			return nil, err
		}
		stats.Generated = len(msgs)
		return msgs, nil
	}

	senders, err := loadSenders(ctx, config.DirectoryFile)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	msgs := generateMessages(ctx, config, senders, stats)
	if err := saveMessages(ctx, config.OutputFile, msgs); err != nil {
		logger.Get().Warn(ctx, "failed to save messages", logger.Error(err))
	}
	return msgs, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, c *client) error {
	code, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if code != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, code)
	}
	return nil
}

// saveMessages writes generated messages so a run can be replayed exactly.
func saveMessages(ctx context.Context, filename string, msgs []Message) error {
	if filename == "" {
		filename = "replay_messages_" + time.Now().Format("20060102_150405") + ".jsonl"
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := writeMessages(f, msgs); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	logger.Get().Info(ctx, "messages saved", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var detectionRate, perSecond float64
	if stats.Expected > 0 {
		detectionRate = float64(stats.Detected) / float64(stats.Expected)
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("ignored", stats.Ignored),
		logger.Int("failed", stats.Failed),
		logger.Int("tasksStored", stats.TasksStored),
		logger.Float64("detectionRate", detectionRate),
		logger.Float64("messagesPerSecond", perSecond),
		logger.Duration("duration", stats.Duration),
	)
}
