package replay

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/taskrouter/pkg/logger"
)

// pageSize matches the service's maximum list limit.
const pageSize = 500

const pollInterval = 250 * time.Millisecond

// waitForDrain polls /stats until the queue is empty and totalTasks has
// held steady across two polls, or settle elapses. Workers may still hold
// dequeued messages when the queue first reads empty.
func waitForDrain(ctx context.Context, c *client, settle time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, settle)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	lastTotal := -1.0
	for {
		var stats map[string]any
		code, err := c.do(ctx, http.MethodGet, "/stats", nil, &stats)
		if err == nil && code == http.StatusOK {
			queued, qok := stats["queueLength"].(float64)
			total, tok := stats["totalTasks"].(float64)
			switch {
			case !qok || !tok || queued != 0:
				lastTotal = -1
			case total == lastTotal:
				return nil
			default:
				lastTotal = total
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("queue did not drain within %s: %w", settle, ctx.Err())
		case <-ticker.C:
		}
	}
}

// fetchTasks pages through GET /tasks.
func fetchTasks(ctx context.Context, c *client) ([]Task, error) {
	var all []Task
	for offset := 0; ; offset += pageSize {
		var page []Task
		path := "/tasks?limit=" + strconv.Itoa(pageSize) + "&offset=" + strconv.Itoa(offset)
		code, err := c.do(ctx, http.MethodGet, path, nil, &page)
		if err != nil {
			return nil, err
		}
		if code != http.StatusOK {
			return nil, fmt.Errorf("list tasks: status %d", code)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// verifyTasks matches stored tasks against the submitted messages.
func verifyTasks(ctx context.Context, msgs []Message, tasks []Task, stats *Stats) error {
	byID := make(map[string]*Message, len(msgs))
	for i := range msgs {
		byID[msgs[i].ID] = &msgs[i]
	}

	stats.TasksStored = len(tasks)
	for i := range tasks {
		t := &tasks[i]
		msg, ok := byID[t.MessageID]
		if !ok {
			continue
		}
		stats.Detected++
		if len(t.Suggestions) > 0 {
			stats.WithSuggests++
		}
		if msg.TeamID != t.TeamID {
			return fmt.Errorf("task %s: team %q, message team %q", t.ID, t.TeamID, msg.TeamID)
		}
		for j := range t.Suggestions {
			if t.Suggestions[j].UserID == msg.SenderID {
				return fmt.Errorf("task %s: sender %s suggested as assignee", t.ID, msg.SenderID)
			}
			if j > 0 && t.Suggestions[j].TotalScore > t.Suggestions[j-1].TotalScore {
				return fmt.Errorf("task %s: suggestions out of order at %d", t.ID, j)
			}
		}
	}

	logger.Get().Info(ctx, "verification completed",
		logger.Int("expected", stats.Expected),
		logger.Int("detected", stats.Detected),
		logger.Int("withSuggestions", stats.WithSuggests),
	)
	return nil
}
