package replay

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/taskrouter/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging sends structured logs to stdout and, when logFile is set,
// to that file as well.
func SetupLogging(logFile, format string, verbose bool) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closer = f
	}

	if err := logger.InitWithWriter(w, format); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closer, nil
}

// ShowHelp prints usage information for the replay tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`taskrouter replay
=================

Submits chat messages to a running taskrouter and checks the tasks it stores.

Usage:
  go run ./cmd/replay [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -input string      JSON lines file of messages to replay instead of generating
  -directory string  YAML roster used to pick teams and senders
  -messages int      Number of messages to generate (default 1000)
  -task-ratio float  Share of generated messages phrased as requests (default 0.5)
  -seed uint         Generator seed (default 1)
  -workers int       Number of concurrent submitters (default CPU cores * 2)
  -timeout duration  HTTP request timeout (default 10s)
  -settle duration   Maximum wait for the queue to drain (default 30s)
  -output string     File for generated messages (default replay_messages_TIMESTAMP.jsonl)
  -log string        Also write logs to this file
  -log-format string text or json (default "text")
  -verbose           Enable debug logging
  -help              Show this help message

Examples:
  go run ./cmd/replay -messages 5000 -directory configs/directory.yaml
  go run ./cmd/replay -input replay_messages_20240501_101500.jsonl
`)
}
