package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/taskrouter/internal/replay"
)

// Default configuration constants.
const (
	defaultMessages  = 1000
	defaultTaskRatio = 0.5
	defaultWorkers   = 2 // multiplier for runtime.NumCPU()
	defaultTimeout   = 10 * time.Second
	defaultSettle    = 30 * time.Second
	defaultRunLimit  = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		input     = flag.String("input", "", "JSON lines file of messages to replay")
		directory = flag.String("directory", "", "YAML roster used to pick teams and senders")
		messages  = flag.Int("messages", defaultMessages, "Number of messages to generate")
		taskRatio = flag.Float64("task-ratio", defaultTaskRatio, "Share of generated messages phrased as requests")
		seed      = flag.Uint64("seed", 1, "Generator seed")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle    = flag.Duration("settle", defaultSettle, "Maximum wait for the queue to drain")
		output    = flag.String("output", "", "File for generated messages")
		logFile   = flag.String("log", "", "Also write logs to this file")
		logFormat = flag.String("log-format", "text", "text or json")
		verbose   = flag.Bool("verbose", false, "Enable debug logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		replay.ShowHelp()
		return
	}

	closer, err := replay.SetupLogging(*logFile, *logFormat, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunLimit)
	defer cancel()

	_, err = replay.Run(ctx, &replay.Config{
		BaseURL:       *baseURL,
		InputFile:     *input,
		DirectoryFile: *directory,
		NumMessages:   *messages,
		TaskRatio:     *taskRatio,
		Seed:          *seed,
		Workers:       max(*workers, 1),
		Timeout:       *timeout,
		Settle:        *settle,
		OutputFile:    *output,
		Verbose:       *verbose,
	})
	if err != nil {
		_, _ = os.Stderr.WriteString("replay failed: " + err.Error() + "\n")
		os.Exit(1) //nolint:gocritic // exitAfterDefer
	}
}
