package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/taskrouter/internal/adapters/http/api"
	"github.com/okian/taskrouter/internal/adapters/http/site"
	"github.com/okian/taskrouter/internal/adapters/http/swagger"
	"github.com/okian/taskrouter/internal/adapters/mq/kafka"
	"github.com/okian/taskrouter/internal/adapters/repository"
	app "github.com/okian/taskrouter/internal/app"
	"github.com/okian/taskrouter/internal/config"
	"github.com/okian/taskrouter/internal/domain/detect"
	"github.com/okian/taskrouter/internal/domain/lexicon"
	"github.com/okian/taskrouter/internal/domain/rank"
	"github.com/okian/taskrouter/pkg/logger"
	"github.com/okian/taskrouter/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		_, _ = os.Stderr.WriteString("taskrouter: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.InitWithWriter(os.Stdout, cfg.LogFormat); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log := logger.Get()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	detectorOpts, err := detectorOptions(cfg)
	if err != nil {
		return err
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMinMessageLength(cfg.MinMessageLength),
		app.WithMaxSuggestions(cfg.MaxSuggestions),
		app.WithAutoAssign(cfg.AutoAssign),
		app.WithDirectory(st.directory),
		app.WithTaskStore(st.tasks),
		app.WithDetectorOptions(detectorOpts...),
		app.WithRankerOptions(rankerOptions(cfg)...),
	}

	var (
		consumer  *kafka.Consumer
		publisher *kafka.Publisher
	)
	if cfg.KafkaEnabled() {
		kcfg := kafkaConfig(cfg)
		if publisher, err = kafka.NewPublisher(kcfg); err != nil {
			return err
		}
		defer func() { _ = publisher.Close() }()
		opts = append(opts, app.WithTaskListener(publisher))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if cfg.KafkaEnabled() {
		if consumer, err = kafka.NewConsumer(kafkaConfig(cfg), svc); err != nil {
			return err
		}
		defer func() { _ = consumer.Close() }()
	}

	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(gctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if consumer != nil {
		g.Go(func() error {
			log.Info(gctx, "consuming chat messages",
				logger.Strings("brokers", cfg.KafkaBrokers),
				logger.String("topic", cfg.KafkaMessagesTopic),
			)
			return consumer.Run(gctx)
		})
	}
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// storage bundles the directory and task store with their shared cleanup.
type storage struct {
	directory repository.Directory
	tasks     repository.TaskStore
	close     func()
}

// openStorage picks Postgres when a database URL is set and the in-memory
// stores otherwise.
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.DatabaseURL != "" {
		db, err := repository.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := repository.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &storage{
			directory: repository.NewPostgresDirectory(db),
			tasks:     repository.NewPostgresTaskStore(db),
			close:     func() { _ = db.Close() },
		}, nil
	}

	var dir repository.Directory = repository.NewMemoryDirectory(nil, nil)
	if cfg.DirectoryFile != "" {
		loaded, err := repository.LoadDirectoryFile(cfg.DirectoryFile)
		if err != nil {
			return nil, err
		}
		dir = loaded
	}
	return &storage{
		directory: dir,
		tasks:     repository.NewMemoryTaskStore(repository.WithMaxTasks(cfg.MaxTasks)),
		close:     func() {},
	}, nil
}

func detectorOptions(cfg *config.Config) ([]detect.Option, error) {
	var opts []detect.Option
	if cfg.LexiconFile != "" {
		lex, err := lexicon.LoadFile(cfg.LexiconFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, detect.WithLexicon(lex))
	}
	opts = append(opts, detect.WithThreshold(cfg.ConfidenceThreshold))

	switch cfg.DateRecognizer {
	case "keyword":
		opts = append(opts, detect.WithDateRecognizer(nil))
	default:
		opts = append(opts, detect.WithDateRecognizer(detect.NewNaturalRecognizer()))
	}

	switch cfg.SentenceSplitter {
	case "period":
		opts = append(opts, detect.WithSentenceSplitter(detect.PeriodSplitter{}))
	default:
		punkt, err := detect.NewPunktSplitter()
		if err != nil {
			return nil, fmt.Errorf("sentence splitter: %w", err)
		}
		opts = append(opts, detect.WithSentenceSplitter(punkt))
	}
	return opts, nil
}

func rankerOptions(cfg *config.Config) []rank.Option {
	opts := []rank.Option{rank.WithParallelism(cfg.RankParallelism)}
	if cfg.TieBreak == "user_id" {
		opts = append(opts, rank.WithUserIDTieBreak())
	}
	return opts
}

func kafkaConfig(cfg *config.Config) kafka.Config {
	return kafka.Config{
		Brokers:       cfg.KafkaBrokers,
		GroupID:       cfg.KafkaGroupID,
		MessagesTopic: cfg.KafkaMessagesTopic,
		TasksTopic:    cfg.KafkaTasksTopic,
	}
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the queue, worker and task gauges.
			_ = svc.GetStats()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
