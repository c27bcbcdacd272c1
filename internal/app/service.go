// Package service wires the detection and ranking engine into a message
// pipeline and implements the operations the HTTP API and Kafka consumer
// depend on.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/taskrouter/internal/adapters/mq/queue"
	workerpool "github.com/okian/taskrouter/internal/adapters/mq/worker"
	"github.com/okian/taskrouter/internal/adapters/repository"
	"github.com/okian/taskrouter/internal/domain/dedupe"
	"github.com/okian/taskrouter/internal/domain/detect"
	"github.com/okian/taskrouter/internal/domain/model"
	"github.com/okian/taskrouter/internal/domain/rank"
	"github.com/okian/taskrouter/pkg/logger"
	"github.com/okian/taskrouter/pkg/metrics"
)

// SubmitStatus reports what happened to a submitted message.
type SubmitStatus string

const (
	// StatusAccepted means the message was queued for processing.
	StatusAccepted SubmitStatus = "accepted"
	// StatusDuplicate means the message ID was seen before.
	StatusDuplicate SubmitStatus = "duplicate"
	// StatusIgnored means the message failed an intake guard (too short or
	// automated) and will never be processed.
	StatusIgnored SubmitStatus = "ignored"
	// StatusRejected means the queue could not take the message; it may be
	// resubmitted later.
	StatusRejected SubmitStatus = "rejected"
)

// TaskListener is notified about created and assigned tasks.
type TaskListener interface {
	OnTask(ctx context.Context, ev model.TaskEvent) error
}

// TaskListenerFunc adapts a function to TaskListener.
type TaskListenerFunc func(ctx context.Context, ev model.TaskEvent) error

// OnTask implements TaskListener.
func (f TaskListenerFunc) OnTask(ctx context.Context, ev model.TaskEvent) error { //nolint:gocritic // hugeParam
	return f(ctx, ev)
}

// Service owns the pipeline components.
type Service struct {
	mu sync.RWMutex

	// Core components
	detector  *detect.Detector
	ranker    *rank.Ranker
	deduper   dedupe.Deduper
	queue     eventqueue.Queue
	pool      *workerpool.Pool
	directory repository.Directory
	tasks     repository.TaskStore
	listeners []TaskListener

	detectOpts []detect.Option
	rankOpts   []rank.Option

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	minLength      int
	maxSuggestions int
	autoAssign     bool

	// State
	started bool
	cancel  context.CancelFunc
	now     func() time.Time

	logger logger.Logger
}

// New constructs a Service. Without WithDirectory and WithTaskStore it runs
// on an empty in-memory directory and an in-memory task store.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      10_000,
		dedupeSize:     50_000,
		minLength:      10,
		maxSuggestions: 3,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.directory == nil {
		s.directory = repository.NewMemoryDirectory(nil, nil)
	}
	if s.tasks == nil {
		s.tasks = repository.NewMemoryTaskStore()
	}

	s.detector = detect.New(append([]detect.Option{
		detect.WithLogger(s.logger.Named("detect")),
		detect.WithRuleHook(metrics.RecordDetectionRuleHit),
		detect.WithClock(s.now),
	}, s.detectOpts...)...)
	s.ranker = rank.New(append([]rank.Option{
		rank.WithLogger(s.logger.Named("rank")),
	}, s.rankOpts...)...)

	return s
}

// Start builds the queue, deduper and worker pool and starts processing.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting taskrouter service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.ProcessorFunc(s.Process))

	// Workers outlive the caller's context; Stop ends them by closing the queue.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "taskrouter service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Float64("threshold", s.detector.Threshold()),
		logger.Bool("autoAssign", s.autoAssign),
	)
	return nil
}

// Stop closes the queue and waits for the workers to drain it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping taskrouter service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
		}
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	s.started = false
	s.logger.Info(ctx, "taskrouter service stopped")
}

// Submit runs the intake guards, deduplicates by message ID and queues the
// message for asynchronous processing.
func (s *Service) Submit(ctx context.Context, msg model.Message) SubmitStatus { //nolint:gocritic // hugeParam
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		metrics.RecordMessageRejected("not_started")
		return StatusRejected
	}

	metrics.RecordMessageReceived()

	if msg.Automated {
		metrics.RecordMessageRejected("automated")
		return StatusIgnored
	}
	if len([]rune(strings.TrimSpace(msg.Text))) < s.minLength {
		metrics.RecordMessageRejected("too_short")
		return StatusIgnored
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if s.deduper.SeenAndRecord(ctx, msg.ID) {
		metrics.RecordMessageDuplicate()
		s.logger.Debug(ctx, "duplicate message, skipping", logger.String("messageID", msg.ID))
		return StatusDuplicate
	}

	if err := s.queue.Enqueue(ctx, msg); err != nil {
		// Forget the ID so the sender can retry.
		s.deduper.Unrecord(ctx, msg.ID)
		reason := "queue_full"
		if errors.Is(err, eventqueue.ErrClosed) {
			reason = "queue_closed"
		}
		metrics.RecordMessageRejected(reason)
		s.logger.Warn(ctx, "message rejected",
			logger.String("messageID", msg.ID),
			logger.String("reason", reason),
		)
		return StatusRejected
	}
	return StatusAccepted
}

// Detect classifies text against the directory's current skill vocabulary.
// Call options are applied after the vocabulary and may override it.
func (s *Service) Detect(ctx context.Context, text string, opts ...detect.CallOption) (model.DetectionResult, error) {
	catalog, err := s.directory.Skills(ctx)
	if err != nil {
		return model.DetectionResult{}, fmt.Errorf("resolve skill vocabulary: %w", err)
	}

	start := time.Now()
	res := s.detector.Detect(ctx, text, append([]detect.CallOption{
		detect.Vocabulary(model.SkillNames(catalog)),
	}, opts...)...)
	metrics.RecordDetectionLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordDetection(res.IsTask, res.Confidence)
	return res, nil
}

// Rank orders candidates for a task. A nil catalog selects the directory's.
func (s *Service) Rank(ctx context.Context, taskText string, requiredSkills []string,
	candidates []model.Candidate, catalog []model.Skill,
) ([]model.AssigneeScore, error) {
	if catalog == nil {
		var err error
		if catalog, err = s.directory.Skills(ctx); err != nil {
			return nil, fmt.Errorf("resolve skill catalog: %w", err)
		}
	}

	start := time.Now()
	scores := s.ranker.Rank(ctx, taskText, requiredSkills, candidates, catalog)
	top := 0.0
	if len(scores) > 0 {
		top = scores[0].TotalScore
	}
	metrics.RecordRanking(float64(time.Since(start).Microseconds())/1000, len(scores), top)
	return scores, nil
}

// Skills returns the directory's catalog.
func (s *Service) Skills(ctx context.Context) ([]model.Skill, error) {
	return s.directory.Skills(ctx)
}

// Tasks lists stored tasks newest first.
func (s *Service) Tasks(ctx context.Context, f repository.ListFilter) ([]model.Task, error) {
	return s.tasks.List(ctx, f)
}

// Task returns a single task.
func (s *Service) Task(ctx context.Context, id string) (model.Task, error) {
	return s.tasks.Get(ctx, id)
}

// Assign gives a task to a member of its team and moves the active task
// count from the previous assignee, if any.
func (s *Service) Assign(ctx context.Context, taskID, userID string) (model.Task, error) {
	if strings.TrimSpace(userID) == "" {
		return model.Task{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}
	if err := s.checkMember(ctx, t.TeamID, userID); err != nil {
		return model.Task{}, err
	}

	updated, previous, err := s.tasks.Assign(ctx, taskID, userID, s.now())
	if err != nil {
		return model.Task{}, err
	}
	if previous != userID {
		if previous != "" {
			s.adjustWorkload(ctx, previous, -1)
		}
		s.adjustWorkload(ctx, userID, 1)
	}

	metrics.RecordTaskAssigned()
	s.logger.Info(ctx, "task assigned",
		logger.String("taskID", taskID),
		logger.String("assignee", userID),
		logger.String("previous", previous),
	)
	s.notify(ctx, model.TaskEvent{Type: model.TaskEventAssigned, Task: updated})
	return updated, nil
}

func (s *Service) checkMember(ctx context.Context, teamID, userID string) error {
	members, err := s.directory.TeamMembers(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		// Tasks from teams the directory does not know accept any assignee.
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve team %s: %w", teamID, err)
	}
	for _, m := range members {
		if m.UserID == userID {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotMember, userID)
}

func (s *Service) adjustWorkload(ctx context.Context, userID string, delta int) {
	if err := s.directory.AdjustActiveTasks(ctx, userID, delta); err != nil {
		metrics.RecordErrorByComponent("directory", "adjust_workload")
		s.logger.Warn(ctx, "failed to adjust active tasks",
			logger.String("userID", userID),
			logger.Error(err),
		)
	}
}

func (s *Service) notify(ctx context.Context, ev model.TaskEvent) { //nolint:gocritic // hugeParam
	for _, l := range s.listeners {
		if err := l.OnTask(ctx, ev); err != nil {
			metrics.RecordErrorByComponent("listener", "notify")
			s.logger.Error(ctx, "task listener failed",
				logger.String("event", ev.Type),
				logger.String("taskID", ev.Task.ID),
				logger.Error(err),
			)
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"threshold":      s.detector.Threshold(),
		"autoAssign":     s.autoAssign,
		"maxSuggestions": s.maxSuggestions,
	}

	totalTasks := s.tasks.Count(ctx)
	stats["totalTasks"] = totalTasks
	metrics.UpdateTotalTasks(totalTasks)

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return stats
}
