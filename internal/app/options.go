package service

import (
	"time"

	"github.com/okian/taskrouter/internal/adapters/repository"
	"github.com/okian/taskrouter/internal/domain/detect"
	"github.com/okian/taskrouter/internal/domain/rank"
	"github.com/okian/taskrouter/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the message queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMinMessageLength drops shorter messages at intake.
func WithMinMessageLength(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.minLength = n
		}
	}
}

// WithMaxSuggestions caps the ranked candidates stored with a task.
func WithMaxSuggestions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// WithAutoAssign assigns the top ranked candidate when a task is created.
func WithAutoAssign(enabled bool) Option {
	return func(s *Service) {
		s.autoAssign = enabled
	}
}

// WithDirectory sets the skills and roster source.
func WithDirectory(d repository.Directory) Option {
	return func(s *Service) {
		if d != nil {
			s.directory = d
		}
	}
}

// WithTaskStore sets where created tasks are persisted.
func WithTaskStore(ts repository.TaskStore) Option {
	return func(s *Service) {
		if ts != nil {
			s.tasks = ts
		}
	}
}

// WithDetectorOptions configures the detector.
func WithDetectorOptions(opts ...detect.Option) Option {
	return func(s *Service) {
		s.detectOpts = append(s.detectOpts, opts...)
	}
}

// WithRankerOptions configures the ranker.
func WithRankerOptions(opts ...rank.Option) Option {
	return func(s *Service) {
		s.rankOpts = append(s.rankOpts, opts...)
	}
}

// WithTaskListener registers a listener for task events.
func WithTaskListener(l TaskListener) Option {
	return func(s *Service) {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
}

// WithClock sets the time source for activity and task timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
