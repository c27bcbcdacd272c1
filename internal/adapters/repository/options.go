package repository

// TaskOption applies a configuration option to the MemoryTaskStore.
type TaskOption func(*MemoryTaskStore)

// WithMaxTasks bounds the number of tasks kept in memory; the oldest task
// is evicted first. Values <= 0 keep every task.
func WithMaxTasks(n int) TaskOption {
	return func(s *MemoryTaskStore) {
		s.maxTasks = n
	}
}
