// Package config defines service configuration and its loading layers.
//
// Conventions:
//   - New() returns a Config populated with defaults.
//   - Load layers a YAML file and TASKROUTER_* environment variables on top.
//   - Validation errors wrap ErrInvalidConfig.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the in-memory message queue.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// WorkerCount sets the number of message processing workers.
	WorkerCount int `koanf:"worker_count" validate:"min=1"`

	// DedupeSize bounds the message ID deduplication cache. Zero is unbounded.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// ConfidenceThreshold is the default detector threshold.
	ConfidenceThreshold float64 `koanf:"confidence_threshold" validate:"gte=0,lte=1"`

	// MinMessageLength drops messages shorter than this before detection.
	MinMessageLength int `koanf:"min_message_length" validate:"gte=0"`

	// DateRecognizer picks the deadline extractor: natural or keyword.
	DateRecognizer string `koanf:"date_recognizer" validate:"oneof=natural keyword"`

	// SentenceSplitter picks the segmenter: punkt or period.
	SentenceSplitter string `koanf:"sentence_splitter" validate:"oneof=punkt period"`

	// RankParallelism bounds concurrent candidate scoring.
	RankParallelism int `koanf:"rank_parallelism" validate:"min=1"`

	// TieBreak orders equal scores: input keeps roster order, user_id sorts.
	TieBreak string `koanf:"tie_break" validate:"oneof=input user_id"`

	// AutoAssign assigns the top candidate when a task is created.
	AutoAssign bool `koanf:"auto_assign"`

	// MaxSuggestions caps the candidates stored with each task.
	MaxSuggestions int `koanf:"max_suggestions" validate:"min=1,max=20"`

	// MaxTasks bounds the in-memory task store. Zero keeps every task.
	MaxTasks int `koanf:"max_tasks" validate:"gte=0"`

	// LexiconFile overrides detector keyword tables and weights. The
	// confidence_threshold setting still takes precedence over its threshold.
	LexiconFile string `koanf:"lexicon_file"`

	// DirectoryFile is a YAML skills and roster file for the memory directory.
	DirectoryFile string `koanf:"directory_file"`

	// DatabaseURL switches the directory and task store to Postgres.
	DatabaseURL string `koanf:"database_url"`

	// KafkaBrokers enables the Kafka consumer and publisher when non-empty.
	KafkaBrokers []string `koanf:"kafka_brokers" validate:"omitempty,dive,hostname_port"`

	KafkaGroupID       string `koanf:"kafka_group_id" validate:"required_with=KafkaBrokers"`
	KafkaMessagesTopic string `koanf:"kafka_messages_topic" validate:"required_with=KafkaBrokers"`
	KafkaTasksTopic    string `koanf:"kafka_tasks_topic" validate:"required_with=KafkaBrokers"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          50_000,
		ConfidenceThreshold: 0.4,
		MinMessageLength:    10,
		DateRecognizer:      "natural",
		SentenceSplitter:    "punkt",
		RankParallelism:     4,
		TieBreak:            "input",
		AutoAssign:          false,
		MaxSuggestions:      3,
		MaxTasks:            100_000,
		KafkaGroupID:        "taskrouter",
		KafkaMessagesTopic:  "chat.messages",
		KafkaTasksTopic:     "taskrouter.tasks",
	}
}

// KafkaEnabled reports whether Kafka brokers are configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
