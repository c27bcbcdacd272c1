// Package replay drives a running taskrouter over HTTP: it generates or
// loads chat messages, submits them concurrently and checks what came out
// the other side.
package replay

import "time"

// Config holds configuration for a replay run.
type Config struct {
	BaseURL       string        // Base URL of the service
	InputFile     string        // JSON lines file of messages; generated when empty
	DirectoryFile string        // YAML roster used to pick teams and senders
	NumMessages   int           // Number of messages to generate
	TaskRatio     float64       // Share of generated messages phrased as requests
	Seed          uint64        // Generator seed, for reproducible runs
	Workers       int           // Number of concurrent submitters
	Timeout       time.Duration // HTTP request timeout
	Settle        time.Duration // Upper bound on waiting for the queue to drain
	OutputFile    string        // Where generated messages are written
	Verbose       bool          // Enable verbose logging
}

// Message is the wire form accepted by POST /messages.
type Message struct {
	ID        string `json:"id"`
	TeamID    string `json:"team_id"`
	SenderID  string `json:"sender_id"`
	Channel   string `json:"channel,omitempty"`
	Text      string `json:"text"`
	Automated bool   `json:"automated,omitempty"`
	TS        string `json:"ts,omitempty"`

	// ExpectTask marks generated requests; it is not sent.
	ExpectTask bool `json:"-"`
}

// AckResponse represents the response from message submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Task is the subset of a stored task the verifier inspects.
type Task struct {
	ID          string `json:"id"`
	MessageID   string `json:"message_id"`
	TeamID      string `json:"team_id"`
	Status      string `json:"status"`
	AssigneeID  string `json:"assignee_id"`
	Suggestions []struct {
		UserID     string  `json:"user_id"`
		TotalScore float64 `json:"total_score"`
	} `json:"suggestions"`
}

// Stats holds run statistics.
type Stats struct {
	Generated    int
	Expected     int
	Submitted    int
	Accepted     int
	Duplicate    int
	Ignored      int
	Failed       int
	TasksStored  int
	Detected     int
	WithSuggests int
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}
