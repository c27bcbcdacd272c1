// Package model contains domain models passed between layers.
package model

import "time"

// Message is a chat message submitted for task detection.
type Message struct {
	ID        string    `json:"id"`                  // unique id for idempotency
	TeamID    string    `json:"team_id"`             // team whose roster is ranked
	SenderID  string    `json:"sender_id"`           // requester, excluded from the candidate pool
	Channel   string    `json:"channel,omitempty"`   // free-form origin, e.g. "general"
	Text      string    `json:"text"`                // raw message text
	Automated bool      `json:"automated,omitempty"` // set for bots and integrations
	TS        time.Time `json:"ts"`                  // message timestamp
}
