package models

import (
	"time"
)

// QueueEntry is one waiting client in a consultant's admission queue.
// Position is derived from list order, never stored.
type QueueEntry struct {
	ConsultantID string    `json:"consultant_id"`
	ClientID     string    `json:"client_id"`
	JoinedAt     time.Time `json:"joined_at"`
	Position     int       `json:"position"`
}

// QueueTicket is what a client gets back after joining a queue.
type QueueTicket struct {
	Position   int `json:"position"`
	ETAMinutes int `json:"eta_minutes"`
}

type QueueStats struct {
	ConsultantID string    `json:"consultant_id"`
	Waiting      int       `json:"waiting"`
	LastUpdated  time.Time `json:"last_updated"`
}
