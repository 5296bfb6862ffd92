package entity

import (
	"encoding/json"
	"time"
)

const (
	ClassCasual = "casual"
	ClassRanked = "ranked"
)

type Preferences struct {
	Ranked bool `json:"ranked"`
}

// Class is the compatibility class: only entries of the same class match.
func (that Preferences) Class() string {
	if that.Ranked {
		return ClassRanked
	}
	return ClassCasual
}

// QueueEntry is replaced, never mutated, while the player waits.
type QueueEntry struct {
	PlayerID    string      `json:"player_id"`
	EnqueuedAt  time.Time   `json:"enqueued_at"`
	Preferences Preferences `json:"preferences"`
}

type QueueState string

const (
	QueueIdle    QueueState = "idle"
	QueueWaiting QueueState = "waiting"
	QueueMatched QueueState = "matched"
)

type QueueStatus struct {
	State         QueueState    `json:"state"`
	Position      int           `json:"position,omitempty"`
	EstimatedWait time.Duration `json:"-"`
	SessionID     string        `json:"session_id,omitempty"`
}

func (that QueueStatus) MarshalJSON() ([]byte, error) {
	type alias QueueStatus
	return json.Marshal(struct {
		alias
		EstimatedWaitSec int `json:"estimated_wait_sec,omitempty"`
	}{
		alias:            alias(that),
		EstimatedWaitSec: int(that.EstimatedWait / time.Second),
	})
}
