package entity

import "time"

// Move is immutable once persisted. Seq starts at 0 and orders all consumers.
type Move struct {
	SessionID string    `json:"session_id"`
	Seq       int       `json:"sequence_number"`
	PlayerID  string    `json:"player_id"`
	Mark      Cell      `json:"mark"`
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	CreatedAt time.Time `json:"created_at"`
}
