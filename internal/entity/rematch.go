package entity

type RematchStatus string

const (
	RematchPending  RematchStatus = "pending"
	RematchAccepted RematchStatus = "accepted"
)

// RematchRequest is at most one per finished session.
type RematchRequest struct {
	SessionID    string        `json:"session_id"`
	RequesterID  string        `json:"requester_id"`
	Status       RematchStatus `json:"status"`
	NewSessionID string        `json:"new_session_id,omitempty"`
}
