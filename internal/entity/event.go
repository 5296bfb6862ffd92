package entity

type EventType string

const (
	EventQueueMatched     EventType = "queue.matched"
	EventInviteMatched    EventType = "invite.matched"
	EventGameMove         EventType = "game.move"
	EventGameTurn         EventType = "game.turn"
	EventGameEnded        EventType = "game.ended"
	EventRematchRequested EventType = "game.rematch.requested"
	EventRematchAccepted  EventType = "game.rematch.accepted"
)

// Event is the tagged record pushed to topic subscribers.
type Event struct {
	Type    EventType `json:"type"`
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
}

type QueueMatchedPayload struct {
	SessionID  string `json:"session_id"`
	Role       string `json:"role"`
	OpponentID string `json:"opponent_id"`
}

type MovePayload struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Player string `json:"player"`
}

type GameMovePayload struct {
	SessionID      string      `json:"session_id"`
	Move           MovePayload `json:"move"`
	SequenceNumber int         `json:"sequence_number"`
}

type GameTurnPayload struct {
	SessionID string `json:"session_id"`
	Turn      string `json:"turn"`
}

type GameEndedPayload struct {
	SessionID   string  `json:"session_id"`
	Result      Status  `json:"result"`
	WinningLine []Coord `json:"winning_line"`
	Reason      string  `json:"reason"`
	ForfeitedBy string  `json:"forfeited_by,omitempty"`
}

type RematchPayload struct {
	SessionID    string `json:"session_id"`
	RequesterID  string `json:"requester_id,omitempty"`
	NewSessionID string `json:"new_session_id,omitempty"`
}

// Topic keys.
const TopicLobby = "lobby"

func PlayerTopic(playerID string) string {
	return "player:" + playerID
}

func SessionTopic(sessionID string) string {
	return "session:" + sessionID
}
