package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// Message represents a WebSocket message with an action type and a payload.
// Replies reuse the request action; pushed events carry the event type.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	actionConnected = "connected"
	actionError     = "error"

	actionQueueJoin   = "queue:join"
	actionQueueCancel = "queue:cancel"
	actionQueueStatus = "queue:status"

	actionInviteCreate = "invite:create"
	actionInviteJoin   = "invite:join"
	actionInviteLookup = "invite:lookup"

	actionGameState   = "game:state"
	actionGameMove    = "game:move"
	actionGameMoves   = "game:moves"
	actionGameResign  = "game:resign"
	actionGameWatch   = "game:watch"
	actionGameUnwatch = "game:unwatch"

	actionRematchRequest = "game:rematch"
	actionRematchAccept  = "game:rematch:accept"
)

type ConnectedPayload struct {
	PlayerID     string `json:"player_id"`
	ConnectionID string `json:"connection_id"`
}

type ErrorPayload struct {
	Action  string `json:"action"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type JoinPayload struct {
	Ranked bool `json:"ranked"`
}

type InvitePayload struct {
	Code string `json:"code"`
}

type SessionPayload struct {
	SessionID string `json:"session_id"`
}

type MovePayload struct {
	SessionID string `json:"session_id"`
	Row       *int   `json:"row"`
	Col       *int   `json:"col"`
}

type MovesPayload struct {
	SessionID string `json:"session_id"`
	// After defaults to -1, the whole history.
	After *int `json:"after,omitempty"`
}

type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type MoveResponse struct {
	Session *entity.Session `json:"session"`
	Move    *entity.Move    `json:"move"`
}

type MovesResponse struct {
	SessionID string        `json:"session_id"`
	Moves     []entity.Move `json:"moves"`
}

type WatchResponse struct {
	Topic string `json:"topic"`
}

// sessionRef picks the session an event points a player at, if any.
type sessionRef struct {
	SessionID    string `json:"session_id"`
	NewSessionID string `json:"new_session_id"`
}
