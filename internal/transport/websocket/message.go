package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

var errConnectionClosed = errors.New("connection closed")

func encodeMessage(action string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	data, err := json.Marshal(Message{Action: action, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}

// encodeEvent turns a pushed event into a frame named after its type.
func encodeEvent(event entity.Event) ([]byte, error) {
	return encodeMessage(string(event.Type), event.Payload)
}

func errorPayload(action string, err error) ErrorPayload {
	return ErrorPayload{
		Action:  action,
		Error:   apperror.Code(err),
		Message: apperror.Message(err),
	}
}

func decodePayload(msg *Message, into any) error {
	if len(msg.Payload) == 0 {
		return nil
	}

	if err := json.Unmarshal(msg.Payload, into); err != nil {
		return fmt.Errorf("%w: %s payload: %w", apperror.ErrInvalidInput, msg.Action, err)
	}

	return nil
}

// referencedSession returns the session a match, invite or rematch event on
// the player's own topic moves them into. Payloads may arrive typed or as raw
// broker JSON.
func referencedSession(playerID string, event entity.Event) string {
	if event.Topic != entity.PlayerTopic(playerID) {
		return ""
	}

	if event.Type != entity.EventQueueMatched &&
		event.Type != entity.EventInviteMatched &&
		event.Type != entity.EventRematchAccepted {
		return ""
	}

	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return ""
	}

	var ref sessionRef
	if err = json.Unmarshal(raw, &ref); err != nil {
		return ""
	}

	if event.Type == entity.EventRematchAccepted {
		return ref.NewSessionID
	}

	return ref.SessionID
}
