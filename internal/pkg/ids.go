package pkg

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// GenerateSessionID returns a new random session id.
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateConnectionID identifies one websocket connection in logs and the
// subscription registry.
func GenerateConnectionID() string {
	return "conn-" + uuid.NewString()
}

// GenerateInviteCode returns an upper-case code short enough to type.
func GenerateInviteCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:entity.InviteCodeLength])
}
