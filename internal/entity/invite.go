package entity

import (
	"strings"
	"time"
)

type InviteStatus string

const (
	InviteWaiting InviteStatus = "waiting"
	InviteUsed    InviteStatus = "used"
	InviteExpired InviteStatus = "expired"
)

const (
	InviteCodeLength = 10
	DefaultInviteTTL = 30 * time.Minute
)

// Invite is a private game offer: the host waits until one guest joins by
// code, then both play a fresh session with the host moving first.
type Invite struct {
	Code      string     `json:"code"`
	HostID    string     `json:"host_id"`
	GuestID   string     `json:"guest_id,omitempty"`
	Ranked    bool       `json:"ranked"`
	SessionID string     `json:"session_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

func NewInvite(code, hostID string, ranked bool, now time.Time, ttl time.Duration) *Invite {
	return &Invite{
		Code:      code,
		HostID:    hostID,
		Ranked:    ranked,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (that *Invite) IsUsed() bool {
	return that.SessionID != ""
}

func (that *Invite) IsExpired(now time.Time) bool {
	return !now.Before(that.ExpiresAt)
}

func (that *Invite) StatusAt(now time.Time) InviteStatus {
	switch {
	case that.IsUsed():
		return InviteUsed
	case that.IsExpired(now):
		return InviteExpired
	default:
		return InviteWaiting
	}
}

func (that *Invite) IsMember(playerID string) bool {
	return playerID != "" && (playerID == that.HostID || playerID == that.GuestID)
}

// Use binds guestID and the session they play.
func (that *Invite) Use(guestID, sessionID string, now time.Time) {
	that.GuestID = guestID
	that.SessionID = sessionID
	that.UsedAt = &now
}

// InviteLookup is what anyone holding a code may learn about it.
type InviteLookup struct {
	Exists bool         `json:"exists"`
	Status InviteStatus `json:"status,omitempty"`
	HostID string       `json:"host_id,omitempty"`
}

// NormalizeInviteCode makes codes typed by hand comparable.
func NormalizeInviteCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
