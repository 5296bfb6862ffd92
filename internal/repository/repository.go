package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	// Update stores session only if the stored copy is still in progress with
	// expectedMoves moves, appending move when it is not nil. A lost race
	// returns apperror.ErrConcurrentWrite.
	Update(ctx context.Context, session *entity.Session, expectedMoves int, move *entity.Move) error
	// Moves returns the moves with a sequence number greater than after.
	Moves(ctx context.Context, id string, after int) ([]entity.Move, error)
	ActiveIDs(ctx context.Context) ([]string, error)
	// ActiveSessionOf returns the in-progress session of a player, or "".
	ActiveSessionOf(ctx context.Context, playerID string) (string, error)
}

// NewSessionFunc builds the session for a matched pair; a is the older entry.
type NewSessionFunc func(a, b entity.QueueEntry) *entity.Session

type QueueRepository interface {
	Enqueue(ctx context.Context, entry entity.QueueEntry) error
	// Cancel reports whether a waiting entry was removed. It returns
	// apperror.ErrAlreadyMatched when a match consumed the entry.
	Cancel(ctx context.Context, playerID string) (bool, error)
	// PopPair removes the two oldest entries of class and stores the session
	// built from them in one indivisible step. It returns nil when fewer than
	// two entries wait.
	PopPair(ctx context.Context, class string, newSession NewSessionFunc) (*entity.Session, error)
	// Status reports state, 1-based position and matched session of a player.
	Status(ctx context.Context, playerID string) (entity.QueueStatus, error)
}

type RematchRepository interface {
	GetBySession(ctx context.Context, sessionID string) (*entity.RematchRequest, error)
	// Request stores a pending request, replacing the requester of an existing
	// pending one.
	Request(ctx context.Context, sessionID, requesterID string) (*entity.RematchRequest, error)
	// Accept marks the pending request accepted and creates the new session in
	// the same step.
	Accept(ctx context.Context, sessionID, acceptorID string, newSession *entity.Session) (*entity.RematchRequest, error)
}

// NewInviteSessionFunc builds the session a guest starts by joining invite.
type NewInviteSessionFunc func(invite *entity.Invite, guestID string) *entity.Session

type InviteRepository interface {
	// Create stores invite until its expiry. A code already in use returns
	// apperror.ErrConcurrentWrite.
	Create(ctx context.Context, invite *entity.Invite) error
	GetByCode(ctx context.Context, code string) (*entity.Invite, error)
	// Join binds guestID to the invite and stores the session built by
	// newSession in one indivisible step. The session is nil when guestID
	// already belonged to the invite and nothing changed.
	Join(ctx context.Context, code, guestID string, now time.Time, newSession NewInviteSessionFunc) (*entity.Invite, *entity.Session, error)
}

// ConfirmJoinable reports whether guestID still has to be bound to invite.
// Every invite store applies it inside its own atomic step.
func ConfirmJoinable(invite *entity.Invite, guestID string, now time.Time) (bool, error) {
	if invite == nil {
		return false, fmt.Errorf("invite: %w", apperror.ErrNotFound)
	}

	if invite.IsExpired(now) {
		return false, fmt.Errorf("%w: code %s", apperror.ErrInviteExpired, invite.Code)
	}

	if invite.IsMember(guestID) {
		return false, nil
	}

	if invite.IsUsed() {
		return false, apperror.ErrInviteTaken
	}

	return true, nil
}

// Redis keys.
const (
	sessionPrefix     = "gomoku:session:"
	movesPrefix       = "gomoku:moves:"
	activeSessionsKey = "gomoku:sessions:active"
	queuePrefix       = "gomoku:queue:"
	queueEntryPrefix  = "gomoku:queue:entry:"
	queueMatchPrefix  = "gomoku:queue:matched:"
	playerPrefix      = "gomoku:player:"
	rematchPrefix     = "gomoku:rematch:"
	invitePrefix      = "gomoku:invite:"
)

func sessionKey(id string) string {
	return sessionPrefix + id
}

func movesKey(id string) string {
	return movesPrefix + id
}

func queueKey(class string) string {
	return queuePrefix + class
}

func queueEntryKey(player string) string {
	return queueEntryPrefix + player
}

func queueMatchKey(player string) string {
	return queueMatchPrefix + player
}

func playerSessionKey(player string) string {
	return playerPrefix + player + ":session"
}

func rematchKey(sessionID string) string {
	return rematchPrefix + sessionID
}

func inviteKey(code string) string {
	return invitePrefix + code
}

const maxTxRetries = 16

// watchRetry runs fn as an optimistic transaction, retrying while another
// client touches the watched keys.
func watchRetry(ctx context.Context, client *redis.Client, fn func(*redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return apperror.ErrConcurrentWrite
}

// idleKeys lists the keys confirmIdle reads; callers watch them.
func idleKeys(players ...string) []string {
	keys := make([]string, 0, 2*len(players))
	for _, player := range players {
		keys = append(keys, queueEntryKey(player), playerSessionKey(player))
	}
	return keys
}

// confirmIdle fails when a player still waits in the queue or is indexed to
// an in-progress session.
func confirmIdle(ctx context.Context, client redis.Cmdable, players ...string) error {
	for _, player := range players {
		queued, err := client.Exists(ctx, queueEntryKey(player)).Result()
		if err != nil {
			return fmt.Errorf("failed to check queue entry: %w", err)
		}

		if queued > 0 {
			return fmt.Errorf("%w: player %s", apperror.ErrAlreadyQueued, player)
		}

		current, err := playingSession(ctx, client, player)
		if err != nil {
			return err
		}

		if current != "" {
			return fmt.Errorf("%w: session %s", apperror.ErrAlreadyInGame, current)
		}
	}

	return nil
}

// playingSession returns the in-progress session indexed for player, or "".
func playingSession(ctx context.Context, client redis.Cmdable, player string) (string, error) {
	id, err := client.Get(ctx, playerSessionKey(player)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("failed to get player session: %w", err)
	}

	return id, nil
}
