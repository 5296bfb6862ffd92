package service

import (
	"context"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

type publisher interface {
	Publish(ctx context.Context, topic string, eventType entity.EventType, payload any) error
}

type sessionRepo interface {
	Create(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	Update(ctx context.Context, session *entity.Session, expectedMoves int, move *entity.Move) error
	Moves(ctx context.Context, id string, after int) ([]entity.Move, error)
	ActiveIDs(ctx context.Context) ([]string, error)
	ActiveSessionOf(ctx context.Context, playerID string) (string, error)
}

type archiveRepo interface {
	Save(ctx context.Context, session *entity.Session, moves []entity.Move) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	Moves(ctx context.Context, id string, after int) ([]entity.Move, error)
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]*entity.Session, error)
}

// Rules configures new sessions.
type Rules struct {
	BoardSize int
	WinLength int
	// InviteTTL is how long a private invite can be joined.
	InviteTTL time.Duration
}

func DefaultRules() Rules {
	return Rules{
		BoardSize: entity.DefaultBoardSize,
		WinLength: entity.DefaultWinLength,
		InviteTTL: entity.DefaultInviteTTL,
	}
}

// Clock is swapped in tests.
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}
