package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/pkg"
)

type RematchService interface {
	Request(ctx context.Context, sessionID, requester string) (*entity.RematchRequest, error)
	// Accept starts the rematch with the players' roles swapped.
	Accept(ctx context.Context, sessionID, acceptor string) (*entity.Session, error)
}

type rematchRepo interface {
	Request(ctx context.Context, sessionID, requesterID string) (*entity.RematchRequest, error)
	Accept(ctx context.Context, sessionID, acceptorID string, newSession *entity.Session) (*entity.RematchRequest, error)
}

type stateReader interface {
	GetState(ctx context.Context, sessionID, requester string) (*entity.Session, error)
}

type rematchService struct {
	logger    *slog.Logger
	sessions  stateReader
	active    sessionRepo
	rematches rematchRepo
	publisher publisher
	now       Clock
}

func NewRematchService(logger *slog.Logger, sessions stateReader, active sessionRepo, rematches rematchRepo, publisher publisher, now Clock) RematchService {
	if now == nil {
		now = utcNow
	}

	return &rematchService{
		logger:    logger.With("component", "rematch"),
		sessions:  sessions,
		active:    active,
		rematches: rematches,
		publisher: publisher,
		now:       now,
	}
}

func (that *rematchService) Request(ctx context.Context, sessionID, requester string) (*entity.RematchRequest, error) {
	session, err := that.finishedSession(ctx, sessionID, requester)
	if err != nil {
		return nil, err
	}

	request, err := that.rematches.Request(ctx, sessionID, requester)
	if err != nil {
		return nil, fmt.Errorf("failed to request rematch: %w", err)
	}

	if request.Status == entity.RematchPending {
		that.notify(ctx, []string{session.Opponent(requester)}, entity.EventRematchRequested, entity.RematchPayload{
			SessionID:   sessionID,
			RequesterID: requester,
		})
	}

	return request, nil
}

func (that *rematchService) Accept(ctx context.Context, sessionID, acceptor string) (*entity.Session, error) {
	session, err := that.finishedSession(ctx, sessionID, acceptor)
	if err != nil {
		return nil, err
	}

	for _, player := range []string{session.PlayerA, session.PlayerB} {
		if err = that.confirmIdle(ctx, player); err != nil {
			return nil, err
		}
	}

	next := entity.NewSession(
		pkg.GenerateSessionID(),
		session.PlayerB,
		session.PlayerA,
		session.Board.Size,
		session.WinLength,
		session.Ranked,
		that.now(),
	)

	if _, err = that.rematches.Accept(ctx, sessionID, acceptor, next); err != nil {
		return nil, fmt.Errorf("failed to accept rematch: %w", err)
	}

	that.logger.Info("rematch started", "session", sessionID, "new_session", next.ID)

	that.notify(ctx, []string{session.PlayerA, session.PlayerB}, entity.EventRematchAccepted, entity.RematchPayload{
		SessionID:    sessionID,
		NewSessionID: next.ID,
	})

	return next, nil
}

func (that *rematchService) finishedSession(ctx context.Context, sessionID, requester string) (*entity.Session, error) {
	session, err := that.sessions.GetState(ctx, sessionID, requester)
	if err != nil {
		return nil, err
	}

	if !session.IsParticipant(requester) {
		return nil, apperror.ErrNotParticipant
	}

	if !session.IsTerminal() {
		return nil, fmt.Errorf("%w: session %s", apperror.ErrGameInProgress, sessionID)
	}

	return session, nil
}

func (that *rematchService) confirmIdle(ctx context.Context, playerID string) error {
	current, err := that.active.ActiveSessionOf(ctx, playerID)
	if err != nil {
		return fmt.Errorf("failed to get active session: %w", err)
	}

	if current != "" {
		return fmt.Errorf("%w: session %s", apperror.ErrAlreadyInGame, current)
	}

	return nil
}

func (that *rematchService) notify(ctx context.Context, players []string, eventType entity.EventType, payload entity.RematchPayload) {
	for _, player := range players {
		if err := that.publisher.Publish(ctx, entity.PlayerTopic(player), eventType, payload); err != nil {
			that.logger.Error("failed to publish rematch event", "player", player, "error", err)
		}
	}
}
