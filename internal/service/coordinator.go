package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/gomoku"
	"github.com/rocketscienceinc/gomoku-backend/internal/pkg/keylock"
)

// maxWriteAttempts bounds reload-and-retry when another instance wins the
// compare-and-swap on a session.
const maxWriteAttempts = 3

const maxHistory = 50

type CoordinatorService interface {
	GetState(ctx context.Context, sessionID, requester string) (*entity.Session, error)
	SubmitMove(ctx context.Context, sessionID, requester string, row, col int) (*entity.Session, *entity.Move, error)
	Resign(ctx context.Context, sessionID, requester string) (*entity.Session, error)
	// AbandonIfIdle ends the session when the player to move has been idle
	// for timeout. It reports whether the session was abandoned.
	AbandonIfIdle(ctx context.Context, sessionID string, timeout time.Duration) (bool, error)
	Moves(ctx context.Context, sessionID, requester string, after int) ([]entity.Move, error)
	// History lists the player's archived sessions, newest first.
	History(ctx context.Context, playerID string, limit int) ([]*entity.Session, error)
}

type coordinatorService struct {
	logger    *slog.Logger
	sessions  sessionRepo
	archive   archiveRepo
	publisher publisher
	locks     *keylock.KeyLock
	observers map[string]struct{}
	now       Clock
}

// NewCoordinatorService builds the only writer of sessions. archive may be nil.
func NewCoordinatorService(
	logger *slog.Logger,
	sessions sessionRepo,
	archive archiveRepo,
	publisher publisher,
	observers []string,
	now Clock,
) CoordinatorService {
	if now == nil {
		now = utcNow
	}

	allowed := make(map[string]struct{}, len(observers))
	for _, id := range observers {
		allowed[id] = struct{}{}
	}

	return &coordinatorService{
		logger:    logger.With("component", "coordinator"),
		sessions:  sessions,
		archive:   archive,
		publisher: publisher,
		locks:     keylock.New(),
		observers: allowed,
		now:       now,
	}
}

func (that *coordinatorService) GetState(ctx context.Context, sessionID, requester string) (*entity.Session, error) {
	session, _, err := that.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err = that.confirmReadable(session, requester); err != nil {
		return nil, err
	}

	return session, nil
}

func (that *coordinatorService) confirmReadable(session *entity.Session, requester string) error {
	if session.IsParticipant(requester) {
		return nil
	}

	if _, ok := that.observers[requester]; ok && requester != "" {
		return nil
	}

	return fmt.Errorf("%w: session %s", apperror.ErrForbidden, session.ID)
}

func (that *coordinatorService) Moves(ctx context.Context, sessionID, requester string, after int) ([]entity.Move, error) {
	session, archived, err := that.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err = that.confirmReadable(session, requester); err != nil {
		return nil, err
	}

	var moves []entity.Move
	if archived {
		moves, err = that.archive.Moves(ctx, sessionID, after)
	} else {
		moves, err = that.sessions.Moves(ctx, sessionID, after)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get moves: %w", err)
	}

	return moves, nil
}

func (that *coordinatorService) History(ctx context.Context, playerID string, limit int) ([]*entity.Session, error) {
	if that.archive == nil {
		return []*entity.Session{}, nil
	}

	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}

	sessions, err := that.archive.ListByPlayer(ctx, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	if sessions == nil {
		sessions = []*entity.Session{}
	}

	return sessions, nil
}

func (that *coordinatorService) SubmitMove(ctx context.Context, sessionID, requester string, row, col int) (*entity.Session, *entity.Move, error) {
	unlock := that.locks.Lock(sessionID)
	defer unlock()

	for range maxWriteAttempts {
		session, _, err := that.load(ctx, sessionID)
		if err != nil {
			return nil, nil, err
		}

		if err = session.ConfirmMovable(requester); err != nil {
			return nil, nil, err
		}

		next, move, err := that.applyMove(session, requester, row, col)
		if err != nil {
			return nil, nil, err
		}

		err = that.sessions.Update(ctx, next, session.MoveCount, move)
		if errors.Is(err, apperror.ErrConcurrentWrite) {
			continue
		}

		if err != nil {
			return nil, nil, fmt.Errorf("failed to save move: %w", err)
		}

		that.afterMove(ctx, next, move)

		return next, move, nil
	}

	return nil, nil, fmt.Errorf("failed to save move: %w", apperror.ErrConcurrentWrite)
}

// applyMove returns the session after the move without touching storage.
func (that *coordinatorService) applyMove(session *entity.Session, requester string, row, col int) (*entity.Session, *entity.Move, error) {
	engine, err := gomoku.New(session.WinLength)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}

	mover, _ := session.MarkOf(requester)
	turn, _ := session.MarkOf(session.CurrentTurn)

	result, err := engine.ValidateAndApply(session.Board, turn, mover, row, col)
	if err != nil {
		return nil, nil, err
	}

	now := that.now()
	move := &entity.Move{
		SessionID: session.ID,
		Seq:       session.MoveCount,
		PlayerID:  requester,
		Mark:      mover,
		Row:       row,
		Col:       col,
		CreatedAt: now,
	}

	next := session.Clone()
	next.Board = result.Board
	next.MoveCount++
	next.LastMoveAt = now

	switch result.Terminal.Outcome {
	case gomoku.OutcomeWin:
		next.Finish(entity.WinStatus(result.Terminal.Mark), entity.EndReasonWin, result.Terminal.Line, now)
	case gomoku.OutcomeDraw:
		next.Finish(entity.StatusDraw, entity.EndReasonDraw, nil, now)
	default:
		next.CurrentTurn = session.Opponent(requester)
	}

	return next, move, nil
}

func (that *coordinatorService) afterMove(ctx context.Context, session *entity.Session, move *entity.Move) {
	that.publish(ctx, session.ID, entity.EventGameMove, entity.GameMovePayload{
		SessionID:      session.ID,
		Move:           entity.MovePayload{Row: move.Row, Col: move.Col, Player: move.PlayerID},
		SequenceNumber: move.Seq,
	})

	if session.IsTerminal() {
		that.finished(ctx, session)
		return
	}

	that.publish(ctx, session.ID, entity.EventGameTurn, entity.GameTurnPayload{
		SessionID: session.ID,
		Turn:      session.CurrentTurn,
	})
}

func (that *coordinatorService) Resign(ctx context.Context, sessionID, requester string) (*entity.Session, error) {
	unlock := that.locks.Lock(sessionID)
	defer unlock()

	return that.forfeit(ctx, sessionID, func(session *entity.Session) (entity.Status, string, error) {
		if !session.IsParticipant(requester) {
			return "", "", apperror.ErrNotParticipant
		}

		if session.IsTerminal() {
			return "", "", fmt.Errorf("%w: status %s", apperror.ErrGameOver, session.Status)
		}

		mark, _ := session.MarkOf(requester)
		return entity.WinStatus(mark.Other()), requester, nil
	}, entity.EndReasonResign)
}

func (that *coordinatorService) AbandonIfIdle(ctx context.Context, sessionID string, timeout time.Duration) (bool, error) {
	unlock := that.locks.Lock(sessionID)
	defer unlock()

	session, err := that.forfeit(ctx, sessionID, func(session *entity.Session) (entity.Status, string, error) {
		if session.IsTerminal() || that.now().Sub(session.LastMoveAt) < timeout {
			return "", "", errStillActive
		}

		return entity.StatusAbandoned, session.CurrentTurn, nil
	}, entity.EndReasonTimeout)
	if errors.Is(err, errStillActive) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	that.logger.Info("session abandoned", "session", session.ID, "forfeited_by", session.ForfeitedBy)

	return true, nil
}

var errStillActive = errors.New("session is still active")

// forfeit ends a session without a move. decide picks the terminal status and
// the forfeiting player, or refuses. Callers hold the session lock.
func (that *coordinatorService) forfeit(
	ctx context.Context,
	sessionID string,
	decide func(*entity.Session) (entity.Status, string, error),
	reason string,
) (*entity.Session, error) {
	for range maxWriteAttempts {
		session, _, err := that.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		status, forfeitedBy, err := decide(session)
		if err != nil {
			return nil, err
		}

		next := session.Clone()
		next.Finish(status, reason, nil, that.now())
		next.ForfeitedBy = forfeitedBy

		err = that.sessions.Update(ctx, next, session.MoveCount, nil)
		if errors.Is(err, apperror.ErrConcurrentWrite) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to finish session: %w", err)
		}

		that.finished(ctx, next)

		return next, nil
	}

	return nil, fmt.Errorf("failed to finish session: %w", apperror.ErrConcurrentWrite)
}

// finished archives a terminal session and announces the result.
func (that *coordinatorService) finished(ctx context.Context, session *entity.Session) {
	log := that.logger.With("method", "finished")

	if that.archive != nil {
		if err := that.archiveSession(ctx, session); err != nil {
			log.Error("failed to archive session", "session", session.ID, "error", err)
		}
	}

	that.publish(ctx, session.ID, entity.EventGameEnded, entity.GameEndedPayload{
		SessionID:   session.ID,
		Result:      session.Status,
		WinningLine: session.WinningLine,
		Reason:      session.EndReason,
		ForfeitedBy: session.ForfeitedBy,
	})
}

// archiveSession stores session only when its moves replay to the same game.
func (that *coordinatorService) archiveSession(ctx context.Context, session *entity.Session) error {
	moves, err := that.sessions.Moves(ctx, session.ID, -1)
	if err != nil {
		return fmt.Errorf("failed to get moves: %w", err)
	}

	engine, err := gomoku.New(session.WinLength)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	if err = engine.Verify(session, moves); err != nil {
		return fmt.Errorf("failed to verify moves: %w", err)
	}

	return that.archive.Save(ctx, session, moves)
}

func (that *coordinatorService) publish(ctx context.Context, sessionID string, eventType entity.EventType, payload any) {
	err := that.publisher.Publish(ctx, entity.SessionTopic(sessionID), eventType, payload)
	if err != nil {
		that.logger.Error("failed to publish event", "session", sessionID, "type", eventType, "error", err)
	}
}

// load reads the hot copy and falls back to the archive once it expired.
func (that *coordinatorService) load(ctx context.Context, sessionID string) (*entity.Session, bool, error) {
	session, err := that.sessions.GetByID(ctx, sessionID)
	if err == nil {
		return session, false, nil
	}

	if !errors.Is(err, apperror.ErrNotFound) || that.archive == nil {
		return nil, false, fmt.Errorf("failed to get session: %w", err)
	}

	session, err = that.archive.GetByID(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get session: %w", err)
	}

	return session, true, nil
}
