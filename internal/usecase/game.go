package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// GameUseCase is everything a transport may ask of the engine. playerID is
// the opaque identity the caller authenticated elsewhere.
type GameUseCase interface {
	JoinQueue(ctx context.Context, playerID string, prefs entity.Preferences) (entity.QueueStatus, error)
	LeaveQueue(ctx context.Context, playerID string) (bool, error)
	QueueStatus(ctx context.Context, playerID string) (entity.QueueStatus, error)

	CreateInvite(ctx context.Context, playerID string, prefs entity.Preferences) (*entity.Invite, error)
	JoinInvite(ctx context.Context, playerID, code string) (*entity.Invite, error)
	LookupInvite(ctx context.Context, playerID, code string) (entity.InviteLookup, error)

	GetState(ctx context.Context, sessionID, playerID string) (*entity.Session, error)
	Moves(ctx context.Context, sessionID, playerID string, after int) ([]entity.Move, error)
	MakeMove(ctx context.Context, sessionID, playerID string, row, col int) (*entity.Session, *entity.Move, error)
	Resign(ctx context.Context, sessionID, playerID string) (*entity.Session, error)
	History(ctx context.Context, playerID string, limit int) ([]*entity.Session, error)

	RequestRematch(ctx context.Context, sessionID, playerID string) (*entity.RematchRequest, error)
	AcceptRematch(ctx context.Context, sessionID, playerID string) (*entity.Session, error)
}

type matchmakerService interface {
	Enqueue(ctx context.Context, playerID string, prefs entity.Preferences) (entity.QueueEntry, error)
	Cancel(ctx context.Context, playerID string) (bool, error)
	TryMatch(ctx context.Context, class string) (*entity.Session, error)
	Status(ctx context.Context, playerID string) (entity.QueueStatus, error)
	CreateInvite(ctx context.Context, hostID string, prefs entity.Preferences) (*entity.Invite, error)
	JoinByCode(ctx context.Context, code, playerID string) (*entity.Invite, error)
	LookupInvite(ctx context.Context, code string) (entity.InviteLookup, error)
}

type coordinatorService interface {
	GetState(ctx context.Context, sessionID, requester string) (*entity.Session, error)
	SubmitMove(ctx context.Context, sessionID, requester string, row, col int) (*entity.Session, *entity.Move, error)
	Resign(ctx context.Context, sessionID, requester string) (*entity.Session, error)
	Moves(ctx context.Context, sessionID, requester string, after int) ([]entity.Move, error)
	History(ctx context.Context, playerID string, limit int) ([]*entity.Session, error)
}

type rematchService interface {
	Request(ctx context.Context, sessionID, requester string) (*entity.RematchRequest, error)
	Accept(ctx context.Context, sessionID, acceptor string) (*entity.Session, error)
}

type gameUseCase struct {
	logger      *slog.Logger
	matchmaker  matchmakerService
	coordinator coordinatorService
	rematch     rematchService
}

func NewGameUseCase(logger *slog.Logger, matchmaker matchmakerService, coordinator coordinatorService, rematch rematchService) GameUseCase {
	return &gameUseCase{
		logger:      logger.With("component", "usecase"),
		matchmaker:  matchmaker,
		coordinator: coordinator,
		rematch:     rematch,
	}
}

// JoinQueue enqueues the player and immediately tries to match its class.
func (that *gameUseCase) JoinQueue(ctx context.Context, playerID string, prefs entity.Preferences) (entity.QueueStatus, error) {
	if err := requirePlayer(playerID); err != nil {
		return entity.QueueStatus{}, err
	}

	if _, err := that.matchmaker.Enqueue(ctx, playerID, prefs); err != nil {
		return entity.QueueStatus{}, fmt.Errorf("failed to join queue: %w", err)
	}

	if _, err := that.matchmaker.TryMatch(ctx, prefs.Class()); err != nil {
		// the entry stays queued and is matched by the next join
		that.logger.With("method", "JoinQueue").Error("failed to match", "player", playerID, "error", err)
	}

	status, err := that.matchmaker.Status(ctx, playerID)
	if err != nil {
		return entity.QueueStatus{}, fmt.Errorf("failed to get queue status: %w", err)
	}

	return status, nil
}

func (that *gameUseCase) LeaveQueue(ctx context.Context, playerID string) (bool, error) {
	if err := requirePlayer(playerID); err != nil {
		return false, err
	}

	return that.matchmaker.Cancel(ctx, playerID)
}

func (that *gameUseCase) QueueStatus(ctx context.Context, playerID string) (entity.QueueStatus, error) {
	if err := requirePlayer(playerID); err != nil {
		return entity.QueueStatus{}, err
	}

	return that.matchmaker.Status(ctx, playerID)
}

func (that *gameUseCase) CreateInvite(ctx context.Context, playerID string, prefs entity.Preferences) (*entity.Invite, error) {
	if err := requirePlayer(playerID); err != nil {
		return nil, err
	}

	return that.matchmaker.CreateInvite(ctx, playerID, prefs)
}

func (that *gameUseCase) JoinInvite(ctx context.Context, playerID, code string) (*entity.Invite, error) {
	if err := requirePlayer(playerID); err != nil {
		return nil, err
	}

	return that.matchmaker.JoinByCode(ctx, code, playerID)
}

// LookupInvite only needs an identity; the code itself is the secret.
func (that *gameUseCase) LookupInvite(ctx context.Context, playerID, code string) (entity.InviteLookup, error) {
	if err := requirePlayer(playerID); err != nil {
		return entity.InviteLookup{}, err
	}

	return that.matchmaker.LookupInvite(ctx, code)
}

func (that *gameUseCase) GetState(ctx context.Context, sessionID, playerID string) (*entity.Session, error) {
	if err := requirePlayer(playerID); err != nil {
		return nil, err
	}

	return that.coordinator.GetState(ctx, sessionID, playerID)
}

func (that *gameUseCase) Moves(ctx context.Context, sessionID, playerID string, after int) ([]entity.Move, error) {
	if err := requirePlayer(playerID); err != nil {
		return nil, err
	}

	return that.coordinator.Moves(ctx, sessionID, playerID, after)
}

func (that *gameUseCase) MakeMove(ctx context.Context, sessionID, playerID string, row, col int) (*entity.Session, *entity.Move, error) {
	if err := requirePlayer(playerID); err != nil {
		return nil, nil, err
	}

	return that.coordinator.SubmitMove(ctx, sessionID, playerID, row, col)
}

func (that *gameUseCase) Resign(ctx context.Context, sessionID, playerID string) (*entity.Session, error) {
	if err := requirePlayer(playerID); err != nil {
		return nil, err
	}

	return that.coordinator.Resign(ctx, sessionID, playerID)
}

// History lists the caller's own finished games; it never exposes others'.
func (that *gameUseCase) History(ctx context.Context, playerID string, limit int) ([]*entity.Session, error) {
	if err := requirePlayer(playerID); err != nil {
		return nil, err
	}

	return that.coordinator.History(ctx, playerID, limit)
}

func (that *gameUseCase) RequestRematch(ctx context.Context, sessionID, playerID string) (*entity.RematchRequest, error) {
	if err := requirePlayer(playerID); err != nil {
		return nil, err
	}

	return that.rematch.Request(ctx, sessionID, playerID)
}

func (that *gameUseCase) AcceptRematch(ctx context.Context, sessionID, playerID string) (*entity.Session, error) {
	if err := requirePlayer(playerID); err != nil {
		return nil, err
	}

	return that.rematch.Accept(ctx, sessionID, playerID)
}

func requirePlayer(playerID string) error {
	if playerID == "" {
		return fmt.Errorf("%w: missing player identity", apperror.ErrInvalidInput)
	}
	return nil
}
