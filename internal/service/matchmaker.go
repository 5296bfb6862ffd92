package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/pkg"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository"
)

const (
	RoleA = "a"
	RoleB = "b"
)

const (
	baseWait     = 5 * time.Second
	waitPerEntry = 3 * time.Second
	maxWait      = 30 * time.Second
)

type MatchmakerService interface {
	Enqueue(ctx context.Context, playerID string, prefs entity.Preferences) (entity.QueueEntry, error)
	Cancel(ctx context.Context, playerID string) (bool, error)
	// TryMatch pairs the two oldest entries of class. It returns nil when
	// fewer than two wait.
	TryMatch(ctx context.Context, class string) (*entity.Session, error)
	Status(ctx context.Context, playerID string) (entity.QueueStatus, error)

	// CreateInvite opens a private game only a guest holding the code can join.
	CreateInvite(ctx context.Context, hostID string, prefs entity.Preferences) (*entity.Invite, error)
	// JoinByCode starts the invite's session for a new guest. Members of the
	// invite get it back unchanged.
	JoinByCode(ctx context.Context, code, playerID string) (*entity.Invite, error)
	LookupInvite(ctx context.Context, code string) (entity.InviteLookup, error)
}

type queueRepo interface {
	Enqueue(ctx context.Context, entry entity.QueueEntry) error
	Cancel(ctx context.Context, playerID string) (bool, error)
	PopPair(ctx context.Context, class string, newSession repository.NewSessionFunc) (*entity.Session, error)
	Status(ctx context.Context, playerID string) (entity.QueueStatus, error)
}

type inviteRepo interface {
	Create(ctx context.Context, invite *entity.Invite) error
	GetByCode(ctx context.Context, code string) (*entity.Invite, error)
	Join(ctx context.Context, code, guestID string, now time.Time, newSession repository.NewInviteSessionFunc) (*entity.Invite, *entity.Session, error)
}

// maxCodeAttempts bounds regeneration when a fresh invite code is taken.
const maxCodeAttempts = 3

type matchmakerService struct {
	logger    *slog.Logger
	queue     queueRepo
	invites   inviteRepo
	sessions  sessionRepo
	publisher publisher
	rules     Rules
	now       Clock

	// mu serializes matching inside the process; PopPair is atomic across
	// processes on its own.
	mu sync.Mutex
}

func NewMatchmakerService(
	logger *slog.Logger,
	queue queueRepo,
	invites inviteRepo,
	sessions sessionRepo,
	publisher publisher,
	rules Rules,
	now Clock,
) MatchmakerService {
	if now == nil {
		now = utcNow
	}

	if rules.InviteTTL <= 0 {
		rules.InviteTTL = entity.DefaultInviteTTL
	}

	return &matchmakerService{
		logger:    logger.With("component", "matchmaker"),
		queue:     queue,
		invites:   invites,
		sessions:  sessions,
		publisher: publisher,
		rules:     rules,
		now:       now,
	}
}

func (that *matchmakerService) Enqueue(ctx context.Context, playerID string, prefs entity.Preferences) (entity.QueueEntry, error) {
	if playerID == "" {
		return entity.QueueEntry{}, fmt.Errorf("%w: empty player id", apperror.ErrInvalidInput)
	}

	if err := that.confirmNotPlaying(ctx, playerID); err != nil {
		return entity.QueueEntry{}, err
	}

	entry := entity.QueueEntry{
		PlayerID:    playerID,
		EnqueuedAt:  that.now(),
		Preferences: prefs,
	}

	if err := that.queue.Enqueue(ctx, entry); err != nil {
		return entity.QueueEntry{}, fmt.Errorf("failed to enqueue: %w", err)
	}

	return entry, nil
}

func (that *matchmakerService) confirmNotPlaying(ctx context.Context, playerID string) error {
	sessionID, err := that.sessions.ActiveSessionOf(ctx, playerID)
	if err != nil {
		return fmt.Errorf("failed to get active session: %w", err)
	}

	if sessionID == "" {
		return nil
	}

	session, err := that.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	if !session.IsTerminal() {
		return fmt.Errorf("%w: session %s", apperror.ErrAlreadyInGame, sessionID)
	}

	return nil
}

func (that *matchmakerService) Cancel(ctx context.Context, playerID string) (bool, error) {
	removed, err := that.queue.Cancel(ctx, playerID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel: %w", err)
	}

	return removed, nil
}

func (that *matchmakerService) TryMatch(ctx context.Context, class string) (*entity.Session, error) {
	that.mu.Lock()
	session, err := that.queue.PopPair(ctx, class, that.newSession)
	that.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to match: %w", err)
	}

	if session == nil {
		return nil, nil //nolint:nilnil // nobody to match
	}

	that.logger.Info("players matched", "session", session.ID, "player_a", session.PlayerA, "player_b", session.PlayerB)
	that.notifyMatched(ctx, session)

	return session, nil
}

// newSession gives the first move to the entry that waited longest.
func (that *matchmakerService) newSession(a, b entity.QueueEntry) *entity.Session {
	return entity.NewSession(
		pkg.GenerateSessionID(),
		a.PlayerID,
		b.PlayerID,
		that.rules.BoardSize,
		that.rules.WinLength,
		a.Preferences.Ranked,
		that.now(),
	)
}

func (that *matchmakerService) notifyMatched(ctx context.Context, session *entity.Session) {
	that.announce(ctx, session, entity.EventQueueMatched)
}

// announce tells both players their roles and the lobby that a game started.
func (that *matchmakerService) announce(ctx context.Context, session *entity.Session, eventType entity.EventType) {
	log := that.logger.With("method", "announce")

	events := []struct {
		topic   string
		payload entity.QueueMatchedPayload
	}{
		{entity.PlayerTopic(session.PlayerA), entity.QueueMatchedPayload{SessionID: session.ID, Role: RoleA, OpponentID: session.PlayerB}},
		{entity.PlayerTopic(session.PlayerB), entity.QueueMatchedPayload{SessionID: session.ID, Role: RoleB, OpponentID: session.PlayerA}},
		{entity.TopicLobby, entity.QueueMatchedPayload{SessionID: session.ID}},
	}

	for _, event := range events {
		if err := that.publisher.Publish(ctx, event.topic, eventType, event.payload); err != nil {
			log.Error("failed to notify match", "topic", event.topic, "error", err)
		}
	}
}

func (that *matchmakerService) Status(ctx context.Context, playerID string) (entity.QueueStatus, error) {
	status, err := that.queue.Status(ctx, playerID)
	if err != nil {
		return entity.QueueStatus{}, fmt.Errorf("failed to get queue status: %w", err)
	}

	if status.State == entity.QueueWaiting {
		status.EstimatedWait = EstimateWait(status.Position)
	}

	return status, nil
}

func (that *matchmakerService) CreateInvite(ctx context.Context, hostID string, prefs entity.Preferences) (*entity.Invite, error) {
	if hostID == "" {
		return nil, fmt.Errorf("%w: empty player id", apperror.ErrInvalidInput)
	}

	if err := that.confirmNotPlaying(ctx, hostID); err != nil {
		return nil, err
	}

	for range maxCodeAttempts {
		invite := entity.NewInvite(pkg.GenerateInviteCode(), hostID, prefs.Ranked, that.now(), that.rules.InviteTTL)

		err := that.invites.Create(ctx, invite)
		if errors.Is(err, apperror.ErrConcurrentWrite) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to create invite: %w", err)
		}

		that.logger.Info("invite created", "code", invite.Code, "host", hostID)

		return invite, nil
	}

	return nil, fmt.Errorf("failed to create invite: %w", apperror.ErrConcurrentWrite)
}

func (that *matchmakerService) JoinByCode(ctx context.Context, code, playerID string) (*entity.Invite, error) {
	code = entity.NormalizeInviteCode(code)
	if code == "" || playerID == "" {
		return nil, fmt.Errorf("%w: code and player id are required", apperror.ErrInvalidInput)
	}

	invite, session, err := that.invites.Join(ctx, code, playerID, that.now(), that.newInviteSession)
	if err != nil {
		return nil, fmt.Errorf("failed to join invite: %w", err)
	}

	if session != nil {
		that.logger.Info("invite joined", "code", code, "session", session.ID, "host", session.PlayerA, "guest", session.PlayerB)
		that.announce(ctx, session, entity.EventInviteMatched)
	}

	return invite, nil
}

func (that *matchmakerService) LookupInvite(ctx context.Context, code string) (entity.InviteLookup, error) {
	code = entity.NormalizeInviteCode(code)
	if code == "" {
		return entity.InviteLookup{}, fmt.Errorf("%w: code is required", apperror.ErrInvalidInput)
	}

	invite, err := that.invites.GetByCode(ctx, code)
	if errors.Is(err, apperror.ErrNotFound) {
		return entity.InviteLookup{Exists: false}, nil
	}

	if err != nil {
		return entity.InviteLookup{}, fmt.Errorf("failed to look up invite: %w", err)
	}

	return entity.InviteLookup{
		Exists: true,
		Status: invite.StatusAt(that.now()),
		HostID: invite.HostID,
	}, nil
}

// newInviteSession lets the host open.
func (that *matchmakerService) newInviteSession(invite *entity.Invite, guestID string) *entity.Session {
	return entity.NewSession(
		pkg.GenerateSessionID(),
		invite.HostID,
		guestID,
		that.rules.BoardSize,
		that.rules.WinLength,
		invite.Ranked,
		that.now(),
	)
}

// EstimateWait is a rough heuristic, not a measurement.
func EstimateWait(position int) time.Duration {
	return min(maxWait, baseWait+time.Duration(position)*waitPerEntry)
}
