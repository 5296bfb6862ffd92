// Package memory keeps every repository in process memory behind one mutex.
// It backs single-instance deployments and service tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository"
)

type Store struct {
	mu sync.Mutex

	sessions      map[string]*entity.Session
	moves         map[string][]entity.Move
	active        map[string]struct{}
	playerSession map[string]string

	entries map[string]entity.QueueEntry
	queues  map[string][]string
	matched map[string]string

	rematches map[string]entity.RematchRequest
	invites   map[string]entity.Invite
}

func NewStore() *Store {
	return &Store{
		sessions:      make(map[string]*entity.Session),
		moves:         make(map[string][]entity.Move),
		active:        make(map[string]struct{}),
		playerSession: make(map[string]string),
		entries:       make(map[string]entity.QueueEntry),
		queues:        make(map[string][]string),
		matched:       make(map[string]string),
		rematches:     make(map[string]entity.RematchRequest),
		invites:       make(map[string]entity.Invite),
	}
}

func (that *Store) Sessions() repository.SessionRepository {
	return &sessions{store: that}
}

func (that *Store) Queue() repository.QueueRepository {
	return &queue{store: that}
}

func (that *Store) Rematches() repository.RematchRepository {
	return &rematches{store: that}
}

func (that *Store) Invites() repository.InviteRepository {
	return &invites{store: that}
}

// addSession must be called with mu held.
func (that *Store) addSession(session *entity.Session) {
	that.sessions[session.ID] = session.Clone()
	that.active[session.ID] = struct{}{}
	that.playerSession[session.PlayerA] = session.ID
	that.playerSession[session.PlayerB] = session.ID
}

type sessions struct {
	store *Store
}

func (that *sessions) Create(_ context.Context, session *entity.Session) error {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	if _, ok := that.store.sessions[session.ID]; ok {
		return fmt.Errorf("failed to create session: %w: session %s already exists", apperror.ErrConcurrentWrite, session.ID)
	}

	that.store.addSession(session)
	return nil
}

func (that *sessions) GetByID(_ context.Context, id string) (*entity.Session, error) {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	session, ok := that.store.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperror.ErrNotFound)
	}

	return session.Clone(), nil
}

func (that *sessions) Update(_ context.Context, session *entity.Session, expectedMoves int, move *entity.Move) error {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	stored, ok := that.store.sessions[session.ID]
	if !ok {
		return fmt.Errorf("session %s: %w", session.ID, apperror.ErrNotFound)
	}

	if stored.IsTerminal() || stored.MoveCount != expectedMoves {
		return fmt.Errorf("failed to update session: %w", apperror.ErrConcurrentWrite)
	}

	that.store.sessions[session.ID] = session.Clone()

	if move != nil {
		that.store.moves[session.ID] = append(that.store.moves[session.ID], *move)
	}

	if session.IsTerminal() {
		delete(that.store.active, session.ID)
		for _, player := range []string{session.PlayerA, session.PlayerB} {
			if that.store.playerSession[player] == session.ID {
				delete(that.store.playerSession, player)
			}
		}
	}

	return nil
}

func (that *sessions) Moves(_ context.Context, id string, after int) ([]entity.Move, error) {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	all := that.store.moves[id]
	start := min(max(after+1, 0), len(all))

	return slices.Clone(all[start:]), nil
}

func (that *sessions) ActiveIDs(_ context.Context) ([]string, error) {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	ids := make([]string, 0, len(that.store.active))
	for id := range that.store.active {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids, nil
}

func (that *sessions) ActiveSessionOf(_ context.Context, playerID string) (string, error) {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	return that.store.playerSession[playerID], nil
}

type queue struct {
	store *Store
}

func (that *queue) Enqueue(_ context.Context, entry entity.QueueEntry) error {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	if _, ok := that.store.entries[entry.PlayerID]; ok {
		return fmt.Errorf("failed to enqueue player: %w", apperror.ErrAlreadyQueued)
	}

	class := entry.Preferences.Class()
	waiting := that.store.queues[class]

	// FIFO by enqueue time, ties keep arrival order
	at := len(waiting)
	for i, player := range waiting {
		if that.store.entries[player].EnqueuedAt.After(entry.EnqueuedAt) {
			at = i
			break
		}
	}

	that.store.queues[class] = slices.Insert(waiting, at, entry.PlayerID)
	that.store.entries[entry.PlayerID] = entry
	delete(that.store.matched, entry.PlayerID)

	return nil
}

func (that *queue) Cancel(_ context.Context, playerID string) (bool, error) {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	entry, ok := that.store.entries[playerID]
	if !ok {
		if _, matched := that.store.matched[playerID]; matched {
			return false, fmt.Errorf("failed to cancel queue entry: %w", apperror.ErrAlreadyMatched)
		}
		return false, nil
	}

	that.store.removeEntry(entry)
	return true, nil
}

func (that *queue) PopPair(_ context.Context, class string, newSession repository.NewSessionFunc) (*entity.Session, error) {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	var a, b entity.QueueEntry
	for {
		waiting := that.store.queues[class]
		if len(waiting) < 2 {
			return nil, nil //nolint:nilnil // nothing to match
		}

		a = that.store.entries[waiting[0]]
		b = that.store.entries[waiting[1]]

		// players already in a game lose their stale entry
		stale := false
		for _, entry := range []entity.QueueEntry{a, b} {
			if _, playing := that.store.playerSession[entry.PlayerID]; playing {
				that.store.removeEntry(entry)
				stale = true
			}
		}

		if !stale {
			break
		}
	}

	session := newSession(a, b)

	that.store.removeEntry(a)
	that.store.removeEntry(b)
	that.store.matched[a.PlayerID] = session.ID
	that.store.matched[b.PlayerID] = session.ID
	that.store.addSession(session)

	return session.Clone(), nil
}

func (that *queue) Status(_ context.Context, playerID string) (entity.QueueStatus, error) {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	if entry, ok := that.store.entries[playerID]; ok {
		position := slices.Index(that.store.queues[entry.Preferences.Class()], playerID) + 1
		return entity.QueueStatus{State: entity.QueueWaiting, Position: position}, nil
	}

	if sessionID, ok := that.store.matched[playerID]; ok {
		return entity.QueueStatus{State: entity.QueueMatched, SessionID: sessionID}, nil
	}

	return entity.QueueStatus{State: entity.QueueIdle}, nil
}

// confirmIdle must be called with mu held.
func (that *Store) confirmIdle(players ...string) error {
	for _, player := range players {
		if _, queued := that.entries[player]; queued {
			return fmt.Errorf("%w: player %s", apperror.ErrAlreadyQueued, player)
		}

		if current, playing := that.playerSession[player]; playing {
			return fmt.Errorf("%w: session %s", apperror.ErrAlreadyInGame, current)
		}
	}

	return nil
}

// removeEntry must be called with mu held.
func (that *Store) removeEntry(entry entity.QueueEntry) {
	class := entry.Preferences.Class()
	that.queues[class] = slices.DeleteFunc(that.queues[class], func(player string) bool {
		return player == entry.PlayerID
	})
	delete(that.entries, entry.PlayerID)
}

type rematches struct {
	store *Store
}

func (that *rematches) GetBySession(_ context.Context, sessionID string) (*entity.RematchRequest, error) {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	request, ok := that.store.rematches[sessionID]
	if !ok {
		return nil, fmt.Errorf("rematch for %s: %w", sessionID, apperror.ErrNotFound)
	}

	return &request, nil
}

func (that *rematches) Request(_ context.Context, sessionID, requesterID string) (*entity.RematchRequest, error) {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	if existing, ok := that.store.rematches[sessionID]; ok && existing.Status == entity.RematchAccepted {
		return &existing, nil
	}

	request := entity.RematchRequest{
		SessionID:   sessionID,
		RequesterID: requesterID,
		Status:      entity.RematchPending,
	}
	that.store.rematches[sessionID] = request

	return &request, nil
}

func (that *rematches) Accept(_ context.Context, sessionID, acceptorID string, newSession *entity.Session) (*entity.RematchRequest, error) {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	var current *entity.RematchRequest
	if request, ok := that.store.rematches[sessionID]; ok {
		current = &request
	}

	if err := repository.ConfirmAcceptable(current, acceptorID); err != nil {
		return nil, fmt.Errorf("failed to accept rematch: %w", err)
	}

	if err := that.store.confirmIdle(newSession.PlayerA, newSession.PlayerB); err != nil {
		return nil, fmt.Errorf("failed to accept rematch: %w", err)
	}

	current.Status = entity.RematchAccepted
	current.NewSessionID = newSession.ID
	that.store.rematches[sessionID] = *current
	that.store.addSession(newSession)

	return current, nil
}

// invites keeps expired invites; callers read the expiry off the record.
type invites struct {
	store *Store
}

func (that *invites) Create(_ context.Context, invite *entity.Invite) error {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	if _, ok := that.store.invites[invite.Code]; ok {
		return fmt.Errorf("failed to create invite: %w: code %s is taken", apperror.ErrConcurrentWrite, invite.Code)
	}

	that.store.invites[invite.Code] = *invite
	return nil
}

func (that *invites) GetByCode(_ context.Context, code string) (*entity.Invite, error) {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	invite, ok := that.store.invites[code]
	if !ok {
		return nil, fmt.Errorf("invite %s: %w", code, apperror.ErrNotFound)
	}

	return &invite, nil
}

func (that *invites) Join(
	_ context.Context,
	code, guestID string,
	now time.Time,
	newSession repository.NewInviteSessionFunc,
) (*entity.Invite, *entity.Session, error) {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	var current *entity.Invite
	if invite, ok := that.store.invites[code]; ok {
		current = &invite
	}

	bind, err := repository.ConfirmJoinable(current, guestID, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to join invite: %w", err)
	}

	if !bind {
		return current, nil, nil
	}

	if err = that.store.confirmIdle(current.HostID, guestID); err != nil {
		return nil, nil, fmt.Errorf("failed to join invite: %w", err)
	}

	session := newSession(current, guestID)
	current.Use(guestID, session.ID, now)

	that.store.invites[code] = *current
	that.store.addSession(session)

	return current, session.Clone(), nil
}
