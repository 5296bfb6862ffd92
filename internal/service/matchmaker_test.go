package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMatchmaker(store *memory.Store, events *recorder, clock *fakeClock) MatchmakerService {
	return NewMatchmakerService(discardLogger(), store.Queue(), store.Invites(), store.Sessions(), events, DefaultRules(), clock.Now)
}

func TestMatchmaker_TwoPlayersMatch(t *testing.T) {
	ctx := t.Context()
	store := memory.NewStore()
	events := &recorder{}
	clock := newFakeClock()
	matchmaker := newMatchmaker(store, events, clock)

	// Given: P1 joins before P2
	_, err := matchmaker.Enqueue(ctx, "P1", entity.Preferences{})
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = matchmaker.Enqueue(ctx, "P2", entity.Preferences{})
	require.NoError(t, err)

	// When: the matcher runs
	session, err := matchmaker.TryMatch(ctx, entity.ClassCasual)
	require.NoError(t, err)

	// Then: one session exists, P1 moves first and both players are told
	require.NotNil(t, session)
	assert.Equal(t, "P1", session.PlayerA)
	assert.Equal(t, "P1", session.CurrentTurn)
	assert.Equal(t, entity.StatusInProgress, session.Status)
	assert.Equal(t, 15, session.Board.Size)

	p1 := events.on(entity.PlayerTopic("P1"))
	require.Len(t, p1, 1)
	assert.Equal(t, entity.QueueMatchedPayload{SessionID: session.ID, Role: RoleA, OpponentID: "P2"}, p1[0].Payload)
	assert.Len(t, events.on(entity.PlayerTopic("P2")), 1)
	assert.Len(t, events.on(entity.TopicLobby), 1)

	// And: the queue holds nobody
	again, err := matchmaker.TryMatch(ctx, entity.ClassCasual)
	require.NoError(t, err)
	assert.Nil(t, again)

	status, err := matchmaker.Status(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, entity.QueueMatched, status.State)
	assert.Equal(t, session.ID, status.SessionID)
}

func TestMatchmaker_ConcurrentTryMatch(t *testing.T) {
	ctx := t.Context()
	store := memory.NewStore()
	clock := newFakeClock()
	matchmaker := newMatchmaker(store, &recorder{}, clock)

	// Given: eleven waiting players
	const players = 11
	for i := range players {
		_, err := matchmaker.Enqueue(ctx, fmt.Sprintf("P%02d", i), entity.Preferences{})
		require.NoError(t, err)
		clock.Advance(time.Millisecond)
	}

	// When: many requests try to match at once
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions []*entity.Session
	)
	for range 3 * players {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := matchmaker.TryMatch(ctx, entity.ClassCasual)
			assert.NoError(t, err)
			if session != nil {
				mu.Lock()
				sessions = append(sessions, session)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Then: floor(N/2) sessions, every player in at most one
	assert.Len(t, sessions, players/2)

	seen := map[string]string{}
	for _, session := range sessions {
		for _, player := range []string{session.PlayerA, session.PlayerB} {
			previous, dup := seen[player]
			assert.False(t, dup, "player %s in %s and %s", player, previous, session.ID)
			seen[player] = session.ID
		}
	}

	waiting := 0
	for i := range players {
		status, err := matchmaker.Status(ctx, fmt.Sprintf("P%02d", i))
		require.NoError(t, err)
		if status.State == entity.QueueWaiting {
			waiting++
		}
	}
	assert.Equal(t, 1, waiting)
}

func TestMatchmaker_Enqueue(t *testing.T) {
	t.Run("Already queued", func(t *testing.T) {
		ctx := t.Context()
		matchmaker := newMatchmaker(memory.NewStore(), &recorder{}, newFakeClock())

		_, err := matchmaker.Enqueue(ctx, "P1", entity.Preferences{})
		require.NoError(t, err)

		_, err = matchmaker.Enqueue(ctx, "P1", entity.Preferences{Ranked: true})
		assert.ErrorIs(t, err, apperror.ErrAlreadyQueued)
	})

	t.Run("Already in game", func(t *testing.T) {
		ctx := t.Context()
		store := memory.NewStore()
		matchmaker := newMatchmaker(store, &recorder{}, newFakeClock())
		require.NoError(t, store.Sessions().Create(ctx, entity.NewSession("s1", "P1", "P2", 15, 5, false, time.Now())))

		_, err := matchmaker.Enqueue(ctx, "P2", entity.Preferences{})

		assert.ErrorIs(t, err, apperror.ErrAlreadyInGame)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	})

	t.Run("Ranked and casual never meet", func(t *testing.T) {
		ctx := t.Context()
		matchmaker := newMatchmaker(memory.NewStore(), &recorder{}, newFakeClock())

		_, err := matchmaker.Enqueue(ctx, "P1", entity.Preferences{Ranked: true})
		require.NoError(t, err)
		_, err = matchmaker.Enqueue(ctx, "P2", entity.Preferences{})
		require.NoError(t, err)

		for _, class := range []string{entity.ClassRanked, entity.ClassCasual} {
			session, err := matchmaker.TryMatch(ctx, class)
			require.NoError(t, err)
			assert.Nil(t, session)
		}
	})
}

func TestMatchmaker_Cancel(t *testing.T) {
	ctx := t.Context()
	matchmaker := newMatchmaker(memory.NewStore(), &recorder{}, newFakeClock())

	// Given: P1 waits and P2, P3 are matched
	for _, player := range []string{"P2", "P3"} {
		_, err := matchmaker.Enqueue(ctx, player, entity.Preferences{})
		require.NoError(t, err)
	}
	_, err := matchmaker.TryMatch(ctx, entity.ClassCasual)
	require.NoError(t, err)
	_, err = matchmaker.Enqueue(ctx, "P1", entity.Preferences{})
	require.NoError(t, err)

	// Then: P1 leaves, P2 is told it was already matched
	removed, err := matchmaker.Cancel(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = matchmaker.Cancel(ctx, "P2")
	assert.False(t, removed)
	assert.ErrorIs(t, err, apperror.ErrAlreadyMatched)

	removed, err = matchmaker.Cancel(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMatchmaker_Status(t *testing.T) {
	ctx := t.Context()
	clock := newFakeClock()
	matchmaker := newMatchmaker(memory.NewStore(), &recorder{}, clock)

	status, err := matchmaker.Status(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, entity.QueueIdle, status.State)

	_, err = matchmaker.Enqueue(ctx, "P1", entity.Preferences{Ranked: true})
	require.NoError(t, err)

	status, err = matchmaker.Status(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, entity.QueueStatus{State: entity.QueueWaiting, Position: 1, EstimatedWait: 8 * time.Second}, status)
}

func TestEstimateWait(t *testing.T) {
	assert.Equal(t, 8*time.Second, EstimateWait(1))
	assert.Equal(t, 29*time.Second, EstimateWait(8))
	assert.Equal(t, 30*time.Second, EstimateWait(50))
}
