package repository

import (
	"testing"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_CreateAndGet(t *testing.T) {
	t.Run("GetByID_Success", func(t *testing.T) {
		ctx, st := suite.New(t)
		sessionRepo := NewSessionRepository(st.Redis, time.Minute)

		// Given: a stored session
		session := entity.NewSession("s1", "p1", "p2", 15, 5, false, time.Now().UTC())
		require.NoError(t, sessionRepo.Create(ctx, session))

		// When: it is loaded
		loaded, err := sessionRepo.GetByID(ctx, "s1")

		// Then: it matches and both players are indexed
		require.NoError(t, err)
		assert.Equal(t, session.PlayerA, loaded.PlayerA)
		assert.Equal(t, session.Board, loaded.Board)

		active, err := sessionRepo.ActiveSessionOf(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, "s1", active)

		ids, err := sessionRepo.ActiveIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"s1"}, ids)
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)
		sessionRepo := NewSessionRepository(st.Redis, time.Minute)

		_, err := sessionRepo.GetByID(ctx, "missing")

		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("Create twice", func(t *testing.T) {
		ctx, st := suite.New(t)
		sessionRepo := NewSessionRepository(st.Redis, time.Minute)

		session := entity.NewSession("s1", "p1", "p2", 15, 5, false, time.Now())
		require.NoError(t, sessionRepo.Create(ctx, session))

		assert.ErrorIs(t, sessionRepo.Create(ctx, session), apperror.ErrConcurrentWrite)
	})
}

func TestSessionRepository_Update(t *testing.T) {
	t.Run("Appends moves in sequence", func(t *testing.T) {
		ctx, st := suite.New(t)
		sessionRepo := NewSessionRepository(st.Redis, time.Minute)

		// Given: a session with two applied moves
		session := entity.NewSession("s1", "p1", "p2", 15, 5, false, time.Now())
		require.NoError(t, sessionRepo.Create(ctx, session))

		for seq, cell := range []entity.Coord{{Row: 7, Col: 7}, {Row: 7, Col: 8}} {
			mark := entity.MarkA
			if seq == 1 {
				mark = entity.MarkB
			}
			session.Board.Set(cell.Row, cell.Col, mark)
			session.MoveCount++
			move := &entity.Move{SessionID: "s1", Seq: seq, PlayerID: session.PlayerOf(mark), Mark: mark, Row: cell.Row, Col: cell.Col}
			require.NoError(t, sessionRepo.Update(ctx, session, seq, move))
		}

		// When: moves after the first are requested
		moves, err := sessionRepo.Moves(ctx, "s1", 0)

		// Then: only the second is returned
		require.NoError(t, err)
		require.Len(t, moves, 1)
		assert.Equal(t, 1, moves[0].Seq)
		assert.Equal(t, entity.MarkB, moves[0].Mark)

		all, err := sessionRepo.Moves(ctx, "s1", -1)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("Stale move count is rejected", func(t *testing.T) {
		ctx, st := suite.New(t)
		sessionRepo := NewSessionRepository(st.Redis, time.Minute)

		// Given: a session that already moved once
		session := entity.NewSession("s1", "p1", "p2", 15, 5, false, time.Now())
		require.NoError(t, sessionRepo.Create(ctx, session))
		session.MoveCount = 1
		require.NoError(t, sessionRepo.Update(ctx, session, 0, &entity.Move{SessionID: "s1"}))

		// When: a writer that saw zero moves tries to write
		err := sessionRepo.Update(ctx, session, 0, &entity.Move{SessionID: "s1"})

		// Then: the write is refused
		assert.ErrorIs(t, err, apperror.ErrConcurrentWrite)
	})

	t.Run("Finished session leaves the active set", func(t *testing.T) {
		ctx, st := suite.New(t)
		sessionRepo := NewSessionRepository(st.Redis, time.Minute)

		session := entity.NewSession("s1", "p1", "p2", 15, 5, false, time.Now())
		require.NoError(t, sessionRepo.Create(ctx, session))

		// When: player A resigns
		session.Finish(entity.StatusBWon, entity.EndReasonResign, nil, time.Now())
		require.NoError(t, sessionRepo.Update(ctx, session, 0, nil))

		// Then: nobody is indexed as playing, and the key expires
		active, err := sessionRepo.ActiveSessionOf(ctx, "p1")
		require.NoError(t, err)
		assert.Empty(t, active)

		ids, err := sessionRepo.ActiveIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		ttl, err := st.Redis.TTL(ctx, sessionKey("s1")).Result()
		require.NoError(t, err)
		assert.Positive(t, ttl)

		// And: the terminal status cannot be overwritten
		assert.ErrorIs(t, sessionRepo.Update(ctx, session, 0, nil), apperror.ErrConcurrentWrite)
	})
}
