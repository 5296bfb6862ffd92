package gomoku

import (
	"testing"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moves(cells ...[2]int) []entity.Move {
	out := make([]entity.Move, 0, len(cells))
	mark := entity.MarkA
	for i, c := range cells {
		out = append(out, entity.Move{Seq: i, Mark: mark, Row: c[0], Col: c[1]})
		mark = mark.Other()
	}
	return out
}

func TestEngine_Replay(t *testing.T) {
	t.Run("Replays a won game", func(t *testing.T) {
		// Given: A builds a row on 0 while B plays row 1
		engine := newEngine(t)
		history := moves(
			[2]int{0, 0}, [2]int{1, 0},
			[2]int{0, 1}, [2]int{1, 1},
			[2]int{0, 2}, [2]int{1, 2},
			[2]int{0, 3}, [2]int{1, 3},
			[2]int{0, 4},
		)

		// When: the history is replayed
		state, err := engine.Replay(15, history)
		require.NoError(t, err)

		// Then: A has won and nobody is to move
		assert.Equal(t, OutcomeWin, state.Terminal.Outcome)
		assert.Equal(t, entity.MarkA, state.Terminal.Mark)
		assert.Equal(t, entity.EmptyCell, state.Turn)
		assert.Equal(t, 9, state.Board.Occupied())
	})

	t.Run("Unfinished game reports the next mark", func(t *testing.T) {
		engine := newEngine(t)

		state, err := engine.Replay(15, moves([2]int{7, 7}))
		require.NoError(t, err)

		assert.Equal(t, entity.MarkB, state.Turn)
		assert.Equal(t, OutcomeNone, state.Terminal.Outcome)
	})

	t.Run("Sequence gap", func(t *testing.T) {
		engine := newEngine(t)
		history := moves([2]int{0, 0}, [2]int{1, 1})
		history[1].Seq = 2

		_, err := engine.Replay(15, history)
		assert.ErrorIs(t, err, ErrSequenceGap)
	})

	t.Run("Move after the end", func(t *testing.T) {
		engine := newEngine(t)
		history := moves(
			[2]int{0, 0}, [2]int{1, 0},
			[2]int{0, 1}, [2]int{1, 1},
			[2]int{0, 2}, [2]int{1, 2},
			[2]int{0, 3}, [2]int{1, 3},
			[2]int{0, 4}, [2]int{1, 4},
		)

		_, err := engine.Replay(15, history)
		assert.ErrorIs(t, err, ErrMoveAfterEnd)
	})

	t.Run("Occupied cell", func(t *testing.T) {
		engine := newEngine(t)

		_, err := engine.Replay(15, moves([2]int{3, 3}, [2]int{3, 3}))
		assert.ErrorIs(t, err, ErrInvalidReplay)
	})
}

func TestEngine_Verify(t *testing.T) {
	engine := newEngine(t)
	history := moves(
		[2]int{0, 0}, [2]int{1, 0},
		[2]int{0, 1}, [2]int{1, 1},
		[2]int{0, 2}, [2]int{1, 2},
		[2]int{0, 3}, [2]int{1, 3},
		[2]int{0, 4},
	)

	state, err := engine.Replay(15, history)
	require.NoError(t, err)

	won := entity.NewSession("s1", "P1", "P2", 15, 5, false, time.Now())
	won.Board = state.Board
	won.Finish(entity.StatusAWon, entity.EndReasonWin, state.Terminal.Line, time.Now())

	t.Run("Matching session passes", func(t *testing.T) {
		assert.NoError(t, engine.Verify(won, history))
	})

	t.Run("Missing move changes the board", func(t *testing.T) {
		err := engine.Verify(won, history[:len(history)-1])
		assert.ErrorIs(t, err, ErrStateMismatch)
	})

	t.Run("Wrong result is caught", func(t *testing.T) {
		tampered := won.Clone()
		tampered.Status = entity.StatusBWon

		assert.ErrorIs(t, engine.Verify(tampered, history), ErrStateMismatch)
	})

	t.Run("Resigned game keeps an open board", func(t *testing.T) {
		open := history[:4]
		partial, err := engine.Replay(15, open)
		require.NoError(t, err)

		resigned := entity.NewSession("s2", "P1", "P2", 15, 5, false, time.Now())
		resigned.Board = partial.Board
		resigned.Finish(entity.StatusBWon, entity.EndReasonResign, nil, time.Now())

		assert.NoError(t, engine.Verify(resigned, open))
	})
}
