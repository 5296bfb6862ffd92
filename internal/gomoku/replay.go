package gomoku

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

var (
	ErrMoveAfterEnd  = errors.New("move recorded after the game ended")
	ErrSequenceGap   = errors.New("move sequence is not contiguous")
	ErrInvalidReplay = errors.New("invalid replay")
	ErrStateMismatch = errors.New("moves do not reproduce the session")
)

type Replayed struct {
	Board    entity.Board
	Terminal Terminal
	// Turn is the mark to move next; EmptyCell once the game ended.
	Turn entity.Cell
}

// Replay rebuilds a game from an empty board by applying moves in sequence
// order. Player A always opens.
func (that Engine) Replay(size int, moves []entity.Move) (Replayed, error) {
	state := Replayed{
		Board: entity.NewBoard(size),
		Turn:  entity.MarkA,
	}

	for i, move := range moves {
		if move.Seq != i {
			return Replayed{}, fmt.Errorf("%w: expected %d, got %d", ErrSequenceGap, i, move.Seq)
		}

		if state.Terminal.Outcome != OutcomeNone {
			return Replayed{}, fmt.Errorf("%w: seq %d", ErrMoveAfterEnd, move.Seq)
		}

		result, err := that.ValidateAndApply(state.Board, state.Turn, move.Mark, move.Row, move.Col)
		if err != nil {
			return Replayed{}, fmt.Errorf("%w: seq %d: %w", ErrInvalidReplay, move.Seq, err)
		}

		state.Board = result.Board
		state.Terminal = result.Terminal
		state.Turn = state.Turn.Other()
	}

	if state.Terminal.Outcome != OutcomeNone {
		state.Turn = entity.EmptyCell
	}

	return state, nil
}

// Verify replays moves and checks that they reproduce the board of session
// and, for games decided on the board, its status and winning line.
func (that Engine) Verify(session *entity.Session, moves []entity.Move) error {
	state, err := that.Replay(session.Board.Size, moves)
	if err != nil {
		return err
	}

	if state.Board.String() != session.Board.String() {
		return fmt.Errorf("%w: board of session %s", ErrStateMismatch, session.ID)
	}

	status := entity.StatusInProgress
	var line []entity.Coord

	switch state.Terminal.Outcome {
	case OutcomeWin:
		status = entity.WinStatus(state.Terminal.Mark)
		line = state.Terminal.Line
	case OutcomeDraw:
		status = entity.StatusDraw
	case OutcomeNone:
		// resignation and abandonment end games the board left open
		if session.EndReason == entity.EndReasonResign || session.EndReason == entity.EndReasonTimeout {
			return nil
		}
	}

	if session.Status != status || !slices.Equal(session.WinningLine, line) {
		return fmt.Errorf("%w: result of session %s", ErrStateMismatch, session.ID)
	}

	return nil
}
