package gomoku

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeWin
	OutcomeDraw
)

var ErrInvalidWinLength = errors.New("invalid win length")

// directions in scan order: horizontal, vertical, diagonal-down, diagonal-up.
var directions = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{-1, 1},
}

type Terminal struct {
	Outcome Outcome
	Mark    entity.Cell
	Line    []entity.Coord
}

type Result struct {
	Board    entity.Board
	Terminal Terminal
}

// Engine holds the rules of one game. It keeps no state between calls and is
// safe for concurrent use.
type Engine struct {
	winLength int
}

func New(winLength int) (Engine, error) {
	if winLength < 1 {
		return Engine{}, fmt.Errorf("%w: %d", ErrInvalidWinLength, winLength)
	}
	return Engine{winLength: winLength}, nil
}

// ValidateAndApply places mover's mark on a copy of board. The input board is
// never modified.
func (that Engine) ValidateAndApply(board entity.Board, turn, mover entity.Cell, row, col int) (Result, error) {
	if err := validateMove(board, turn, mover, row, col); err != nil {
		return Result{}, fmt.Errorf("invalid turn: %w", err)
	}

	next := board.Clone()
	next.Set(row, col, mover)

	return Result{
		Board:    next,
		Terminal: that.detectTerminal(next, row, col),
	}, nil
}

// validateMove - checks if the move is valid.
func validateMove(board entity.Board, turn, mover entity.Cell, row, col int) error {
	if !board.InBounds(row, col) {
		return fmt.Errorf("%w: (%d,%d)", apperror.ErrOutOfBounds, row, col)
	}

	if board.At(row, col) != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	if mover == entity.EmptyCell || turn != mover {
		return apperror.ErrNotYourTurn
	}

	return nil
}

// detectTerminal checks the win first and the draw only when nobody won.
func (that Engine) detectTerminal(board entity.Board, row, col int) Terminal {
	mark := board.At(row, col)

	for _, dir := range directions {
		back := that.run(board, row, col, -dir[0], -dir[1], mark)
		forward := that.run(board, row, col, dir[0], dir[1], mark)

		if 1+back+forward < that.winLength {
			continue
		}

		// the window starts at the run's first cell but must contain the placed one
		start := -min(back, that.winLength-1)
		line := make([]entity.Coord, that.winLength)
		for i := range line {
			line[i] = entity.Coord{Row: row + (start+i)*dir[0], Col: col + (start+i)*dir[1]}
		}

		return Terminal{Outcome: OutcomeWin, Mark: mark, Line: line}
	}

	if board.IsFull() {
		return Terminal{Outcome: OutcomeDraw}
	}

	return Terminal{Outcome: OutcomeNone}
}

// run counts contiguous cells of mark from (row,col) exclusive, stopping once
// a win is already guaranteed.
func (that Engine) run(board entity.Board, row, col, dr, dc int, mark entity.Cell) int {
	count := 0
	r, c := row+dr, col+dc
	for count < that.winLength && board.InBounds(r, c) && board.At(r, c) == mark {
		count++
		r += dr
		c += dc
	}
	return count
}
