package entity

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Cell uint8

const (
	EmptyCell Cell = iota
	MarkA
	MarkB
)

var ErrInvalidBoard = errors.New("invalid board encoding")

func (that Cell) String() string {
	switch that {
	case MarkA:
		return "A"
	case MarkB:
		return "B"
	default:
		return "."
	}
}

// Other returns the opposing mark. EmptyCell has no opponent.
func (that Cell) Other() Cell {
	switch that {
	case MarkA:
		return MarkB
	case MarkB:
		return MarkA
	default:
		return EmptyCell
	}
}

func (that Cell) MarshalText() ([]byte, error) {
	return []byte(that.String()), nil
}

func (that *Cell) UnmarshalText(text []byte) error {
	switch string(text) {
	case ".":
		*that = EmptyCell
	case "A":
		*that = MarkA
	case "B":
		*that = MarkB
	default:
		return fmt.Errorf("%w: unexpected cell %q", ErrInvalidBoard, text)
	}
	return nil
}

type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Board is a square grid stored row-major.
type Board struct {
	Size  int
	Cells []Cell
}

func NewBoard(size int) Board {
	return Board{
		Size:  size,
		Cells: make([]Cell, size*size),
	}
}

func (that Board) InBounds(row, col int) bool {
	return row >= 0 && row < that.Size && col >= 0 && col < that.Size
}

func (that Board) At(row, col int) Cell {
	return that.Cells[row*that.Size+col]
}

func (that Board) Set(row, col int, cell Cell) {
	that.Cells[row*that.Size+col] = cell
}

func (that Board) CellCount() int {
	return len(that.Cells)
}

func (that Board) Occupied() int {
	n := 0
	for _, cell := range that.Cells {
		if cell != EmptyCell {
			n++
		}
	}
	return n
}

func (that Board) IsFull() bool {
	return that.Occupied() == that.CellCount()
}

func (that Board) Clone() Board {
	cells := make([]Cell, len(that.Cells))
	copy(cells, that.Cells)
	return Board{Size: that.Size, Cells: cells}
}

// String renders one character per cell: '.', 'A' or 'B'.
func (that Board) String() string {
	out := make([]byte, len(that.Cells))
	for i, cell := range that.Cells {
		out[i] = cell.String()[0]
	}
	return string(out)
}

type boardJSON struct {
	Size  int    `json:"size"`
	Cells string `json:"cells"`
}

func (that Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(boardJSON{Size: that.Size, Cells: that.String()})
}

func (that *Board) UnmarshalJSON(data []byte) error {
	var raw boardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal board: %w", err)
	}

	board, err := ParseBoard(raw.Size, raw.Cells)
	if err != nil {
		return err
	}

	*that = board
	return nil
}

// ParseBoard decodes the String form of a board.
func ParseBoard(size int, cells string) (Board, error) {
	if size <= 0 || len(cells) != size*size {
		return Board{}, fmt.Errorf("%w: size %d with %d cells", ErrInvalidBoard, size, len(cells))
	}

	board := NewBoard(size)
	for i := 0; i < len(cells); i++ {
		switch cells[i] {
		case '.':
			board.Cells[i] = EmptyCell
		case 'A':
			board.Cells[i] = MarkA
		case 'B':
			board.Cells[i] = MarkB
		default:
			return Board{}, fmt.Errorf("%w: unexpected cell %q", ErrInvalidBoard, cells[i])
		}
	}

	return board, nil
}
