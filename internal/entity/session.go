package entity

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusAWon       Status = "a_won"
	StatusBWon       Status = "b_won"
	StatusDraw       Status = "draw"
	StatusAbandoned  Status = "abandoned"
)

const (
	EndReasonWin     = "win"
	EndReasonDraw    = "draw"
	EndReasonResign  = "resign"
	EndReasonTimeout = "timeout"
)

const (
	DefaultBoardSize = 15
	DefaultWinLength = 5
)

// Session is one two-player game. It is written only by the coordinator.
type Session struct {
	ID          string     `json:"id"`
	PlayerA     string     `json:"player_a"`
	PlayerB     string     `json:"player_b"`
	Board       Board      `json:"board"`
	WinLength   int        `json:"win_length"`
	MoveCount   int        `json:"move_count"`
	CurrentTurn string     `json:"current_turn,omitempty"`
	Status      Status     `json:"status"`
	WinningLine []Coord    `json:"winning_line"`
	Ranked      bool       `json:"ranked"`
	CreatedAt   time.Time  `json:"created_at"`
	LastMoveAt  time.Time  `json:"last_move_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	EndReason   string     `json:"end_reason,omitempty"`
	// ForfeitedBy is set when a player resigned or ran out of time.
	ForfeitedBy string `json:"forfeited_by,omitempty"`
}

func NewSession(id, playerA, playerB string, size, winLength int, ranked bool, now time.Time) *Session {
	return &Session{
		ID:          id,
		PlayerA:     playerA,
		PlayerB:     playerB,
		Board:       NewBoard(size),
		WinLength:   winLength,
		CurrentTurn: playerA,
		Status:      StatusInProgress,
		WinningLine: []Coord{},
		Ranked:      ranked,
		CreatedAt:   now,
		LastMoveAt:  now,
	}
}

func (that *Session) IsTerminal() bool {
	return that.Status != StatusInProgress
}

func (that *Session) IsParticipant(playerID string) bool {
	return playerID != "" && (playerID == that.PlayerA || playerID == that.PlayerB)
}

// MarkOf returns the mark a participant plays with.
func (that *Session) MarkOf(playerID string) (Cell, bool) {
	switch playerID {
	case "":
		return EmptyCell, false
	case that.PlayerA:
		return MarkA, true
	case that.PlayerB:
		return MarkB, true
	default:
		return EmptyCell, false
	}
}

func (that *Session) PlayerOf(mark Cell) string {
	switch mark {
	case MarkA:
		return that.PlayerA
	case MarkB:
		return that.PlayerB
	default:
		return ""
	}
}

func (that *Session) Opponent(playerID string) string {
	if playerID == that.PlayerA {
		return that.PlayerB
	}
	return that.PlayerA
}

// WinStatus is the terminal status for a win by mark.
func WinStatus(mark Cell) Status {
	if mark == MarkA {
		return StatusAWon
	}
	return StatusBWon
}

// ConfirmMovable reports why requester may not move right now, if at all.
func (that *Session) ConfirmMovable(requester string) error {
	if !that.IsParticipant(requester) {
		return apperror.ErrNotParticipant
	}

	if that.IsTerminal() {
		return fmt.Errorf("%w: status %s", apperror.ErrGameOver, that.Status)
	}

	if that.CurrentTurn != requester {
		return apperror.ErrNotYourTurn
	}

	return nil
}

// Finish moves the session into a terminal status. It is a no-op on an
// already finished session so terminal statuses never change.
func (that *Session) Finish(status Status, reason string, line []Coord, now time.Time) {
	if that.IsTerminal() || status == StatusInProgress {
		return
	}

	if line == nil {
		line = []Coord{}
	}

	that.Status = status
	that.EndReason = reason
	that.WinningLine = line
	that.CurrentTurn = ""
	that.EndedAt = &now
}

func (that *Session) Clone() *Session {
	clone := *that
	clone.Board = that.Board.Clone()
	clone.WinningLine = append([]Coord{}, that.WinningLine...)
	if that.EndedAt != nil {
		ended := *that.EndedAt
		clone.EndedAt = &ended
	}
	return &clone
}
