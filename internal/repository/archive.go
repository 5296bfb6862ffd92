package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// ArchiveRepository keeps finished sessions after their hot copy expires.
type ArchiveRepository interface {
	Save(ctx context.Context, session *entity.Session, moves []entity.Move) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	Moves(ctx context.Context, id string, after int) ([]entity.Move, error)
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]*entity.Session, error)
}

type archiveRepository struct {
	conn *sql.DB
}

func NewArchiveRepository(conn *sql.DB) ArchiveRepository {
	return &archiveRepository{
		conn: conn,
	}
}

func (that *archiveRepository) Save(ctx context.Context, session *entity.Session, moves []entity.Move) error {
	if !session.IsTerminal() {
		return fmt.Errorf("can't archive session %s: %w", session.ID, apperror.ErrGameInProgress)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var endedAt int64
	if session.EndedAt != nil {
		endedAt = session.EndedAt.UnixNano()
	}

	tx, err := that.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT OR REPLACE INTO sessions (id, player_a, player_b, status, ended_at, data) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err = tx.ExecContext(ctx, query, session.ID, session.PlayerA, session.PlayerB, string(session.Status), endedAt, string(data)); err != nil {
		return fmt.Errorf("can't save session: %w", err)
	}

	query = `INSERT OR IGNORE INTO moves (session_id, seq, player_id, mark, cell_row, cell_col, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, move := range moves {
		_, err = tx.ExecContext(ctx, query, session.ID, move.Seq, move.PlayerID, move.Mark.String(), move.Row, move.Col, move.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("can't save move %d: %w", move.Seq, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("can't commit archive: %w", err)
	}

	return nil
}

func (that *archiveRepository) GetByID(ctx context.Context, id string) (*entity.Session, error) {
	query := `SELECT data FROM sessions WHERE id = ?`

	var data string
	err := that.conn.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("archived session %s: %w", id, apperror.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("can't find session: %w", err)
	}

	return decodeArchived(data)
}

func (that *archiveRepository) Moves(ctx context.Context, id string, after int) ([]entity.Move, error) {
	query := `SELECT seq, player_id, mark, cell_row, cell_col, created_at FROM moves WHERE session_id = ? AND seq > ? ORDER BY seq`

	rows, err := that.conn.QueryContext(ctx, query, id, after)
	if err != nil {
		return nil, fmt.Errorf("can't query moves: %w", err)
	}
	defer rows.Close()

	var moves []entity.Move
	for rows.Next() {
		var (
			move      entity.Move
			mark      string
			createdAt int64
		)

		if err = rows.Scan(&move.Seq, &move.PlayerID, &mark, &move.Row, &move.Col, &createdAt); err != nil {
			return nil, fmt.Errorf("can't scan move: %w", err)
		}

		if err = move.Mark.UnmarshalText([]byte(mark)); err != nil {
			return nil, err
		}

		move.SessionID = id
		move.CreatedAt = time.Unix(0, createdAt).UTC()
		moves = append(moves, move)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read moves: %w", err)
	}

	return moves, nil
}

func (that *archiveRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*entity.Session, error) {
	query := `SELECT data FROM sessions WHERE player_a = ? OR player_b = ? ORDER BY ended_at DESC LIMIT ?`

	rows, err := that.conn.QueryContext(ctx, query, playerID, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("can't query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*entity.Session
	for rows.Next() {
		var data string
		if err = rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("can't scan session: %w", err)
		}

		session, err := decodeArchived(data)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read sessions: %w", err)
	}

	return sessions, nil
}

func decodeArchived(data string) (*entity.Session, error) {
	var session entity.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}
