package storage

import (
	"context"
	"database/sql"
	"fmt"

	// import the SQLite driver to register it with the database/sql package.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	player_a   TEXT NOT NULL,
	player_b   TEXT NOT NULL,
	status     TEXT NOT NULL,
	ended_at   INTEGER NOT NULL,
	data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_player_a ON sessions (player_a);
CREATE INDEX IF NOT EXISTS sessions_player_b ON sessions (player_b);
CREATE TABLE IF NOT EXISTS moves (
	session_id TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	player_id  TEXT NOT NULL,
	mark       TEXT NOT NULL,
	cell_row   INTEGER NOT NULL,
	cell_col   INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, seq)
);`

type Storage struct {
	Connection *sql.DB
}

func NewSQLite(path string) (*Storage, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}

	// sqlite serializes writers anyway, and ":memory:" is private to one connection
	conn.SetMaxOpenConns(1)

	if err = conn.Ping(); err != nil {
		return nil, fmt.Errorf("can't connect to database: %w", err)
	}

	return &Storage{Connection: conn}, nil
}

func (that *Storage) Init(ctx context.Context) error {
	if _, err := that.Connection.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("can't create tables: %w", err)
	}

	return nil
}

func (that *Storage) Close() error {
	return that.Connection.Close()
}
