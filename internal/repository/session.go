package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

type dbSession struct {
	client *redis.Client
	// finishedTTL expires finished sessions and their moves; zero keeps them.
	finishedTTL time.Duration
}

func NewSessionRepository(client *redis.Client, finishedTTL time.Duration) SessionRepository {
	return &dbSession{
		client:      client,
		finishedTTL: finishedTTL,
	}
}

func (that *dbSession) Create(ctx context.Context, session *entity.Session) error {
	key := sessionKey(session.ID)

	err := watchRetry(ctx, that.client, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}

		if exists > 0 {
			return fmt.Errorf("%w: session %s already exists", apperror.ErrConcurrentWrite, session.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return writeNewSession(ctx, pipe, session)
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (that *dbSession) GetByID(ctx context.Context, id string) (*entity.Session, error) {
	session, err := loadSession(ctx, that.client, id)
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (that *dbSession) Update(ctx context.Context, session *entity.Session, expectedMoves int, move *entity.Move) error {
	key := sessionKey(session.ID)

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var moveJSON []byte
	if move != nil {
		if moveJSON, err = json.Marshal(move); err != nil {
			return fmt.Errorf("failed to marshal move: %w", err)
		}
	}

	players := []string{session.PlayerA, session.PlayerB}

	txf := func(tx *redis.Tx) error {
		stored, err := loadSession(ctx, tx, session.ID)
		if err != nil {
			return err
		}

		if stored.IsTerminal() || stored.MoveCount != expectedMoves {
			return apperror.ErrConcurrentWrite
		}

		// a rematch may already point a player at a newer session
		var indexed []string
		if session.IsTerminal() {
			for _, player := range players {
				current, err := tx.Get(ctx, playerSessionKey(player)).Result()
				if err != nil && !errors.Is(err, redis.Nil) {
					return fmt.Errorf("failed to get player session: %w", err)
				}
				if current == session.ID {
					indexed = append(indexed, player)
				}
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, sessionJSON, 0)

			if moveJSON != nil {
				pipe.RPush(ctx, movesKey(session.ID), moveJSON)
			}

			if session.IsTerminal() {
				pipe.SRem(ctx, activeSessionsKey, session.ID)
				for _, player := range indexed {
					pipe.Del(ctx, playerSessionKey(player))
				}
				if that.finishedTTL > 0 {
					pipe.Expire(ctx, key, that.finishedTTL)
					pipe.Expire(ctx, movesKey(session.ID), that.finishedTTL)
				}
			}

			return nil
		})
		return err
	}

	err = that.client.Watch(ctx, txf, key, playerSessionKey(players[0]), playerSessionKey(players[1]))
	if errors.Is(err, redis.TxFailedErr) {
		err = apperror.ErrConcurrentWrite
	}

	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

func (that *dbSession) Moves(ctx context.Context, id string, after int) ([]entity.Move, error) {
	after = max(after, -1)

	response, err := that.client.LRange(ctx, movesKey(id), int64(after+1), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get moves: %w", err)
	}

	moves := make([]entity.Move, 0, len(response))
	for _, raw := range response {
		var move entity.Move
		if err = json.Unmarshal([]byte(raw), &move); err != nil {
			return nil, fmt.Errorf("failed to unmarshal move: %w", err)
		}
		moves = append(moves, move)
	}

	return moves, nil
}

func (that *dbSession) ActiveIDs(ctx context.Context) ([]string, error) {
	ids, err := that.client.SMembers(ctx, activeSessionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}

	return ids, nil
}

func (that *dbSession) ActiveSessionOf(ctx context.Context, playerID string) (string, error) {
	return playingSession(ctx, that.client, playerID)
}

func loadSession(ctx context.Context, client redis.Cmdable, id string) (*entity.Session, error) {
	response, err := client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, apperror.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session by ID: %w", err)
	}

	var session entity.Session
	if err = json.Unmarshal(response, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// writeNewSession queues the writes that make a fresh session visible: the
// session itself, the player index and the active set.
func writeNewSession(ctx context.Context, pipe redis.Pipeliner, session *entity.Session) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe.Set(ctx, sessionKey(session.ID), sessionJSON, 0)
	pipe.Set(ctx, playerSessionKey(session.PlayerA), session.ID, 0)
	pipe.Set(ctx, playerSessionKey(session.PlayerB), session.ID, 0)
	pipe.SAdd(ctx, activeSessionsKey, session.ID)

	return nil
}
