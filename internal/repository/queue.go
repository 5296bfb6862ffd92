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

// matchedTTL bounds how long a consumed entry answers already_matched.
const matchedTTL = time.Hour

type dbQueue struct {
	client *redis.Client
}

func NewQueueRepository(client *redis.Client) QueueRepository {
	return &dbQueue{
		client: client,
	}
}

func (that *dbQueue) Enqueue(ctx context.Context, entry entity.QueueEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	entryKey := queueEntryKey(entry.PlayerID)

	err = watchRetry(ctx, that.client, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, entryKey).Result()
		if err != nil {
			return fmt.Errorf("failed to check queue entry: %w", err)
		}

		if exists > 0 {
			return apperror.ErrAlreadyQueued
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, entryKey, entryJSON, 0)
			pipe.ZAdd(ctx, queueKey(entry.Preferences.Class()), redis.Z{
				Score:  float64(entry.EnqueuedAt.UnixMicro()),
				Member: entry.PlayerID,
			})
			pipe.Del(ctx, queueMatchKey(entry.PlayerID))
			return nil
		})
		return err
	}, entryKey)
	if err != nil {
		return fmt.Errorf("failed to enqueue player: %w", err)
	}

	return nil
}

func (that *dbQueue) Cancel(ctx context.Context, playerID string) (bool, error) {
	entryKey := queueEntryKey(playerID)
	matchKey := queueMatchKey(playerID)

	var removed bool

	err := watchRetry(ctx, that.client, func(tx *redis.Tx) error {
		entry, err := loadEntry(ctx, tx, playerID)
		if err != nil {
			return err
		}

		if entry == nil {
			matched, err := tx.Exists(ctx, matchKey).Result()
			if err != nil {
				return fmt.Errorf("failed to check match: %w", err)
			}
			if matched > 0 {
				return apperror.ErrAlreadyMatched
			}
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, queueKey(entry.Preferences.Class()), playerID)
			pipe.Del(ctx, entryKey)
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	}, entryKey, matchKey)
	if err != nil {
		return false, fmt.Errorf("failed to cancel queue entry: %w", err)
	}

	return removed, nil
}

func (that *dbQueue) PopPair(ctx context.Context, class string, newSession NewSessionFunc) (*entity.Session, error) {
	for range maxTxRetries {
		session, dropped, err := that.popPair(ctx, class, newSession)
		if err != nil {
			return nil, fmt.Errorf("failed to pop queue pair: %w", err)
		}

		if !dropped {
			return session, nil
		}
	}

	return nil, nil //nolint:nilnil // only stale entries seen, the next match retries
}

// popPair reports dropped when it removed stale heads instead of matching.
// An entry is stale when its record is gone or its player is already in a
// game.
func (that *dbQueue) popPair(ctx context.Context, class string, newSession NewSessionFunc) (*entity.Session, bool, error) {
	key := queueKey(class)

	var (
		session *entity.Session
		dropped bool
	)

	err := watchRetry(ctx, that.client, func(tx *redis.Tx) error {
		session, dropped = nil, false

		players, err := tx.ZRange(ctx, key, 0, 1).Result()
		if err != nil {
			return fmt.Errorf("failed to read queue: %w", err)
		}

		if len(players) < 2 {
			return nil
		}

		if err = tx.Watch(ctx, idleKeys(players...)...).Err(); err != nil {
			return fmt.Errorf("failed to watch queue entries: %w", err)
		}

		entries := make([]*entity.QueueEntry, len(players))
		var stale []string

		for i, player := range players {
			if entries[i], err = loadEntry(ctx, tx, player); err != nil {
				return err
			}

			var playing string
			if playing, err = playingSession(ctx, tx, player); err != nil {
				return err
			}

			if entries[i] == nil || playing != "" {
				stale = append(stale, player)
			}
		}

		if len(stale) > 0 {
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, player := range stale {
					pipe.ZRem(ctx, key, player)
					pipe.Del(ctx, queueEntryKey(player))
				}
				return nil
			})
			dropped = err == nil
			return err
		}

		a, b := entries[0], entries[1]
		candidate := newSession(*a, *b)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, key, a.PlayerID, b.PlayerID)
			pipe.Del(ctx, queueEntryKey(a.PlayerID), queueEntryKey(b.PlayerID))
			pipe.Set(ctx, queueMatchKey(a.PlayerID), candidate.ID, matchedTTL)
			pipe.Set(ctx, queueMatchKey(b.PlayerID), candidate.ID, matchedTTL)
			return writeNewSession(ctx, pipe, candidate)
		})
		if err != nil {
			return err
		}

		session = candidate
		return nil
	}, key)
	if err != nil {
		return nil, false, err
	}

	return session, dropped, nil
}

func (that *dbQueue) Status(ctx context.Context, playerID string) (entity.QueueStatus, error) {
	entry, err := loadEntry(ctx, that.client, playerID)
	if err != nil {
		return entity.QueueStatus{}, err
	}

	if entry != nil {
		rank, err := that.client.ZRank(ctx, queueKey(entry.Preferences.Class()), playerID).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return entity.QueueStatus{}, fmt.Errorf("failed to get queue position: %w", err)
		}

		if err == nil {
			return entity.QueueStatus{State: entity.QueueWaiting, Position: int(rank) + 1}, nil
		}
	}

	sessionID, err := that.client.Get(ctx, queueMatchKey(playerID)).Result()
	if errors.Is(err, redis.Nil) {
		return entity.QueueStatus{State: entity.QueueIdle}, nil
	}

	if err != nil {
		return entity.QueueStatus{}, fmt.Errorf("failed to get match: %w", err)
	}

	return entity.QueueStatus{State: entity.QueueMatched, SessionID: sessionID}, nil
}

// loadEntry returns nil when the player is not waiting.
func loadEntry(ctx context.Context, client redis.Cmdable, playerID string) (*entity.QueueEntry, error) {
	response, err := client.Get(ctx, queueEntryKey(playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // absence is not an error here
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}

	var entry entity.QueueEntry
	if err = json.Unmarshal(response, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue entry: %w", err)
	}

	return &entry, nil
}
