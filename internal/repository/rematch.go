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

type dbRematch struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRematchRepository stores rematch requests next to the finished session;
// they expire together after ttl.
func NewRematchRepository(client *redis.Client, ttl time.Duration) RematchRepository {
	return &dbRematch{
		client: client,
		ttl:    ttl,
	}
}

func (that *dbRematch) GetBySession(ctx context.Context, sessionID string) (*entity.RematchRequest, error) {
	request, err := loadRematch(ctx, that.client, sessionID)
	if err != nil {
		return nil, err
	}

	if request == nil {
		return nil, fmt.Errorf("rematch for %s: %w", sessionID, apperror.ErrNotFound)
	}

	return request, nil
}

func (that *dbRematch) Request(ctx context.Context, sessionID, requesterID string) (*entity.RematchRequest, error) {
	key := rematchKey(sessionID)

	var result *entity.RematchRequest

	err := watchRetry(ctx, that.client, func(tx *redis.Tx) error {
		existing, err := loadRematch(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		if existing != nil && existing.Status == entity.RematchAccepted {
			result = existing
			return nil
		}

		request := &entity.RematchRequest{
			SessionID:   sessionID,
			RequesterID: requesterID,
			Status:      entity.RematchPending,
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return that.write(ctx, pipe, request)
		})
		if err != nil {
			return err
		}

		result = request
		return nil
	}, key)
	if err != nil {
		return nil, fmt.Errorf("failed to request rematch: %w", err)
	}

	return result, nil
}

func (that *dbRematch) Accept(ctx context.Context, sessionID, acceptorID string, newSession *entity.Session) (*entity.RematchRequest, error) {
	key := rematchKey(sessionID)

	var result *entity.RematchRequest

	err := watchRetry(ctx, that.client, func(tx *redis.Tx) error {
		request, err := loadRematch(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		if err = ConfirmAcceptable(request, acceptorID); err != nil {
			return err
		}

		if err = confirmIdle(ctx, tx, newSession.PlayerA, newSession.PlayerB); err != nil {
			return err
		}

		request.Status = entity.RematchAccepted
		request.NewSessionID = newSession.ID

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := that.write(ctx, pipe, request); err != nil {
				return err
			}
			return writeNewSession(ctx, pipe, newSession)
		})
		if err != nil {
			return err
		}

		result = request
		return nil
	}, append([]string{key}, idleKeys(newSession.PlayerA, newSession.PlayerB)...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to accept rematch: %w", err)
	}

	return result, nil
}

func (that *dbRematch) write(ctx context.Context, pipe redis.Pipeliner, request *entity.RematchRequest) error {
	requestJSON, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal rematch: %w", err)
	}

	pipe.Set(ctx, rematchKey(request.SessionID), requestJSON, that.ttl)
	return nil
}

// ConfirmAcceptable reports why acceptorID may not accept request. Every
// rematch store applies it inside its own atomic step.
func ConfirmAcceptable(request *entity.RematchRequest, acceptorID string) error {
	if request == nil || request.Status != entity.RematchPending {
		return apperror.ErrNoRematch
	}

	if request.RequesterID == acceptorID {
		return apperror.ErrOwnRematch
	}

	return nil
}

func loadRematch(ctx context.Context, client redis.Cmdable, sessionID string) (*entity.RematchRequest, error) {
	response, err := client.Get(ctx, rematchKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // no request yet
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get rematch: %w", err)
	}

	var request entity.RematchRequest
	if err = json.Unmarshal(response, &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rematch: %w", err)
	}

	return &request, nil
}
