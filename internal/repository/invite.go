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

type dbInvite struct {
	client *redis.Client
}

// NewInviteRepository keeps each invite under its code until it expires;
// joining does not extend that.
func NewInviteRepository(client *redis.Client) InviteRepository {
	return &dbInvite{
		client: client,
	}
}

func (that *dbInvite) Create(ctx context.Context, invite *entity.Invite) error {
	inviteJSON, err := json.Marshal(invite)
	if err != nil {
		return fmt.Errorf("failed to marshal invite: %w", err)
	}

	ttl := invite.ExpiresAt.Sub(invite.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("%w: code %s", apperror.ErrInviteExpired, invite.Code)
	}

	created, err := that.client.SetNX(ctx, inviteKey(invite.Code), inviteJSON, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}

	if !created {
		return fmt.Errorf("failed to create invite: %w: code %s is taken", apperror.ErrConcurrentWrite, invite.Code)
	}

	return nil
}

func (that *dbInvite) GetByCode(ctx context.Context, code string) (*entity.Invite, error) {
	invite, err := loadInvite(ctx, that.client, code)
	if err != nil {
		return nil, err
	}

	if invite == nil {
		return nil, fmt.Errorf("invite %s: %w", code, apperror.ErrNotFound)
	}

	return invite, nil
}

func (that *dbInvite) Join(
	ctx context.Context,
	code, guestID string,
	now time.Time,
	newSession NewInviteSessionFunc,
) (*entity.Invite, *entity.Session, error) {
	var (
		result  *entity.Invite
		session *entity.Session
	)

	err := watchRetry(ctx, that.client, func(tx *redis.Tx) error {
		result, session = nil, nil

		invite, err := loadInvite(ctx, tx, code)
		if err != nil {
			return err
		}

		bind, err := ConfirmJoinable(invite, guestID, now)
		if err != nil {
			return err
		}

		if !bind {
			result = invite
			return nil
		}

		if err = tx.Watch(ctx, idleKeys(invite.HostID, guestID)...).Err(); err != nil {
			return fmt.Errorf("failed to watch players: %w", err)
		}

		if err = confirmIdle(ctx, tx, invite.HostID, guestID); err != nil {
			return err
		}

		candidate := newSession(invite, guestID)
		invite.Use(guestID, candidate.ID, now)

		inviteJSON, err := json.Marshal(invite)
		if err != nil {
			return fmt.Errorf("failed to marshal invite: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, inviteKey(code), inviteJSON, redis.KeepTTL)
			return writeNewSession(ctx, pipe, candidate)
		})
		if err != nil {
			return err
		}

		result, session = invite, candidate
		return nil
	}, inviteKey(code))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to join invite: %w", err)
	}

	return result, session, nil
}

// loadInvite returns nil when the code is unknown or expired.
func loadInvite(ctx context.Context, client redis.Cmdable, code string) (*entity.Invite, error) {
	response, err := client.Get(ctx, inviteKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // absence is not an error here
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}

	var invite entity.Invite
	if err = json.Unmarshal(response, &invite); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invite: %w", err)
	}

	return &invite, nil
}
