package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
)

type abandoner interface {
	AbandonIfIdle(ctx context.Context, sessionID string, timeout time.Duration) (bool, error)
}

type activeLister interface {
	ActiveIDs(ctx context.Context) ([]string, error)
}

// Sweeper abandons sessions whose player to move stopped playing.
type Sweeper struct {
	logger      *slog.Logger
	sessions    activeLister
	coordinator abandoner
	interval    time.Duration
	timeout     time.Duration
}

func NewSweeper(logger *slog.Logger, sessions activeLister, coordinator abandoner, interval, timeout time.Duration) *Sweeper {
	return &Sweeper{
		logger:      logger.With("component", "sweeper"),
		sessions:    sessions,
		coordinator: coordinator,
		interval:    interval,
		timeout:     timeout,
	}
}

func (that *Sweeper) Run(ctx context.Context) error {
	if that.interval <= 0 || that.timeout <= 0 {
		that.logger.Info("sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(that.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			that.Sweep(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// Sweep runs one pass and returns the number of abandoned sessions.
func (that *Sweeper) Sweep(ctx context.Context) int {
	log := that.logger.With("method", "Sweep")

	ids, err := that.sessions.ActiveIDs(ctx)
	if err != nil {
		log.Error("failed to list active sessions", "error", err)
		return 0
	}

	abandoned := 0
	for _, id := range ids {
		ok, err := that.coordinator.AbandonIfIdle(ctx, id, that.timeout)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			log.Error("failed to abandon session", "session", id, "error", err)
			continue
		}

		if ok {
			abandoned++
		}
	}

	return abandoned
}
