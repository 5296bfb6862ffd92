// Package transporttest wires the engine for transport tests.
package transporttest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/notifier"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository/memory"
	"github.com/rocketscienceinc/gomoku-backend/internal/service"
	"github.com/rocketscienceinc/gomoku-backend/internal/usecase"
)

// Game is the whole engine wired on the in-memory store and a running
// local notifier, as transports see it.
type Game struct {
	Store    *memory.Store
	Notifier *notifier.Notifier
	UseCase  usecase.GameUseCase
}

func NewGame(t *testing.T, rules service.Rules, observers ...string) *Game {
	t.Helper()

	logger := discardLogger()
	store := memory.NewStore()

	events := notifier.New(logger, notifier.NewRegistry(), notifier.NewLocalBroker(256), notifier.Options{
		TopicBuffer:    256,
		PublishTimeout: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = events.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	matchmaker := service.NewMatchmakerService(logger, store.Queue(), store.Invites(), store.Sessions(), events, rules, nil)
	coordinator := service.NewCoordinatorService(logger, store.Sessions(), nil, events, observers, nil)
	rematch := service.NewRematchService(logger, coordinator, store.Sessions(), store.Rematches(), events, nil)

	return &Game{
		Store:    store,
		Notifier: events,
		UseCase:  usecase.NewGameUseCase(logger, matchmaker, coordinator, rematch),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
