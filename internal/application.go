package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/gomoku-backend/internal/config"
	"github.com/rocketscienceinc/gomoku-backend/internal/notifier"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository/memory"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository/storage"
	"github.com/rocketscienceinc/gomoku-backend/internal/service"
	"github.com/rocketscienceinc/gomoku-backend/internal/transport/rest"
	"github.com/rocketscienceinc/gomoku-backend/internal/transport/websocket"
	"github.com/rocketscienceinc/gomoku-backend/internal/usecase"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

type repositories struct {
	sessions  repository.SessionRepository
	queue     repository.QueueRepository
	rematches repository.RematchRepository
	invites   repository.InviteRepository
	archive   repository.ArchiveRepository
}

// RunApp - runs the application until SIGINT or SIGTERM.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var redisClient *redis.Client
	if conf.NeedsRedis() {
		addr := conf.Redis.GetRedisAddr()
		if addr == "" {
			return ErrAddrNotFound
		}

		client, err := storage.NewRedis(ctx, addr, conf.Redis.Password, conf.Redis.DB)
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err := client.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		redisClient = client
	}

	repos := newRepositories(conf, redisClient)

	if conf.Storage.SQLitePath != "" {
		archive, err := storage.NewSQLite(conf.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("could not open archive: %w", err)
		}

		defer func() {
			if err := archive.Close(); err != nil {
				log.Error("could not close archive", "error", err)
			}
		}()

		if err = archive.Init(ctx); err != nil {
			return fmt.Errorf("could not init archive: %w", err)
		}

		repos.archive = repository.NewArchiveRepository(archive.Connection)
	}

	events := notifier.New(logger, notifier.NewRegistry(), newBroker(logger, conf, redisClient), notifier.Options{
		TopicBuffer:    conf.Notifier.TopicBuffer,
		PublishTimeout: conf.Notifier.PublishTimeout,
	})

	rules := service.Rules{
		BoardSize: conf.Game.BoardSize,
		WinLength: conf.Game.WinLength,
		InviteTTL: conf.Game.InviteTTL,
	}

	matchmaker := service.NewMatchmakerService(logger, repos.queue, repos.invites, repos.sessions, events, rules, nil)
	coordinator := service.NewCoordinatorService(logger, repos.sessions, repos.archive, events, conf.Game.Observers, nil)
	rematch := service.NewRematchService(logger, coordinator, repos.sessions, repos.rematches, events, nil)
	sweeper := service.NewSweeper(logger, repos.sessions, coordinator, conf.Game.SweepInterval, conf.Game.TurnTimeout)

	gameUseCase := usecase.NewGameUseCase(logger, matchmaker, coordinator, rematch)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return events.Run(groupCtx)
	})

	group.Go(func() error {
		return sweeper.Run(groupCtx)
	})

	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if err := rest.New(logger, gameUseCase).Start(groupCtx, conf.HTTPPort); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, gameUseCase, events.Registry(), conf.Notifier.SubscriberBuffer)
		if err := wsServer.Start(groupCtx, conf.SocketPort); err != nil {
			return fmt.Errorf("WebSocket server error: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	log.Info("Application context canceled, shutting down")
	return nil
}

func newRepositories(conf *config.Config, client *redis.Client) repositories {
	if conf.Storage.Driver == config.DriverMemory {
		store := memory.NewStore()
		return repositories{
			sessions:  store.Sessions(),
			queue:     store.Queue(),
			rematches: store.Rematches(),
			invites:   store.Invites(),
		}
	}

	return repositories{
		sessions:  repository.NewSessionRepository(client, conf.Storage.FinishedTTL),
		queue:     repository.NewQueueRepository(client),
		rematches: repository.NewRematchRepository(client, conf.Storage.RematchTTL),
		invites:   repository.NewInviteRepository(client),
	}
}

func newBroker(logger *slog.Logger, conf *config.Config, client *redis.Client) notifier.Broker {
	if conf.Notifier.Broker == config.BrokerRedis {
		return notifier.NewRedisBroker(logger, client)
	}

	return notifier.NewLocalBroker(conf.Notifier.TopicBuffer)
}
