package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// Broker carries published events to every running Notifier. Events of one
// topic must come out in the order they went in.
type Broker interface {
	Publish(ctx context.Context, event entity.Event) error
	// Run hands every event to handle until ctx is done.
	Run(ctx context.Context, handle func(entity.Event)) error
}

// LocalBroker keeps events inside the process.
type LocalBroker struct {
	events chan entity.Event
}

func NewLocalBroker(buffer int) *LocalBroker {
	return &LocalBroker{
		events: make(chan entity.Event, buffer),
	}
}

func (that *LocalBroker) Publish(ctx context.Context, event entity.Event) error {
	select {
	case that.events <- event:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to publish %s: %w", event.Type, ctx.Err())
	}
}

func (that *LocalBroker) Run(ctx context.Context, handle func(entity.Event)) error {
	for {
		select {
		case event := <-that.events:
			handle(event)
		case <-ctx.Done():
			return nil
		}
	}
}

const redisChannelPrefix = "gomoku:topic:"

type wireEvent struct {
	Type    entity.EventType `json:"type"`
	Topic   string           `json:"topic"`
	Payload json.RawMessage  `json:"payload"`
}

// RedisBroker shares topics between instances over redis pub/sub. Redis keeps
// the order of messages published on one channel.
type RedisBroker struct {
	logger *slog.Logger
	client *redis.Client
}

func NewRedisBroker(logger *slog.Logger, client *redis.Client) *RedisBroker {
	return &RedisBroker{
		logger: logger.With("component", "redis-broker"),
		client: client,
	}
}

func (that *RedisBroker) Publish(ctx context.Context, event entity.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err = that.client.Publish(ctx, redisChannelPrefix+event.Topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	return nil
}

func (that *RedisBroker) Run(ctx context.Context, handle func(entity.Event)) error {
	log := that.logger.With("method", "Run")

	pubsub := that.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer func() {
		if err := pubsub.Close(); err != nil {
			log.Error("failed to close subscription", "error", err)
		}
	}()

	// wait for the subscription to be confirmed so no early publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			var wire wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
				log.Warn("dropping malformed event", "channel", msg.Channel, "error", err)
				continue
			}

			if wire.Topic == "" {
				wire.Topic = strings.TrimPrefix(msg.Channel, redisChannelPrefix)
			}

			handle(entity.Event{Type: wire.Type, Topic: wire.Topic, Payload: wire.Payload})
		case <-ctx.Done():
			return nil
		}
	}
}
