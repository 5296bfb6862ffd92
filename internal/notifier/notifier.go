// Package notifier fans events out to topic subscribers. Delivery is
// at-most-once and in order per topic; a slow subscriber only loses its own
// events.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

const dispatcherIdle = time.Minute

type Options struct {
	// TopicBuffer bounds the events waiting for one topic's dispatcher.
	TopicBuffer    int
	PublishTimeout time.Duration
}

type Notifier struct {
	logger   *slog.Logger
	registry *Registry
	broker   Broker
	options  Options

	mu          sync.Mutex
	dispatchers map[string]chan entity.Event
	wg          sync.WaitGroup
}

func New(logger *slog.Logger, registry *Registry, broker Broker, options Options) *Notifier {
	if options.TopicBuffer <= 0 {
		options.TopicBuffer = 64
	}

	if options.PublishTimeout <= 0 {
		options.PublishTimeout = time.Second
	}

	return &Notifier{
		logger:      logger.With("component", "notifier"),
		registry:    registry,
		broker:      broker,
		options:     options,
		dispatchers: make(map[string]chan entity.Event),
	}
}

func (that *Notifier) Registry() *Registry {
	return that.registry
}

// Publish hands the event to the broker, waiting at most PublishTimeout.
func (that *Notifier) Publish(ctx context.Context, topic string, eventType entity.EventType, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, that.options.PublishTimeout)
	defer cancel()

	event := entity.Event{Type: eventType, Topic: topic, Payload: payload}
	if err := that.broker.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	return nil
}

// Run dispatches broker events until ctx is done.
func (that *Notifier) Run(ctx context.Context) error {
	that.logger.Info("notifier started")

	err := that.broker.Run(ctx, func(event entity.Event) {
		that.dispatch(ctx, event)
	})

	that.wg.Wait()
	that.logger.Info("notifier stopped")

	if err != nil {
		return fmt.Errorf("broker stopped: %w", err)
	}

	return nil
}

// dispatch queues event on its topic without blocking the broker loop.
func (that *Notifier) dispatch(ctx context.Context, event entity.Event) {
	that.mu.Lock()
	defer that.mu.Unlock()

	queue, ok := that.dispatchers[event.Topic]
	if !ok {
		queue = make(chan entity.Event, that.options.TopicBuffer)
		that.dispatchers[event.Topic] = queue

		that.wg.Add(1)
		go that.runDispatcher(ctx, event.Topic, queue)
	}

	select {
	case queue <- event:
	default:
		that.logger.Warn("topic queue full, event dropped", "topic", event.Topic, "type", event.Type)
	}
}

// runDispatcher delivers one topic's events in order and exits after staying
// idle for dispatcherIdle.
func (that *Notifier) runDispatcher(ctx context.Context, topic string, queue chan entity.Event) {
	defer that.wg.Done()

	idle := time.NewTimer(dispatcherIdle)
	defer idle.Stop()

	for {
		select {
		case event := <-queue:
			that.deliver(event)
			idle.Reset(dispatcherIdle)
		case <-idle.C:
			that.mu.Lock()
			if len(queue) == 0 {
				delete(that.dispatchers, topic)
				that.mu.Unlock()
				return
			}
			that.mu.Unlock()
			idle.Reset(dispatcherIdle)
		case <-ctx.Done():
			return
		}
	}
}

func (that *Notifier) deliver(event entity.Event) {
	for _, sub := range that.registry.Subscribers(event.Topic) {
		if !sub.Deliver(event) {
			that.logger.Warn("subscriber outbox full, event dropped",
				"subscriber", sub.ID(), "topic", event.Topic, "type", event.Type)
		}
	}
}
