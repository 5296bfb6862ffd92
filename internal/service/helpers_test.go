package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu     sync.Mutex
	events []entity.Event
}

func (that *recorder) Publish(_ context.Context, topic string, eventType entity.EventType, payload any) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events = append(that.events, entity.Event{Type: eventType, Topic: topic, Payload: payload})
	return nil
}

func (that *recorder) on(topic string) []entity.Event {
	that.mu.Lock()
	defer that.mu.Unlock()

	var out []entity.Event
	for _, event := range that.events {
		if event.Topic == topic {
			out = append(out, event)
		}
	}
	return out
}

func (that *recorder) types(topic string) []entity.EventType {
	var out []entity.EventType
	for _, event := range that.on(topic) {
		out = append(out, event.Type)
	}
	return out
}

// fakeClock advances only when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (that *fakeClock) Now() time.Time {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.now
}

func (that *fakeClock) Advance(d time.Duration) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.now = that.now.Add(d)
}
