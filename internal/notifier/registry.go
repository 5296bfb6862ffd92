package notifier

import (
	"slices"
	"sync"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// Subscriber receives the events of every topic it is attached to. Deliver
// must never block; it reports false when the event was dropped.
type Subscriber interface {
	ID() string
	Deliver(event entity.Event) bool
}

// Registry maps topics to the subscribers currently attached to them.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[string]Subscriber
	owners map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[string]map[string]Subscriber),
		owners: make(map[string]map[string]struct{}),
	}
}

func (that *Registry) Subscribe(topic string, sub Subscriber) {
	that.mu.Lock()
	defer that.mu.Unlock()

	subs, ok := that.topics[topic]
	if !ok {
		subs = make(map[string]Subscriber)
		that.topics[topic] = subs
	}
	subs[sub.ID()] = sub

	topics, ok := that.owners[sub.ID()]
	if !ok {
		topics = make(map[string]struct{})
		that.owners[sub.ID()] = topics
	}
	topics[topic] = struct{}{}
}

func (that *Registry) Unsubscribe(topic, subID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.detach(topic, subID)
}

// UnsubscribeAll detaches subID from every topic and returns those topics.
func (that *Registry) UnsubscribeAll(subID string) []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	topics := make([]string, 0, len(that.owners[subID]))
	for topic := range that.owners[subID] {
		topics = append(topics, topic)
	}

	for _, topic := range topics {
		that.detach(topic, subID)
	}
	slices.Sort(topics)

	return topics
}

// detach must be called with mu held. Empty topics are torn down.
func (that *Registry) detach(topic, subID string) {
	if subs, ok := that.topics[topic]; ok {
		delete(subs, subID)
		if len(subs) == 0 {
			delete(that.topics, topic)
		}
	}

	if topics, ok := that.owners[subID]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(that.owners, subID)
		}
	}
}

// Subscribers returns a snapshot, safe to range over without the lock.
func (that *Registry) Subscribers(topic string) []Subscriber {
	that.mu.RLock()
	defer that.mu.RUnlock()

	subs := make([]Subscriber, 0, len(that.topics[topic]))
	for _, sub := range that.topics[topic] {
		subs = append(subs, sub)
	}

	return subs
}

func (that *Registry) Topics(subID string) []string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	topics := make([]string, 0, len(that.owners[subID]))
	for topic := range that.owners[subID] {
		topics = append(topics, topic)
	}
	slices.Sort(topics)

	return topics
}

// Outbox is a Subscriber backed by a bounded channel. A full outbox drops.
type Outbox struct {
	id     string
	events chan entity.Event
}

func NewOutbox(id string, size int) *Outbox {
	return &Outbox{
		id:     id,
		events: make(chan entity.Event, size),
	}
}

func (that *Outbox) ID() string {
	return that.id
}

func (that *Outbox) Deliver(event entity.Event) bool {
	select {
	case that.events <- event:
		return true
	default:
		return false
	}
}

func (that *Outbox) Events() <-chan entity.Event {
	return that.events
}
