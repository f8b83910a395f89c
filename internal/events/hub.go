package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/terra-clan/maturity-engine/internal/models"
)

// Publisher delivers events to subscribers
type Publisher interface {
	Publish(ctx context.Context, evt models.Event) error
}

const subscriptionBuffer = 16

// Hub fans events out to in-process subscriptions
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// Subscription receives events on C until Close is called
type Subscription struct {
	C              chan models.Event
	organizationID string
	hub            *Hub
	once           sync.Once
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscription. An empty organizationID receives every event;
// otherwise only events of that organization are delivered.
func (h *Hub) Subscribe(organizationID string) *Subscription {
	sub := &Subscription{
		C:              make(chan models.Event, subscriptionBuffer),
		organizationID: organizationID,
		hub:            h,
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Close unregisters the subscription and closes its channel
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.C)
	})
}

// Publish delivers evt to every matching subscription without blocking.
// Slow subscribers miss events rather than stalling publishers.
func (h *Hub) Publish(_ context.Context, evt models.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.organizationID != "" && sub.organizationID != evt.OrganizationID {
			continue
		}
		select {
		case sub.C <- evt:
		default:
			slog.Warn("dropping event for slow subscriber", "type", evt.Type)
		}
	}
	return nil
}

// Close ends every open subscription. Websocket feeds reading from them disconnect.
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// Count returns the number of open subscriptions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
