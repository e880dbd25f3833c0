// Package feed fans newly persisted records out to live subscribers.
package feed

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/domain"
	"github.com/hamed0406/securemon/internal/repo"
)

const (
	KindPing           = "ping"
	KindHSTS           = "hsts"
	KindForwardSecrecy = "forward_secrecy"
	KindMTBF           = "mtbf"
)

// Event is one appended record. Record is the domain record as stored,
// including its id and timestamp.
type Event struct {
	Kind   string `json:"kind"`
	Record any    `json:"record"`
}

// Hub is a best-effort broadcaster. A subscriber that falls behind by more
// than its buffer misses events; publishers never block.
type Hub struct {
	log *zap.Logger

	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{log: log, subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Debug("feed_event_dropped", zap.String("kind", ev.Kind))
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later Subscribe calls get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// Store wraps a repo.Store and publishes every successful append.
type Store struct {
	repo.Store
	hub *Hub
}

var _ repo.Store = (*Store)(nil)

func NewStore(inner repo.Store, hub *Hub) *Store {
	return &Store{Store: inner, hub: hub}
}

func (s *Store) AppendPing(ctx context.Context, r *domain.PingRecord) error {
	if err := s.Store.AppendPing(ctx, r); err != nil {
		return err
	}
	s.hub.Publish(Event{Kind: KindPing, Record: *r})
	return nil
}

func (s *Store) AppendHSTS(ctx context.Context, r *domain.HSTSRecord) error {
	if err := s.Store.AppendHSTS(ctx, r); err != nil {
		return err
	}
	s.hub.Publish(Event{Kind: KindHSTS, Record: *r})
	return nil
}

func (s *Store) AppendForwardSecrecy(ctx context.Context, r *domain.ForwardSecrecyRecord) error {
	if err := s.Store.AppendForwardSecrecy(ctx, r); err != nil {
		return err
	}
	s.hub.Publish(Event{Kind: KindForwardSecrecy, Record: *r})
	return nil
}

func (s *Store) AppendMTBF(ctx context.Context, r *domain.MTBFRecord) error {
	if err := s.Store.AppendMTBF(ctx, r); err != nil {
		return err
	}
	s.hub.Publish(Event{Kind: KindMTBF, Record: *r})
	return nil
}
