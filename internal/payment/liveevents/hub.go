package liveevents

import (
	"errors"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/lgndcraft2/giving-tree/internal/payment/domain"
)

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16

	// StreamAll carries every donation.
	StreamAll = "all"
)

var (
	ErrHubUnavailable = errors.New("hub_unavailable")
	ErrInvalidStream  = errors.New("invalid_stream")
)

// Hub fans donation events out to live subscribers. Each stream keeps a
// short backlog so a new subscriber sees recent activity. Slow subscribers
// drop events rather than block publishers.
type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	bufferSize       int
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	buffer []paymentdomain.DonationEvent
	subs   map[uint64]chan paymentdomain.DonationEvent
	nextID uint64
}

type Subscription struct {
	hub    *Hub
	stream string
	id     uint64
	ch     chan paymentdomain.DonationEvent
	once   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[string]*stream),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// WishStream names the stream of a single wish.
func WishStream(wishID snowflake.ID) string {
	return "wish:" + wishID.String()
}

// Publish delivers the event to the global stream and the wish's stream.
func (h *Hub) Publish(event paymentdomain.DonationEvent) {
	if h == nil {
		return
	}
	h.publish(StreamAll, event)
	if event.WishID != 0 {
		h.publish(WishStream(event.WishID), event)
	}
}

func (h *Hub) publish(name string, event paymentdomain.DonationEvent) {
	h.mu.RLock()
	current := h.streams[name]
	h.mu.RUnlock()
	if current == nil {
		return
	}

	current.mu.Lock()
	current.buffer = append(current.buffer, event)
	if len(current.buffer) > h.bufferSize {
		current.buffer = current.buffer[len(current.buffer)-h.bufferSize:]
	}
	subs := make([]chan paymentdomain.DonationEvent, 0, len(current.subs))
	for _, ch := range current.subs {
		subs = append(subs, ch)
	}
	current.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe returns the subscription and a copy of the stream backlog.
func (h *Hub) Subscribe(name string) (*Subscription, []paymentdomain.DonationEvent, error) {
	if h == nil {
		return nil, nil, ErrHubUnavailable
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, ErrInvalidStream
	}

	current := h.ensureStream(name)
	current.mu.Lock()
	id := current.nextID
	current.nextID++
	ch := make(chan paymentdomain.DonationEvent, h.subscriberBuffer)
	current.subs[id] = ch
	backlog := append([]paymentdomain.DonationEvent(nil), current.buffer...)
	current.mu.Unlock()

	return &Subscription{
		hub:    h,
		stream: name,
		id:     id,
		ch:     ch,
	}, backlog, nil
}

func (h *Hub) ensureStream(name string) *stream {
	h.mu.RLock()
	current := h.streams[name]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.streams[name]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan paymentdomain.DonationEvent)}
		h.streams[name] = current
	}
	return current
}

// Wish streams are dropped with their last subscriber. The global stream
// keeps its backlog.
func (h *Hub) unsubscribe(name string, id uint64) {
	h.mu.RLock()
	current := h.streams[name]
	h.mu.RUnlock()
	if current == nil {
		return
	}

	current.mu.Lock()
	delete(current.subs, id)
	remaining := len(current.subs)
	current.mu.Unlock()
	if remaining != 0 || name == StreamAll {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams[name] != current {
		return
	}
	current.mu.Lock()
	empty := len(current.subs) == 0
	current.mu.Unlock()
	if empty {
		delete(h.streams, name)
	}
}

func (s *Subscription) Events() <-chan paymentdomain.DonationEvent {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.stream, s.id)
	})
}
