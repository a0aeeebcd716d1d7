package broadcast

import (
	"sync"

	model "auction-house/internal/models"
)

// Event types delivered to observers.
const (
	EventAuctionUpdated = "auction_updated"
	EventAuctionEnded   = "auction_ended"
)

// Event carries the full auction state after an accepted bid or a close.
type Event struct {
	Type    string        `json:"type"`
	Auction model.Auction `json:"auction"`
}

// Publisher delivers auction state changes to all observers. Delivery is
// best-effort at-most-once; Publish must never block the caller.
type Publisher interface {
	Publish(event Event)
}

// subscriber channel buffer; events beyond it are dropped for that observer
const subscriberBuffer = 16

// Hub is an in-process Publisher fanning events out to subscribed channels.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers an observer and returns its event channel together
// with a cancel function that must be called when the observer detaches.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish sends the event to every subscriber without blocking. A
// subscriber whose buffer is full misses the event.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of attached observers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Multi fans a published event out to several publishers
type Multi []Publisher

// Publish forwards the event to every wrapped publisher
func (m Multi) Publish(event Event) {
	for _, p := range m {
		p.Publish(event)
	}
}
