package bus

import (
	"sync"
)

type EventType string

const (
	EventQuote         EventType = "quote"
	EventInstruments   EventType = "instruments"
	EventAccounts      EventType = "accounts"
	EventActiveAccount EventType = "active_account"
	EventPositions     EventType = "positions"
	EventPendingOrders EventType = "pending_orders"
	EventHistory       EventType = "history"
	EventAlert         EventType = "alert"
	EventSession       EventType = "session"
)

type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Bus рассылает события без блокировки, медленный подписчик теряет события, а не тормозит пуши.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	size int
}

func New() *Bus {
	return NewWithBuffer(100)
}

func NewWithBuffer(size int) *Bus {
	return &Bus{subs: make(map[chan Event]struct{}), size: size}
}

func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, b.size)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.RUnlock()
}
