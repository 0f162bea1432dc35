package service

import (
	"sync"

	"trade_terminal/internal/bus"
	"trade_terminal/internal/models"
)

// Store: последние bid/ask по инструментам. Только кеш, сети тут нет.
type Store struct {
	mu     sync.RWMutex
	quotes map[string]models.Quote
	bus    *bus.Bus
}

func NewStore(b *bus.Bus) *Store {
	return &Store{
		quotes: make(map[string]models.Quote),
		bus:    b,
	}
}

// SetQuote целиком заменяет запись по quote.ID. Порядок не проверяем: последний пуш выигрывает.
func (s *Store) SetQuote(q models.Quote) {
	if q.ID == "" {
		return
	}
	s.mu.Lock()
	s.quotes[q.ID] = q
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(bus.Event{Type: bus.EventQuote, Data: q})
	}
}

func (s *Store) Quote(id string) (models.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[id]
	return q, ok
}

// Bid: 0, если котировки ещё нет.
func (s *Store) Bid(id string) float64 {
	q, _ := s.Quote(id)
	return q.Bid.C
}

// Ask: 0, если котировки ещё нет.
func (s *Store) Ask(id string) float64 {
	q, _ := s.Quote(id)
	return q.Ask.C
}

func (s *Store) Snapshot() map[string]models.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Quote, len(s.quotes))
	for k, v := range s.quotes {
		out[k] = v
	}
	return out
}

func (s *Store) Reset() {
	s.mu.Lock()
	s.quotes = make(map[string]models.Quote)
	s.mu.Unlock()
}
