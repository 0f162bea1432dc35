package service

import (
	"context"
	"sync/atomic"
	"time"

	"trade_terminal/internal/bus"
	sessionsvc "trade_terminal/internal/modules/session/service"
)

// State хранит состояние сессии и свежесть котировок для health-ручек.
type State struct {
	startedAt time.Time

	session       atomic.Int32
	lastQuoteUnix atomic.Int64 // unix seconds
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

// SetSession вешается на Manager.OnState.
func (s *State) SetSession(v sessionsvc.State) { s.session.Store(int32(v)) }
func (s *State) Session() sessionsvc.State     { return sessionsvc.State(s.session.Load()) }

// Ready: сессия активна и пуши идут.
func (s *State) Ready() bool { return s.Session() == sessionsvc.StateActive }

func (s *State) TouchQuote(t time.Time) { s.lastQuoteUnix.Store(t.Unix()) }
func (s *State) LastQuote() time.Time {
	u := s.lastQuoteUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

// Watch отмечает время каждой котировки из шины. Блокирует до отмены ctx.
func (s *State) Watch(ctx context.Context, b *bus.Bus) {
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if evt.Type == bus.EventQuote {
				s.TouchQuote(time.Now())
			}
		}
	}
}
