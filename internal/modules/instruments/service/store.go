package service

import (
	"sort"
	"strings"
	"sync"

	"trade_terminal/internal/bus"
	"trade_terminal/internal/models"
)

const defaultGroup = "other"

// Store: метаданные инструментов + выбранные пользователем.
type Store struct {
	mu sync.RWMutex

	byID   map[string]models.Instrument
	sorted []string            // id, по имени
	groups map[string][]string // group -> id, по имени

	active   []string // открытые вкладки инструментов
	selected string

	bus *bus.Bus
}

func NewStore(b *bus.Bus) *Store {
	return &Store{
		byID:   make(map[string]models.Instrument),
		groups: make(map[string][]string),
		bus:    b,
	}
}

// SetInstruments заменяет коллекцию целиком и пересчитывает группы и сортировку.
func (s *Store) SetInstruments(list []models.Instrument) {
	byID := make(map[string]models.Instrument, len(list))
	for _, it := range list {
		if it.ID == "" {
			continue
		}
		byID[it.ID] = it
	}

	sorted := make([]string, 0, len(byID))
	for id := range byID {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool {
		a, b := byID[sorted[i]], byID[sorted[j]]
		an, bn := strings.ToLower(displayName(a)), strings.ToLower(displayName(b))
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})

	groups := make(map[string][]string)
	for _, id := range sorted {
		g := byID[id].Group
		if g == "" {
			g = defaultGroup
		}
		groups[g] = append(groups[g], id)
	}

	s.mu.Lock()
	s.byID = byID
	s.sorted = sorted
	s.groups = groups
	if _, ok := byID[s.selected]; !ok {
		s.selected = ""
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(bus.Event{Type: bus.EventInstruments, Data: len(sorted)})
	}
}

func (s *Store) Instrument(id string) (models.Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.byID[id]
	return it, ok
}

// DisplayName: имя инструмента или сам id, если инструмент неизвестен.
func (s *Store) DisplayName(id string) string {
	it, ok := s.Instrument(id)
	if !ok {
		return id
	}
	return displayName(it)
}

// Digits: точность цены; -1 если инструмент неизвестен.
func (s *Store) Digits(id string) int {
	it, ok := s.Instrument(id)
	if !ok {
		return -1
	}
	return it.Digits
}

func (s *Store) Sorted() []models.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Instrument, 0, len(s.sorted))
	for _, id := range s.sorted {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *Store) Groups() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.groups))
	for g, ids := range s.groups {
		out[g] = append([]string(nil), ids...)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// SetActiveInstruments: набор открытых вкладок (например из избранного на сервере).
func (s *Store) SetActiveInstruments(ids []string) {
	s.mu.Lock()
	s.active = dedup(ids)
	s.mu.Unlock()
}

// ActiveInstruments отдаёт только известные инструменты из набора.
func (s *Store) ActiveInstruments() []models.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Instrument, 0, len(s.active))
	for _, id := range s.active {
		if it, ok := s.byID[id]; ok {
			out = append(out, it)
		}
	}
	return out
}

// SwitchInstrument делает инструмент выбранным и добавляет его во вкладки.
func (s *Store) SwitchInstrument(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	s.selected = id
	for _, a := range s.active {
		if a == id {
			return true
		}
	}
	s.active = append(s.active, id)
	return true
}

func (s *Store) Selected() (models.Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.byID[s.selected]
	return it, ok
}

func (s *Store) Reset() {
	s.mu.Lock()
	s.byID = make(map[string]models.Instrument)
	s.sorted = nil
	s.groups = make(map[string][]string)
	s.active = nil
	s.selected = ""
	s.mu.Unlock()
}

func displayName(it models.Instrument) string {
	if it.Name != "" {
		return it.Name
	}
	return it.ID
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
