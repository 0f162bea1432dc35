package service

import (
	"trade_terminal/internal/models"
	"trade_terminal/internal/risk"
)

func (s *Store) Accounts() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Account(nil), s.accounts...)
}

// SortedAccounts: активный счёт первым, остальные в порядке сервера.
func (s *Store) SortedAccounts() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := s.effectiveAccountID()
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.ID == active {
			out = append(out, a)
		}
	}
	for _, a := range s.accounts {
		if a.ID != active {
			out = append(out, a)
		}
	}
	return out
}

// ActiveAccount: текущий активный счёт (pending или подтверждённый).
func (s *Store) ActiveAccount() (models.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id := s.effectiveAccountID()
	if id == "" {
		return models.Account{}, false
	}
	return findAccount(s.accounts, id)
}

// ActiveAccountConfirmed: сервер уже прислал данные по выбранному счёту.
func (s *Store) ActiveAccountConfirmed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingAccountID == "" && s.confirmedAccountID != ""
}

func (s *Store) NeedsAccountSelection() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.needsAccountSelection
}

func (s *Store) Restarting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restarting
}

// Alert: последняя блокирующая ошибка. DismissAlert её снимает.
func (s *Store) Alert() (models.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.alert == nil {
		return models.Alert{}, false
	}
	return *s.alert, true
}

func (s *Store) DismissAlert() {
	s.mu.Lock()
	s.alert = nil
	s.mu.Unlock()
}

func (s *Store) Positions() []models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Position(nil), s.positions...)
}

func (s *Store) Position(id int64) (models.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.positions {
		if p.ID == id {
			return p, true
		}
	}
	return models.Position{}, false
}

func (s *Store) PendingOrders() []models.PendingOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PendingOrder(nil), s.pendingOrders...)
}

func (s *Store) History() models.HistoryPage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history
}

// PositionPnL: плавающий P&L позиции. OK=false, если котировки ещё нет.
type PositionPnL struct {
	PositionID int64
	PnL        float64
	OK         bool
	StopOut    float64
}

// PositionsPnL пересчитывает P&L по текущим котировкам, ничего не кешируя.
func (s *Store) PositionsPnL() []PositionPnL {
	positions := s.Positions()
	out := make([]PositionPnL, 0, len(positions))
	for _, p := range positions {
		pnl, ok := risk.PositionPnL(p, s.quotes)
		var inst *models.Instrument
		if it, found := s.instruments.Instrument(p.Instrument); found {
			inst = &it
		}
		out = append(out, PositionPnL{
			PositionID: p.ID,
			PnL:        pnl,
			OK:         ok,
			StopOut:    risk.StopOutLevel(p.InvestmentAmount, inst),
		})
	}
	return out
}

// Equity: баланс активного счёта плюс плавающий P&L по позициям с котировкой.
// complete=false, если хоть одна позиция без котировки.
func (s *Store) Equity() (equity float64, complete bool) {
	acc, ok := s.ActiveAccount()
	if !ok {
		return 0, false
	}
	equity, complete = acc.Balance, true
	for _, p := range s.PositionsPnL() {
		if !p.OK {
			complete = false
			continue
		}
		equity += p.PnL
	}
	return equity, complete
}

// TriggerPrices: цены срабатывания TP/SL позиции для показа, с шагом инструмента.
// 0: уровень не задан или его нельзя посчитать.
func (s *Store) TriggerPrices(positionID int64) (tpPrice, slPrice float64, ok bool) {
	p, found := s.Position(positionID)
	if !found {
		return 0, 0, false
	}
	digits := s.instruments.Digits(p.Instrument)
	params := risk.TargetParams{
		InvestmentAmount: p.InvestmentAmount,
		Multiplier:       p.Multiplier,
		Side:             p.Operation,
		InstrumentID:     p.Instrument,
		Commission:       p.Commission,
		OpenPrice:        p.OpenPrice,
	}
	if v, err := risk.TriggerPrice(p.TP, params); err == nil {
		tpPrice = risk.SnapTriggerPrice(v, digits, p.Operation, true)
	}
	if p.SL.IsSet() {
		sl := p.SL
		if sl.Kind() != models.TriggerPrice && sl.Value() > 0 {
			// величина убытка: в знаковую цель
			sl, _ = models.NewTrigger(sl.Kind(), -sl.Value())
		}
		if v, err := risk.TriggerPrice(sl, params); err == nil {
			slPrice = risk.SnapTriggerPrice(v, digits, p.Operation, false)
		}
	}
	return tpPrice, slPrice, true
}

// Snapshot: сводка для /state.
type Snapshot struct {
	ActiveAccountID       string `json:"activeAccountId"`
	Confirmed             bool   `json:"confirmed"`
	Accounts              int    `json:"accounts"`
	Positions             int    `json:"positions"`
	PendingOrders         int    `json:"pendingOrders"`
	Instruments           int    `json:"instruments"`
	NeedsAccountSelection bool   `json:"needsAccountSelection"`
	Restarting            bool   `json:"restarting"`
	Alert                 string `json:"alert,omitempty"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		ActiveAccountID:       s.effectiveAccountID(),
		Confirmed:             s.pendingAccountID == "" && s.confirmedAccountID != "",
		Accounts:              len(s.accounts),
		Positions:             len(s.positions),
		PendingOrders:         len(s.pendingOrders),
		NeedsAccountSelection: s.needsAccountSelection,
		Restarting:            s.restarting,
	}
	if s.alert != nil {
		snap.Alert = s.alert.Message
	}
	s.mu.RUnlock()
	snap.Instruments = s.instruments.Len()
	return snap
}
