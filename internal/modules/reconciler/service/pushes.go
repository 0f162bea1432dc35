package service

import (
	"context"

	"go.uber.org/zap"

	"trade_terminal/internal/bus"
	"trade_terminal/internal/models"
	prefsvc "trade_terminal/internal/modules/prefs/service"
)

// OnAccountsPush заменяет список счетов и выбирает активный по сохранённой настройке.
// Настройки нет или счёт исчез: просим пользователя выбрать, команду не шлём.
func (s *Store) OnAccountsPush(ctx context.Context, accounts []models.Account) {
	s.mu.Lock()
	s.accounts = append([]models.Account(nil), accounts...)
	s.mu.Unlock()
	s.publish(bus.EventAccounts, s.Accounts())

	id, ok := s.persistedAccountID(ctx)
	if ok {
		if _, known := findAccount(accounts, id); !known {
			s.log.Info("persisted account is gone", zap.String("account_id", id))
			ok = false
		}
	}
	if !ok {
		s.mu.Lock()
		s.pendingAccountID = ""
		s.confirmedAccountID = ""
		s.needsAccountSelection = true
		s.mu.Unlock()
		s.publish(bus.EventActiveAccount, nil)
		return
	}

	s.mu.Lock()
	s.pendingAccountID = id
	s.needsAccountSelection = false
	s.mu.Unlock()
	s.publishActive()

	if err := s.session.Send(ctx, models.TopicSetActiveAccount, models.SetActiveAccountCommand{AccountID: id}); err != nil {
		s.log.Warn("set-active-account not sent", zap.String("account_id", id), zap.Error(err))
	}
}

// persistedAccountID: сначала серверная настройка, при ошибке локальная.
func (s *Store) persistedAccountID(ctx context.Context) (string, bool) {
	lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	id, ok, err := s.api.GetKeyValue(lctx, prefsvc.KeyActiveAccountID)
	if err == nil {
		return id, ok
	}
	s.log.Warn("key-value lookup failed, using local pref", zap.Error(err))

	id, ok, err = s.prefs.Get(lctx, prefsvc.KeyActiveAccountID)
	if err != nil {
		s.log.Warn("local pref lookup failed", zap.Error(err))
		return "", false
	}
	return id, ok
}

// OnAccountUpdatePush заменяет один известный счёт, неизвестный id игнорируется.
// Активный счёт читается по id, поэтому обновляется вместе со списком.
func (s *Store) OnAccountUpdatePush(env models.Envelope[models.Account]) {
	upd := env.Data
	if upd.ID == "" {
		return
	}

	s.mu.Lock()
	replaced := false
	for i := range s.accounts {
		if s.accounts[i].ID == upd.ID {
			s.accounts[i] = upd
			replaced = true
			break
		}
	}
	isActive := upd.ID == s.effectiveAccountID()
	s.mu.Unlock()

	if !replaced {
		// список счетов приходит только пушем accounts, отсюда не добавляем
		s.log.Warn("update for unknown account ignored", zap.String("account_id", upd.ID))
		return
	}
	s.confirm(upd.ID)

	s.publish(bus.EventAccounts, s.Accounts())
	if isActive {
		s.publishActive()
	}
}

// OnInstrumentsPush: инструменты только для активного счёта. Встроенные bid/ask
// сразу кладём в котировки.
func (s *Store) OnInstrumentsPush(env models.Envelope[[]models.Instrument]) {
	if !s.acceptScoped("instruments", env.AccountID) {
		return
	}

	dt := s.now().UnixMilli()
	for _, it := range env.Data {
		if it.Bid == nil || it.Ask == nil {
			continue
		}
		s.quotes.SetQuote(models.Quote{
			ID:  it.ID,
			Bid: models.Candle{C: *it.Bid},
			Ask: models.Candle{C: *it.Ask},
			Dir: models.SideBuy,
			Dt:  dt,
		})
	}
	s.instruments.SetInstruments(env.Data)
}

// OnQuotesPush: котировки без привязки к счёту. Неизвестный инструмент не ошибка.
func (s *Store) OnQuotesPush(env models.Envelope[[]models.Quote]) {
	for _, q := range env.Data {
		s.quotes.SetQuote(q)
	}
}

// OnPositionsPush: полный список позиций активного счёта.
func (s *Store) OnPositionsPush(env models.Envelope[[]models.PositionWS]) {
	if !s.acceptScoped("positions", env.AccountID) {
		return
	}
	list := make([]models.Position, 0, len(env.Data))
	for _, p := range env.Data {
		list = append(list, p.ToModel())
	}

	s.mu.Lock()
	s.positions = list
	s.mu.Unlock()
	s.publish(bus.EventPositions, s.Positions())
}

// OnPendingOrdersPush: полный список отложенных ордеров активного счёта.
// Сработавший ордер просто исчезает отсюда и появляется в позициях.
func (s *Store) OnPendingOrdersPush(env models.Envelope[[]models.PendingOrderWS]) {
	if !s.acceptScoped("pending-orders", env.AccountID) {
		return
	}
	list := make([]models.PendingOrder, 0, len(env.Data))
	for _, o := range env.Data {
		list = append(list, o.ToModel())
	}

	s.mu.Lock()
	s.pendingOrders = list
	s.mu.Unlock()
	s.publish(bus.EventPendingOrders, s.PendingOrders())
}

// acceptScoped подтверждает pending-счёт и проверяет, что пуш про активный счёт.
func (s *Store) acceptScoped(topic, accountID string) bool {
	s.confirm(accountID)

	s.mu.RLock()
	active := s.effectiveAccountID()
	s.mu.RUnlock()
	if accountID == "" || accountID != active {
		s.log.Debug("ignore push for inactive account",
			zap.String("topic", topic),
			zap.String("account_id", accountID),
			zap.String("active", active),
		)
		return false
	}
	return true
}

// confirm: данные по pending-счёту пришли, значит сервер его принял.
func (s *Store) confirm(accountID string) {
	s.mu.Lock()
	if accountID == "" || accountID != s.pendingAccountID {
		s.mu.Unlock()
		return
	}
	s.confirmedAccountID = accountID
	s.pendingAccountID = ""
	s.mu.Unlock()
	s.log.Info("active account confirmed", zap.String("account_id", accountID))
	s.publishActive()
}

func (s *Store) publishActive() {
	if a, ok := s.ActiveAccount(); ok {
		s.publish(bus.EventActiveAccount, a)
	}
}
