package service

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"trade_terminal/internal/bus"
	"trade_terminal/internal/models"
	prefsvc "trade_terminal/internal/modules/prefs/service"
	sessionsvc "trade_terminal/internal/modules/session/service"
)

// SwitchActiveAccount: выбор счёта пользователем. Оптимистично ставим pending,
// чистим всё, что относится к старому счёту, и сообщаем серверу.
// Отправка и сохранение настройки best effort, подтверждение придёт пушем.
func (s *Store) SwitchActiveAccount(ctx context.Context, accountID string) error {
	s.mu.Lock()
	if _, ok := findAccount(s.accounts, accountID); !ok {
		s.mu.Unlock()
		return errors.Wrapf(ErrUnknownAccount, "id %q", accountID)
	}
	s.pendingAccountID = accountID
	s.needsAccountSelection = false
	s.positions = nil
	s.pendingOrders = nil
	s.history = models.HistoryPage{}
	s.mu.Unlock()

	s.publishActive()
	s.publish(bus.EventPositions, []models.Position(nil))
	s.publish(bus.EventPendingOrders, []models.PendingOrder(nil))
	s.publish(bus.EventHistory, models.HistoryPage{})

	if err := s.session.Send(ctx, models.TopicSetActiveAccount, models.SetActiveAccountCommand{AccountID: accountID}); err != nil {
		s.log.Warn("set-active-account not sent", zap.String("account_id", accountID), zap.Error(err))
	}
	if err := s.api.SetKeyValue(ctx, prefsvc.KeyActiveAccountID, accountID); err != nil {
		s.log.Warn("active account not saved on server", zap.Error(err))
	}
	if err := s.prefs.Set(ctx, prefsvc.KeyActiveAccountID, accountID); err != nil {
		s.log.Warn("active account not saved locally", zap.Error(err))
	}
	return nil
}

// SignIn входит по логину и отдаёт токены в API-клиент, пауза переподключения от сервера,
// старт сессии.
func (s *Store) SignIn(ctx context.Context, cred models.Credentials) (models.AuthResult, error) {
	res, err := s.api.Authenticate(ctx, cred)
	if err != nil {
		return models.AuthResult{}, errors.Wrap(err, "sign in")
	}
	s.session.SetReconnectDelay(res.ReconnectTimeout)
	s.Resume(res.Tokens)
	s.log.Info("signed in", zap.String("email", cred.Email))
	return res, nil
}

// Resume: старт сессии с уже известными токенами.
func (s *Store) Resume(tokens models.Tokens) {
	s.api.SetTokens(tokens)
	s.session.Connect(s.rootCtx(), tokens)
}

// SignOut: явный выход пользователя.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.session.SignOut(ctx)
	s.clearLocal(ctx)
	return err
}

// clearLocal сбрасывает всё пользовательское состояние. Сессию не трогает:
// вызывается и из обработчика события сессии.
func (s *Store) clearLocal(ctx context.Context) {
	s.api.ClearTokens()

	s.mu.Lock()
	s.accounts = nil
	s.pendingAccountID = ""
	s.confirmedAccountID = ""
	s.positions = nil
	s.pendingOrders = nil
	s.history = models.HistoryPage{}
	s.needsAccountSelection = false
	s.restarting = false
	s.mu.Unlock()

	s.quotes.Reset()
	s.instruments.Reset()
	if err := s.prefs.Delete(ctx, prefsvc.UIKeys...); err != nil {
		s.log.Warn("local prefs not cleared", zap.Error(err))
	}

	s.publish(bus.EventAccounts, []models.Account(nil))
	s.publish(bus.EventActiveAccount, nil)
	s.publish(bus.EventPositions, []models.Position(nil))
	s.publish(bus.EventPendingOrders, []models.PendingOrder(nil))
}

// PositionsHistory: страница истории активного счёта. Ответ сервера, истина,
// локально храним только последнюю страницу как курсор.
func (s *Store) PositionsHistory(ctx context.Context, page int) (models.HistoryPage, error) {
	accountID, err := s.requireActive()
	if err != nil {
		return models.HistoryPage{}, err
	}
	res, err := s.api.PositionsHistory(ctx, accountID, page, historyPageSize)
	if err != nil {
		return models.HistoryPage{}, err
	}

	s.mu.Lock()
	// пока ждали ответ, счёт могли переключить
	stale := s.effectiveAccountID() != accountID
	if !stale {
		s.history = res
	}
	s.mu.Unlock()
	if stale {
		return models.HistoryPage{}, errors.Wrap(ErrNoActiveAccount, "account switched during history request")
	}
	s.publish(bus.EventHistory, res)
	return res, nil
}

// NextHistoryPage: следующая страница после курсора; false, если страниц больше нет.
func (s *Store) NextHistoryPage(ctx context.Context) (models.HistoryPage, bool, error) {
	s.mu.RLock()
	cur := s.history
	active := s.effectiveAccountID()
	s.mu.RUnlock()

	next := 0
	if cur.AccountID == active && cur.PageSize > 0 {
		if !cur.HasMore() {
			return cur, false, nil
		}
		next = cur.Page + 1
	}
	page, err := s.PositionsHistory(ctx, next)
	if err != nil {
		return models.HistoryPage{}, false, err
	}
	return page, true, nil
}

func (s *Store) onSessionEvent(e sessionsvc.Event) {
	switch e.Kind {
	case sessionsvc.EventConnected:
		s.setRestarting(false)
	case sessionsvc.EventClosed:
		s.setRestarting(true)
	case sessionsvc.EventServerError:
		s.raise(models.AlertError, "Server error", e.Reason)
	case sessionsvc.EventSignOut:
		s.clearLocal(s.rootCtx())
		s.raise(models.AlertWarning, "Signed out", e.Reason)
	}
	s.publish(bus.EventSession, e.Kind.String())
}

func (s *Store) setRestarting(v bool) {
	s.mu.Lock()
	s.restarting = v
	s.mu.Unlock()
}
