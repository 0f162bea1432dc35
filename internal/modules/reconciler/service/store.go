package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"trade_terminal/internal/bus"
	"trade_terminal/internal/models"
	apisvc "trade_terminal/internal/modules/api/service"
	instrsvc "trade_terminal/internal/modules/instruments/service"
	prefsvc "trade_terminal/internal/modules/prefs/service"
	quotesvc "trade_terminal/internal/modules/quotes/service"
	sessionsvc "trade_terminal/internal/modules/session/service"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNoActiveAccount = errors.New("no active account")
	ErrUnknownAccount  = errors.New("unknown account")
	ErrUnknownPosition = errors.New("unknown position")
)

const (
	lookupTimeout   = 10 * time.Second
	historyPageSize = 20
)

// Session: то, что Reconciler-у нужно от стриминговой сессии.
type Session interface {
	On(topic models.Topic, h sessionsvc.Handler)
	OnEvent(h func(sessionsvc.Event))
	Send(ctx context.Context, topic models.Topic, payload any) error
	Connect(ctx context.Context, tokens models.Tokens)
	SignOut(ctx context.Context) error
	SetReconnectDelay(d time.Duration)
}

// API: request API сервера.
type API interface {
	Authenticate(ctx context.Context, cred models.Credentials) (models.AuthResult, error)
	SetTokens(t models.Tokens)
	ClearTokens()
	OpenPosition(ctx context.Context, req apisvc.OpenPositionRequest) (models.ResultCode, error)
	ClosePosition(ctx context.Context, req apisvc.ClosePositionRequest) (models.ResultCode, error)
	UpdateSLTP(ctx context.Context, req apisvc.UpdateSLTPRequest) (models.ResultCode, error)
	AddPendingOrder(ctx context.Context, req apisvc.AddPendingOrderRequest) (models.ResultCode, error)
	RemovePendingOrder(ctx context.Context, req apisvc.RemovePendingOrderRequest) (models.ResultCode, error)
	GetKeyValue(ctx context.Context, key string) (string, bool, error)
	SetKeyValue(ctx context.Context, key, value string) error
	PositionsHistory(ctx context.Context, accountID string, page, pageSize int) (models.HistoryPage, error)
}

// Store зеркалит серверное состояние пользователя (счета, активный счёт,
// позиции, отложенные ордера, история). Меняется только пушами; команды
// лишь отправляют запросы и ждут подтверждающий пуш.
type Store struct {
	session     Session
	api         API
	prefs       prefsvc.Store
	quotes      *quotesvc.Store
	instruments *instrsvc.Store
	bus         *bus.Bus
	log         *zap.Logger
	now         func() time.Time

	// root: жизнь сессии; задаётся в Start
	root   context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	accounts []models.Account
	// активный счёт в две фазы. pending выбран локально,
	// confirmed: сервер прислал данные по нему
	pendingAccountID   string
	confirmedAccountID string
	positions          []models.Position
	pendingOrders      []models.PendingOrder
	history            models.HistoryPage

	needsAccountSelection bool
	restarting            bool
	alert                 *models.Alert
}

func NewStore(
	session Session,
	api API,
	prefs prefsvc.Store,
	quotes *quotesvc.Store,
	instruments *instrsvc.Store,
	b *bus.Bus,
	log *zap.Logger,
) *Store {
	s := &Store{
		session:     session,
		api:         api,
		prefs:       prefs,
		quotes:      quotes,
		instruments: instruments,
		bus:         b,
		log:         log.Named("reconciler"),
		now:         time.Now,
		root:        context.Background(),
	}
	s.register()
	return s
}

func (s *Store) register() {
	s.session.On(models.TopicAccounts, decodeInto(s, "accounts", func(env models.Envelope[[]models.Account]) {
		s.OnAccountsPush(s.rootCtx(), env.Data)
	}))
	s.session.On(models.TopicUpdateAccount, decodeInto(s, "update-account", s.OnAccountUpdatePush))
	s.session.On(models.TopicInstruments, decodeInto(s, "instruments", s.OnInstrumentsPush))
	s.session.On(models.TopicBidAsk, decodeInto(s, "bid-ask", s.OnQuotesPush))
	s.session.On(models.TopicPositions, decodeInto(s, "positions", s.OnPositionsPush))
	s.session.On(models.TopicPendingOrders, decodeInto(s, "pending-orders", s.OnPendingOrdersPush))
	s.session.OnEvent(s.onSessionEvent)
}

func decodeInto[T any](s *Store, name string, h func(T)) sessionsvc.Handler {
	return func(payload []byte) {
		v, err := sessionsvc.Decode[T](payload)
		if err != nil {
			s.log.Warn("skip push", zap.String("topic", name), zap.Error(err))
			return
		}
		h(v)
	}
}

// Start задаёт время жизни сессии и входит: по сохранённым токенам или по логину.
func (s *Store) Start(cred models.Credentials, tokens models.Tokens) error {
	s.mu.Lock()
	s.root, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	if tokens.Token != "" || tokens.RefreshToken != "" {
		s.Resume(tokens)
		return nil
	}
	if cred.Email == "" {
		s.log.Info("no credentials, waiting for sign in")
		return nil
	}
	ctx, cancel := context.WithTimeout(s.root, lookupTimeout)
	defer cancel()
	_, err := s.SignIn(ctx, cred)
	return err
}

func (s *Store) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Store) rootCtx() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

func (s *Store) publish(t bus.EventType, data any) {
	if s.bus != nil {
		s.bus.Publish(bus.Event{Type: t, Data: data})
	}
}

func (s *Store) raise(level models.AlertLevel, title, msg string) {
	a := models.Alert{Level: level, Title: title, Message: msg, Time: s.now()}
	s.mu.Lock()
	if level == models.AlertError {
		s.alert = &a
	}
	s.mu.Unlock()
	s.publish(bus.EventAlert, a)
}

// effectiveAccountID: pending, если есть, иначе confirmed. Вызывать под mu.
func (s *Store) effectiveAccountID() string {
	if s.pendingAccountID != "" {
		return s.pendingAccountID
	}
	return s.confirmedAccountID
}

func findAccount(list []models.Account, id string) (models.Account, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return models.Account{}, false
}
