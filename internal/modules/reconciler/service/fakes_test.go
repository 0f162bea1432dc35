package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"

	"trade_terminal/internal/bus"
	"trade_terminal/internal/models"
	apisvc "trade_terminal/internal/modules/api/service"
	instrsvc "trade_terminal/internal/modules/instruments/service"
	quotesvc "trade_terminal/internal/modules/quotes/service"
	sessionsvc "trade_terminal/internal/modules/session/service"
)

type sentCommand struct {
	topic   models.Topic
	payload any
}

type fakeSession struct {
	mu        sync.Mutex
	handlers  map[models.Topic][]sessionsvc.Handler
	events    []func(sessionsvc.Event)
	sent      []sentCommand
	connected []models.Tokens
	signOuts  int
	delay     time.Duration
	sendErr   error
}

func newFakeSession() *fakeSession {
	return &fakeSession{handlers: make(map[models.Topic][]sessionsvc.Handler)}
}

func (f *fakeSession) On(topic models.Topic, h sessionsvc.Handler) {
	f.handlers[topic] = append(f.handlers[topic], h)
}

func (f *fakeSession) OnEvent(h func(sessionsvc.Event)) { f.events = append(f.events, h) }

func (f *fakeSession) Send(_ context.Context, topic models.Topic, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentCommand{topic: topic, payload: payload})
	return nil
}

func (f *fakeSession) Connect(_ context.Context, tokens models.Tokens) {
	f.mu.Lock()
	f.connected = append(f.connected, tokens)
	f.mu.Unlock()
}

func (f *fakeSession) SignOut(context.Context) error {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) SetReconnectDelay(d time.Duration) { f.delay = d }

// push прогоняет кадр через зарегистрированные обработчики, как read-loop.
func (f *fakeSession) push(t *testing.T, topic models.Topic, payload any) {
	t.Helper()
	raw, err := sonic.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", topic, err)
	}
	for _, h := range f.handlers[topic] {
		h(raw)
	}
}

func (f *fakeSession) emit(e sessionsvc.Event) {
	for _, h := range f.events {
		h(e)
	}
}

func (f *fakeSession) sentTo(topic models.Topic) []sentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentCommand
	for _, c := range f.sent {
		if c.topic == topic {
			out = append(out, c)
		}
	}
	return out
}

type fakeAPI struct {
	mu     sync.Mutex
	kv     map[string]string
	kvErr  error
	tokens models.Tokens

	auth    models.AuthResult
	authErr error

	code        models.ResultCode
	opened      []apisvc.OpenPositionRequest
	closed      []apisvc.ClosePositionRequest
	updated     []apisvc.UpdateSLTPRequest
	added       []apisvc.AddPendingOrderRequest
	removed     []apisvc.RemovePendingOrderRequest
	historyReqs []int
	history     func(accountID string, page, size int) models.HistoryPage
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{kv: make(map[string]string)}
}

func (a *fakeAPI) Authenticate(context.Context, models.Credentials) (models.AuthResult, error) {
	if a.authErr != nil {
		return models.AuthResult{}, a.authErr
	}
	a.tokens = a.auth.Tokens
	return a.auth, nil
}

func (a *fakeAPI) SetTokens(t models.Tokens) { a.tokens = t }
func (a *fakeAPI) ClearTokens()             { a.tokens = models.Tokens{} }

func (a *fakeAPI) OpenPosition(_ context.Context, req apisvc.OpenPositionRequest) (models.ResultCode, error) {
	a.opened = append(a.opened, req)
	return a.code, nil
}

func (a *fakeAPI) ClosePosition(_ context.Context, req apisvc.ClosePositionRequest) (models.ResultCode, error) {
	a.closed = append(a.closed, req)
	return a.code, nil
}

func (a *fakeAPI) UpdateSLTP(_ context.Context, req apisvc.UpdateSLTPRequest) (models.ResultCode, error) {
	a.updated = append(a.updated, req)
	return a.code, nil
}

func (a *fakeAPI) AddPendingOrder(_ context.Context, req apisvc.AddPendingOrderRequest) (models.ResultCode, error) {
	a.added = append(a.added, req)
	return a.code, nil
}

func (a *fakeAPI) RemovePendingOrder(_ context.Context, req apisvc.RemovePendingOrderRequest) (models.ResultCode, error) {
	a.removed = append(a.removed, req)
	return a.code, nil
}

func (a *fakeAPI) GetKeyValue(_ context.Context, key string) (string, bool, error) {
	if a.kvErr != nil {
		return "", false, a.kvErr
	}
	v, ok := a.kv[key]
	return v, ok, nil
}

func (a *fakeAPI) SetKeyValue(_ context.Context, key, value string) error {
	a.kv[key] = value
	return nil
}

func (a *fakeAPI) PositionsHistory(_ context.Context, accountID string, page, size int) (models.HistoryPage, error) {
	a.historyReqs = append(a.historyReqs, page)
	if a.history == nil {
		return models.HistoryPage{}, errors.New("no history")
	}
	return a.history(accountID, page, size), nil
}

type memPrefs struct {
	mu sync.Mutex
	m  map[string]string
}

func (p *memPrefs) Get(_ context.Context, key string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *memPrefs) Set(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = value
	return nil
}

func (p *memPrefs) Delete(_ context.Context, keys ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		delete(p.m, k)
	}
	return nil
}

type fixture struct {
	store       *Store
	session     *fakeSession
	api         *fakeAPI
	prefs       *memPrefs
	quotes      *quotesvc.Store
	instruments *instrsvc.Store
	bus         *bus.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := bus.New()
	f := &fixture{
		session:     newFakeSession(),
		api:         newFakeAPI(),
		prefs:       &memPrefs{m: make(map[string]string)},
		quotes:      quotesvc.NewStore(b),
		instruments: instrsvc.NewStore(b),
		bus:         b,
	}
	f.store = NewStore(f.session, f.api, f.prefs, f.quotes, f.instruments, b, zaptest.NewLogger(t))
	return f
}

var testAccounts = []models.Account{
	{ID: "demo", Currency: "USD", Balance: 10000},
	{ID: "live", Currency: "USD", Balance: 500, IsLive: true, MaxMultiplier: 100},
}

func (f *fixture) pushAccounts(t *testing.T) {
	t.Helper()
	f.session.push(t, models.TopicAccounts, models.Envelope[[]models.Account]{Data: testAccounts})
}

// activate: счёт выбран по настройке и подтверждён пушем.
func (f *fixture) activate(t *testing.T, accountID string) {
	t.Helper()
	f.api.kv["activeAccountId"] = accountID
	f.pushAccounts(t)
	f.session.push(t, models.TopicPositions, models.Envelope[[]models.PositionWS]{AccountID: accountID})
	if !f.store.ActiveAccountConfirmed() {
		t.Fatalf("account %s not confirmed", accountID)
	}
}

func ptr(v float64) *float64 { return &v }

func trigger(t *testing.T, kind models.TriggerKind, v float64) *models.Trigger {
	t.Helper()
	tr, err := models.NewTrigger(kind, v)
	if err != nil {
		t.Fatalf("NewTrigger: %v", err)
	}
	return tr
}
