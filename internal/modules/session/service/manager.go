package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"trade_terminal/internal/models"
	"trade_terminal/internal/modules/config"
)

var (
	ErrNotConnected = errors.New("session is not active")
	ErrSignedOut    = errors.New("session signed out")
)

const (
	defaultReconnectDelay = 10 * time.Second
	defaultPingInterval   = 20 * time.Second
)

// Handler получает сырой payload кадра. Вызывается из read-loop по порядку доставки.
type Handler func(payload []byte)

// TokenRefresher: обмен refresh-токена на новую пару (request API).
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (models.Tokens, error)
}

type Options struct {
	URL              string
	ReconnectDelay   time.Duration
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
}

// Manager держит одну стриминговую сессию: подключение, init, переподключение,
// обновление токена. Бизнес-логики нет, только доставка кадров обработчикам.
type Manager struct {
	opts      Options
	dialer    Dialer
	refresher TokenRefresher
	log       *zap.Logger
	now       func() time.Time

	mu             sync.Mutex
	state          State
	tokens         models.Tokens
	conn           Conn
	reconnectDelay time.Duration
	cancel         context.CancelFunc
	done           chan struct{}
	// ctx последнего Connect и флаг, что Connect пришёл на работающий цикл
	parent  context.Context
	restart bool

	writeMu   sync.Mutex
	reconnect chan struct{}

	hmu           sync.RWMutex
	handlers      map[models.Topic][]Handler
	eventHandlers []func(Event)
	stateHandlers []func(State)
}

func NewManager(cfg *config.Config, refresher TokenRefresher, log *zap.Logger) *Manager {
	return New(Options{
		URL:              cfg.Session.URL,
		ReconnectDelay:   cfg.Session.ReconnectDelay,
		PingInterval:     cfg.Session.PingInterval,
		HandshakeTimeout: cfg.Session.HandshakeTimeout,
	}, NewDialer(cfg.Session.HandshakeTimeout), refresher, log)
}

func New(opts Options, dialer Dialer, refresher TokenRefresher, log *zap.Logger) *Manager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	return &Manager{
		opts:           opts,
		dialer:         dialer,
		refresher:      refresher,
		log:            log.Named("session"),
		now:            time.Now,
		state:          StateDisconnected,
		reconnectDelay: opts.ReconnectDelay,
		reconnect:      make(chan struct{}, 1),
		handlers:       make(map[models.Topic][]Handler),
	}
}

// On регистрирует обработчик топика. Регистрировать до Connect.
func (m *Manager) On(topic models.Topic, h Handler) {
	m.hmu.Lock()
	m.handlers[topic] = append(m.handlers[topic], h)
	m.hmu.Unlock()
}

func (m *Manager) OnEvent(h func(Event)) {
	m.hmu.Lock()
	m.eventHandlers = append(m.eventHandlers, h)
	m.hmu.Unlock()
}

func (m *Manager) OnState(h func(State)) {
	m.hmu.Lock()
	m.stateHandlers = append(m.stateHandlers, h)
	m.hmu.Unlock()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Tokens() models.Tokens {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

// SetReconnectDelay: пауза между попытками; сервер присылает её при входе.
func (m *Manager) SetReconnectDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.reconnectDelay = d
	m.mu.Unlock()
}

func (m *Manager) ReconnectDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnectDelay
}

// Connect запускает цикл сессии; ctx ограничивает жизнь цикла.
// Повторный вызов на работающем цикле меняет токены и переподключается.
func (m *Manager) Connect(ctx context.Context, tokens models.Tokens) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = tokens
	if m.done != nil {
		// цикл либо переподключится по сигналу, либо уже выходит и
		// перезапустится сам в defer run
		m.parent = ctx
		m.restart = true
		m.forceReconnect()
		return
	}
	m.startLocked(ctx)
}

// startLocked поднимает новый цикл. Вызывать под mu.
func (m *Manager) startLocked(ctx context.Context) {
	// сигнал от прошлого цикла новому не нужен
	select {
	case <-m.reconnect:
	default:
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.parent = ctx
	m.restart = false
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx, m.done)
}

// Stop гасит цикл и ждёт его выхода. Токены остаются.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.restart = false
	m.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignOut останавливает цикл и забывает токены. Состояние SignedOut терминальное.
// Событие sign_out не шлём: выход инициирован снаружи.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.Stop(ctx)
	m.mu.Lock()
	m.tokens = models.Tokens{}
	m.mu.Unlock()
	m.setState(StateSignedOut)
	return err
}

// Send отправляет команду в активную сессию. Очереди нет, вне Active возвращает ErrNotConnected.
func (m *Manager) Send(ctx context.Context, topic models.Topic, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	conn, state := m.conn, m.state
	m.mu.Unlock()
	if state != StateActive || conn == nil {
		return errors.Wrapf(ErrNotConnected, "send %s in state %s", topic, state)
	}
	return m.write(conn, topic, payload)
}

func (m *Manager) write(conn Conn, topic models.Topic, payload any) error {
	msg, err := encodeFrame(topic, payload)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return errors.Wrapf(err, "write %s", topic)
	}
	return nil
}

func (m *Manager) forceReconnect() {
	select {
	case m.reconnect <- struct{}{}:
	default:
	}
}

type exitReason int

const (
	exitCanceled exitReason = iota
	exitClosed
	exitUnauthorized
	exitForced
)

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer func() {
		if m.State() != StateSignedOut {
			m.setState(StateDisconnected)
		}
		m.mu.Lock()
		cancel := m.cancel
		m.cancel, m.done = nil, nil
		if m.restart && m.parent != nil && m.parent.Err() == nil {
			m.log.Info("restarting session loop for new tokens")
			m.startLocked(m.parent)
		}
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		close(done)
	}()

	// сколько подряд unauthorized без единого нормального пуша
	authFailures := 0

	for {
		if ctx.Err() != nil {
			return
		}
		// новая попытка читает свежие токены, запрос Connect обслужен
		m.mu.Lock()
		m.restart = false
		select {
		case <-m.reconnect:
		default:
		}
		m.mu.Unlock()

		if tokenExpired(m.Tokens().Token, m.now()) {
			m.log.Info("access token expired, refreshing before connect")
			if err := m.refresh(ctx); err != nil {
				m.signOut(err)
				return
			}
		}

		m.setState(StateConnecting)
		conn, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn("dial failed", zap.String("url", m.opts.URL), zap.Error(err))
			m.setState(StateReconnecting)
			if !m.wait(ctx) {
				return
			}
			continue
		}

		m.setState(StateAuthenticating)
		if err := m.write(conn, models.TopicInit, models.InitCommand{Token: m.Tokens().Token}); err != nil {
			m.log.Warn("init failed", zap.Error(err))
			_ = conn.Close()
			m.setState(StateReconnecting)
			if !m.wait(ctx) {
				return
			}
			continue
		}

		m.activate(conn)
		m.emit(Event{Kind: EventConnected})
		m.log.Info("session active", zap.String("url", m.opts.URL))

		reason, authorized := m.serve(ctx, conn)
		m.deactivate(conn)
		if authorized {
			authFailures = 0
		}

		switch reason {
		case exitCanceled:
			return

		case exitForced:
			m.setState(StateReconnecting)

		case exitUnauthorized:
			m.setState(StateUnauthorized)
			authFailures++
			if authFailures > 1 {
				m.signOut(errors.New("unauthorized again after token refresh"))
				return
			}
			if err := m.refresh(ctx); err != nil {
				m.signOut(err)
				return
			}
			m.setState(StateReconnecting)

		case exitClosed:
			m.setState(StateClosed)
			m.emit(Event{Kind: EventClosed})
			m.setState(StateReconnecting)
			if !m.wait(ctx) {
				return
			}
		}
	}
}

func (m *Manager) dial(ctx context.Context) (Conn, error) {
	dialCtx := ctx
	if m.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, m.opts.HandshakeTimeout)
		defer cancel()
	}
	return m.dialer.Dial(dialCtx, m.opts.URL, nil)
}

// serve: read-loop одной сессии плюс keepalive. Возвращает причину выхода и
// был ли хоть один кадр кроме unauthorized.
func (m *Manager) serve(ctx context.Context, conn Conn) (exitReason, bool) {
	sctx, stop := context.WithCancel(ctx)
	defer stop()

	var forced atomic.Bool
	go func() {
		t := time.NewTicker(m.opts.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-sctx.Done():
				_ = conn.Close()
				return
			case <-m.reconnect:
				forced.Store(true)
				_ = conn.Close()
				return
			case <-t.C:
				if err := m.write(conn, models.TopicPing, nil); err != nil {
					m.log.Debug("ping failed", zap.Error(err))
				}
			}
		}
	}()

	authorized := false
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return exitCanceled, authorized
			}
			if forced.Load() {
				return exitForced, authorized
			}
			m.log.Warn("read failed, session closed", zap.Error(err))
			return exitClosed, authorized
		}

		f, err := decodeFrame(msg)
		if err != nil {
			m.log.Warn("skip bad frame", zap.Error(err), zap.ByteString("raw", msg))
			continue
		}

		switch f.Topic {
		case models.TopicUnauthorized:
			return exitUnauthorized, authorized
		case models.TopicServerError:
			se, err := Decode[models.ServerError](f.Payload)
			if err != nil {
				se.Reason = "unknown server error"
			}
			m.emit(Event{Kind: EventServerError, Reason: se.Reason})
		case models.TopicPong:
		default:
			m.dispatch(f.Topic, f.Payload)
		}
		authorized = true
	}
}

func (m *Manager) refresh(ctx context.Context) error {
	rt := m.Tokens().RefreshToken
	if rt == "" || m.refresher == nil {
		return errors.New("no refresh token")
	}
	tokens, err := m.refresher.RefreshToken(ctx, rt)
	if err != nil {
		return errors.Wrap(err, "refresh token")
	}
	m.mu.Lock()
	m.tokens = tokens
	m.mu.Unlock()
	m.log.Info("tokens refreshed")
	m.emit(Event{Kind: EventTokensRefreshed})
	return nil
}

func (m *Manager) signOut(cause error) {
	m.log.Warn("session signed out", zap.Error(cause))
	m.mu.Lock()
	m.tokens = models.Tokens{}
	m.mu.Unlock()
	m.setState(StateSignedOut)
	m.emit(Event{Kind: EventSignOut, Reason: cause.Error(), Err: cause})
}

// wait: пауза перед следующей попыткой. false значит, что цикл надо завершать.
func (m *Manager) wait(ctx context.Context) bool {
	t := time.NewTimer(m.ReconnectDelay())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-m.reconnect:
		return true
	case <-t.C:
		return true
	}
}

func (m *Manager) activate(conn Conn) {
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.setState(StateActive)
}

func (m *Manager) deactivate(conn Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.mu.Unlock()
	_ = conn.Close()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()
	m.log.Debug("state", zap.Stringer("state", s))
	m.notifyState(s)
}

func (m *Manager) notifyState(s State) {
	m.hmu.RLock()
	hs := append([]func(State){}, m.stateHandlers...)
	m.hmu.RUnlock()
	for _, h := range hs {
		h(s)
	}
}

func (m *Manager) emit(e Event) {
	m.hmu.RLock()
	hs := append([]func(Event){}, m.eventHandlers...)
	m.hmu.RUnlock()
	for _, h := range hs {
		h(e)
	}
}

func (m *Manager) dispatch(topic models.Topic, payload []byte) {
	m.hmu.RLock()
	hs := m.handlers[topic]
	m.hmu.RUnlock()
	if len(hs) == 0 {
		m.log.Debug("no handler", zap.String("topic", string(topic)))
		return
	}
	for _, h := range hs {
		h(payload)
	}
}
