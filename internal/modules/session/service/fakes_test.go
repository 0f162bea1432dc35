package service

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"

	"trade_terminal/internal/models"
)

var errClosed = errors.New("use of closed connection")

// fakeConn держит сокет в памяти. Сервер кладёт кадры в in, клиентские кадры копятся в out.
type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu  sync.Mutex
	out []frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.in:
		return 1, msg, nil
	case <-c.closed:
		return 0, nil, errClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errClosed
	default:
	}
	f, err := decodeFrame(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.out = append(c.out, f)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(topic models.Topic, payload any) {
	msg, err := encodeFrame(topic, payload)
	if err != nil {
		panic(err)
	}
	c.in <- msg
}

func (c *fakeConn) sent(topic models.Topic) []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var res []frame
	for _, f := range c.out {
		if f.Topic == topic {
			res = append(res, f)
		}
	}
	return res
}

// fakeDialer отдаёт ошибку failures раз, потом по очереди соединения из conns.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	attempts int
	conns    chan *fakeConn
}

func newFakeDialer(failures int) *fakeDialer {
	return &fakeDialer{failures: failures, conns: make(chan *fakeConn, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context, _ string, _ http.Header) (Conn, error) {
	d.mu.Lock()
	d.attempts++
	fail := d.attempts <= d.failures
	d.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	select {
	case c := <-d.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

type fakeRefresher struct {
	mu     sync.Mutex
	calls  []string
	tokens models.Tokens
	err    error
}

func (r *fakeRefresher) RefreshToken(_ context.Context, refreshToken string) (models.Tokens, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, refreshToken)
	return r.tokens, r.err
}

func (r *fakeRefresher) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func initToken(t interface{ Fatalf(string, ...any) }, f frame) string {
	var cmd models.InitCommand
	if err := sonic.Unmarshal(f.Payload, &cmd); err != nil {
		t.Fatalf("bad init payload: %v", err)
	}
	return cmd.Token
}
