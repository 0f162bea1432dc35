package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"trade_terminal/internal/models"
)

// Conn: то, что нужно менеджеру от сокета. *websocket.Conn подходит как есть.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

type wsDialer struct {
	d *websocket.Dialer
}

func NewDialer(handshakeTimeout time.Duration) Dialer {
	return &wsDialer{d: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}}
}

func (w *wsDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := w.d.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "dial %s: http %d", url, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return conn, nil
}

// frame: кадр протокола {"topic": "...", "payload": {...}}.
type frame struct {
	Topic   models.Topic    `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func encodeFrame(topic models.Topic, payload any) ([]byte, error) {
	f := frame{Topic: topic}
	if payload != nil {
		raw, err := sonic.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s payload", topic)
		}
		f.Payload = raw
	}
	return sonic.Marshal(f)
}

func decodeFrame(msg []byte) (frame, error) {
	var f frame
	if err := sonic.Unmarshal(msg, &f); err != nil {
		return frame{}, errors.Wrap(err, "decode frame")
	}
	if f.Topic == "" {
		return frame{}, errors.New("decode frame: empty topic")
	}
	return f, nil
}

// Decode: разбор payload пуша в нужный тип для обработчиков.
func Decode[T any](payload []byte) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, errors.New("empty payload")
	}
	if err := sonic.Unmarshal(payload, &v); err != nil {
		return v, errors.Wrap(err, "decode payload")
	}
	return v, nil
}
