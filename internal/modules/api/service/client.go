package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"resty.dev/v3"

	"trade_terminal/internal/models"
	"trade_terminal/internal/modules/config"
	"trade_terminal/pkg/tracing"
)

var (
	ErrUnauthorized       = errors.New("request api: unauthorized")
	ErrInvalidCredentials = errors.New("request api: invalid user name or password")
	ErrRefreshRejected    = errors.New("request api: refresh token rejected")
)

// Client: клиент request API торгового сервера.
// Токен берётся из общего хранилища токенов на каждый запрос.
type Client struct {
	c       *resty.Client
	limiter ratelimit.Limiter
	log     *zap.Logger

	mu     sync.RWMutex
	tokens models.Tokens
}

type Options struct {
	BaseURL           string
	Language          string
	Timeout           time.Duration
	CommandsPerMinute int
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	c := New(Options{
		BaseURL:           cfg.API.BaseURL,
		Language:          cfg.API.Language,
		Timeout:           cfg.API.Timeout,
		CommandsPerMinute: cfg.API.CommandsPerMinute,
	}, log)
	c.SetTokens(models.Tokens{Token: cfg.Auth.Token, RefreshToken: cfg.Auth.RefreshToken})
	return c
}

func New(opts Options, log *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		AddContentTypeEncoder(jsonKey, encodeJSON).
		AddContentTypeDecoder(jsonKey, decodeJSON)
	if opts.Language != "" {
		client.SetHeader("Accept-Language", opts.Language)
	}
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	limiter := ratelimit.NewUnlimited()
	if opts.CommandsPerMinute > 0 {
		limiter = ratelimit.New(opts.CommandsPerMinute, ratelimit.Per(time.Minute))
	}

	return &Client{
		c:       client,
		limiter: limiter,
		log:     log.Named("api"),
	}
}

func (c *Client) Close() error {
	return c.c.Close()
}

func (c *Client) SetTokens(t models.Tokens) {
	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()
}

func (c *Client) Tokens() models.Tokens {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

// ClearTokens вызывается при выходе, дальше запросы идут без токена.
func (c *Client) ClearTokens() {
	c.SetTokens(models.Tokens{})
}

type call struct {
	op     string
	method string
	path   string
	body   any
	query  map[string]string
	result any
	// command: торговая команда, идёт через лимитер
	command bool
}

func (c *Client) do(ctx context.Context, cl call) (err error) {
	span, ctx := tracing.StartSpan(ctx, "api."+cl.op)
	defer func() { tracing.Finish(span, err) }()

	if cl.command {
		c.limiter.Take()
	}

	req := c.c.R().
		SetContext(ctx).
		SetResult(cl.result).
		SetError(&errorResponse{})
	if token := c.Tokens().Token; token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	if cl.body != nil {
		req.SetBody(cl.body)
	}
	if len(cl.query) > 0 {
		req.SetQueryParams(cl.query)
	}

	resp, err := req.Execute(cl.method, cl.path)
	if err != nil {
		return errors.Wrapf(err, "%s: can't send request", cl.op)
	}
	defer resp.Body.Close()

	c.log.Debug("api response",
		append(tracing.Fields(span),
			zap.String("op", cl.op),
			zap.String("status", resp.Status()),
			zap.Duration("took", resp.Duration()),
		)...)

	if resp.StatusCode() == http.StatusUnauthorized {
		return errors.Wrap(ErrUnauthorized, cl.op)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*errorResponse); ok && e.Message != "" {
			return errors.Errorf("%s: http %s: %s", cl.op, resp.Status(), e.Message)
		}
		return errors.Errorf("%s: http %s", cl.op, resp.Status())
	}
	if !resp.IsSuccess() {
		return errors.Errorf("%s: unexpected response %s", cl.op, resp.Status())
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, body, result any, command bool) error {
	return c.do(ctx, call{op: op, method: http.MethodPost, path: path, body: body, result: result, command: command})
}

func (c *Client) get(ctx context.Context, op, path string, query map[string]string, result any) error {
	return c.do(ctx, call{op: op, method: http.MethodGet, path: path, query: query, result: result})
}
