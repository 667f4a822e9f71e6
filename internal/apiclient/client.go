package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/checkora/pkg/checkoradto"
)

const defaultCookieName = "checkora_sid"

// Client talks to a running checkora server and keeps its session cookie.
type Client struct {
	baseURL    string
	http       *fasthttp.Client
	cookieName string

	defaultTimeout time.Duration
	retryMax       int

	mu        sync.Mutex
	sessionID string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithCookieName(name string) Option {
	return func(c *Client) {
		if strings.TrimSpace(name) != "" {
			c.cookieName = strings.TrimSpace(name)
		}
	}
}

// WithDial replaces the network dialer, mainly for in-memory listeners.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		cookieName:     defaultCookieName,
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) Health(ctx context.Context) (*checkoradto.HealthResponse, error) {
	var out checkoradto.HealthResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/healthz", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NewGame(ctx context.Context) (*checkoradto.NewGameResponse, error) {
	var out checkoradto.NewGameResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/new-game", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Move(ctx context.Context, fromRow, fromCol, toRow, toCol int, promotion string) (*checkoradto.MoveResponse, error) {
	req := checkoradto.MoveRequest{FromRow: fromRow, FromCol: fromCol, ToRow: toRow, ToCol: toCol, Promotion: promotion}
	var out checkoradto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/move", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ValidMoves(ctx context.Context, row, col int) ([]checkoradto.Destination, error) {
	path := "/api/valid-moves?row=" + strconv.Itoa(row) + "&col=" + strconv.Itoa(col)
	var out checkoradto.ValidMovesResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out.ValidMoves, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")
	if sid := c.SessionID(); sid != "" {
		req.Header.SetCookie(c.cookieName, sid)
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts || !retry {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}
		c.rememberSession(resp)

		status := resp.StatusCode()
		if status >= 500 {
			err := fmt.Errorf("checkora api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}
		// 4xx bodies carry the endpoint's own response shape.
		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response (status=%d): %w", status, err)
			}
		}
		if status < 200 || status >= 300 {
			return &StatusError{Status: status, Body: truncate(string(resp.Body()), 512)}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("checkora api error: status=%d body=%s", e.Status, e.Body)
}

func (c *Client) rememberSession(resp *fasthttp.Response) {
	raw := resp.Header.PeekCookie(c.cookieName)
	if len(raw) == 0 {
		return
	}
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)
	if err := cookie.ParseBytes(raw); err != nil {
		return
	}
	c.mu.Lock()
	c.sessionID = string(cookie.Value())
	c.mu.Unlock()
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
