// Package hub is the remote store adapter for ledger-hub: JSON over HTTP for
// reads and writes, and a websocket change feed.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ledger/internal/core"
	"ledger/internal/hubapi"
	"ledger/internal/log"
	"ledger/internal/remote"
)

var _ remote.Store = (*Client)(nil)

const (
	minRedial = 500 * time.Millisecond
	maxRedial = 30 * time.Second
)

// Client talks to one ledger-hub with a bearer key.
type Client struct {
	base   *url.URL
	key    string
	http   *http.Client
	dialer *websocket.Dialer
	logger *log.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for change feed reconnects.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the hub at baseURL.
func New(baseURL, key string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse hub url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("hub url must be http or https, got %q", u.Scheme)
	}
	c := &Client{
		base:   u,
		key:    key,
		http:   &http.Client{Timeout: 15 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent(log.ComponentRemote)
	return c, nil
}

// endpoint joins base with an already escaped path.
func endpoint(base url.URL, path string) string {
	base.RawPath = base.EscapedPath() + path
	base.Path, _ = url.PathUnescape(base.RawPath)
	return base.String()
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint(*c.base, path), rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s %s: %w", method, path, remote.ErrUnauthorized)
	}
	if resp.StatusCode/100 != 2 {
		var apiErr hubapi.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		return fmt.Errorf("%s %s: hub returned %d: %s", method, path, resp.StatusCode, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) List(ctx context.Context, household string) ([]core.Expense, error) {
	if household == "" {
		return nil, remote.ErrEmptyHousehold
	}
	var resp hubapi.ExpensesResponse
	if err := c.do(ctx, http.MethodGet, hubapi.ExpensesPath(household), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Expenses, nil
}

func (c *Client) Upsert(ctx context.Context, household string, records ...core.Expense) error {
	if household == "" {
		return remote.ErrEmptyHousehold
	}
	if len(records) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPut, hubapi.ExpensesPath(household), hubapi.UpsertRequest{Expenses: records}, nil)
}

func (c *Client) Delete(ctx context.Context, household, id string) error {
	if household == "" {
		return remote.ErrEmptyHousehold
	}
	return c.do(ctx, http.MethodDelete, hubapi.ExpensePath(household, id), nil, nil)
}

// Subscribe dials the change feed of household. A dropped connection is
// redialed with backoff until ctx is cancelled or the subscription is closed;
// each successful redial is reported as a change, since signals sent while
// disconnected are lost.
func (c *Client) Subscribe(ctx context.Context, household string) (remote.Subscription, error) {
	if household == "" {
		return nil, remote.ErrEmptyHousehold
	}
	conn, err := c.dial(ctx, household)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &subscription{
		client:    c,
		household: household,
		ch:        make(chan remote.Change, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go s.run(sctx, conn)
	return s, nil
}

func (c *Client) dial(ctx context.Context, household string) (*websocket.Conn, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.key)
	conn, resp, err := c.dialer.DialContext(ctx, endpoint(u, hubapi.ChangesPath(household)), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("dial change feed: %w", remote.ErrUnauthorized)
		}
		return nil, fmt.Errorf("dial change feed: %w", err)
	}
	return conn, nil
}

type subscription struct {
	client    *Client
	household string
	ch        chan remote.Change
	cancel    context.CancelFunc
	done      chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *subscription) Changes() <-chan remote.Change { return s.ch }

func (s *subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *subscription) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *subscription) run(ctx context.Context, conn *websocket.Conn) {
	defer close(s.done)
	defer close(s.ch)

	// Unblock ReadMessage when the subscription ends.
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	}()

	s.setConn(conn)
	wait := minRedial
	for {
		err := s.read(conn)
		if ctx.Err() != nil {
			return
		}
		s.client.logger.Warn("Change feed disconnected",
			log.FieldHousehold, s.household,
			log.FieldError, err)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			conn, err = s.client.dial(ctx, s.household)
			if err == nil {
				break
			}
			if errors.Is(err, remote.ErrUnauthorized) {
				s.client.logger.Error("Change feed rejected, giving up",
					log.FieldHousehold, s.household,
					log.FieldError, err)
				return
			}
			wait = min(wait*2, maxRedial)
		}
		wait = minRedial
		s.mu.Lock()
		if ctx.Err() != nil {
			conn.Close()
			s.mu.Unlock()
			return
		}
		s.conn = conn
		s.mu.Unlock()
		remote.Notify(s.ch, remote.Change{Household: s.household, At: time.Now()})
	}
}

// read consumes events until the connection fails.
func (s *subscription) read(conn *websocket.Conn) error {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev hubapi.ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type != hubapi.EventChanged {
			continue
		}
		remote.Notify(s.ch, remote.Change{Household: s.household, At: time.Now()})
	}
}
