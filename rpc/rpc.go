// Package rpc is a JSON-RPC 2.0 client over a reconnecting WebSocket, used to
// talk to the console's session endpoints (/debug-session/, /utils-session/).
//
// Responses are correlated by request id. When the socket drops, pending calls
// fail with ErrDisconnected and the client redials with exponential backoff up to
// MaxRetries times; after that every call fails with ErrClosed.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/anthillstore"
)

const (
	defaultHeartbeat      = 5 * time.Second
	defaultRequestTimeout = 15 * time.Second
	defaultConnectTimeout = time.Second
	defaultMaxRetries     = 10
	maxBackoff            = 30 * time.Second
)

var (
	ErrClosed       = errors.New("rpc: client closed")
	ErrDisconnected = errors.New("rpc: connection lost")
	ErrTimeout      = errors.New("rpc: request timed out")
)

// Error is a JSON-RPC error object returned by the server.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type Options struct {
	Heartbeat      time.Duration // ping interval; 0 => 5s, < 0 disables
	RequestTimeout time.Duration // 0 => 15s
	ConnectTimeout time.Duration // handshake timeout and first backoff step; 0 => 1s
	MaxRetries     int           // reconnect attempts per outage; 0 => 10

	Header http.Header // sent on every handshake (cookies, X-CSRFToken)
	Dialer *websocket.Dialer
	Logger anthillstore.Logger

	OnConnected    func()
	OnDisconnect   func(err error)
	OnReconnecting func(attempt int)
	OnReconnected  func()
	// OnNotification receives server-initiated messages that carry no id.
	OnNotification func(method string, params json.RawMessage)
}

type request struct {
	JSONRPC string  `json:"jsonrpc"`
	ID      *uint64 `json:"id,omitempty"`
	Method  string  `json:"method"`
	Params  any     `json:"params,omitempty"`
}

type message struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

type outcome struct {
	msg *message
	err error
}

type Client struct {
	url  string
	opts Options
	log  anthillstore.Logger

	nextID atomic.Uint64

	mu      sync.Mutex
	conn    *websocket.Conn // nil while disconnected
	pending map[uint64]chan outcome
	closed  bool

	writeMu  sync.Mutex
	done     chan struct{} // closed by Close or after giving up
	doneOnce sync.Once
	stopped  chan struct{} // closed when the supervisor exits
}

// Dial connects to url and starts the read/heartbeat/reconnect supervisor.
// The first connection is not retried; a failure is returned to the caller.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	opts = withDefaults(opts)
	c := &Client{
		url:     url,
		opts:    opts,
		log:     opts.Logger,
		pending: make(map[uint64]chan outcome),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", url, err)
	}
	c.conn = conn
	if opts.OnConnected != nil {
		opts.OnConnected()
	}
	go c.run(conn)
	return c, nil
}

func withDefaults(o Options) Options {
	if o.Heartbeat == 0 {
		o.Heartbeat = defaultHeartbeat
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.Logger == nil {
		o.Logger = anthillstore.NopLogger{}
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{Proxy: http.ProxyFromEnvironment}
	}
	return o
}

// Call sends method with params and decodes the result into result (may be nil).
// Server-side failures are returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	id := c.nextID.Add(1)
	ch := make(chan outcome, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(conn, request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		c.forget(id)
		return fmt.Errorf("rpc: send %s: %w", method, err)
	}

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		if out.err != nil {
			return out.err
		}
		if out.msg.Error != nil {
			return out.msg.Error
		}
		if result == nil || len(out.msg.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(out.msg.Result, result); err != nil {
			return fmt.Errorf("rpc: decode %s result: %w", method, err)
		}
		return nil
	case <-timer.C:
		c.forget(id)
		return fmt.Errorf("%w: %s", ErrTimeout, method)
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}
}

// Notify sends method without an id; the server does not reply.
func (c *Client) Notify(_ context.Context, method string, params any) error {
	c.mu.Lock()
	closed, conn := c.closed, c.conn
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrDisconnected
	}
	return c.write(conn, request{JSONRPC: "2.0", Method: method, Params: params})
}

// Connected reports whether a socket is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close stops the client and fails pending calls with ErrClosed. Idempotent.
func (c *Client) Close() error {
	c.shutdown()
	<-c.stopped
	return nil
}

func (c *Client) shutdown() {
	c.doneOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	d := *c.opts.Dialer
	d.HandshakeTimeout = c.opts.ConnectTimeout
	conn, resp, err := d.DialContext(ctx, c.url, c.opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

func (c *Client) write(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.RequestTimeout))
	return conn.WriteJSON(v)
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// detach marks the socket gone and fails every pending call with err.
func (c *Client) detach(err error) {
	c.mu.Lock()
	c.conn = nil
	pending := c.pending
	c.pending = make(map[uint64]chan outcome)
	c.mu.Unlock()
	for _, ch := range pending {
		ch <- outcome{err: err}
	}
}

func (c *Client) attach(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conn = conn
	return true
}

func (c *Client) run(conn *websocket.Conn) {
	defer close(c.stopped)
	for {
		err := c.serve(conn)
		select {
		case <-c.done:
			c.detach(ErrClosed)
			return
		default:
		}

		c.detach(ErrDisconnected)
		c.log.Warn("rpc connection lost", anthillstore.Fields{"url": c.url, "err": err})
		if c.opts.OnDisconnect != nil {
			c.opts.OnDisconnect(err)
		}

		conn, err = c.reconnect()
		if err != nil {
			c.log.Error("rpc reconnect gave up", anthillstore.Fields{"url": c.url, "err": err})
			c.shutdown()
			c.detach(ErrClosed)
			return
		}
		c.log.Info("rpc reconnected", anthillstore.Fields{"url": c.url})
		if c.opts.OnReconnected != nil {
			c.opts.OnReconnected()
		}
	}
}

// serve runs the reader and heartbeat for one connection until it fails or the
// client is closed. The socket is always closed on return.
func (c *Client) serve(conn *websocket.Conn) error {
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return c.readLoop(conn) })
	g.Go(func() error { return c.heartbeat(ctx, conn) })
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-c.done:
		}
		return conn.Close()
	})
	return g.Wait()
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	c.extendDeadline(conn)
	conn.SetPongHandler(func(string) error {
		c.extendDeadline(conn)
		return nil
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.extendDeadline(conn)

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("rpc: malformed message", anthillstore.Fields{"err": err})
			continue
		}
		if msg.ID == nil {
			if msg.Method != "" && c.opts.OnNotification != nil {
				c.opts.OnNotification(msg.Method, msg.Params)
			}
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[*msg.ID]
		delete(c.pending, *msg.ID)
		c.mu.Unlock()
		if ok {
			ch <- outcome{msg: &msg}
		}
	}
}

// heartbeat pings every interval; the read deadline (two intervals) catches a
// peer that stopped answering.
func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) error {
	if c.opts.Heartbeat < 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(c.opts.Heartbeat)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			deadline := time.Now().Add(c.opts.Heartbeat)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return fmt.Errorf("rpc: ping: %w", err)
			}
		}
	}
}

func (c *Client) extendDeadline(conn *websocket.Conn) {
	if c.opts.Heartbeat < 0 {
		_ = conn.SetReadDeadline(time.Time{})
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * c.opts.Heartbeat))
}

func (c *Client) reconnect() (*websocket.Conn, error) {
	backoff := c.opts.ConnectTimeout
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		if c.opts.OnReconnecting != nil {
			c.opts.OnReconnecting(attempt)
		}
		select {
		case <-c.done:
			return nil, ErrClosed
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.ConnectTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err == nil {
			if !c.attach(conn) {
				_ = conn.Close()
				return nil, ErrClosed
			}
			return conn, nil
		}
		lastErr = err
		c.log.Debug("rpc reconnect attempt failed", anthillstore.Fields{"attempt": attempt, "err": err})

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, fmt.Errorf("rpc: %d reconnect attempts failed: %w", c.opts.MaxRetries, lastErr)
}
