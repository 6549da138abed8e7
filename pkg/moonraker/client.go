// Package moonraker implements a JSON-RPC 2.0 client for the Moonraker
// WebSocket API. The client owns a reconnecting connection, correlates
// request/response pairs by id, and fans server notifications out to
// registered listeners on the UI goroutine.
package moonraker

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"helixscreen/pkg/errors"
	"helixscreen/pkg/log"
	"helixscreen/pkg/subject"
)

// ConnectionState describes the client's connection lifecycle.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

const (
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 30 * time.Second
	defaultCallTimeout    = 10 * time.Second
	writeTimeout          = 10 * time.Second
)

// NotificationHandler receives the params of a server-initiated
// notification. Invoked on the UI goroutine via the update queue.
type NotificationHandler func(params json.RawMessage)

// SubscriptionToken identifies a registered notification handler.
type SubscriptionToken uint64

// Config holds client configuration.
type Config struct {
	// Host and port of the Moonraker instance, e.g. "localhost:7125".
	Address string

	// Optional API key sent during connection identification.
	APIKey string

	// Queue that marshals notifications onto the UI goroutine. Required.
	Queue *subject.UpdateQueue

	// CallTimeout bounds each Call; zero means the default (10s).
	CallTimeout time.Duration
}

// Client is a Moonraker JSON-RPC 2.0 WebSocket client.
//
// Call is safe from any goroutine. Notification handlers always run on
// the UI goroutine. The client reconnects automatically with exponential
// backoff until Stop is called.
type Client struct {
	cfg    Config
	logger *log.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	state    ConnectionState
	running  bool
	closing  chan struct{}
	inflight map[int64]chan *rpcResult

	subMu     sync.Mutex
	nextToken uint64
	subs      map[string]map[SubscriptionToken]NotificationHandler

	stateMu       sync.Mutex
	stateHandlers map[SubscriptionToken]func(ConnectionState)

	nextID int64

	writeMu sync.Mutex
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      *int64          `json:"id,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a client for the given configuration. The client is
// idle until Start is called.
func NewClient(cfg Config) *Client {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &Client{
		cfg:           cfg,
		logger:        log.New("Moonraker"),
		state:         StateDisconnected,
		inflight:      make(map[int64]chan *rpcResult),
		subs:          make(map[string]map[SubscriptionToken]NotificationHandler),
		stateHandlers: make(map[SubscriptionToken]func(ConnectionState)),
	}
}

// Start begins the connect/reconnect loop. Idempotent: a second call on
// a running client is a no-op.
func (c *Client) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.closing = make(chan struct{})
	c.mu.Unlock()

	go c.connectLoop()
}

// Stop closes the connection and halts reconnection. All in-flight calls
// fail with a transport error.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.closing)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.failInflight(errors.TransportError("client stopped"))
	c.setState(StateDisconnected)
}

// State returns the current connection state. Safe from any goroutine.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether a live connection is established.
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// OnStateChange registers fn to run (on the UI goroutine) whenever the
// connection state changes. Returns a token for Unsubscribe.
func (c *Client) OnStateChange(fn func(ConnectionState)) SubscriptionToken {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.nextToken++
	tok := SubscriptionToken(c.nextToken)
	c.stateHandlers[tok] = fn
	return tok
}

// SubscribeMethod registers a handler for a server notification method
// (e.g. "notify_status_update"). Multiple handlers per method are
// allowed; each gets its own token.
func (c *Client) SubscribeMethod(method string, fn NotificationHandler) SubscriptionToken {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextToken++
	tok := SubscriptionToken(c.nextToken)
	m, ok := c.subs[method]
	if !ok {
		m = make(map[SubscriptionToken]NotificationHandler)
		c.subs[method] = m
	}
	m[tok] = fn
	return tok
}

// Unsubscribe removes a notification or state-change handler.
func (c *Client) Unsubscribe(tok SubscriptionToken) {
	c.subMu.Lock()
	for method, m := range c.subs {
		if _, ok := m[tok]; ok {
			delete(m, tok)
			if len(m) == 0 {
				delete(c.subs, method)
			}
			c.subMu.Unlock()
			return
		}
	}
	c.subMu.Unlock()

	c.stateMu.Lock()
	delete(c.stateHandlers, tok)
	c.stateMu.Unlock()
}

// Call issues a JSON-RPC request and blocks until the response arrives,
// the call times out, or the connection drops. Safe from any goroutine;
// must not be called from the UI goroutine while it is draining (use
// CallAsync there).
func (c *Client) Call(method string, params any, result any) error {
	raw, err := c.callRaw(method, params)
	if err != nil {
		return err
	}
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return errors.ParseError(fmt.Sprintf("decode %s result", method), err)
	}
	return nil
}

// CallAsync issues a request on a background goroutine and posts done to
// the UI goroutine with the outcome. Intended for UI event handlers.
func (c *Client) CallAsync(method string, params any, done func(result json.RawMessage, err error)) {
	go func() {
		raw, err := c.callRaw(method, params)
		if done == nil {
			return
		}
		c.cfg.Queue.Post(func() { done(raw, err) })
	}()
}

func (c *Client) callRaw(method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return nil, errors.TransportError(fmt.Sprintf("not connected (%s)", c.state))
	}
	conn := c.conn
	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan *rpcResult, 1)
	c.inflight[id] = ch
	c.mu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: id}
	if err := c.writeJSON(conn, &req); err != nil {
		c.mu.Lock()
		delete(c.inflight, id)
		c.mu.Unlock()
		return nil, errors.TransportError(fmt.Sprintf("write %s: %v", method, err))
	}

	timer := time.NewTimer(c.cfg.CallTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.result, res.err
	case <-timer.C:
		c.mu.Lock()
		delete(c.inflight, id)
		c.mu.Unlock()
		return nil, errors.TimeoutError(method)
	}
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// connectLoop dials, runs the reader until disconnect, then retries with
// exponential backoff. Exits when Stop is called.
func (c *Client) connectLoop() {
	delay := reconnectInitialDelay
	first := true

	for {
		c.mu.Lock()
		if !c.running {
			c.mu.Unlock()
			return
		}
		closing := c.closing
		c.mu.Unlock()

		if first {
			c.setState(StateConnecting)
		} else {
			c.setState(StateReconnecting)
		}

		conn, err := c.dial()
		if err != nil {
			c.logger.Warn("connect to %s failed: %v (retry in %s)",
				c.cfg.Address, err, delay)
			select {
			case <-closing:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			first = false
			continue
		}

		c.mu.Lock()
		if !c.running {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		// Successful connect resets the backoff window.
		delay = reconnectInitialDelay
		first = false
		c.setState(StateConnected)
		c.logger.Info("connected to %s", c.cfg.Address)

		c.identify(conn)
		c.readLoop(conn)

		c.mu.Lock()
		running := c.running
		c.conn = nil
		c.mu.Unlock()
		c.failInflight(errors.TransportError("connection lost"))

		if !running {
			return
		}
		c.logger.Warn("connection to %s lost", c.cfg.Address)
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: c.cfg.Address, Path: "/websocket"}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	return conn, err
}

// identify announces the client to Moonraker so it appears in the
// server's connection list. Failure is non-fatal.
func (c *Client) identify(conn *websocket.Conn) {
	params := map[string]any{
		"client_name": "HelixScreen",
		"version":     "1.0",
		"type":        "display",
		"url":         "https://github.com/helixscreen/helixscreen",
	}
	if c.cfg.APIKey != "" {
		params["api_key"] = c.cfg.APIKey
	}

	id := atomic.AddInt64(&c.nextID, 1)
	req := rpcRequest{JSONRPC: "2.0", Method: "server.connection.identify", Params: params, ID: id}
	if err := c.writeJSON(conn, &req); err != nil {
		c.logger.Warn("identify failed: %v", err)
	}
}

// readLoop decodes frames until the connection errors. Responses resolve
// in-flight calls directly; notifications are posted to the UI goroutine.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}

		var msg rpcMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("malformed frame: %v", err)
			continue
		}

		if msg.ID != nil {
			c.resolveCall(*msg.ID, &msg)
			continue
		}
		if msg.Method != "" {
			c.dispatchNotification(msg.Method, msg.Params)
		}
	}
}

func (c *Client) resolveCall(id int64, msg *rpcMessage) {
	c.mu.Lock()
	ch, ok := c.inflight[id]
	if ok {
		delete(c.inflight, id)
	}
	c.mu.Unlock()
	if !ok {
		// Timed-out or identify response; drop it.
		return
	}

	if msg.Error != nil {
		ch <- &rpcResult{err: errors.ServerError(msg.Error.Code, msg.Error.Message)}
		return
	}
	ch <- &rpcResult{result: msg.Result}
}

func (c *Client) dispatchNotification(method string, params json.RawMessage) {
	c.subMu.Lock()
	m := c.subs[method]
	handlers := make([]NotificationHandler, 0, len(m))
	for _, fn := range m {
		handlers = append(handlers, fn)
	}
	c.subMu.Unlock()

	if len(handlers) == 0 {
		return
	}
	c.cfg.Queue.Post(func() {
		for _, fn := range handlers {
			fn(params)
		}
	})
}

func (c *Client) failInflight(err error) {
	c.mu.Lock()
	pending := c.inflight
	c.inflight = make(map[int64]chan *rpcResult)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- &rpcResult{err: err}
	}
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	c.stateMu.Lock()
	handlers := make([]func(ConnectionState), 0, len(c.stateHandlers))
	for _, fn := range c.stateHandlers {
		handlers = append(handlers, fn)
	}
	c.stateMu.Unlock()

	if len(handlers) == 0 {
		return
	}
	c.cfg.Queue.Post(func() {
		for _, fn := range handlers {
			fn(s)
		}
	})
}
