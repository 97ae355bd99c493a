// Package channel puts the live push channel on a Socket.IO client. The
// client owns the Engine.IO transport, heartbeats and reconnection; this
// package maps its events onto JSON handlers.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"algo-dashboard/internal/interfaces"
	"algo-dashboard/internal/logger"
	"algo-dashboard/internal/types"

	eiotypes "github.com/zishang520/engine.io/v2/types"
	sio "github.com/zishang520/socket.io-client-go/socket"
)

const defaultHandshakeTimeout = 10 * time.Second

var (
	ErrNotConnected   = errors.New("channel is not connected")
	ErrAlreadyStarted = errors.New("channel already started")
)

// Options configures a Socket.IO client.
type Options struct {
	// URL of the Socket.IO endpoint. ws(s) is accepted for http(s) and an
	// empty path defaults to /socket.io/.
	URL       string
	Namespace string
	Cookies   []*http.Cookie
	Origin    string

	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
	Randomization     float64
	// MaxAttempts bounds consecutive failed reconnects; 0 is unlimited.
	MaxAttempts int

	HandshakeTimeout time.Duration
}

// Target is where the Socket.IO client dials.
type Target struct {
	// URI is scheme://host[:port]/namespace.
	URI string
	// Path is the Engine.IO mount point.
	Path string
}

// Client is a Socket.IO v5 channel over the websocket transport. After a
// lost transport the underlying client redials with exponential backoff; a
// server-side namespace disconnect or a rejected connect ends it for good.
type Client struct {
	opts   Options
	socket *sio.Socket

	handlersMu sync.RWMutex
	handlers   map[string]interfaces.Handler
	bound      map[string]bool

	mu      sync.Mutex
	started bool
	stop    func() bool
	done    chan struct{}
	ended   sync.Once
}

var _ interfaces.Channel = (*Client)(nil)

// New validates the options and builds an idle client.
func New(opts Options) (*Client, error) {
	if opts.Namespace == "" {
		opts.Namespace = "/"
	}
	target, err := Resolve(opts.URL, opts.Namespace)
	if err != nil {
		return nil, err
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	if opts.ReconnectDelayMax < opts.ReconnectDelay {
		opts.ReconnectDelayMax = 5 * opts.ReconnectDelay
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}

	socket, err := sio.Io(target.URI, socketOptions(opts, target))
	if err != nil {
		return nil, fmt.Errorf("invalid channel URL %q: %w", opts.URL, err)
	}

	c := &Client{
		opts:     opts,
		socket:   socket,
		handlers: make(map[string]interfaces.Handler),
		bound:    make(map[string]bool),
		done:     make(chan struct{}),
	}
	c.bindLifecycle()
	return c, nil
}

func socketOptions(opts Options, target Target) *sio.Options {
	o := sio.DefaultOptions()
	o.SetPath(target.Path)
	o.SetTransports(eiotypes.NewSet(sio.WebSocket))
	o.SetForceNew(true)
	o.SetAutoConnect(false)
	o.SetTimeout(opts.HandshakeTimeout)

	o.SetReconnection(true)
	o.SetReconnectionDelay(float64(opts.ReconnectDelay / time.Millisecond))
	o.SetReconnectionDelayMax(float64(opts.ReconnectDelayMax / time.Millisecond))
	o.SetRandomizationFactor(opts.Randomization)
	if opts.MaxAttempts > 0 {
		o.SetReconnectionAttempts(float64(opts.MaxAttempts))
	} else {
		o.SetReconnectionAttempts(math.Inf(1))
	}

	header := http.Header{}
	for _, ck := range opts.Cookies {
		if ck != nil && ck.Value != "" {
			header.Add("Cookie", ck.String())
		}
	}
	if opts.Origin != "" {
		header.Set("Origin", opts.Origin)
	}
	o.SetExtraHeaders(header)
	return o
}

// Resolve splits a channel URL into the namespace URI and the Engine.IO path.
func Resolve(raw, namespace string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid channel URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https":
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return Target{}, fmt.Errorf("invalid channel URL %q: unsupported scheme", raw)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("invalid channel URL %q: missing host", raw)
	}

	path := strings.TrimSuffix(u.Path, "/")
	if path == "" {
		path = "/socket.io"
	}
	if namespace == "" {
		namespace = "/"
	}
	return Target{
		URI:  (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: namespace}).String(),
		Path: path,
	}, nil
}

func (c *Client) bindLifecycle() {
	c.socket.On("connect", func(...any) {
		logger.Connection(context.Background(), "connected", "sid", c.socket.Id())
		c.dispatch(types.EventConnect, nil)
	})
	c.socket.On("disconnect", func(args ...any) {
		reason := "transport close"
		if len(args) > 0 {
			if s, ok := args[0].(string); ok {
				reason = s
			}
		}
		logger.Connection(context.Background(), "disconnected", "reason", reason)
		c.dispatchJSON(types.EventDisconnect, reason)
		if reason == "io server disconnect" {
			logger.Warn(context.Background(), "Live channel closed by server, not reconnecting")
			c.end()
		}
	})
	c.socket.On("connect_error", func(args ...any) {
		message := "connection rejected"
		if len(args) > 0 {
			if err, ok := args[0].(error); ok {
				message = err.Error()
			}
		}
		logger.Connection(context.Background(), "error", "error", message)
		c.dispatchJSON(types.EventConnectError, map[string]string{"message": message})
		if !c.socket.Active() {
			c.end()
		}
	})

	manager := c.socket.Io()
	manager.On("reconnect_attempt", func(args ...any) {
		logger.Info(context.Background(), "Live channel reconnecting", "attempt", first(args))
	})
	manager.On("reconnect_failed", func(...any) {
		logger.Warn(context.Background(), "Live channel reconnection failed", "attempts", c.opts.MaxAttempts)
		c.end()
	})
}

// On registers the handler for an event.
func (c *Client) On(event string, handler interfaces.Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[event] = handler
	if lifecycle(event) || c.bound[event] {
		return
	}
	c.bound[event] = true
	c.socket.On(eiotypes.EventName(event), func(args ...any) {
		if len(args) == 0 {
			c.dispatch(event, nil)
			return
		}
		c.dispatchJSON(event, args[0])
	})
}

// Connect opens the socket and returns; the connection proceeds in the
// background until ctx is cancelled or Close is called.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	c.stop = context.AfterFunc(ctx, func() { _ = c.Close() })
	c.socket.Connect()
	return nil
}

// Done is closed once the channel has stopped for good: after Close, a
// server disconnect, a rejected connect or exhausted reconnects.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Connected reports whether the namespace is currently joined.
func (c *Client) Connected() bool {
	return c.socket.Connected()
}

// Emit sends a named event on the namespace.
func (c *Client) Emit(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.socket.Connected() {
		return ErrNotConnected
	}
	var args []any
	if payload != nil {
		args = append(args, payload)
	}
	if err := c.socket.Emit(event, args...); err != nil {
		return fmt.Errorf("failed to emit %s: %w", event, err)
	}
	return nil
}

// Close leaves the namespace and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	started, stop := c.started, c.stop
	c.mu.Unlock()
	if !started {
		return nil
	}
	if stop != nil {
		stop()
	}
	c.socket.Disconnect()
	c.end()
	return nil
}

func (c *Client) end() {
	c.ended.Do(func() { close(c.done) })
}

func (c *Client) dispatch(event string, payload json.RawMessage) {
	c.handlersMu.RLock()
	h := c.handlers[event]
	c.handlersMu.RUnlock()
	if h == nil {
		return
	}
	h(payload)
}

func (c *Client) dispatchJSON(event string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Warn(context.Background(), "Dropping undecodable channel payload", "event", event, "error", err)
		return
	}
	c.dispatch(event, b)
}

func lifecycle(event string) bool {
	switch event {
	case types.EventConnect, types.EventDisconnect, types.EventConnectError:
		return true
	}
	return false
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
