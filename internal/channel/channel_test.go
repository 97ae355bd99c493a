package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"algo-dashboard/internal/mockbackend"
	"algo-dashboard/internal/types"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// session drives one accepted websocket connection on the test server.
type session func(conn *websocket.Conn, r *http.Request)

func newSocketServer(t *testing.T, fn session) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
			http.Error(w, "bad transport", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)
		fn(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func open(conn *websocket.Conn, pingInterval int) bool {
	frame, _ := mockbackend.EncodeOpen(mockbackend.OpenInfo{SID: "eio-sid", Upgrades: []string{}, PingInterval: pingInterval, PingTimeout: 1000})
	if conn.WriteMessage(websocket.TextMessage, frame) != nil {
		return false
	}
	_, msg, err := conn.ReadMessage()
	return err == nil && strings.HasPrefix(string(msg), "40")
}

// accept performs the server side of the Engine.IO and namespace handshake.
func accept(conn *websocket.Conn, pingInterval int) bool {
	if !open(conn, pingInterval) {
		return false
	}
	ack, _ := mockbackend.EncodeConnect("/", map[string]string{"sid": "sio-sid"})
	return conn.WriteMessage(websocket.TextMessage, ack) == nil
}

// drain reads until the client goes away, forwarding frames to out.
func drain(conn *websocket.Conn, out chan<- string) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case out <- string(msg):
		default:
		}
	}
}

type recorder struct {
	mu     sync.Mutex
	events map[string][]string
}

func newRecorder(c *Client, events ...string) *recorder {
	r := &recorder{events: make(map[string][]string)}
	for _, ev := range events {
		ev := ev
		c.On(ev, func(payload json.RawMessage) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events[ev] = append(r.events[ev], string(payload))
		})
	}
	return r
}

func (r *recorder) get(event string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events[event]...)
}

func newTestClient(t *testing.T, url string, opts Options) *Client {
	t.Helper()
	opts.URL = url
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = 10 * time.Millisecond
		opts.ReconnectDelayMax = 20 * time.Millisecond
	}
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestResolve(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{in: "http://localhost:5000", want: Target{URI: "http://localhost:5000/", Path: "/socket.io"}},
		{in: "https://algo4all.in/socket.io/", want: Target{URI: "https://algo4all.in/", Path: "/socket.io"}},
		{in: "ws://host/custom", want: Target{URI: "http://host/", Path: "/custom"}},
		{in: "wss://host:8443/", want: Target{URI: "https://host:8443/", Path: "/socket.io"}},
		{in: "ftp://host", wantErr: true},
		{in: "http://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Resolve(tt.in, "/")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := Resolve("http://host", "/admin")
	require.NoError(t, err)
	assert.Equal(t, "http://host/admin", got.URI)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Options{URL: "ftp://host"})
	assert.Error(t, err)
}

func TestClientReceivesEvents(t *testing.T) {
	fromClient := make(chan string, 8)
	cookies := make(chan string, 1)
	srv, _ := newSocketServer(t, func(conn *websocket.Conn, r *http.Request) {
		if ck, err := r.Cookie("session"); err == nil {
			cookies <- ck.Value
		}
		if !accept(conn, 25000) {
			return
		}
		update, _ := mockbackend.EncodeEvent("/", types.EventMarketUpdate, map[string]any{"overall_market_trend": "CALL BUY"})
		_ = conn.WriteMessage(websocket.TextMessage, update)
		note, _ := mockbackend.EncodeEvent("/", types.EventTradeNotification, map[string]string{"message": "Trade placed"})
		_ = conn.WriteMessage(websocket.TextMessage, note)
		drain(conn, fromClient)
	})

	c := newTestClient(t, srv.URL, Options{Cookies: []*http.Cookie{{Name: "session", Value: "abc"}}})
	rec := newRecorder(c, types.EventConnect, types.EventMarketUpdate, types.EventTradeNotification)
	require.NoError(t, c.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return len(rec.get(types.EventMarketUpdate)) == 1 && len(rec.get(types.EventTradeNotification)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, rec.get(types.EventConnect), 1)
	assert.JSONEq(t, `{"overall_market_trend":"CALL BUY"}`, rec.get(types.EventMarketUpdate)[0])
	assert.JSONEq(t, `{"message":"Trade placed"}`, rec.get(types.EventTradeNotification)[0])
	select {
	case got := <-cookies:
		assert.Equal(t, "abc", got)
	default:
		t.Fatal("session cookie was not sent on the upgrade request")
	}
	assert.True(t, c.Connected())

	require.NoError(t, c.Emit(context.Background(), "client_ready", map[string]bool{"ok": true}))
	require.Eventually(t, func() bool {
		for {
			select {
			case msg := <-fromClient:
				if msg == `42["client_ready",{"ok":true}]` {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClientReplacesHandler(t *testing.T) {
	srv, _ := newSocketServer(t, func(conn *websocket.Conn, r *http.Request) {
		if !accept(conn, 25000) {
			return
		}
		note, _ := mockbackend.EncodeEvent("/", types.EventTradeNotification, map[string]string{"message": "x"})
		_ = conn.WriteMessage(websocket.TextMessage, note)
		drain(conn, make(chan string, 1))
	})

	c := newTestClient(t, srv.URL, Options{})
	var first, second atomic.Int32
	c.On(types.EventTradeNotification, func(json.RawMessage) { first.Add(1) })
	c.On(types.EventTradeNotification, func(json.RawMessage) { second.Add(1) })
	require.NoError(t, c.Connect(context.Background()))

	require.Eventually(t, func() bool { return second.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, first.Load())
}

func TestClientAnswersPing(t *testing.T) {
	fromClient := make(chan string, 8)
	srv, _ := newSocketServer(t, func(conn *websocket.Conn, r *http.Request) {
		if !accept(conn, 25000) {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte{mockbackend.EnginePing})
		drain(conn, fromClient)
	})

	c := newTestClient(t, srv.URL, Options{})
	require.NoError(t, c.Connect(context.Background()))

	select {
	case msg := <-fromClient:
		assert.Equal(t, "3", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("client never answered the ping")
	}
}

func TestClientReconnectsAfterTransportClose(t *testing.T) {
	srv, conns := newSocketServer(t, func(conn *websocket.Conn, r *http.Request) {
		if !accept(conn, 25000) {
			return
		}
		if conns.Load() == 1 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte{mockbackend.EngineClose})
			return
		}
		drain(conn, make(chan string, 1))
	})

	c := newTestClient(t, srv.URL, Options{})
	rec := newRecorder(c, types.EventConnect, types.EventDisconnect)
	require.NoError(t, c.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return len(rec.get(types.EventConnect)) == 2
	}, 3*time.Second, 10*time.Millisecond)

	disconnects := rec.get(types.EventDisconnect)
	require.Len(t, disconnects, 1)
	assert.Equal(t, `"transport close"`, disconnects[0])
	assert.Equal(t, int32(2), conns.Load())
}

func TestClientServerDisconnectStopsReconnecting(t *testing.T) {
	srv, conns := newSocketServer(t, func(conn *websocket.Conn, r *http.Request) {
		if !accept(conn, 25000) {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, mockbackend.EncodeDisconnect("/"))
		drain(conn, make(chan string, 1))
	})

	c := newTestClient(t, srv.URL, Options{})
	rec := newRecorder(c, types.EventDisconnect)
	require.NoError(t, c.Connect(context.Background()))

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client kept the channel open after a server disconnect")
	}
	assert.Equal(t, []string{`"io server disconnect"`}, rec.get(types.EventDisconnect))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), conns.Load())
}

func TestClientConnectErrorStopsReconnecting(t *testing.T) {
	srv, conns := newSocketServer(t, func(conn *websocket.Conn, r *http.Request) {
		if !open(conn, 25000) {
			return
		}
		rejected, _ := mockbackend.EncodeConnectError("/", "unauthorized", map[string]string{"reason": "session"})
		_ = conn.WriteMessage(websocket.TextMessage, rejected)
		drain(conn, make(chan string, 1))
	})

	c := newTestClient(t, srv.URL, Options{})
	rec := newRecorder(c, types.EventConnect, types.EventConnectError)
	require.NoError(t, c.Connect(context.Background()))

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client kept reconnecting after the server rejected it")
	}
	require.Len(t, rec.get(types.EventConnectError), 1)
	assert.JSONEq(t, `{"message":"unauthorized"}`, rec.get(types.EventConnectError)[0])
	assert.Empty(t, rec.get(types.EventConnect))
	assert.Equal(t, int32(1), conns.Load())
}

func TestClientMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, Options{MaxAttempts: 2})
	rec := newRecorder(c, types.EventConnectError)
	require.NoError(t, c.Connect(context.Background()))

	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("client did not give up")
	}
	// initial dial plus two reconnects
	assert.Len(t, rec.get(types.EventConnectError), 3)
	for _, payload := range rec.get(types.EventConnectError) {
		assert.Contains(t, payload, "message")
	}
}

func TestClientCloseDispatchesDisconnect(t *testing.T) {
	srv, _ := newSocketServer(t, func(conn *websocket.Conn, r *http.Request) {
		if !accept(conn, 25000) {
			return
		}
		drain(conn, make(chan string, 1))
	})

	c := newTestClient(t, srv.URL, Options{})
	rec := newRecorder(c, types.EventConnect, types.EventDisconnect)
	require.NoError(t, c.Connect(context.Background()))
	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyStarted)

	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Close())

	assert.Equal(t, []string{`"io client disconnect"`}, rec.get(types.EventDisconnect))
	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.Emit(context.Background(), "x", nil), ErrNotConnected)
	<-c.Done()
}

func TestClientClosesWithContext(t *testing.T) {
	srv, _ := newSocketServer(t, func(conn *websocket.Conn, r *http.Request) {
		if !accept(conn, 25000) {
			return
		}
		drain(conn, make(chan string, 1))
	})

	c := newTestClient(t, srv.URL, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Connect(ctx))
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancelling the context did not close the channel")
	}
	assert.False(t, c.Connected())
}
