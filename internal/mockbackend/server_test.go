package mockbackend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"algo-dashboard/internal/api"
	"algo-dashboard/internal/channel"
	"algo-dashboard/internal/types"
	"algo-dashboard/internal/view"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 200 * time.Millisecond
		cfg.PingTimeout = 200 * time.Millisecond
	}
	s := New(cfg, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func openTrade(s *Server, side string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	strike := s.market.atmStrike()
	s.market.trade = &trade{
		Token:      instrumentKey(side, strike),
		Type:       side,
		Strike:     strike,
		EntryPrice: decimal.RequireFromString("120"),
		Premium:    decimal.RequireFromString("110"),
		OrderID:    "order-1",
		EntryTime:  time.Now(),
	}
}

func TestStateRendersOnDashboard(t *testing.T) {
	s, srv := newTestServer(t, Config{})
	openTrade(s, "CALL")

	backend := api.NewBackend(api.NewClient(api.WithBaseURL(srv.URL)), api.BackendParams{StatePath: StatePath})
	snap, err := backend.FetchSnapshot(context.Background())
	require.NoError(t, err)

	frame := view.Render(snap, indexName)
	assert.NotEqual(t, view.PlaceholderPrice, frame.Cells[view.FieldIndexLTP].Text)
	assert.Equal(t, "Strike 24500", frame.Cells[view.FieldCallStrike].Text)
	assert.Equal(t, "NSE_FO|NIFTY24500CE", frame.Cells[view.FieldCallKey].Text)
	assert.True(t, frame.TradeVisible())
	assert.Equal(t, "CALL 24500", frame.Cells[view.FieldTradeInstrument].Text)
	assert.Equal(t, "-750.00", frame.Cells[view.FieldTradePnL].Text)
	assert.Equal(t, view.ClassNegative, frame.Cells[view.FieldTradePnL].Class)
}

func TestStateWithoutTradeHasNullActiveTrade(t *testing.T) {
	_, srv := newTestServer(t, Config{})

	resp, err := http.Get(srv.URL + StatePath)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Equal(t, "null", string(raw["active_trade"]))
	assert.Contains(t, raw, "overall_market_trend")
	assert.Contains(t, raw, "indices_data")
	assert.Contains(t, raw, "final_trade_instruments")
}

func TestSessionCookieRequired(t *testing.T) {
	_, srv := newTestServer(t, Config{SessionCookieName: "session", SessionCookie: "secret"})

	resp, err := http.Get(srv.URL + StatePath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	backend := api.NewBackend(
		api.NewClient(api.WithBaseURL(srv.URL), api.WithCookie("session", "secret")),
		api.BackendParams{StatePath: StatePath},
	)
	_, err = backend.FetchSnapshot(context.Background())
	assert.NoError(t, err)
}

func TestSquareOff(t *testing.T) {
	s, srv := newTestServer(t, Config{})
	backend := api.NewBackend(api.NewClient(api.WithBaseURL(srv.URL)), api.BackendParams{})

	resp, err := backend.SendCommand(context.Background(), SquareOffPath)
	require.NoError(t, err)
	assert.Equal(t, "No active trade to square off.", resp.Message)

	openTrade(s, "PUT")
	resp, err = backend.SendCommand(context.Background(), SquareOffPath)
	require.NoError(t, err)
	assert.Equal(t, "Square-off order placed for PUT position.", resp.Message)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Nil(t, s.market.trade)
}

func TestLogoutLinkDiscovered(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	backend := api.NewBackend(api.NewClient(api.WithBaseURL(srv.URL)), api.BackendParams{DashboardPath: DashboardPath})

	target, err := backend.LogoutURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+LogoutPath, target)
	assert.NoError(t, backend.Navigate(context.Background(), target))
}

func TestSocketPushesUpdatesAndNotifications(t *testing.T) {
	s, srv := newTestServer(t, Config{})

	client, err := channel.New(channel.Options{URL: srv.URL, ReconnectDelay: 10 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	updates := make(chan *types.MarketSnapshot, 16)
	notes := make(chan string, 4)
	client.On(types.EventMarketUpdate, func(p json.RawMessage) {
		snap, err := types.DecodeSnapshot(p)
		if err == nil {
			updates <- snap
		}
	})
	client.On(types.EventTradeNotification, func(p json.RawMessage) {
		var n types.TradeNotification
		if json.Unmarshal(p, &n) == nil {
			notes <- n.Message
		}
	})
	require.NoError(t, client.Connect(context.Background()))

	select {
	case snap := <-updates:
		assert.Nil(t, snap.ActiveTrade)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial market_update")
	}
	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.Tick()
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("no market_update after tick")
	}

	openTrade(s, "CALL")
	backend := api.NewBackend(api.NewClient(api.WithBaseURL(srv.URL)), api.BackendParams{})
	_, err = backend.SendCommand(context.Background(), SquareOffPath)
	require.NoError(t, err)

	select {
	case msg := <-notes:
		assert.Equal(t, "Exited CALL (Manual Square-Off)", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no trade_notification after square-off")
	}
}

func TestSocketSurvivesPings(t *testing.T) {
	s, srv := newTestServer(t, Config{PingInterval: 30 * time.Millisecond, PingTimeout: 30 * time.Millisecond})

	client, err := channel.New(channel.Options{URL: srv.URL})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Connect(context.Background()))

	require.Eventually(t, client.Connected, 2*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.True(t, client.Connected())
	assert.Equal(t, 1, s.Clients())
}

func TestSocketRejectsMissingSession(t *testing.T) {
	_, srv := newTestServer(t, Config{SessionCookieName: "session", SessionCookie: "secret"})

	client, err := channel.New(channel.Options{URL: srv.URL})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	errs := make(chan string, 1)
	client.On(types.EventConnectError, func(p json.RawMessage) {
		var e struct {
			Message string `json:"message"`
		}
		json.Unmarshal(p, &e)
		select {
		case errs <- e.Message:
		default:
		}
	})
	require.NoError(t, client.Connect(context.Background()))

	select {
	case msg := <-errs:
		assert.Equal(t, "unauthorized", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no connect_error")
	}
}

func TestSocketRequiresWebsocketTransport(t *testing.T) {
	_, srv := newTestServer(t, Config{})

	resp, err := http.Get(srv.URL + SocketPath + "?EIO=4&transport=polling")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
