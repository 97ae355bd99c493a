package terminal

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"algo-dashboard/internal/dashboard"
	"algo-dashboard/internal/store"
	"algo-dashboard/internal/types"
	"algo-dashboard/internal/view"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const liveSnapshot = `{
  "overall_market_trend": "CALL_BUY",
  "indices_data": {"NIFTY": {"ltp": 24500.125, "signal": "BULLISH", "sma_10": 24480, "sma_25": 24410.5, "sma_50": 24300, "sma_100": 24100}},
  "final_trade_instruments": {"atm_strike": 24500, "expiry_date": "2025-01-30",
    "atm_call": {"instrument_key": "NSE_FO|111", "strike_price": 24500},
    "atm_put": {"instrument_key": "NSE_FO|222", "strike_price": 24500}},
  "active_trade": {"instrument_token": "111", "type": "CALL", "entry_price": 120, "live_pnl": -12.5}
}`

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	screen  *Screen
	surface *view.Surface
	board   *view.Board
	out     *syncBuffer
}

func newFixture(t *testing.T, input string, actions ...store.ActionConfig) *fixture {
	t.Helper()
	board := view.NewBoard()
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, a.Name)
	}
	surface := view.NewSurface(board.Bindings(names...))
	out := &syncBuffer{}
	s := New(out, strings.NewReader(input), board, Options{
		PrimaryIndex: "NIFTY",
		Actions:      actions,
		NoColor:      true,
	})
	s.now = func() time.Time { return time.Date(2025, 1, 29, 4, 0, 0, 0, time.UTC) }
	return &fixture{screen: s, surface: surface, board: board, out: out}
}

func TestPaintLiveSnapshot(t *testing.T) {
	f := newFixture(t, "", store.DefaultSquareOff())
	snap, err := types.DecodeSnapshot([]byte(liveSnapshot))
	require.NoError(t, err)
	f.surface.Apply(view.Render(snap, "NIFTY"))
	f.surface.SetStatus(view.StatusConnected, dashboard.MsgConnected)
	f.surface.SetControl("square-off", view.ControlState{Label: "EMERGENCY SQUARE OFF", Enabled: true})

	out := f.screen.render()
	assert.Contains(t, out, "2025-01-29 09:30:00 IST")
	assert.Contains(t, out, dashboard.MsgConnected)
	assert.Contains(t, out, "CALL BUY")
	assert.Contains(t, out, "24500.13")
	assert.Contains(t, out, "BULLISH")
	assert.Contains(t, out, "NSE_FO|111")
	assert.Contains(t, out, "Active trade")
	assert.Contains(t, out, "CALL 24500")
	assert.Contains(t, out, "-12.50")
	assert.Contains(t, out, "[s] EMERGENCY SQUARE OFF")
	assert.NotContains(t, out, "No active trade")
}

func TestPaintPlaceholders(t *testing.T) {
	f := newFixture(t, "")

	out := f.screen.render()
	assert.Contains(t, out, "NEUTRAL")
	assert.Contains(t, out, view.PlaceholderPrice)
	assert.Contains(t, out, "No active trade")
	assert.NotContains(t, out, "Active trade")
	assert.NotContains(t, out, "Last alert")
}

func TestPaintBusyControl(t *testing.T) {
	f := newFixture(t, "", store.DefaultSquareOff())
	f.surface.SetControl("square-off", view.ControlState{Label: "Processing...", Enabled: false})

	assert.Contains(t, f.screen.render(), "[s] Processing...")
}

func TestPaintClearsWhenAsked(t *testing.T) {
	f := newFixture(t, "")
	f.screen.opts.Clear = true

	f.screen.Paint()
	assert.True(t, strings.HasPrefix(f.out.String(), clearScreen))
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" y \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			f := newFixture(t, tt.input)
			assert.Equal(t, tt.want, f.screen.Confirm("Sure?"))
			assert.Contains(t, f.out.String(), "Sure? [y/N]")
		})
	}
}

func TestAlertIsKept(t *testing.T) {
	f := newFixture(t, "")

	f.screen.Alert("🔔 TRADE ALERT 🔔\n\nBought NIFTY CE")
	assert.Contains(t, f.out.String(), "Bought NIFTY CE")
	assert.Contains(t, f.screen.render(), "Last alert: 🔔 TRADE ALERT 🔔  Bought NIFTY CE")
}

func TestPaintLoopRepaintsOnChange(t *testing.T) {
	f := newFixture(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.screen.PaintLoop(ctx)

	f.surface.SetStatus(view.StatusDisconnected, dashboard.MsgDisconnected)
	assert.Eventually(t, func() bool {
		return strings.Contains(f.out.String(), dashboard.MsgDisconnected)
	}, 2*time.Second, 20*time.Millisecond)
}

type fakeDashboard struct {
	mu        sync.Mutex
	actions   []string
	logouts   int
	logoutErr error
	actionErr error
}

func (d *fakeDashboard) Run(ctx context.Context) error                  { return nil }
func (d *fakeDashboard) FetchInitialSnapshot(ctx context.Context) error { return nil }
func (d *fakeDashboard) ConnectLiveChannel(ctx context.Context) error   { return nil }
func (d *fakeDashboard) Close() error                                   { return nil }

func (d *fakeDashboard) SubmitEmergencyAction(ctx context.Context, name string) (types.CommandResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, name)
	return types.CommandResponse{}, d.actionErr
}

func (d *fakeDashboard) Logout(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logouts++
	return d.logoutErr
}

func TestRunDispatchesActions(t *testing.T) {
	flatten := store.ActionConfig{Name: "flatten", Label: "FLATTEN"}
	f := newFixture(t, "s\n2\nFLATTEN\n9\nx\nq\ns\n", store.DefaultSquareOff(), flatten)
	d := &fakeDashboard{}

	require.NoError(t, f.screen.Run(context.Background(), d))

	assert.Equal(t, []string{"square-off", "flatten", "flatten"}, d.actions)
	out := f.out.String()
	assert.Contains(t, out, `Unknown command "9"`)
	assert.Contains(t, out, `Unknown command "x"`)
}

func TestRunReportsInFlight(t *testing.T) {
	f := newFixture(t, "s\n", store.DefaultSquareOff())
	d := &fakeDashboard{actionErr: fmt.Errorf("square-off: %w", dashboard.ErrActionInFlight)}

	require.NoError(t, f.screen.Run(context.Background(), d))
	assert.Contains(t, f.out.String(), "square-off is already in progress")
}

func TestRunLogoutQuits(t *testing.T) {
	f := newFixture(t, "l\ns\n", store.DefaultSquareOff())
	d := &fakeDashboard{}

	require.NoError(t, f.screen.Run(context.Background(), d))
	assert.Equal(t, 1, d.logouts)
	assert.Empty(t, d.actions)
}

func TestRunDeclinedLogoutContinues(t *testing.T) {
	f := newFixture(t, "l\ns\n", store.DefaultSquareOff())
	d := &fakeDashboard{logoutErr: fmt.Errorf("logout: %w", dashboard.ErrDeclined)}

	require.NoError(t, f.screen.Run(context.Background(), d))
	assert.Equal(t, 1, d.logouts)
	assert.Equal(t, []string{"square-off"}, d.actions)
}

func TestRunStopsOnCancel(t *testing.T) {
	board := view.NewBoard()
	s := New(&syncBuffer{}, blockingReader{}, board, Options{NoColor: true})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, &fakeDashboard{}) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestActionKey(t *testing.T) {
	assert.Equal(t, "s", actionKey(0))
	assert.Equal(t, "2", actionKey(1))
	assert.Equal(t, "3", actionKey(2))
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }
