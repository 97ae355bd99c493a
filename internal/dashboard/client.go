package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"algo-dashboard/internal/interfaces"
	"algo-dashboard/internal/logger"
	"algo-dashboard/internal/store"
	"algo-dashboard/internal/types"
	"algo-dashboard/internal/view"
)

var (
	ErrActionInFlight = errors.New("action already in progress")
	ErrDeclined       = errors.New("declined by user")
	ErrUnknownAction  = errors.New("unknown action")
)

// Status and alert texts.
const (
	MsgConnecting    = "Connecting..."
	MsgConnected     = "Live connection established. Monitoring market..."
	MsgDisconnected  = "Connection Lost! Attempting to reconnect..."
	MsgTradePlaced   = "Trade Placed! Now managing position."
	MsgFetchFailed   = "Could not load dashboard state. Waiting for live data..."
	MsgLoggingOut    = "Logging out..."
	MsgLogoutFailed  = "Logout failed. Check server logs."
	LogoutConfirm    = "Are you sure you want to log out?"
	tradeAlertFormat = "🔔 TRADE ALERT 🔔\n\n%s"
)

const eventQueueSize = 64

// Params wires a Client to its backend, channel and host.
type Params struct {
	Backend   interfaces.Backend
	Channel   interfaces.Channel
	Surface   *view.Surface
	Confirmer interfaces.Confirmer
	Alerter   interfaces.Alerter
	Navigator interfaces.Navigator
	// Journal is optional.
	Journal interfaces.Journal

	Actions      []store.ActionConfig
	PrimaryIndex string
}

// control gates one command so at most one request is in flight.
type control struct {
	cfg      store.ActionConfig
	inFlight atomic.Bool
}

// Client keeps the surface in sync with the backend's snapshot and relays
// user commands. Every surface update runs on the Run goroutine.
type Client struct {
	p        Params
	controls map[string]*control

	events    chan func()
	stopped   chan struct{}
	stopOnce  sync.Once
	gotPush   bool
	closeOnce sync.Once
}

var _ interfaces.Dashboard = (*Client)(nil)

// New builds a client and paints each control in its idle state.
func New(p Params) (*Client, error) {
	if p.Backend == nil || p.Channel == nil || p.Surface == nil {
		return nil, errors.New("dashboard: backend, channel and surface are required")
	}
	if p.Confirmer == nil || p.Alerter == nil || p.Navigator == nil {
		return nil, errors.New("dashboard: confirmer, alerter and navigator are required")
	}
	c := &Client{
		p:        p,
		controls: make(map[string]*control, len(p.Actions)),
		events:   make(chan func(), eventQueueSize),
		stopped:  make(chan struct{}),
	}
	for _, a := range p.Actions {
		c.controls[a.Name] = &control{cfg: a}
		p.Surface.SetControl(a.Name, view.ControlState{Label: a.Label, Enabled: true})
	}
	p.Surface.SetStatus(view.StatusConnecting, MsgConnecting)
	return c, nil
}

// Run executes queued surface updates until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	defer c.stopOnce.Do(func() { close(c.stopped) })
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-c.events:
			fn()
		}
	}
}

// post queues fn for the Run goroutine. It is dropped once Run has exited.
func (c *Client) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.stopped:
	}
}

// FetchInitialSnapshot pulls the current state once. A failure is logged and
// shown on the status line; the surface keeps its placeholders.
func (c *Client) FetchInitialSnapshot(ctx context.Context) error {
	snap, err := c.p.Backend.FetchSnapshot(context.WithoutCancel(ctx))
	if err != nil {
		logger.ErrorWithErr(ctx, "Error fetching initial dashboard state", err)
		c.post(func() {
			c.p.Surface.SetStatus(view.StatusError, MsgFetchFailed)
		})
		return fmt.Errorf("initial snapshot: %w", err)
	}
	c.post(func() {
		// a push that already landed is newer than this pull
		if c.gotPush {
			logger.Debug(ctx, "Skipping initial snapshot, live data already rendered")
			return
		}
		c.render(ctx, "fetch", snap)
	})
	return nil
}

// OnSnapshotPush renders one market_update payload as a full replacement.
func (c *Client) OnSnapshotPush(payload json.RawMessage) {
	ctx := context.Background()
	snap, err := types.DecodeSnapshot(payload)
	if err != nil {
		logger.Warn(ctx, "Ignoring undecodable market update", "error", err, "bytes", len(payload))
		return
	}
	c.post(func() {
		c.gotPush = true
		c.render(ctx, "push", snap)
	})
}

func (c *Client) render(ctx context.Context, source string, snap *types.MarketSnapshot) {
	frame := view.Render(snap, c.p.PrimaryIndex)
	c.p.Surface.Apply(frame)
	logger.Snapshot(ctx, source, string(frame.Trend), frame.TradeVisible(),
		"ltp", frame.Cells[view.FieldIndexLTP].Text,
		"pnl", frame.Cells[view.FieldTradePnL].Text,
	)
}

// ConnectLiveChannel registers the channel handlers and starts the channel.
// Reconnecting is the channel's job; the client only tracks the status.
func (c *Client) ConnectLiveChannel(ctx context.Context) error {
	ch := c.p.Channel
	ch.On(types.EventConnect, func(json.RawMessage) {
		c.post(func() { c.p.Surface.SetStatus(view.StatusConnected, MsgConnected) })
		c.journal(ctx, types.JournalEntry{Kind: types.JournalConnection, Name: types.EventConnect, OK: true})
	})
	ch.On(types.EventDisconnect, func(payload json.RawMessage) {
		reason := types.Value{}
		_ = reason.UnmarshalJSON(payload)
		c.post(func() { c.p.Surface.SetStatus(view.StatusDisconnected, MsgDisconnected) })
		c.journal(ctx, types.JournalEntry{Kind: types.JournalConnection, Name: types.EventDisconnect, Message: reason.Text()})
	})
	ch.On(types.EventConnectError, func(payload json.RawMessage) {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payload, &e)
		logger.Error(ctx, "Socket.IO connection error", "message", e.Message)
		c.journal(ctx, types.JournalEntry{Kind: types.JournalConnection, Name: types.EventConnectError, Message: e.Message})
	})
	ch.On(types.EventMarketUpdate, c.OnSnapshotPush)
	ch.On(types.EventTradeNotification, c.onTradeNotification)

	if err := ch.Connect(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Failed to start live channel", err)
		c.post(func() { c.p.Surface.SetStatus(view.StatusError, err.Error()) })
		return fmt.Errorf("connect live channel: %w", err)
	}
	return nil
}

func (c *Client) onTradeNotification(payload json.RawMessage) {
	ctx := context.Background()
	var n types.TradeNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		logger.Warn(ctx, "Ignoring undecodable trade notification", "error", err)
		return
	}
	logger.Info(ctx, "Received trade notification", "message", n.Message)
	c.journal(ctx, types.JournalEntry{Kind: types.JournalNotification, Name: types.EventTradeNotification, Message: n.Message, OK: true})
	c.post(func() {
		c.p.Alerter.Alert(fmt.Sprintf(tradeAlertFormat, n.Message))
		c.p.Surface.SetStatus(view.StatusTradeActive, MsgTradePlaced)
	})
}

// SubmitEmergencyAction asks for confirmation, disables the control, sends
// exactly one request and re-enables the control with an alert whatever the
// outcome. Once sent the request runs to completion even if ctx is
// cancelled.
func (c *Client) SubmitEmergencyAction(ctx context.Context, name string) (types.CommandResponse, error) {
	ctl, ok := c.controls[name]
	if !ok {
		return types.CommandResponse{}, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	if ctl.inFlight.Load() {
		return types.CommandResponse{}, fmt.Errorf("%s: %w", name, ErrActionInFlight)
	}
	if !c.p.Confirmer.Confirm(ctl.cfg.Confirm) {
		logger.Info(ctx, "Command declined", "command", name)
		return types.CommandResponse{}, fmt.Errorf("%s: %w", name, ErrDeclined)
	}
	if !ctl.inFlight.CompareAndSwap(false, true) {
		return types.CommandResponse{}, fmt.Errorf("%s: %w", name, ErrActionInFlight)
	}

	c.post(func() {
		c.p.Surface.SetControl(name, view.ControlState{Label: ctl.cfg.BusyLabel, Enabled: false})
	})

	resp, err := c.p.Backend.SendCommand(context.WithoutCancel(ctx), ctl.cfg.Path)

	message := resp.Message
	if message == "" {
		message = ctl.cfg.SuccessMessage
		if err != nil {
			message = ctl.cfg.FailureMessage
		}
	}
	logger.Command(ctx, name, err == nil, message)
	entry := types.JournalEntry{Kind: types.JournalCommand, Name: name, Message: message, OK: err == nil}
	if err != nil {
		entry.Extra = map[string]any{"error": err.Error()}
	}
	c.journal(ctx, entry)

	c.post(func() {
		c.p.Alerter.Alert(message)
		c.p.Surface.SetControl(name, view.ControlState{Label: ctl.cfg.Label, Enabled: true})
		ctl.inFlight.Store(false)
	})

	if err != nil {
		return types.CommandResponse{Message: message}, fmt.Errorf("%s: %w", name, err)
	}
	return types.CommandResponse{Message: message}, nil
}

// Logout confirms, shows the logging-out status and navigates to the
// server's logout location.
func (c *Client) Logout(ctx context.Context) error {
	if !c.p.Confirmer.Confirm(LogoutConfirm) {
		return fmt.Errorf("logout: %w", ErrDeclined)
	}
	ctx = context.WithoutCancel(ctx)

	target, err := c.p.Backend.LogoutURL(ctx)
	if err == nil {
		c.post(func() { c.p.Surface.SetStatus(view.StatusInfo, MsgLoggingOut) })
		err = c.p.Navigator.Navigate(ctx, target)
	}
	c.journal(ctx, types.JournalEntry{Kind: types.JournalCommand, Name: "logout", OK: err == nil, Message: target})
	if err != nil {
		logger.ErrorWithErr(ctx, "Logout failed", err)
		c.post(func() {
			c.p.Alerter.Alert(MsgLogoutFailed)
			c.p.Surface.SetStatus(view.StatusError, MsgLogoutFailed)
		})
		return fmt.Errorf("logout: %w", err)
	}
	logger.Info(ctx, "Logged out", "url", target)
	return nil
}

// Actions returns the configured commands in declaration order.
func (c *Client) Actions() []store.ActionConfig {
	return append([]store.ActionConfig(nil), c.p.Actions...)
}

// Close stops the live channel.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.p.Channel.Close() })
	return err
}

func (c *Client) journal(ctx context.Context, e types.JournalEntry) {
	if c.p.Journal == nil {
		return
	}
	if err := c.p.Journal.Append(e); err != nil {
		logger.ErrorWithErr(ctx, "Failed to write journal entry", err, "kind", e.Kind, "name", e.Name)
	}
}
