// Package terminal hosts the dashboard in a text terminal: it paints the
// board, prompts for confirmation and shows alerts.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"algo-dashboard/internal/interfaces"
	"algo-dashboard/internal/store"
	"algo-dashboard/internal/view"

	"github.com/fatih/color"
)

const (
	clearScreen    = "\033[H\033[2J"
	repaintEvery   = 150 * time.Millisecond
	alertSeparator = "────────────────────────────────────────"
)

var ist = time.FixedZone("IST", 19800)

// Options configures a Screen.
type Options struct {
	Title        string
	PrimaryIndex string
	Actions      []store.ActionConfig
	NoColor      bool
	// Clear wipes the terminal before each paint.
	Clear bool
}

// Screen is the terminal host. It implements the confirm and alert host
// capabilities and repaints from a view.Board whenever the board changes.
type Screen struct {
	out   io.Writer
	board *view.Board
	opts  Options
	lines chan string

	outMu     sync.Mutex
	lastAlert string
	dirty     chan struct{}

	palette palette
	now     func() time.Time
}

var (
	_ interfaces.Confirmer = (*Screen)(nil)
	_ interfaces.Alerter   = (*Screen)(nil)
)

type palette struct {
	title, label, dim           *color.Color
	positive, negative, neutral *color.Color
	call, put                   *color.Color
	status                      map[view.StatusLevel]*color.Color
	alert                       *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		title:    color.New(color.FgHiWhite, color.Bold),
		label:    color.New(color.FgCyan),
		dim:      color.New(color.FgHiBlack),
		positive: color.New(color.FgGreen, color.Bold),
		negative: color.New(color.FgRed, color.Bold),
		neutral:  color.New(color.FgYellow),
		call:     color.New(color.FgBlack, color.BgGreen, color.Bold),
		put:      color.New(color.FgWhite, color.BgRed, color.Bold),
		alert:    color.New(color.FgHiYellow, color.Bold),
		status: map[view.StatusLevel]*color.Color{
			view.StatusConnecting:   color.New(color.FgHiBlack),
			view.StatusConnected:    color.New(color.FgBlue, color.Bold),
			view.StatusDisconnected: color.New(color.FgRed, color.Bold),
			view.StatusTradeActive:  color.New(color.FgGreen, color.Bold),
			view.StatusError:        color.New(color.FgRed),
			view.StatusInfo:         color.New(color.FgHiWhite),
		},
	}
	if noColor {
		for _, c := range []*color.Color{p.title, p.label, p.dim, p.positive, p.negative, p.neutral, p.call, p.put, p.alert} {
			c.DisableColor()
		}
		for _, c := range p.status {
			c.DisableColor()
		}
	}
	return p
}

// New builds a screen reading commands from in and painting to out.
func New(out io.Writer, in io.Reader, board *view.Board, opts Options) *Screen {
	if opts.Title == "" {
		opts.Title = "ALGO DASHBOARD"
	}
	s := &Screen{
		out:     out,
		board:   board,
		opts:    opts,
		lines:   make(chan string),
		dirty:   make(chan struct{}, 1),
		palette: newPalette(opts.NoColor),
		now:     time.Now,
	}
	go s.readLines(in)
	board.OnChange(s.markDirty)
	return s
}

func (s *Screen) readLines(in io.Reader) {
	defer close(s.lines)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		s.lines <- strings.TrimSpace(sc.Text())
	}
}

func (s *Screen) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Confirm prints the question and waits for a y/yes answer on the input.
// End of input counts as no.
func (s *Screen) Confirm(message string) bool {
	s.printf("\n%s [y/N]: ", s.palette.alert.Sprint(message))
	line, ok := <-s.lines
	if !ok {
		return false
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Alert prints a boxed message and keeps it on screen until the next one.
func (s *Screen) Alert(message string) {
	s.outMu.Lock()
	s.lastAlert = message
	s.outMu.Unlock()
	s.printf("\n%s\n%s\n%s\n", alertSeparator, s.palette.alert.Sprint(message), alertSeparator)
	s.markDirty()
}

func (s *Screen) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// Paint writes the whole board once.
func (s *Screen) Paint() {
	frame := s.render()
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.opts.Clear {
		io.WriteString(s.out, clearScreen)
	}
	io.WriteString(s.out, frame)
}

// PaintLoop repaints at most every repaintEvery while the board keeps
// changing, until ctx is done.
func (s *Screen) PaintLoop(ctx context.Context) {
	ticker := time.NewTicker(repaintEvery)
	defer ticker.Stop()
	pending := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.dirty:
			pending = true
		case <-ticker.C:
			if pending {
				s.Paint()
				pending = false
			}
		}
	}
}

func (s *Screen) render() string {
	p := s.palette
	b := s.board
	var w strings.Builder

	fmt.Fprintf(&w, "%s  %s\n", p.title.Sprint(s.opts.Title), p.dim.Sprint(s.now().In(ist).Format("2006-01-02 15:04:05 IST")))
	st := b.Status()
	statusColor := p.status[st.Level]
	if statusColor == nil {
		statusColor = p.dim
	}
	msg := st.Message
	if msg == "" {
		msg = "--"
	}
	fmt.Fprintf(&w, "%s %s\n\n", p.label.Sprint("Status:"), statusColor.Sprint(msg))

	fmt.Fprintf(&w, "%s %s\n\n", p.label.Sprint("Overall trend:"), s.trendBadge())

	fmt.Fprintf(&w, "%s\n", p.title.Sprint(s.opts.PrimaryIndex))
	fmt.Fprintf(&w, "  %s %-12s %s %s\n",
		p.label.Sprint("LTP   "), b.Cell(view.FieldIndexLTP).Text,
		p.label.Sprint("Signal"), b.Cell(view.FieldIndexSignal).Text)
	fmt.Fprintf(&w, "  %s %-12s %s %-12s %s %-12s %s %s\n\n",
		p.label.Sprint("SMA 10"), b.Cell(view.FieldIndexSMA10).Text,
		p.label.Sprint("SMA 25"), b.Cell(view.FieldIndexSMA25).Text,
		p.label.Sprint("SMA 50"), b.Cell(view.FieldIndexSMA50).Text,
		p.label.Sprint("SMA 100"), b.Cell(view.FieldIndexSMA100).Text)

	fmt.Fprintf(&w, "%s  %s %s\n", p.title.Sprint("ATM options"), p.label.Sprint("Expiry"), b.Cell(view.FieldExpiry).Text)
	fmt.Fprintf(&w, "  %s %-16s %s\n", p.label.Sprint("Call"), b.Cell(view.FieldCallStrike).Text, p.dim.Sprint(b.Cell(view.FieldCallKey).Text))
	fmt.Fprintf(&w, "  %s %-16s %s\n\n", p.label.Sprint("Put "), b.Cell(view.FieldPutStrike).Text, p.dim.Sprint(b.Cell(view.FieldPutKey).Text))

	if b.Visible(view.ToggleTradeSection) {
		pnl := b.Cell(view.FieldTradePnL)
		fmt.Fprintf(&w, "%s\n", p.title.Sprint("Active trade"))
		fmt.Fprintf(&w, "  %s %-6s %s %-14s %s %-10s %s %s\n\n",
			p.label.Sprint("Type"), b.Cell(view.FieldTradeType).Text,
			p.label.Sprint("Instrument"), b.Cell(view.FieldTradeInstrument).Text,
			p.label.Sprint("Entry"), b.Cell(view.FieldTradeEntryPrice).Text,
			p.label.Sprint("PnL"), s.pnlColor(pnl.Class).Sprint(pnl.Text))
	} else {
		fmt.Fprintf(&w, "%s\n\n", p.dim.Sprint("No active trade"))
	}

	fmt.Fprintf(&w, "%s %s\n", p.label.Sprint("Commands:"), s.commandLine())

	s.outMu.Lock()
	last := s.lastAlert
	s.outMu.Unlock()
	if last != "" {
		fmt.Fprintf(&w, "%s %s\n", p.label.Sprint("Last alert:"), strings.ReplaceAll(last, "\n", " "))
	}
	return w.String()
}

func (s *Screen) trendBadge() string {
	b := s.board
	switch {
	case b.Visible(view.ToggleTrendCallBuy):
		return s.palette.call.Sprint(" CALL BUY ")
	case b.Visible(view.ToggleTrendPutBuy):
		return s.palette.put.Sprint(" PUT BUY ")
	default:
		return s.palette.neutral.Sprint("NEUTRAL")
	}
}

func (s *Screen) pnlColor(c view.Class) *color.Color {
	switch c {
	case view.ClassPositive:
		return s.palette.positive
	case view.ClassNegative:
		return s.palette.negative
	default:
		return s.palette.neutral
	}
}

func (s *Screen) commandLine() string {
	parts := make([]string, 0, len(s.opts.Actions)+2)
	for i, a := range s.opts.Actions {
		ctl := s.board.Control(a.Name)
		label := ctl.Label
		if label == "" {
			label = a.Label
		}
		key := actionKey(i)
		if ctl.Label != "" && !ctl.Enabled {
			parts = append(parts, s.palette.dim.Sprintf("[%s] %s", key, label))
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s] %s", key, s.palette.negative.Sprint(label)))
	}
	parts = append(parts, "[l] logout", "[q] quit")
	return strings.Join(parts, "  ")
}

// actionKey is "s" for the first action and its 1-based index otherwise.
func actionKey(i int) string {
	if i == 0 {
		return "s"
	}
	return fmt.Sprint(i + 1)
}
