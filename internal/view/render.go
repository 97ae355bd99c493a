package view

import (
	"strings"

	"algo-dashboard/internal/types"
)

// FieldID names a text cell on the dashboard surface.
type FieldID string

const (
	FieldIndexLTP    FieldID = "index.ltp"
	FieldIndexSignal FieldID = "index.signal"
	FieldIndexSMA10  FieldID = "index.sma10"
	FieldIndexSMA25  FieldID = "index.sma25"
	FieldIndexSMA50  FieldID = "index.sma50"
	FieldIndexSMA100 FieldID = "index.sma100"

	FieldCallStrike FieldID = "atm.call.strike"
	FieldPutStrike  FieldID = "atm.put.strike"
	FieldExpiry     FieldID = "atm.expiry"
	FieldCallKey    FieldID = "atm.call.key"
	FieldPutKey     FieldID = "atm.put.key"

	FieldTradeType       FieldID = "trade.type"
	FieldTradeEntryPrice FieldID = "trade.entry_price"
	FieldTradeInstrument FieldID = "trade.instrument"
	FieldTradePnL        FieldID = "trade.pnl"
)

// ToggleID names a show/hide element on the dashboard surface.
type ToggleID string

const (
	ToggleTrendCallBuy ToggleID = "trend.call_buy"
	ToggleTrendPutBuy  ToggleID = "trend.put_buy"
	ToggleTrendNeutral ToggleID = "trend.neutral"
	ToggleTradeSection ToggleID = "trade.section"
)

// Fields lists every text cell in display order.
func Fields() []FieldID {
	return []FieldID{
		FieldIndexLTP, FieldIndexSignal,
		FieldIndexSMA10, FieldIndexSMA25, FieldIndexSMA50, FieldIndexSMA100,
		FieldCallStrike, FieldPutStrike, FieldExpiry, FieldCallKey, FieldPutKey,
		FieldTradeType, FieldTradeEntryPrice, FieldTradeInstrument, FieldTradePnL,
	}
}

// Toggles lists every show/hide element.
func Toggles() []ToggleID {
	return []ToggleID{ToggleTrendCallBuy, ToggleTrendPutBuy, ToggleTrendNeutral, ToggleTradeSection}
}

// Cell is what one text target shows.
type Cell struct {
	Text  string
	Class Class
}

// Frame is the complete view-model for one snapshot. Every FieldID and
// ToggleID has an entry, so applying a frame overwrites the whole surface.
type Frame struct {
	Trend   types.Trend
	Cells   map[FieldID]Cell
	Visible map[ToggleID]bool
}

// TradeVisible reports whether the active-trade section is shown.
func (f Frame) TradeVisible() bool {
	return f.Visible[ToggleTradeSection]
}

// Render computes the frame for a snapshot. It is pure: the same snapshot
// always yields the same frame, and nothing from an earlier snapshot leaks
// into it. A nil snapshot renders the all-placeholder frame.
func Render(snap *types.MarketSnapshot, primaryIndex string) Frame {
	if snap == nil {
		snap = &types.MarketSnapshot{}
	}
	f := Frame{
		Trend:   types.ParseTrend(snap.OverallTrend.Text()),
		Cells:   make(map[FieldID]Cell, len(Fields())),
		Visible: make(map[ToggleID]bool, len(Toggles())),
	}

	f.Visible[ToggleTrendCallBuy] = f.Trend == types.TrendCallBuy
	f.Visible[ToggleTrendPutBuy] = f.Trend == types.TrendPutBuy
	f.Visible[ToggleTrendNeutral] = f.Trend == types.TrendNeutral

	idx := snap.Indices[primaryIndex]
	f.Cells[FieldIndexLTP] = Cell{Text: FormatPrice(idx.LTP)}
	f.Cells[FieldIndexSignal] = Cell{Text: FormatPlain(idx.Signal)}
	f.Cells[FieldIndexSMA10] = Cell{Text: FormatPrice(idx.SMA10)}
	f.Cells[FieldIndexSMA25] = Cell{Text: FormatPrice(idx.SMA25)}
	f.Cells[FieldIndexSMA50] = Cell{Text: FormatPrice(idx.SMA50)}
	f.Cells[FieldIndexSMA100] = Cell{Text: FormatPrice(idx.SMA100)}

	strike := PlaceholderPlain
	meta := snap.Options
	if meta == nil {
		meta = &types.OptionMeta{}
	}
	if s := FormatPlain(meta.ATMStrike); s != PlaceholderPlain {
		strike = s
		f.Cells[FieldCallStrike] = Cell{Text: "Strike " + s}
		f.Cells[FieldPutStrike] = Cell{Text: "Strike " + s}
	} else {
		f.Cells[FieldCallStrike] = Cell{Text: PlaceholderPlain}
		f.Cells[FieldPutStrike] = Cell{Text: PlaceholderPlain}
	}
	f.Cells[FieldExpiry] = Cell{Text: FormatPlain(meta.ExpiryDate)}
	f.Cells[FieldCallKey] = Cell{Text: meta.ATMCall.Key()}
	f.Cells[FieldPutKey] = Cell{Text: meta.ATMPut.Key()}

	trade := snap.ActiveTrade
	f.Visible[ToggleTradeSection] = trade.IsOpen()
	if !trade.IsOpen() {
		f.Cells[FieldTradeType] = Cell{Text: PlaceholderPlain}
		f.Cells[FieldTradeEntryPrice] = Cell{Text: PlaceholderPrice}
		f.Cells[FieldTradeInstrument] = Cell{Text: PlaceholderPlain}
		f.Cells[FieldTradePnL] = Cell{Text: PlaceholderPnL, Class: ClassNeutral}
		return f
	}

	side := FormatPlain(trade.Type)
	f.Cells[FieldTradeType] = Cell{Text: side}
	f.Cells[FieldTradeEntryPrice] = Cell{Text: FormatPrice(trade.EntryPrice)}
	f.Cells[FieldTradeInstrument] = Cell{Text: instrumentLabel(side, strike)}
	pnl, class := FormatPnL(trade.LivePnL)
	f.Cells[FieldTradePnL] = Cell{Text: pnl, Class: class}
	return f
}

// instrumentLabel is "CALL <strike>" for call trades and "PUT <strike>"
// for everything else.
func instrumentLabel(side, strike string) string {
	if strings.EqualFold(side, "CALL") {
		return "CALL " + strike
	}
	return "PUT " + strike
}
