package mockbackend

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"algo-dashboard/internal/ta"

	"github.com/shopspring/decimal"
)

const (
	indexName   = "Nifty 50"
	underlying  = "NIFTY"
	strikeStep  = 50
	tradeLotQty = 75
)

var ist = time.FixedZone("IST", 19800)

// trade is the open position of the simulated order manager.
type trade struct {
	Token      string
	Type       string
	Strike     int
	EntryPrice decimal.Decimal
	Premium    decimal.Decimal
	OrderID    string
	EntryTime  time.Time
}

// market is a random-walk model of one index and the ATM option pair.
type market struct {
	rnd    *rand.Rand
	ltp    float64
	closes *ta.Window
	trade  *trade
	now    func() time.Time
}

func newMarket(seed int64, start float64) *market {
	return &market{
		rnd:    rand.New(rand.NewSource(seed)),
		ltp:    start,
		closes: ta.NewWindow(100, start),
		now:    time.Now,
	}
}

// step moves the index one tick and marks the open trade to market.
func (m *market) step() {
	m.ltp = math.Max(1, m.ltp+m.rnd.NormFloat64()*8)
	m.closes.Push(m.ltp)
	if m.trade != nil {
		move := decimal.NewFromFloat(m.rnd.NormFloat64() * 2).Round(2)
		m.trade.Premium = decimal.Max(decimal.NewFromFloat(0.05), m.trade.Premium.Add(move))
	}
}

func (m *market) sma(n int) float64 { return m.closes.SMA(n) }

func (m *market) signal() string {
	fast, slow := m.sma(10), m.sma(50)
	switch {
	case m.ltp > fast && fast > slow:
		return "CALL_BUY"
	case m.ltp < fast && fast < slow:
		return "PUT_BUY"
	default:
		return "NEUTRAL"
	}
}

func (m *market) atmStrike() int {
	return int(math.Round(m.ltp/strikeStep)) * strikeStep
}

func (m *market) expiry() string {
	now := m.now().In(ist)
	days := (int(time.Thursday) - int(now.Weekday()) + 7) % 7
	return now.AddDate(0, 0, days).Format("2006-01-02")
}

// enter opens a position on the current signal side. It returns "" when a
// trade is already open or the market is neutral.
func (m *market) enter(orderID string) string {
	if m.trade != nil {
		return ""
	}
	side := "CALL"
	switch m.signal() {
	case "PUT_BUY":
		side = "PUT"
	case "NEUTRAL":
		return ""
	}
	strike := m.atmStrike()
	premium := decimal.NewFromFloat(100 + m.rnd.Float64()*50).Round(2)
	m.trade = &trade{
		Token:      instrumentKey(side, strike),
		Type:       side,
		Strike:     strike,
		EntryPrice: premium,
		Premium:    premium,
		OrderID:    orderID,
		EntryTime:  m.now(),
	}
	return side
}

// exit closes the open position and returns its side, or "" if flat.
func (m *market) exit() string {
	if m.trade == nil {
		return ""
	}
	side := m.trade.Type
	m.trade = nil
	return side
}

func instrumentKey(side string, strike int) string {
	suffix := "CE"
	if side == "PUT" {
		suffix = "PE"
	}
	return fmt.Sprintf("NSE_FO|%s%d%s", underlying, strike, suffix)
}

// snapshot renders the state in the payload shape of market_update.
func (m *market) snapshot() map[string]any {
	round := func(f float64) float64 { return math.Round(f*100) / 100 }
	strike := m.atmStrike()
	state := map[string]any{
		"overall_market_trend": m.signal(),
		"indices_data": map[string]any{
			indexName: map[string]any{
				"ltp":     round(m.ltp),
				"signal":  m.signal(),
				"sma_10":  round(m.sma(10)),
				"sma_25":  round(m.sma(25)),
				"sma_50":  round(m.sma(50)),
				"sma_100": round(m.sma(100)),
			},
		},
		"final_trade_instruments": map[string]any{
			"atm_strike":  strike,
			"expiry_date": m.expiry(),
			"atm_call":    map[string]any{"instrument_key": instrumentKey("CALL", strike), "strike_price": strike},
			"atm_put":     map[string]any{"instrument_key": instrumentKey("PUT", strike), "strike_price": strike},
		},
		"active_trade": nil,
	}
	if t := m.trade; t != nil {
		pnl := t.Premium.Sub(t.EntryPrice).Mul(decimal.NewFromInt(tradeLotQty))
		state["active_trade"] = map[string]any{
			"instrument_token": t.Token,
			"type":             t.Type,
			"entry_price":      t.EntryPrice.InexactFloat64(),
			"live_pnl":         pnl.InexactFloat64(),
			"quantity":         tradeLotQty,
			"entry_order_id":   t.OrderID,
			"entry_time":       t.EntryTime.In(ist).Format(time.RFC3339),
		}
	}
	return state
}
