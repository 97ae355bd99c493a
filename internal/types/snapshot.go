package types

import (
	"encoding/json"
	"strings"
)

// Trend is the overall market signal computed by the backend.
type Trend string

const (
	TrendCallBuy Trend = "CALL BUY"
	TrendPutBuy  Trend = "PUT BUY"
	TrendNeutral Trend = "NEUTRAL"
)

// ParseTrend maps a wire value onto a Trend. Anything unrecognised,
// including the backend's "Calculating..." placeholder, is NEUTRAL.
func ParseTrend(s string) Trend {
	switch strings.ReplaceAll(strings.TrimSpace(s), "_", " ") {
	case string(TrendCallBuy):
		return TrendCallBuy
	case string(TrendPutBuy):
		return TrendPutBuy
	default:
		return TrendNeutral
	}
}

// Event names on the live channel.
const (
	EventConnect           = "connect"
	EventDisconnect        = "disconnect"
	EventConnectError      = "connect_error"
	EventMarketUpdate      = "market_update"
	EventTradeNotification = "trade_notification"
)

// MarketSnapshot is the full dashboard state pushed by the backend.
type MarketSnapshot struct {
	OverallTrend Value                `json:"overall_market_trend"`
	Indices      map[string]IndexData `json:"indices_data,omitempty"`
	Options      *OptionMeta          `json:"final_trade_instruments,omitempty"`
	ActiveTrade  *ActiveTrade         `json:"active_trade"`
}

// IndexData carries the LTP and moving averages of one index.
type IndexData struct {
	LTP    Value `json:"ltp"`
	Signal Value `json:"signal"`
	SMA10  Value `json:"sma_10"`
	SMA25  Value `json:"sma_25"`
	SMA50  Value `json:"sma_50"`
	SMA100 Value `json:"sma_100"`
}

// OptionMeta describes the at-the-money option pair selected by the backend.
type OptionMeta struct {
	ATMStrike  Value          `json:"atm_strike"`
	ExpiryDate Value          `json:"expiry_date"`
	ATMCall    *InstrumentRef `json:"atm_call,omitempty"`
	ATMPut     *InstrumentRef `json:"atm_put,omitempty"`
}

// InstrumentRef is an opaque broker instrument reference.
type InstrumentRef struct {
	InstrumentKey Value `json:"instrument_key"`
	StrikePrice   Value `json:"strike_price"`
}

// Key returns the instrument key, or "" for a nil ref.
func (r *InstrumentRef) Key() string {
	if r == nil {
		return ""
	}
	return r.InstrumentKey.Text()
}

// ActiveTrade is present only while a position is open.
type ActiveTrade struct {
	InstrumentToken Value `json:"instrument_token"`
	Type            Value `json:"type"`
	EntryPrice      Value `json:"entry_price"`
	LivePnL         Value `json:"live_pnl"`
	Quantity        Value `json:"quantity"`
	EntryOrderID    Value `json:"entry_order_id"`
	EntryTime       Value `json:"entry_time"`
}

// IsOpen reports whether the trade token is present and non-empty. No other
// field influences it.
func (t *ActiveTrade) IsOpen() bool {
	return t != nil && t.InstrumentToken.Present() && t.InstrumentToken.Text() != ""
}

// TradeNotification is the payload of a trade_notification push.
type TradeNotification struct {
	Message string `json:"message"`
}

// CommandResponse is the backend reply to a command such as square-off.
type CommandResponse struct {
	Message string `json:"message"`
}

// UnmarshalJSON decodes each section on its own so one malformed section
// leaves the rest of the snapshot usable.
func (s *MarketSnapshot) UnmarshalJSON(b []byte) error {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(b, &sections); err != nil {
		return err
	}
	*s = MarketSnapshot{}
	if raw, ok := sections["overall_market_trend"]; ok {
		s.OverallTrend = Value{raw: raw}
	}
	if raw, ok := sections["indices_data"]; ok {
		var indices map[string]json.RawMessage
		if json.Unmarshal(raw, &indices) == nil {
			for name, r := range indices {
				var idx IndexData
				if json.Unmarshal(r, &idx) == nil {
					if s.Indices == nil {
						s.Indices = make(map[string]IndexData, len(indices))
					}
					s.Indices[name] = idx
				}
			}
		}
	}
	if raw, ok := sections["final_trade_instruments"]; ok {
		var meta OptionMeta
		if decodeSection(raw, &meta) {
			s.Options = &meta
		}
	}
	if raw, ok := sections["active_trade"]; ok {
		var trade ActiveTrade
		if decodeSection(raw, &trade) {
			s.ActiveTrade = &trade
		}
	}
	return nil
}

// UnmarshalJSON tolerates a non-object atm_call / atm_put.
func (m *OptionMeta) UnmarshalJSON(b []byte) error {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(b, &sections); err != nil {
		return err
	}
	*m = OptionMeta{
		ATMStrike:  Value{raw: sections["atm_strike"]},
		ExpiryDate: Value{raw: sections["expiry_date"]},
	}
	var call, put InstrumentRef
	if decodeSection(sections["atm_call"], &call) {
		m.ATMCall = &call
	}
	if decodeSection(sections["atm_put"], &put) {
		m.ATMPut = &put
	}
	return nil
}

// decodeSection reports whether raw was a JSON object that decoded into dst.
func decodeSection(raw json.RawMessage, dst any) bool {
	v := Value{raw: raw}
	if !v.Present() {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// DecodeSnapshot parses a snapshot payload.
func DecodeSnapshot(b []byte) (*MarketSnapshot, error) {
	var s MarketSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
