// Package bus implements the event-intake consumer and signal publisher
// sitting on the external message bus, per spec §4.1 and §4.7.
package bus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"realtime-strategies/internal/model"
)

// rawEnvelope is the transport wrapper around every inbound message:
// {"stream": "<symbol>@<streamType>", "data": {...}}, per §3.1.
type rawEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// rawDepthData mirrors the Binance-style depth payload: bids/asks arrive as
// [price, quantity] string pairs.
type rawDepthData struct {
	Symbol        string     `json:"s"`
	EventTime     int64      `json:"E"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"bids"`
	Asks          [][]string `json:"asks"`
}

// rawTradeData mirrors the Binance-style trade payload.
type rawTradeData struct {
	Symbol        string `json:"s"`
	TradeID       int64  `json:"t"`
	Price         string `json:"p"`
	Quantity      string `json:"q"`
	BuyerOrderID  int64  `json:"b"`
	SellerOrderID int64  `json:"a"`
	TradeTime     int64  `json:"T"`
	IsBuyerMaker  bool   `json:"m"`
	EventTime     int64  `json:"E"`
}

// rawTickerData mirrors the Binance-style 24h ticker payload.
type rawTickerData struct {
	Symbol             string `json:"s"`
	LastPrice          string `json:"c"`
	Volume             string `json:"v"`
	PriceChangePercent string `json:"P"`
	EventTime          int64  `json:"E"`
}

// ErrMalformedPayload marks an envelope that failed to decode or validate,
// counted and dropped silently per §4.1 step 1.
var ErrMalformedPayload = fmt.Errorf("bus: malformed event payload")

// ErrUnknownStream marks an envelope whose stream tag matched none of the
// recognized substrings, per §4.1 step 2.
var ErrUnknownStream = fmt.Errorf("bus: unknown stream type")

// DecodeEvent parses a raw bus message body into the router's typed Event,
// classifying it by the substring found after "@" in the stream tag and
// rejecting zero-level depth snapshots, per §4.1 steps 1-3.
func DecodeEvent(payload []byte) (*model.Event, error) {
	var env rawEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Stream == "" || len(env.Data) == 0 {
		return nil, ErrMalformedPayload
	}

	streamType := ""
	if idx := strings.Index(env.Stream, "@"); idx >= 0 {
		streamType = env.Stream[idx+1:]
	}

	switch {
	case strings.Contains(streamType, "depth"):
		d, err := decodeDepth(env.Data)
		if err != nil {
			return nil, err
		}
		return &model.Event{Kind: model.StreamDepth, Stream: env.Stream, Depth: d}, nil
	case strings.Contains(streamType, "trade"):
		t, err := decodeTrade(env.Data)
		if err != nil {
			return nil, err
		}
		return &model.Event{Kind: model.StreamTrade, Stream: env.Stream, Trade: t}, nil
	case strings.Contains(streamType, "ticker"):
		tk, err := decodeTicker(env.Data)
		if err != nil {
			return nil, err
		}
		return &model.Event{Kind: model.StreamTicker, Stream: env.Stream, Ticker: tk}, nil
	default:
		return nil, ErrUnknownStream
	}
}

func decodeDepth(raw json.RawMessage) (*model.DepthSnapshot, error) {
	var d rawDepthData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	bids, err := decodeLevels(d.Bids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	asks, err := decodeLevels(d.Asks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	snap := &model.DepthSnapshot{
		Symbol:    d.Symbol,
		UpdateID:  d.FinalUpdateID,
		Bids:      bids,
		Asks:      asks,
		EventTime: msToTime(d.EventTime),
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return snap, nil
}

func decodeLevels(raw [][]string) ([]model.Level, error) {
	levels := make([]model.Level, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return nil, err
		}
		qty, err := decimal.NewFromString(pair[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, model.Level{Price: price, Quantity: qty})
	}
	return levels, nil
}

func decodeTrade(raw json.RawMessage) (*model.Trade, error) {
	var d rawTradeData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	price, err := decimal.NewFromString(orDefault(d.Price, "0"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	qty, err := decimal.NewFromString(orDefault(d.Quantity, "0"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	trade := &model.Trade{
		Symbol:        d.Symbol,
		TradeID:       d.TradeID,
		Price:         price,
		Quantity:      qty,
		BuyerOrderID:  d.BuyerOrderID,
		SellerOrderID: d.SellerOrderID,
		TradeTime:     msToTime(d.TradeTime),
		IsBuyerMaker:  d.IsBuyerMaker,
		EventTime:     msToTime(d.EventTime),
	}
	if err := trade.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return trade, nil
}

func decodeTicker(raw json.RawMessage) (*model.TickerUpdate, error) {
	var d rawTickerData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	last, err := decimal.NewFromString(orDefault(d.LastPrice, "0"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	ticker := &model.TickerUpdate{
		Symbol:    d.Symbol,
		LastPrice: last,
		EventTime: msToTime(d.EventTime),
	}
	if vol, err := decimal.NewFromString(orDefault(d.Volume, "")); err == nil {
		ticker.Volume24h = &vol
	}
	if pct, err := decimal.NewFromString(orDefault(d.PriceChangePercent, "")); err == nil {
		ticker.PriceChangePercent = &pct
	}
	if err := ticker.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return ticker, nil
}

func msToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// EncodeSignal marshals the wire Signal contract exactly as named in §6.
func EncodeSignal(sig *model.Signal) ([]byte, error) {
	return json.Marshal(sig)
}
