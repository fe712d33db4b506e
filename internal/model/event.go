// Package model defines the typed domain objects consumed and produced by
// the signal engine: inbound market events and outbound trading signals.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StreamKind classifies an inbound event by the substring found in its
// transport envelope's stream tag.
type StreamKind string

const (
	StreamDepth  StreamKind = "depth"
	StreamTrade  StreamKind = "trade"
	StreamTicker StreamKind = "ticker"
)

// Level is one (price, quantity) pair of a depth snapshot side. Both fields
// are non-negative decimals per the wire contract.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// DepthSnapshot is an ordered order-book snapshot: bids descending by price,
// asks ascending, each side typically 20 levels.
type DepthSnapshot struct {
	Symbol    string
	UpdateID  int64
	Bids      []Level
	Asks      []Level
	EventTime time.Time
}

// Validate rejects malformed depth snapshots: zero levels on either side.
func (d *DepthSnapshot) Validate() error {
	if d.Symbol == "" {
		return fmt.Errorf("depth snapshot: missing symbol")
	}
	if len(d.Bids) == 0 || len(d.Asks) == 0 {
		return fmt.Errorf("depth snapshot: zero levels on a side")
	}
	return nil
}

// BestBid returns the highest bid level. Callers must have validated the
// snapshot has at least one bid.
func (d *DepthSnapshot) BestBid() Level { return d.Bids[0] }

// BestAsk returns the lowest ask level.
func (d *DepthSnapshot) BestAsk() Level { return d.Asks[0] }

// MidPrice is the arithmetic mean of the best bid and best ask.
func (d *DepthSnapshot) MidPrice() decimal.Decimal {
	return d.BestBid().Price.Add(d.BestAsk().Price).Div(decimal.NewFromInt(2))
}

// Trade is a single executed trade tick.
type Trade struct {
	Symbol        string
	TradeID       int64
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	BuyerOrderID  int64
	SellerOrderID int64
	TradeTime     time.Time
	IsBuyerMaker  bool
	EventTime     time.Time
}

func (t *Trade) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("trade: missing symbol")
	}
	if t.Price.IsNegative() || t.Quantity.IsNegative() {
		return fmt.Errorf("trade: negative price or quantity")
	}
	return nil
}

// TickerUpdate is a 24h rolling ticker tick.
type TickerUpdate struct {
	Symbol             string
	LastPrice          decimal.Decimal
	Volume24h          *decimal.Decimal
	PriceChangePercent *decimal.Decimal
	EventTime          time.Time
}

func (t *TickerUpdate) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("ticker: missing symbol")
	}
	if t.LastPrice.IsNegative() {
		return fmt.Errorf("ticker: negative last price")
	}
	return nil
}

// Event is the tagged union dispatched by the router. Exactly one of the
// typed fields is populated, matching Kind.
type Event struct {
	Kind   StreamKind
	Stream string
	Depth  *DepthSnapshot
	Trade  *Trade
	Ticker *TickerUpdate
}
