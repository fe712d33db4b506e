// Package strategy implements the five microstructure strategies named in
// spec §4.2–§4.6: order-book-skew and trade-momentum are stateless per
// event; ticker-velocity, spread-liquidity, and iceberg-detector maintain
// bounded per-symbol state.
package strategy

import (
	"math"

	"github.com/shopspring/decimal"

	"realtime-strategies/internal/model"
)

// OrderBookSkewConfig holds the per-strategy tunable parameters, sourced
// from the ConfigManager at the start of each dispatch (§4.9 "propagation
// to strategies").
type OrderBookSkewConfig struct {
	TopLevels        int
	BuyThreshold     float64
	SellThreshold    float64
	MinSpreadPercent float64
	BaseConfidence   float64
}

// OrderBookSkew is stateless: no fields carry information across events.
type OrderBookSkew struct{}

func NewOrderBookSkew() *OrderBookSkew { return &OrderBookSkew{} }

// Name used to build strategy-id and for metrics/logging.
func (s *OrderBookSkew) Name() string { return "orderbook_skew" }

// Analyze implements §4.2 exactly: sums top-k bid/ask quantities, guards on
// zero ask-sum and spread width, then classifies buy/sell by the ratio
// against the configured thresholds.
func (s *OrderBookSkew) Analyze(d *model.DepthSnapshot, cfg OrderBookSkewConfig) *model.InternalSignal {
	top := cfg.TopLevels
	if top <= 0 || top > len(d.Bids) {
		top = len(d.Bids)
	}
	topAsk := cfg.TopLevels
	if topAsk <= 0 || topAsk > len(d.Asks) {
		topAsk = len(d.Asks)
	}

	bidSum := decimal.Zero
	for _, l := range d.Bids[:top] {
		bidSum = bidSum.Add(l.Quantity)
	}
	askSum := decimal.Zero
	for _, l := range d.Asks[:topAsk] {
		askSum = askSum.Add(l.Quantity)
	}
	if askSum.IsZero() {
		return nil
	}

	ratio, _ := bidSum.Div(askSum).Float64()

	bestBid := d.BestBid().Price
	bestAsk := d.BestAsk().Price
	spreadPercent, _ := bestAsk.Sub(bestBid).Div(bestBid).Mul(decimal.NewFromInt(100)).Float64()
	if spreadPercent > cfg.MinSpreadPercent {
		return nil
	}

	var action model.SignalAction
	var sigType model.SignalType
	var price decimal.Decimal
	switch {
	case ratio > cfg.BuyThreshold:
		action, sigType, price = model.ActionOpenLong, model.TypeBuy, bestBid
	case ratio < cfg.SellThreshold:
		action, sigType, price = model.ActionOpenShort, model.TypeSell, bestAsk
	default:
		return nil
	}

	threshold := cfg.BuyThreshold
	if sigType == model.TypeSell {
		threshold = cfg.SellThreshold
	}
	score := math.Min(0.95, cfg.BaseConfidence+math.Abs(ratio-threshold)*0.5)

	bidF, _ := bidSum.Float64()
	askF, _ := askSum.Float64()

	return &model.InternalSignal{
		Symbol:          d.Symbol,
		Type:            sigType,
		Action:          action,
		Confidence:      confidenceBand(score),
		ConfidenceScore: score,
		Price:           price,
		StrategyName:    s.Name(),
		Indicators: map[string]float64{
			"bid_volume":     bidF,
			"ask_volume":     askF,
			"ratio":          ratio,
			"spread_percent": spreadPercent,
		},
		Metadata: map[string]interface{}{
			"reasoning": "order book imbalance",
		},
	}
}

// confidenceBand maps a numeric score onto the categorical band, used by
// strategies that compute a raw score before the adapter takes over.
func confidenceBand(score float64) model.Confidence {
	switch {
	case score >= 0.8:
		return model.ConfidenceHigh
	case score >= 0.6:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
