package strategy

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"realtime-strategies/internal/model"
)

type TradeMomentumConfig struct {
	BuyThreshold   float64
	SellThreshold  float64
	BaseConfidence float64 // unused directly; formula fixes 0.65 per §4.3, kept for schema symmetry
}

type tradeTrailing struct {
	lastPrice decimal.Decimal
	avgQty    decimal.Decimal
	count     int64
}

// TradeMomentum maintains a tiny per-symbol trailing cache of previous
// price and running average quantity, per §9's design note: the spec
// leaves this choice to the implementer as long as the momentum formula in
// §4.3 is honored exactly.
type TradeMomentum struct {
	mu       sync.Mutex
	trailing map[string]*tradeTrailing
}

func NewTradeMomentum() *TradeMomentum {
	return &TradeMomentum{trailing: make(map[string]*tradeTrailing)}
}

func (s *TradeMomentum) Name() string { return "trade_momentum" }

func (s *TradeMomentum) Analyze(tr *model.Trade, cfg TradeMomentumConfig) *model.InternalSignal {
	s.mu.Lock()
	tc, ok := s.trailing[tr.Symbol]
	if !ok {
		tc = &tradeTrailing{avgQty: tr.Quantity}
		s.trailing[tr.Symbol] = tc
	}
	prevPrice := tc.lastPrice
	avgQty := tc.avgQty

	// Update trailing state for the next event: simple running mean of
	// quantity, last price becomes this trade's price.
	tc.count++
	if tc.count == 1 {
		tc.avgQty = tr.Quantity
	} else {
		n := decimal.NewFromInt(tc.count)
		tc.avgQty = tc.avgQty.Mul(n.Sub(decimal.NewFromInt(1))).Add(tr.Quantity).Div(n)
	}
	tc.lastPrice = tr.Price
	s.mu.Unlock()

	priceMomentum := 0.0
	if !prevPrice.IsZero() {
		diff := tr.Price.Sub(prevPrice)
		priceMomentum, _ = diff.Div(prevPrice).Float64()
	}

	quantityScore := 1.0
	if !avgQty.IsZero() {
		qs, _ := tr.Quantity.Div(avgQty).Float64()
		quantityScore = math.Min(1, qs)
	}

	makerScore := 1.0
	if tr.IsBuyerMaker {
		makerScore = -1.0
	}

	momentum := 0.4*priceMomentum + 0.3*quantityScore + 0.3*makerScore

	var action model.SignalAction
	var sigType model.SignalType
	switch {
	case momentum > cfg.BuyThreshold:
		action, sigType = model.ActionOpenLong, model.TypeBuy
	case momentum < cfg.SellThreshold:
		action, sigType = model.ActionOpenShort, model.TypeSell
	default:
		return nil
	}

	score := math.Min(0.95, 0.65+math.Abs(momentum)*0.2)

	return &model.InternalSignal{
		Symbol:          tr.Symbol,
		Type:            sigType,
		Action:          action,
		Confidence:      confidenceBand(score),
		ConfidenceScore: score,
		Price:           tr.Price,
		StrategyName:    s.Name(),
		Indicators: map[string]float64{
			"momentum":       momentum,
			"price_momentum": priceMomentum,
			"quantity_score": quantityScore,
			"maker_score":    makerScore,
		},
		Metadata: map[string]interface{}{},
	}
}
