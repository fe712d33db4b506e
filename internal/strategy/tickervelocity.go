package strategy

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"realtime-strategies/internal/model"
)

type TickerVelocityConfig struct {
	BuyThreshold  float64
	SellThreshold float64
	TimeWindow    time.Duration // default 60s, per §3.4
}

type pricePoint struct {
	ts    time.Time
	price decimal.Decimal
}

// TickerVelocity maintains a per-symbol ring of (timestamp, price),
// windowed by age rather than count, per §3.4/§4.4.
type TickerVelocity struct {
	mu     sync.Mutex
	points map[string][]pricePoint
}

func NewTickerVelocity() *TickerVelocity {
	return &TickerVelocity{points: make(map[string][]pricePoint)}
}

func (s *TickerVelocity) Name() string { return "ticker_velocity" }

func (s *TickerVelocity) Analyze(tk *model.TickerUpdate, cfg TickerVelocityConfig, now time.Time) *model.InternalSignal {
	window := cfg.TimeWindow
	if window <= 0 {
		window = 60 * time.Second
	}

	s.mu.Lock()
	series := append(s.points[tk.Symbol], pricePoint{ts: now, price: tk.LastPrice})
	cutoff := now.Add(-window)
	pruned := series[:0]
	for _, p := range series {
		if !p.ts.Before(cutoff) {
			pruned = append(pruned, p)
		}
	}
	s.points[tk.Symbol] = pruned
	snapshot := make([]pricePoint, len(pruned))
	copy(snapshot, pruned)
	s.mu.Unlock()

	if len(snapshot) < 2 {
		return nil
	}

	oldest := snapshot[0]
	elapsedMinutes := now.Sub(oldest.ts).Minutes()
	if elapsedMinutes <= 0 || oldest.price.IsZero() {
		return nil
	}

	changePercent, _ := tk.LastPrice.Sub(oldest.price).Div(oldest.price).Mul(decimal.NewFromInt(100)).Float64()
	velocity := changePercent / elapsedMinutes

	var action model.SignalAction
	var sigType model.SignalType
	switch {
	case velocity > cfg.BuyThreshold:
		action, sigType = model.ActionOpenLong, model.TypeBuy
	case velocity < cfg.SellThreshold:
		action, sigType = model.ActionOpenShort, model.TypeSell
	default:
		return nil
	}

	score := math.Min(0.95, 0.6+math.Abs(velocity)/10)

	return &model.InternalSignal{
		Symbol:          tk.Symbol,
		Type:            sigType,
		Action:          action,
		Confidence:      confidenceBand(score),
		ConfidenceScore: score,
		Price:           tk.LastPrice,
		StrategyName:    s.Name(),
		Indicators: map[string]float64{
			"velocity":       velocity,
			"change_percent": changePercent,
			"elapsed_min":    elapsedMinutes,
		},
		Metadata: map[string]interface{}{},
	}
}
