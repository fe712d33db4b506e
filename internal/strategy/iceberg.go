package strategy

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"realtime-strategies/internal/model"
)

type IcebergConfig struct {
	MinRefillCount              int
	RefillSpeedThresholdSeconds time.Duration
	ConsistencyThreshold        float64
	PersistenceThresholdSeconds time.Duration
	LevelProximityPct           float64
	BaseConfidence              float64
	MaxSymbols                  int
	HistoryWindowSeconds        time.Duration
	MinSignalIntervalSeconds    time.Duration
}

type qtySample struct {
	ts  time.Time
	qty float64
}

type levelState struct {
	samples   []qtySample
	firstSeen time.Time
	lastSeen  time.Time
	refills   int
}

type symbolLevels struct {
	levels     map[string]*levelState
	lastSignal time.Time
}

// IcebergDetector tracks, per symbol, a bounded map of price levels to a
// sliding (timestamp, quantity) history, pruned by history-window-seconds
// and evicted by max-symbols (oldest symbol dropped), per §3.4/§4.6.
type IcebergDetector struct {
	mu      sync.Mutex
	symbols map[string]*symbolLevels
	order   []string
}

func NewIcebergDetector() *IcebergDetector {
	return &IcebergDetector{symbols: make(map[string]*symbolLevels)}
}

func (s *IcebergDetector) Name() string { return "iceberg_detector" }

func meanStdDev(samples []qtySample) (mean, std float64) {
	n := float64(len(samples))
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, smp := range samples {
		sum += smp.qty
	}
	mean = sum / n
	variance := 0.0
	for _, smp := range samples {
		d := smp.qty - mean
		variance += d * d
	}
	variance /= n
	std = math.Sqrt(variance)
	return mean, std
}

// detectPattern evaluates the newest sample against the level's history and
// returns the strongest matching pattern, in refill > consistent-size >
// anchor priority order, per §4.6.
func detectPattern(ls *levelState, now time.Time, cfg IcebergConfig) (string, float64) {
	minRefill := cfg.MinRefillCount
	if minRefill <= 0 {
		minRefill = 3
	}
	refillSpeed := cfg.RefillSpeedThresholdSeconds
	if refillSpeed <= 0 {
		refillSpeed = 10 * time.Second
	}

	if n := len(ls.samples); n >= 3 {
		v0, v1, v2 := ls.samples[n-3], ls.samples[n-2], ls.samples[n-1]
		if v1.qty < 0.5*v0.qty && v2.qty > 0.8*v0.qty && v2.ts.Sub(v1.ts) < refillSpeed {
			ls.refills++
		}
	}
	if ls.refills >= minRefill {
		score := math.Min(0.85, 0.65+float64(ls.refills-minRefill)*0.05)
		return "refill", score
	}

	if len(ls.samples) >= minRefill && cfg.ConsistencyThreshold > 0 {
		mean, std := meanStdDev(ls.samples)
		if mean > 0 {
			cv := std / mean
			if cv < cfg.ConsistencyThreshold {
				base := cfg.BaseConfidence
				if base <= 0 {
					base = 0.70
				}
				return "consistent_size", base * (1 - cv)
			}
		}
	}

	if cfg.PersistenceThresholdSeconds > 0 && now.Sub(ls.firstSeen) >= cfg.PersistenceThresholdSeconds {
		persistSec := now.Sub(ls.firstSeen).Seconds()
		score := math.Min(0.85, 0.75+persistSec/600*0.10)
		return "anchor", score
	}
	return "", 0
}

func (s *IcebergDetector) Analyze(d *model.DepthSnapshot, cfg IcebergConfig, now time.Time) *model.InternalSignal {
	const topN = 5
	window := cfg.HistoryWindowSeconds
	if window <= 0 {
		window = 5 * time.Minute
	}
	maxSymbols := cfg.MaxSymbols
	if maxSymbols <= 0 {
		maxSymbols = 500
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.symbols[d.Symbol]
	if !ok {
		if len(s.order) >= maxSymbols {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.symbols, oldest)
		}
		st = &symbolLevels{levels: make(map[string]*levelState)}
		s.symbols[d.Symbol] = st
		s.order = append(s.order, d.Symbol)
	}

	mid := d.MidPrice()
	midF, _ := mid.Float64()

	type touchedLevel struct {
		side  string
		price decimal.Decimal
		ls    *levelState
	}
	var touched []touchedLevel

	track := func(levels []model.Level, side string) {
		n := topN
		if n > len(levels) {
			n = len(levels)
		}
		for _, lvl := range levels[:n] {
			key := side + ":" + lvl.Price.String()
			ls, ok := st.levels[key]
			if !ok {
				ls = &levelState{firstSeen: now}
				st.levels[key] = ls
			}
			qty, _ := lvl.Quantity.Float64()
			ls.samples = append(ls.samples, qtySample{ts: now, qty: qty})
			cutoff := now.Add(-window)
			pruned := ls.samples[:0]
			for _, smp := range ls.samples {
				if smp.ts.After(cutoff) {
					pruned = append(pruned, smp)
				}
			}
			ls.samples = pruned
			ls.lastSeen = now
			touched = append(touched, touchedLevel{side: side, price: lvl.Price, ls: ls})
		}
	}
	track(d.Bids, "bid")
	track(d.Asks, "ask")

	canSignal := st.lastSignal.IsZero() || now.Sub(st.lastSignal) >= cfg.MinSignalIntervalSeconds

	for _, t := range touched {
		pattern, score := detectPattern(t.ls, now, cfg)
		if pattern == "" || !canSignal {
			continue
		}
		priceF, _ := t.price.Float64()
		if priceF == 0 {
			continue
		}
		proximity := math.Abs(midF-priceF) / priceF * 100
		if proximity > cfg.LevelProximityPct {
			continue
		}

		var sigType model.SignalType
		var action model.SignalAction
		if t.side == "bid" {
			sigType, action = model.TypeBuy, model.ActionOpenLong
		} else {
			sigType, action = model.TypeSell, model.ActionOpenShort
		}

		a := math.Max(math.Abs(midF-priceF), midF*0.005)
		var sl, tp decimal.Decimal
		if sigType == model.TypeBuy {
			sl = decimal.NewFromFloat(priceF - a)
			tp = decimal.NewFromFloat(midF + 2.5*a)
		} else {
			sl = decimal.NewFromFloat(priceF + a)
			tp = decimal.NewFromFloat(midF - 2.5*a)
		}

		st.lastSignal = now
		return &model.InternalSignal{
			Symbol:          d.Symbol,
			Type:            sigType,
			Action:          action,
			Confidence:      confidenceBand(score),
			ConfidenceScore: score,
			Price:           mid,
			StrategyName:    s.Name(),
			StopLoss:        &sl,
			TakeProfit:      &tp,
			Indicators: map[string]float64{
				"level_price": priceF,
				"refills":     float64(t.ls.refills),
			},
			Metadata: map[string]interface{}{
				"pattern": pattern,
				"side":    t.side,
			},
		}
	}
	return nil
}
