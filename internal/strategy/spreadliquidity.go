package strategy

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"realtime-strategies/internal/model"
)

type SpreadLiquidityConfig struct {
	SpreadThresholdBps      float64
	SpreadRatioThreshold    float64
	VelocityThreshold       float64
	PersistenceThreshold    time.Duration
	BaseConfidence          float64
	LookbackTicks           int
	MinSignalIntervalSecond time.Duration
}

type spreadSnapshot struct {
	ts        time.Time
	spreadBps float64
	mid       decimal.Decimal
	depthBid5 float64
	depthAsk5 float64
}

type symbolSpreadState struct {
	history      []spreadSnapshot
	widenedSince time.Time
	lastSignal   time.Time
}

// SpreadLiquidity maintains a bounded rolling buffer of the last
// lookback-ticks spread snapshots per symbol, plus widened-regime and
// rate-limit timestamps, per §3.4/§4.5.
type SpreadLiquidity struct {
	mu    sync.Mutex
	state map[string]*symbolSpreadState
}

func NewSpreadLiquidity() *SpreadLiquidity {
	return &SpreadLiquidity{state: make(map[string]*symbolSpreadState)}
}

func (s *SpreadLiquidity) Name() string { return "spread_liquidity" }

func sumTop(levels []model.Level, n int) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	total := decimal.Zero
	for _, l := range levels[:n] {
		total = total.Add(l.Quantity)
	}
	f, _ := total.Float64()
	return f
}

func (s *SpreadLiquidity) Analyze(d *model.DepthSnapshot, cfg SpreadLiquidityConfig, now time.Time) *model.InternalSignal {
	lookback := cfg.LookbackTicks
	if lookback <= 0 {
		lookback = 20
	}

	mid := d.MidPrice()
	spreadBps, _ := d.BestAsk().Price.Sub(d.BestBid().Price).Div(mid).Mul(decimal.NewFromInt(10000)).Float64()
	depthBid5 := sumTop(d.Bids, 5)
	depthAsk5 := sumTop(d.Asks, 5)

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[d.Symbol]
	if !ok {
		st = &symbolSpreadState{}
		s.state[d.Symbol] = st
	}

	var signal *model.InternalSignal
	if len(st.history) > 0 {
		avgSpread := 0.0
		avgDepth := 0.0
		for _, h := range st.history {
			avgSpread += h.spreadBps
			avgDepth += h.depthBid5 + h.depthAsk5
		}
		n := float64(len(st.history))
		avgSpread /= n
		avgDepth /= n

		prev := st.history[len(st.history)-1]
		spreadRatio := 1.0
		if avgSpread != 0 {
			spreadRatio = spreadBps / avgSpread
		}
		spreadVelocity := 0.0
		if prev.spreadBps != 0 {
			spreadVelocity = (spreadBps - prev.spreadBps) / prev.spreadBps
		}
		depthNow := depthBid5 + depthAsk5
		depthReduction := 0.0
		if avgDepth > 0 && depthNow < avgDepth {
			depthReduction = 1 - depthNow/avgDepth
		}

		canSignal := now.Sub(st.lastSignal) >= cfg.MinSignalIntervalSecond

		switch {
		case prev.spreadBps < cfg.SpreadThresholdBps &&
			spreadRatio > cfg.SpreadRatioThreshold &&
			spreadVelocity > cfg.VelocityThreshold &&
			avgDepth > 0 && depthNow < 0.5*avgDepth:
			if st.widenedSince.IsZero() {
				st.widenedSince = now
			}
			if canSignal {
				score := math.Min(0.95, cfg.BaseConfidence+math.Abs(spreadVelocity)*0.10+depthReduction*0.15)
				signal = s.buildSignal(d.Symbol, model.TypeSell, model.ActionOpenShort, mid, score,
					spreadBps, spreadRatio, spreadVelocity)
				st.lastSignal = now
			}

		case spreadRatio > cfg.SpreadRatioThreshold &&
			spreadVelocity < -cfg.VelocityThreshold &&
			!st.widenedSince.IsZero() &&
			now.Sub(st.widenedSince) >= cfg.PersistenceThreshold:
			persistence := now.Sub(st.widenedSince).Seconds()
			if canSignal {
				score := math.Min(0.95, cfg.BaseConfidence+(spreadRatio-cfg.SpreadRatioThreshold)*0.05+math.Min(0.10, persistence/300*0.10))
				signal = s.buildSignal(d.Symbol, model.TypeBuy, model.ActionOpenLong, mid, score,
					spreadBps, spreadRatio, spreadVelocity)
				st.lastSignal = now
				st.widenedSince = time.Time{}
			}
		}
	}

	st.history = append(st.history, spreadSnapshot{ts: now, spreadBps: spreadBps, mid: mid, depthBid5: depthBid5, depthAsk5: depthAsk5})
	if len(st.history) > lookback {
		st.history = st.history[len(st.history)-lookback:]
	}

	return signal
}

func (s *SpreadLiquidity) buildSignal(symbol string, sigType model.SignalType, action model.SignalAction, mid decimal.Decimal, score float64, spreadBps, spreadRatio, spreadVelocity float64) *model.InternalSignal {
	var sl, tp decimal.Decimal
	if sigType == model.TypeBuy {
		sl = mid.Mul(decimal.NewFromFloat(0.995))
		tp = mid.Mul(decimal.NewFromFloat(1.010))
	} else {
		sl = mid.Mul(decimal.NewFromFloat(1.005))
		tp = mid.Mul(decimal.NewFromFloat(0.990))
	}
	return &model.InternalSignal{
		Symbol:          symbol,
		Type:            sigType,
		Action:          action,
		Confidence:      confidenceBand(score),
		ConfidenceScore: score,
		Price:           mid,
		StrategyName:    s.Name(),
		StopLoss:        &sl,
		TakeProfit:      &tp,
		Indicators: map[string]float64{
			"spread_bps":      spreadBps,
			"spread_ratio":    spreadRatio,
			"spread_velocity": spreadVelocity,
		},
		Metadata: map[string]interface{}{},
	}
}
