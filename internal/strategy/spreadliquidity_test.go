package strategy

import (
	"testing"
	"time"

	"realtime-strategies/internal/model"
)

func depthSnapshot(symbol string, bidPrice, askPrice, depth float64) *model.DepthSnapshot {
	perLevel := depth / 5
	bids := make([]model.Level, 5)
	asks := make([]model.Level, 5)
	for i := 0; i < 5; i++ {
		bids[i] = level(bidPrice-float64(i), perLevel)
		asks[i] = level(askPrice+float64(i), perLevel)
	}
	return &model.DepthSnapshot{Symbol: symbol, Bids: bids, Asks: asks}
}

// TestSpreadLiquidityWideningThenNarrowing mirrors the widening→narrowing
// cycle of spec scenario S4: a tight, stable spread regime followed by a
// sudden widening (SELL) and, after it persists, a rapid collapse (BUY)
// with confidence capped at 0.95.
func TestSpreadLiquidityWideningThenNarrowing(t *testing.T) {
	s := NewSpreadLiquidity()
	cfg := SpreadLiquidityConfig{
		SpreadThresholdBps:      5,
		SpreadRatioThreshold:    2.5,
		VelocityThreshold:       0.5,
		PersistenceThreshold:    30 * time.Second,
		BaseConfidence:          0.70,
		LookbackTicks:           20,
		MinSignalIntervalSecond: 0,
	}
	base := time.Unix(0, 0)

	// 20 calm ticks: tight spread (0.4bps via a 50001/49999 book), ample depth.
	var sig *model.InternalSignal
	for i := 0; i < 20; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		sig = s.Analyze(depthSnapshot("BTCUSDT", 49999, 50001, 100), cfg, ts)
		if sig != nil {
			t.Fatalf("unexpected signal during calm regime at tick %d: %+v", i, sig)
		}
	}

	// Sudden widening with thin depth: book gap widens, depth drops to 30%.
	widenTs := base.Add(20 * time.Second)
	sig = s.Analyze(depthSnapshot("BTCUSDT", 49900, 50100, 30), cfg, widenTs)
	if sig == nil {
		t.Fatal("expected a SELL signal on sudden spread widening with depth withdrawal")
	}
	if sig.Type != model.TypeSell {
		t.Fatalf("expected SELL, got %s", sig.Type)
	}

	// Spread persists wide for > persistence-threshold, then starts collapsing
	// fast while still elevated relative to the pre-widening average — the
	// moment the narrowing detector is meant to catch.
	collapseTs := widenTs.Add(60 * time.Second)
	sig = s.Analyze(depthSnapshot("BTCUSDT", 49955, 50045, 100), cfg, collapseTs)
	if sig == nil {
		t.Fatal("expected a BUY signal once the widened regime persists and then starts collapsing")
	}
	if sig.Type != model.TypeBuy {
		t.Fatalf("expected BUY, got %s", sig.Type)
	}
	if sig.ConfidenceScore != 0.95 {
		t.Fatalf("expected confidence capped at 0.95, got %.4f", sig.ConfidenceScore)
	}
	if sig.StopLoss == nil || sig.TakeProfit == nil {
		t.Fatal("expected stop-loss and take-profit to be set by the strategy")
	}
}

func TestSpreadLiquidityRateLimited(t *testing.T) {
	s := NewSpreadLiquidity()
	cfg := SpreadLiquidityConfig{
		SpreadThresholdBps:      10,
		SpreadRatioThreshold:    2.5,
		VelocityThreshold:       0.5,
		PersistenceThreshold:    1 * time.Second,
		BaseConfidence:          0.70,
		LookbackTicks:           20,
		MinSignalIntervalSecond: 120 * time.Second,
	}
	base := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		s.Analyze(depthSnapshot("ETHUSDT", 2999, 3001, 100), cfg, base.Add(time.Duration(i)*time.Second))
	}
	first := s.Analyze(depthSnapshot("ETHUSDT", 2900, 3100, 30), cfg, base.Add(5*time.Second))
	if first == nil {
		t.Fatal("expected first widening signal to fire")
	}
	// A fast collapse to 300bps (ratio ~2.57, velocity -0.55, widened 1s ago)
	// meets the narrowing trigger; only the signal interval holds it back.
	second := s.Analyze(depthSnapshot("ETHUSDT", 2955, 3045, 100), cfg, base.Add(6*time.Second))
	if second != nil {
		t.Fatalf("expected rate limiting to suppress a second signal within the interval, got %+v", second)
	}
}
