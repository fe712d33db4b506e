package strategy

import (
	"math"
	"testing"
	"time"

	"realtime-strategies/internal/model"
)

// depthWithLevel builds a 5-level book where the bid side's top level is the
// price under observation, with the remaining levels padded out so the book
// shape stays realistic.
func depthWithLevel(symbol string, levelPrice, levelQty, midOffset float64) *model.DepthSnapshot {
	step := midOffset / 2
	if step == 0 {
		step = 0.0001
	}
	bids := []model.Level{
		level(levelPrice, levelQty),
		level(levelPrice-step, 5),
		level(levelPrice-2*step, 5),
		level(levelPrice-3*step, 5),
		level(levelPrice-4*step, 5),
	}
	askTop := levelPrice + 2*midOffset
	asks := []model.Level{
		level(askTop, 5),
		level(askTop+step, 5),
		level(askTop+2*step, 5),
		level(askTop+3*step, 5),
		level(askTop+4*step, 5),
	}
	return &model.DepthSnapshot{Symbol: symbol, Bids: bids, Asks: asks}
}

// TestIcebergRefillBuy mirrors spec scenario S5: a bid-side level at 0.5000
// refilled three times in quick succession triggers a refill-pattern BUY.
func TestIcebergRefillBuy(t *testing.T) {
	s := NewIcebergDetector()
	cfg := IcebergConfig{
		MinRefillCount:              3,
		RefillSpeedThresholdSeconds: 5 * time.Second,
		LevelProximityPct:           1.0,
		HistoryWindowSeconds:        time.Hour,
	}
	base := time.Unix(0, 0)
	// mid is pinned at 0.5002 throughout via a tiny, constant ask offset.
	const midOffset = 0.0002

	steps := []struct {
		offset time.Duration
		qty    float64
	}{
		{0, 2.0},
		{5 * time.Second, 0.2},
		{8 * time.Second, 2.0},
		{15 * time.Second, 0.3},
		{18 * time.Second, 2.0},
		{25 * time.Second, 0.1},
		{28 * time.Second, 2.0},
	}

	var sig *model.InternalSignal
	for i, step := range steps {
		d := depthWithLevel("XRPUSDT", 0.5000, step.qty, midOffset)
		sig = s.Analyze(d, cfg, base.Add(step.offset))
		if i < len(steps)-1 && sig != nil {
			t.Fatalf("unexpected signal at step %d: %+v", i, sig)
		}
	}

	if sig == nil {
		t.Fatal("expected a refill BUY signal on the final sample")
	}
	if sig.Type != model.TypeBuy {
		t.Fatalf("expected BUY, got %s", sig.Type)
	}
	if sig.Metadata["pattern"] != "refill" {
		t.Fatalf("expected pattern=refill, got %v", sig.Metadata["pattern"])
	}
	wantConfidence := 0.65
	if math.Abs(sig.ConfidenceScore-wantConfidence) > 1e-9 {
		t.Fatalf("expected confidence %.4f, got %.4f", wantConfidence, sig.ConfidenceScore)
	}
	if sig.TakeProfit == nil {
		t.Fatal("expected take-profit to be set")
	}
	tp, _ := sig.TakeProfit.Float64()
	if math.Abs(tp-0.506) > 0.0005 {
		t.Fatalf("expected take-profit ~0.506, got %.4f", tp)
	}
}

func TestIcebergProximitySuppression(t *testing.T) {
	s := NewIcebergDetector()
	cfg := IcebergConfig{
		MinRefillCount:              1,
		RefillSpeedThresholdSeconds: 5 * time.Second,
		LevelProximityPct:           1.0,
		HistoryWindowSeconds:        time.Hour,
	}
	base := time.Unix(0, 0)
	// The single refill meets MinRefillCount, but mid (0.60) is 20% away from
	// the 0.50 level, so proximity suppresses.
	steps := []struct {
		offset time.Duration
		qty    float64
	}{
		{0, 2.0},
		{5 * time.Second, 0.2},
		{8 * time.Second, 2.0},
	}
	var sig *model.InternalSignal
	for _, step := range steps {
		d := depthWithLevel("XRPUSDT", 0.5000, step.qty, 0.10)
		sig = s.Analyze(d, cfg, base.Add(step.offset))
	}
	if sig != nil {
		t.Fatalf("expected proximity check to suppress signal far from mid, got %+v", sig)
	}
}

func TestIcebergMaxSymbolsEviction(t *testing.T) {
	s := NewIcebergDetector()
	cfg := IcebergConfig{MaxSymbols: 2, HistoryWindowSeconds: time.Hour}
	base := time.Unix(0, 0)
	s.Analyze(depthWithLevel("AAA", 1.0, 1.0, 0.001), cfg, base)
	s.Analyze(depthWithLevel("BBB", 1.0, 1.0, 0.001), cfg, base)
	s.Analyze(depthWithLevel("CCC", 1.0, 1.0, 0.001), cfg, base)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.symbols) != 2 {
		t.Fatalf("expected max-symbols eviction to keep exactly 2 symbols, got %d", len(s.symbols))
	}
	if _, ok := s.symbols["AAA"]; ok {
		t.Fatal("expected the oldest symbol to be evicted")
	}
}
