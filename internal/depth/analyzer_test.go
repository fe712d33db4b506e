package depth

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"realtime-strategies/internal/model"
)

func lvl(price, qty float64) model.Level {
	return model.Level{Price: decimal.NewFromFloat(price), Quantity: decimal.NewFromFloat(qty)}
}

func TestAnalyzeComputesCoreMetrics(t *testing.T) {
	a := NewAnalyzer(5*time.Minute, 100)
	d := &model.DepthSnapshot{
		Symbol: "BTCUSDT",
		Bids:   []model.Level{lvl(50000, 2), lvl(49990, 3)},
		Asks:   []model.Level{lvl(50010, 1), lvl(50020, 4)},
	}
	m := a.Analyze(d, time.Unix(0, 0))

	if m.BidVolume != 5 || m.AskVolume != 5 {
		t.Fatalf("expected bid/ask volume 5/5, got %.2f/%.2f", m.BidVolume, m.AskVolume)
	}
	if m.ImbalanceRatio != 0 {
		t.Fatalf("expected balanced book, got imbalance %.4f", m.ImbalanceRatio)
	}
	if m.BestBid != 50000 || m.BestAsk != 50010 {
		t.Fatalf("unexpected best bid/ask: %.2f/%.2f", m.BestBid, m.BestAsk)
	}
	if m.MidPrice != 50005 {
		t.Fatalf("expected mid 50005, got %.2f", m.MidPrice)
	}
	wantSpreadBps := 10.0 / 50005 * 10000
	if math.Abs(m.SpreadBps-wantSpreadBps) > 1e-6 {
		t.Fatalf("expected spread-bps %.6f, got %.6f", wantSpreadBps, m.SpreadBps)
	}
	if m.StrongestBidPrice != 49990 || m.StrongestBidQty != 3 {
		t.Fatalf("expected strongest bid level (49990, 3), got (%.2f, %.2f)", m.StrongestBidPrice, m.StrongestBidQty)
	}

	got, ok := a.Current("BTCUSDT")
	if !ok || got.Symbol != "BTCUSDT" {
		t.Fatal("expected current() to return the just-recorded metrics")
	}
}

func TestPressureHistoryTrendClassification(t *testing.T) {
	a := NewAnalyzer(5*time.Minute, 100)
	base := time.Unix(0, 0)
	// 10 strongly bid-heavy snapshots: net-pressure well above +20.
	for i := 0; i < 10; i++ {
		d := &model.DepthSnapshot{
			Symbol: "ETHUSDT",
			Bids:   []model.Level{lvl(3000, 90)},
			Asks:   []model.Level{lvl(3001, 10)},
		}
		a.Analyze(d, base.Add(time.Duration(i)*time.Second))
	}
	hist, ok := a.PressureHistoryFor("ETHUSDT", "5m")
	if !ok {
		t.Fatal("expected pressure history to be present")
	}
	if hist.Trend != "bullish" {
		t.Fatalf("expected bullish trend, got %s", hist.Trend)
	}
	if hist.TrendStrength <= 0 || hist.TrendStrength > 1 {
		t.Fatalf("expected trend-strength in (0,1], got %.4f", hist.TrendStrength)
	}
}

func TestSweepRemovesExpiredSymbols(t *testing.T) {
	a := NewAnalyzer(1*time.Minute, 100)
	a.Analyze(&model.DepthSnapshot{Symbol: "X", Bids: []model.Level{lvl(1, 1)}, Asks: []model.Level{lvl(2, 1)}}, time.Unix(0, 0))
	removed := a.Sweep(time.Unix(0, 0).Add(2 * time.Minute))
	if removed != 1 {
		t.Fatalf("expected 1 symbol swept, got %d", removed)
	}
	if _, ok := a.Current("X"); ok {
		t.Fatal("expected expired symbol to be gone")
	}
}

func TestSummaryAggregation(t *testing.T) {
	a := NewAnalyzer(5*time.Minute, 100)
	a.Analyze(&model.DepthSnapshot{Symbol: "A", Bids: []model.Level{lvl(1, 90)}, Asks: []model.Level{lvl(1.01, 10)}}, time.Unix(0, 0))
	a.Analyze(&model.DepthSnapshot{Symbol: "B", Bids: []model.Level{lvl(1, 10)}, Asks: []model.Level{lvl(1.01, 90)}}, time.Unix(0, 0))
	s := a.Summary()
	if s.SymbolsTracked != 2 {
		t.Fatalf("expected 2 symbols tracked, got %d", s.SymbolsTracked)
	}
	if s.BullishSymbols != 1 || s.BearishSymbols != 1 {
		t.Fatalf("expected 1 bullish, 1 bearish, got %d/%d", s.BullishSymbols, s.BearishSymbols)
	}
}
