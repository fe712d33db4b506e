package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"realtime-strategies/internal/model"
)

// TestTickerVelocityScenario mirrors spec scenario S3.
func TestTickerVelocityScenario(t *testing.T) {
	s := NewTickerVelocity()
	cfg := TickerVelocityConfig{BuyThreshold: 0.5, SellThreshold: -0.5, TimeWindow: 60 * time.Second}
	base := time.Unix(0, 0)

	s.Analyze(&model.TickerUpdate{Symbol: "ETHUSDT", LastPrice: decimal.NewFromInt(3000)}, cfg, base)
	s.Analyze(&model.TickerUpdate{Symbol: "ETHUSDT", LastPrice: decimal.NewFromInt(3003)}, cfg, base.Add(30*time.Second))
	sig := s.Analyze(&model.TickerUpdate{Symbol: "ETHUSDT", LastPrice: decimal.NewFromInt(3006)}, cfg, base.Add(60*time.Second))
	if sig != nil {
		t.Fatalf("expected no signal at velocity 0.2, got %+v", sig)
	}

	// Replay the window with the final tick at 3020 instead of 3006.
	s2 := NewTickerVelocity()
	s2.Analyze(&model.TickerUpdate{Symbol: "ETHUSDT", LastPrice: decimal.NewFromInt(3000)}, cfg, base)
	s2.Analyze(&model.TickerUpdate{Symbol: "ETHUSDT", LastPrice: decimal.NewFromInt(3003)}, cfg, base.Add(30*time.Second))
	sig2 := s2.Analyze(&model.TickerUpdate{Symbol: "ETHUSDT", LastPrice: decimal.NewFromInt(3020)}, cfg, base.Add(60*time.Second))
	if sig2 == nil {
		t.Fatal("expected a BUY signal at velocity ~0.667")
	}
	if sig2.Type != model.TypeBuy {
		t.Fatalf("expected BUY, got %s", sig2.Type)
	}
	want := math.Min(0.95, 0.6+0.6667/10)
	if math.Abs(sig2.ConfidenceScore-want) > 1e-3 {
		t.Fatalf("expected confidence ~%.4f, got %.4f", want, sig2.ConfidenceScore)
	}
}

func TestTickerVelocityWindowEviction(t *testing.T) {
	s := NewTickerVelocity()
	cfg := TickerVelocityConfig{BuyThreshold: 0.1, SellThreshold: -0.1, TimeWindow: 10 * time.Second}
	base := time.Unix(0, 0)
	s.Analyze(&model.TickerUpdate{Symbol: "X", LastPrice: decimal.NewFromInt(100)}, cfg, base)
	// Far beyond the window: the first point should be evicted, leaving < 2 points.
	sig := s.Analyze(&model.TickerUpdate{Symbol: "X", LastPrice: decimal.NewFromInt(200)}, cfg, base.Add(time.Hour))
	if sig != nil {
		t.Fatalf("expected no signal once the prior point ages out of the window, got %+v", sig)
	}
}
