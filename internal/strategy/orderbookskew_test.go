package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"realtime-strategies/internal/model"
)

func level(price, qty float64) model.Level {
	return model.Level{Price: decimal.NewFromFloat(price), Quantity: decimal.NewFromFloat(qty)}
}

// TestOrderBookSkewBuyScenario mirrors spec scenario S1.
func TestOrderBookSkewBuyScenario(t *testing.T) {
	d := &model.DepthSnapshot{
		Symbol: "BTCUSDT",
		Bids: []model.Level{
			level(50000, 3), level(49999, 2), level(49998, 1), level(49997, 1), level(49996, 1),
		},
		Asks: []model.Level{
			level(50001, 0.5), level(50002, 0.4), level(50003, 0.3), level(50004, 0.2), level(50005, 0.1),
		},
		EventTime: time.Now(),
	}
	cfg := OrderBookSkewConfig{TopLevels: 5, BuyThreshold: 1.2, SellThreshold: 0.8, MinSpreadPercent: 0.1, BaseConfidence: 0.70}

	sig := NewOrderBookSkew().Analyze(d, cfg)
	if sig == nil {
		t.Fatal("expected a BUY signal")
	}
	if sig.Type != model.TypeBuy {
		t.Fatalf("expected BUY, got %s", sig.Type)
	}
	if !sig.Price.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("expected price 50000, got %s", sig.Price)
	}
	wantScore := 0.70 + (8.0/1.5-1.2)*0.5
	if wantScore > 0.95 {
		wantScore = 0.95
	}
	if diff := sig.ConfidenceScore - wantScore; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected confidence %.6f, got %.6f", wantScore, sig.ConfidenceScore)
	}
}

// TestOrderBookSkewSpreadGuard mirrors spec scenario S2.
func TestOrderBookSkewSpreadGuard(t *testing.T) {
	d := &model.DepthSnapshot{
		Symbol: "BTCUSDT",
		Bids: []model.Level{
			level(50000, 3), level(49999, 2), level(49998, 1), level(49997, 1), level(49996, 1),
		},
		Asks: []model.Level{
			level(50100, 0.5), level(50102, 0.4), level(50103, 0.3), level(50104, 0.2), level(50105, 0.1),
		},
	}
	cfg := OrderBookSkewConfig{TopLevels: 5, BuyThreshold: 1.2, SellThreshold: 0.8, MinSpreadPercent: 0.1, BaseConfidence: 0.70}

	if sig := NewOrderBookSkew().Analyze(d, cfg); sig != nil {
		t.Fatalf("expected no signal due to wide spread, got %+v", sig)
	}
}

func TestOrderBookSkewZeroAskSum(t *testing.T) {
	d := &model.DepthSnapshot{
		Symbol: "BTCUSDT",
		Bids:   []model.Level{level(100, 1)},
		Asks:   []model.Level{level(101, 0)},
	}
	cfg := OrderBookSkewConfig{TopLevels: 1, BuyThreshold: 1.2, SellThreshold: 0.8, MinSpreadPercent: 10, BaseConfidence: 0.7}
	if sig := NewOrderBookSkew().Analyze(d, cfg); sig != nil {
		t.Fatalf("expected nil signal on zero ask volume, got %+v", sig)
	}
}
