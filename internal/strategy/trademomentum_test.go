package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"realtime-strategies/internal/model"
)

func TestTradeMomentumFirstTradeNoPriceMomentum(t *testing.T) {
	s := NewTradeMomentum()
	cfg := TradeMomentumConfig{BuyThreshold: 0.2, SellThreshold: -0.2}
	tr := &model.Trade{Symbol: "ETHUSDT", Price: decimal.NewFromInt(3000), Quantity: decimal.NewFromFloat(1.0), IsBuyerMaker: false}

	sig := s.Analyze(tr, cfg)
	// priceMomentum=0 (no prior price), quantityScore=1 (qty==avgQty on first sample), makerScore=+1
	// momentum = 0.4*0 + 0.3*1 + 0.3*1 = 0.6 > buyThreshold
	if sig == nil {
		t.Fatal("expected a BUY signal on first trade with aggressive buyer")
	}
	if sig.Type != model.TypeBuy {
		t.Fatalf("expected BUY, got %s", sig.Type)
	}
}

func TestTradeMomentumSellerAggressorBearish(t *testing.T) {
	s := NewTradeMomentum()
	cfg := TradeMomentumConfig{BuyThreshold: 0.9, SellThreshold: -0.2}
	tr1 := &model.Trade{Symbol: "ETHUSDT", Price: decimal.NewFromInt(3000), Quantity: decimal.NewFromFloat(10.0), IsBuyerMaker: true}
	s.Analyze(tr1, cfg)

	tr2 := &model.Trade{Symbol: "ETHUSDT", Price: decimal.NewFromInt(2700), Quantity: decimal.NewFromFloat(1.0), IsBuyerMaker: true}
	sig := s.Analyze(tr2, cfg)
	if sig == nil {
		t.Fatal("expected a SELL signal from seller-aggressor declining price with thin quantity")
	}
	if sig.Type != model.TypeSell {
		t.Fatalf("expected SELL, got %s", sig.Type)
	}
}
