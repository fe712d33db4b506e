package configmgr

import (
	"context"
	"os"
	"testing"
	"time"
)

// fakeStore is an in-memory Store used to exercise the priority chain,
// audit trail, and rollback logic without a live MongoDB.
type fakeStore struct {
	global map[string]*ConfigDoc
	symbol map[string]*ConfigDoc // key: strategyID+"/"+symbol
	audit  []AuditRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{global: map[string]*ConfigDoc{}, symbol: map[string]*ConfigDoc{}}
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) GetGlobalConfig(ctx context.Context, strategyID string) (*ConfigDoc, error) {
	return f.global[strategyID], nil
}
func (f *fakeStore) GetSymbolConfig(ctx context.Context, strategyID, symbol string) (*ConfigDoc, error) {
	return f.symbol[strategyID+"/"+symbol], nil
}
func (f *fakeStore) UpsertGlobalConfig(ctx context.Context, strategyID string, parameters map[string]interface{}, changedBy string) (*ConfigDoc, error) {
	existing := f.global[strategyID]
	version := 1
	if existing != nil {
		version = existing.Version + 1
	}
	doc := &ConfigDoc{StrategyID: strategyID, Parameters: parameters, Version: version, UpdatedAt: time.Now(), CreatedBy: changedBy}
	f.global[strategyID] = doc
	return doc, nil
}
func (f *fakeStore) UpsertSymbolConfig(ctx context.Context, strategyID, symbol string, parameters map[string]interface{}, changedBy string) (*ConfigDoc, error) {
	key := strategyID + "/" + symbol
	existing := f.symbol[key]
	version := 1
	if existing != nil {
		version = existing.Version + 1
	}
	doc := &ConfigDoc{StrategyID: strategyID, Symbol: symbol, Parameters: parameters, Version: version, UpdatedAt: time.Now(), CreatedBy: changedBy}
	f.symbol[key] = doc
	return doc, nil
}
func (f *fakeStore) DeleteGlobalConfig(ctx context.Context, strategyID string) error {
	delete(f.global, strategyID)
	return nil
}
func (f *fakeStore) DeleteSymbolConfig(ctx context.Context, strategyID, symbol string) error {
	delete(f.symbol, strategyID+"/"+symbol)
	return nil
}
func (f *fakeStore) ListSymbolOverrides(ctx context.Context, strategyID string) ([]string, error) {
	var out []string
	for _, doc := range f.symbol {
		if doc.StrategyID == strategyID {
			out = append(out, doc.Symbol)
		}
	}
	return out, nil
}
func (f *fakeStore) CreateAuditRecord(ctx context.Context, rec AuditRecord) error {
	f.audit = append([]AuditRecord{rec}, f.audit...) // most recent first
	return nil
}
func (f *fakeStore) GetAuditTrail(ctx context.Context, strategyID, symbol string, limit int) ([]AuditRecord, error) {
	var out []AuditRecord
	for _, rec := range f.audit {
		if rec.StrategyID != strategyID {
			continue
		}
		if symbol != "" && rec.Symbol != symbol {
			continue
		}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// TestResolutionFallthrough mirrors spec scenario S6.
func TestResolutionFallthrough(t *testing.T) {
	os.Setenv("ORDERBOOK_SKEW_BUY_THRESHOLD", "1.2")
	defer os.Unsetenv("ORDERBOOK_SKEW_BUY_THRESHOLD")

	store := newFakeStore()
	mgr := NewManager(store, time.Minute)
	ctx := context.Background()

	store.global["orderbook_skew"] = &ConfigDoc{StrategyID: "orderbook_skew", Parameters: map[string]interface{}{"buy_threshold": 1.3}, Version: 1}

	cfg := mgr.Get(ctx, "orderbook_skew", "BTCUSDT")
	if cfg.Source != "db-global" || cfg.Parameters["buy_threshold"] != 1.3 {
		t.Fatalf("expected db-global 1.3, got source=%s params=%v", cfg.Source, cfg.Parameters)
	}

	errs, err := mgr.Set(ctx, "orderbook_skew", "BTCUSDT", map[string]interface{}{"buy_threshold": 1.5}, "tester", "", false)
	if err != nil || len(errs) > 0 {
		t.Fatalf("unexpected set error: %v %v", err, errs)
	}
	mgr.Refresh()

	cfg = mgr.Get(ctx, "orderbook_skew", "BTCUSDT")
	if cfg.Source != "db-symbol" || !cfg.IsOverride || cfg.Parameters["buy_threshold"] != 1.5 {
		t.Fatalf("expected db-symbol override 1.5, got source=%s override=%v params=%v", cfg.Source, cfg.IsOverride, cfg.Parameters)
	}

	if err := mgr.Delete(ctx, "orderbook_skew", "BTCUSDT", "tester", ""); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	mgr.Refresh()
	cfg = mgr.Get(ctx, "orderbook_skew", "BTCUSDT")
	if cfg.Source != "db-global" || cfg.Parameters["buy_threshold"] != 1.3 {
		t.Fatalf("expected fallback to db-global 1.3, got source=%s params=%v", cfg.Source, cfg.Parameters)
	}

	if err := mgr.Delete(ctx, "orderbook_skew", "", "tester", ""); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	mgr.Refresh()
	cfg = mgr.Get(ctx, "orderbook_skew", "BTCUSDT")
	if cfg.Source != "env" || cfg.Parameters["buy_threshold"] != 1.2 {
		t.Fatalf("expected env fallback 1.2, got source=%s params=%v", cfg.Source, cfg.Parameters)
	}

	os.Unsetenv("ORDERBOOK_SKEW_BUY_THRESHOLD")
	mgr.Refresh()
	cfg = mgr.Get(ctx, "orderbook_skew", "BTCUSDT")
	if cfg.Source != "default" {
		t.Fatalf("expected default fallback, got source=%s", cfg.Source)
	}
}

func TestSetValidationRejectsOutOfRange(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, time.Minute)
	errs, err := mgr.Set(context.Background(), "orderbook_skew", "", map[string]interface{}{"buy_threshold": 50.0}, "tester", "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errs) == 0 {
		t.Fatal("expected validation errors for an out-of-range buy_threshold")
	}
}

func TestAuditAppendsOneRecordPerWrite(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, time.Minute)
	ctx := context.Background()
	mgr.Set(ctx, "orderbook_skew", "", map[string]interface{}{"buy_threshold": 1.4}, "tester", "", false)
	mgr.Set(ctx, "orderbook_skew", "", map[string]interface{}{"buy_threshold": 1.6}, "tester", "", false)

	records, err := mgr.Audit(ctx, "orderbook_skew", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(records))
	}
}

func TestRollbackToPreviousVersion(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, time.Minute)
	ctx := context.Background()

	mgr.Set(ctx, "orderbook_skew", "", map[string]interface{}{"buy_threshold": 1.4}, "tester", "", false)
	mgr.Set(ctx, "orderbook_skew", "", map[string]interface{}{"buy_threshold": 1.6}, "tester", "", false)

	errs, err := mgr.Rollback(ctx, "orderbook_skew", "", 0, "tester", "")
	if err != nil || len(errs) > 0 {
		t.Fatalf("unexpected rollback error: %v %v", err, errs)
	}
	mgr.Refresh()
	cfg := mgr.Get(ctx, "orderbook_skew", "")
	if cfg.Parameters["buy_threshold"] != 1.4 {
		t.Fatalf("expected rollback to restore buy_threshold=1.4, got %v", cfg.Parameters["buy_threshold"])
	}
}

func TestGetConfigByVersion(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, time.Minute)
	ctx := context.Background()

	mgr.Set(ctx, "orderbook_skew", "", map[string]interface{}{"buy_threshold": 1.4}, "tester", "", false)
	mgr.Set(ctx, "orderbook_skew", "", map[string]interface{}{"buy_threshold": 1.6}, "tester", "", false)

	params, err := mgr.GetConfigByVersion(ctx, "orderbook_skew", "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params == nil || params["buy_threshold"] != 1.4 {
		t.Fatalf("expected version 1 to carry buy_threshold=1.4, got %v", params)
	}
}
