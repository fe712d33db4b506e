// Package configmgr resolves, persists, and audits per-strategy runtime
// parameters, per §4.9.
package configmgr

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable signals that the document store could not be reached;
// reads fall through the priority chain, writes return this as a transient
// failure, per §4.9's backward-compatibility clause.
var ErrStoreUnavailable = errors.New("configmgr: document store unavailable")

// StrategyInfo summarizes one strategy's configuration coverage, per the
// list-strategies() operation.
type StrategyInfo struct {
	StrategyID      string
	HasGlobalConfig bool
	SymbolOverrides []string
	ParameterCount  int
}

// Manager resolves configuration through the cache → symbol → global → env
// → defaults priority chain, persists writes with an audit trail, and
// serves the bounded-cadence refresh strategies rely on, per §4.9.
type Manager struct {
	store       Store
	cache       *cache
	storeDeadline time.Duration
}

func NewManager(store Store, cacheTTL time.Duration) *Manager {
	return &Manager{store: store, cache: newCache(cacheTTL), storeDeadline: 5 * time.Second}
}

func (m *Manager) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.storeDeadline)
}

// Get resolves a strategy's parameters through the full priority chain:
// cache → symbol-specific store doc → global store doc → environment →
// compiled defaults. It never errors; an unreachable store degrades to
// the lower tiers, per §4.9's backward-compatibility clause.
func (m *Manager) Get(ctx context.Context, strategyID, symbol string) ResolvedConfig {
	now := time.Now()
	key := cacheKey(strategyID, symbol)
	if cfg, ok := m.cache.get(key, now); ok {
		return cfg
	}

	if m.store != nil {
		storeCtx, cancel := m.withDeadline(ctx)
		if symbol != "" {
			if doc, err := m.store.GetSymbolConfig(storeCtx, strategyID, symbol); err == nil && doc != nil {
				cancel()
				cfg := ResolvedConfig{Parameters: doc.Parameters, Version: doc.Version, Source: "db-symbol", IsOverride: true}
				m.cache.set(key, cfg, now)
				return cfg
			}
		}
		cancel()

		storeCtx2, cancel2 := m.withDeadline(ctx)
		if doc, err := m.store.GetGlobalConfig(storeCtx2, strategyID); err == nil && doc != nil {
			cancel2()
			cfg := ResolvedConfig{Parameters: doc.Parameters, Version: doc.Version, Source: "db-global", IsOverride: false}
			m.cache.set(key, cfg, now)
			return cfg
		}
		cancel2()
	}

	if envParams := envParameters(strategyID); envParams != nil {
		cfg := ResolvedConfig{Parameters: envParams, Version: 0, Source: "env", IsOverride: false}
		m.cache.set(key, cfg, now)
		return cfg
	}

	cfg := ResolvedConfig{Parameters: DefaultsFor(strategyID), Version: 0, Source: "default", IsOverride: false}
	m.cache.set(key, cfg, now)
	return cfg
}

// Set validates and persists a strategy's parameters (global, or
// symbol-scoped when symbol != ""), writes an audit record, and
// invalidates the affected cache key, per §4.9.
func (m *Manager) Set(ctx context.Context, strategyID, symbol string, parameters map[string]interface{}, changedBy, reason string, validateOnly bool) ([]string, error) {
	if errs := ValidateParameters(strategyID, parameters); len(errs) > 0 {
		return errs, nil
	}
	if validateOnly {
		return nil, nil
	}
	if m.store == nil {
		return nil, ErrStoreUnavailable
	}

	storeCtx, cancel := m.withDeadline(ctx)
	defer cancel()

	var existing *ConfigDoc
	var err error
	if symbol != "" {
		existing, err = m.store.GetSymbolConfig(storeCtx, strategyID, symbol)
	} else {
		existing, err = m.store.GetGlobalConfig(storeCtx, strategyID)
	}
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	var doc *ConfigDoc
	if symbol != "" {
		doc, err = m.store.UpsertSymbolConfig(storeCtx, strategyID, symbol, parameters, changedBy)
	} else {
		doc, err = m.store.UpsertGlobalConfig(storeCtx, strategyID, parameters, changedBy)
	}
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	action := "CREATE"
	var oldParams map[string]interface{}
	if existing != nil {
		action = "UPDATE"
		oldParams = withVersion(existing.Parameters, existing.Version)
	}
	audit := AuditRecord{
		StrategyID:    strategyID,
		Symbol:        symbol,
		Action:        action,
		OldParameters: oldParams,
		NewParameters: withVersion(parameters, doc.Version),
		ChangedBy:     changedBy,
		ChangedAt:     time.Now().UTC(),
		Reason:        reason,
	}
	if err := m.store.CreateAuditRecord(storeCtx, audit); err != nil {
		return nil, ErrStoreUnavailable
	}

	m.cache.invalidate(cacheKey(strategyID, symbol))
	return nil, nil
}

// Delete removes a strategy's configuration (global, or symbol-scoped),
// writes an audit record, and invalidates the affected cache key.
func (m *Manager) Delete(ctx context.Context, strategyID, symbol, changedBy, reason string) error {
	if m.store == nil {
		return ErrStoreUnavailable
	}
	storeCtx, cancel := m.withDeadline(ctx)
	defer cancel()

	var existing *ConfigDoc
	var err error
	if symbol != "" {
		existing, err = m.store.GetSymbolConfig(storeCtx, strategyID, symbol)
	} else {
		existing, err = m.store.GetGlobalConfig(storeCtx, strategyID)
	}
	if err != nil {
		return ErrStoreUnavailable
	}

	if symbol != "" {
		err = m.store.DeleteSymbolConfig(storeCtx, strategyID, symbol)
	} else {
		err = m.store.DeleteGlobalConfig(storeCtx, strategyID)
	}
	if err != nil {
		return ErrStoreUnavailable
	}

	if existing != nil {
		audit := AuditRecord{
			StrategyID:    strategyID,
			Symbol:        symbol,
			Action:        "DELETE",
			OldParameters: existing.Parameters,
			ChangedBy:     changedBy,
			ChangedAt:     time.Now().UTC(),
			Reason:        reason,
		}
		if err := m.store.CreateAuditRecord(storeCtx, audit); err != nil {
			return ErrStoreUnavailable
		}
	}

	m.cache.invalidate(cacheKey(strategyID, symbol))
	return nil
}

// ListStrategies enumerates every registered strategy with override counts.
func (m *Manager) ListStrategies(ctx context.Context) []StrategyInfo {
	out := make([]StrategyInfo, 0, len(ListStrategies()))
	for _, id := range ListStrategies() {
		info := StrategyInfo{StrategyID: id, ParameterCount: len(DefaultsFor(id))}
		if m.store != nil {
			storeCtx, cancel := m.withDeadline(ctx)
			if doc, err := m.store.GetGlobalConfig(storeCtx, id); err == nil {
				info.HasGlobalConfig = doc != nil
			}
			if overrides, err := m.store.ListSymbolOverrides(storeCtx, id); err == nil {
				info.SymbolOverrides = overrides
			}
			cancel()
		}
		out = append(out, info)
	}
	return out
}

// Audit returns the paginated change history for a strategy.
func (m *Manager) Audit(ctx context.Context, strategyID, symbol string, limit int) ([]AuditRecord, error) {
	if m.store == nil {
		return nil, nil
	}
	storeCtx, cancel := m.withDeadline(ctx)
	defer cancel()
	return m.store.GetAuditTrail(storeCtx, strategyID, symbol, limit)
}

// Refresh forces full cache invalidation.
func (m *Manager) Refresh() {
	m.cache.refresh()
}

// SweepCache drops expired cache entries; called by the periodic cache
// refresher background task, per §5.
func (m *Manager) SweepCache(now time.Time) {
	m.cache.sweepExpired(now)
}

// GetConfigByVersion resolves a strategy's parameters as they were at a
// specific prior version, by scanning the audit trail. Supplements §4.9
// with point-in-time reads.
func (m *Manager) GetConfigByVersion(ctx context.Context, strategyID, symbol string, version int) (map[string]interface{}, error) {
	if version < 1 {
		return nil, nil
	}
	history, err := m.Audit(ctx, strategyID, symbol, 1000)
	if err != nil {
		return nil, err
	}
	for _, rec := range history {
		if rec.NewParameters == nil {
			continue
		}
		if v, ok := rec.NewParameters["version"]; ok {
			if iv, ok := toFloat(v); ok && int(iv) == version {
				return withoutVersion(rec.NewParameters), nil
			}
		}
	}
	return nil, nil
}

// Rollback restores a strategy's parameters to a previous version (or the
// immediately preceding one if no target is given), re-validating and
// auditing the restore as an ordinary Set. Supplements §4.9.
func (m *Manager) Rollback(ctx context.Context, strategyID, symbol string, targetVersion int, changedBy, reason string) ([]string, error) {
	var restoreParams map[string]interface{}

	if targetVersion > 0 {
		params, err := m.GetConfigByVersion(ctx, strategyID, symbol, targetVersion)
		if err != nil {
			return nil, err
		}
		if params == nil {
			return []string{"target version not found"}, nil
		}
		restoreParams = params
	} else {
		history, err := m.Audit(ctx, strategyID, symbol, 2)
		if err != nil {
			return nil, err
		}
		if len(history) == 0 {
			return []string{"no previous configuration to roll back to"}, nil
		}
		latest := history[0]
		if latest.Action == "UPDATE" && latest.OldParameters != nil {
			restoreParams = withoutVersion(latest.OldParameters)
		} else if len(history) >= 2 && history[1].NewParameters != nil {
			restoreParams = withoutVersion(history[1].NewParameters)
		}
		if restoreParams == nil {
			return []string{"no previous configuration to roll back to"}, nil
		}
	}

	if reason == "" {
		reason = "rollback"
	}
	return m.Set(ctx, strategyID, symbol, restoreParams, changedBy, reason, false)
}

func withoutVersion(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k != "version" {
			out[k] = v
		}
	}
	return out
}

func withVersion(params map[string]interface{}, version int) map[string]interface{} {
	out := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["version"] = version
	return out
}
