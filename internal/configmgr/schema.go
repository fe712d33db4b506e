package configmgr

import "fmt"

// ParameterSchema describes one strategy parameter's type and constraints,
// mirroring original_source's ParameterSchema model.
type ParameterSchema struct {
	Name          string
	Type          string // "int", "float", "bool", "string"
	Description   string
	Default       interface{}
	Min           *float64
	Max           *float64
	AllowedValues []interface{}
}

func floatPtr(f float64) *float64 { return &f }

// strategySchemas is the compiled-defaults schema per strategy, per §3.3.
// Keys match the parameter maps that strategies unmarshal their config
// structs from.
var strategySchemas = map[string][]ParameterSchema{
	"orderbook_skew": {
		{Name: "top_levels", Type: "int", Description: "order book levels summed per side", Default: 5, Min: floatPtr(1), Max: floatPtr(50)},
		{Name: "buy_threshold", Type: "float", Description: "bid/ask ratio above which a BUY fires", Default: 1.5, Min: floatPtr(1.0), Max: floatPtr(10.0)},
		{Name: "sell_threshold", Type: "float", Description: "bid/ask ratio below which a SELL fires", Default: 0.67, Min: floatPtr(0.1), Max: floatPtr(1.0)},
		{Name: "min_spread_percent", Type: "float", Description: "spread above which the signal is suppressed", Default: 0.5, Min: floatPtr(0), Max: floatPtr(10)},
		{Name: "base_confidence", Type: "float", Description: "confidence floor before the ratio bonus", Default: 0.70, Min: floatPtr(0), Max: floatPtr(1)},
	},
	"trade_momentum": {
		{Name: "buy_threshold", Type: "float", Description: "momentum above which a BUY fires", Default: 0.2, Min: floatPtr(-1), Max: floatPtr(1)},
		{Name: "sell_threshold", Type: "float", Description: "momentum below which a SELL fires", Default: -0.2, Min: floatPtr(-1), Max: floatPtr(1)},
		{Name: "base_confidence", Type: "float", Description: "not read by the momentum confidence formula, which starts from a fixed 0.65", Default: 0.65, Min: floatPtr(0), Max: floatPtr(1)},
	},
	"ticker_velocity": {
		{Name: "time_window_seconds", Type: "int", Description: "age window for the price-velocity ring", Default: 60, Min: floatPtr(1), Max: floatPtr(3600)},
		{Name: "buy_threshold", Type: "float", Description: "velocity (%/min) above which a BUY fires", Default: 0.5, Min: floatPtr(0), Max: floatPtr(100)},
		{Name: "sell_threshold", Type: "float", Description: "velocity (%/min) below which a SELL fires", Default: -0.5, Min: floatPtr(-100), Max: floatPtr(0)},
	},
	"spread_liquidity": {
		{Name: "spread_threshold_bps", Type: "float", Description: "prior spread-bps ceiling for the widening regime", Default: 5, Min: floatPtr(0), Max: floatPtr(1000)},
		{Name: "spread_ratio_threshold", Type: "float", Description: "current/average spread ratio trigger", Default: 2.5, Min: floatPtr(1), Max: floatPtr(100)},
		{Name: "velocity_threshold", Type: "float", Description: "fractional spread change trigger", Default: 0.5, Min: floatPtr(0), Max: floatPtr(10)},
		{Name: "persistence_threshold_seconds", Type: "int", Description: "minimum widened duration before narrowing is eligible", Default: 30, Min: floatPtr(0), Max: floatPtr(3600)},
		{Name: "base_confidence", Type: "float", Description: "confidence floor", Default: 0.70, Min: floatPtr(0), Max: floatPtr(1)},
		{Name: "lookback_ticks", Type: "int", Description: "rolling-average window size", Default: 20, Min: floatPtr(2), Max: floatPtr(900)},
		{Name: "min_signal_interval_seconds", Type: "int", Description: "per-symbol rate limit", Default: 60, Min: floatPtr(0), Max: floatPtr(3600)},
	},
	"iceberg_detector": {
		{Name: "min_refill_count", Type: "int", Description: "cumulative refills required to fire", Default: 3, Min: floatPtr(1), Max: floatPtr(50)},
		{Name: "refill_speed_threshold_seconds", Type: "int", Description: "maximum dip-to-refill gap", Default: 5, Min: floatPtr(1), Max: floatPtr(600)},
		{Name: "consistency_threshold", Type: "float", Description: "coefficient-of-variation ceiling for consistent-size", Default: 0.15, Min: floatPtr(0), Max: floatPtr(1)},
		{Name: "persistence_threshold_seconds", Type: "int", Description: "continuous observation required for anchoring", Default: 300, Min: floatPtr(1), Max: floatPtr(3600)},
		{Name: "level_proximity_pct", Type: "float", Description: "max distance from mid for a signal to fire", Default: 1.0, Min: floatPtr(0), Max: floatPtr(100)},
		{Name: "base_confidence", Type: "float", Description: "confidence floor for consistent-size", Default: 0.70, Min: floatPtr(0), Max: floatPtr(1)},
		{Name: "max_symbols", Type: "int", Description: "bounded symbol-level map size", Default: 500, Min: floatPtr(1), Max: floatPtr(10000)},
		{Name: "history_window_seconds", Type: "int", Description: "per-level sample retention", Default: 300, Min: floatPtr(1), Max: floatPtr(3600)},
		{Name: "min_signal_interval_seconds", Type: "int", Description: "per-symbol rate limit", Default: 60, Min: floatPtr(0), Max: floatPtr(3600)},
	},
}

// ListStrategies returns every registered strategy id, in a stable order.
func ListStrategies() []string {
	return []string{"orderbook_skew", "trade_momentum", "ticker_velocity", "spread_liquidity", "iceberg_detector"}
}

// SchemaFor returns the parameter schema for a strategy.
func SchemaFor(strategyID string) ([]ParameterSchema, bool) {
	s, ok := strategySchemas[strategyID]
	return s, ok
}

// DefaultsFor compiles the default parameter map for a strategy.
func DefaultsFor(strategyID string) map[string]interface{} {
	schema, ok := strategySchemas[strategyID]
	if !ok {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(schema))
	for _, p := range schema {
		out[p.Name] = p.Default
	}
	return out
}

// ValidateParameters checks parameters against the strategy's schema,
// returning per-parameter error messages, per §4.9.
func ValidateParameters(strategyID string, parameters map[string]interface{}) []string {
	schema, ok := strategySchemas[strategyID]
	if !ok {
		return []string{fmt.Sprintf("unknown strategy %q", strategyID)}
	}
	byName := make(map[string]ParameterSchema, len(schema))
	for _, p := range schema {
		byName[p.Name] = p
	}

	var errs []string
	for name, value := range parameters {
		p, ok := byName[name]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: unknown parameter", name))
			continue
		}
		switch p.Type {
		case "int", "float":
			f, ok := toFloat(value)
			if !ok {
				errs = append(errs, fmt.Sprintf("%s: expected numeric value, got %v", name, value))
				continue
			}
			if p.Min != nil && f < *p.Min {
				errs = append(errs, fmt.Sprintf("%s: %v below minimum %v", name, value, *p.Min))
			}
			if p.Max != nil && f > *p.Max {
				errs = append(errs, fmt.Sprintf("%s: %v above maximum %v", name, value, *p.Max))
			}
		case "bool":
			if _, ok := value.(bool); !ok {
				errs = append(errs, fmt.Sprintf("%s: expected bool, got %v", name, value))
			}
		case "string":
			if _, ok := value.(string); !ok {
				errs = append(errs, fmt.Sprintf("%s: expected string, got %v", name, value))
			}
		}
		if len(p.AllowedValues) > 0 && !contains(p.AllowedValues, value) {
			errs = append(errs, fmt.Sprintf("%s: %v not in allowed values %v", name, value, p.AllowedValues))
		}
	}
	return errs
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func contains(haystack []interface{}, needle interface{}) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
