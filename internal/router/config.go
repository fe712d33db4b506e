package router

import (
	"time"

	"realtime-strategies/internal/strategy"
)

func getFloat(params map[string]interface{}, name string, def float64) float64 {
	v, ok := params[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

func getInt(params map[string]interface{}, name string, def int) int {
	return int(getFloat(params, name, float64(def)))
}

func getSeconds(params map[string]interface{}, name string, def time.Duration) time.Duration {
	return time.Duration(getFloat(params, name, def.Seconds())) * time.Second
}

func orderBookSkewConfig(p map[string]interface{}) strategy.OrderBookSkewConfig {
	return strategy.OrderBookSkewConfig{
		TopLevels:        getInt(p, "top_levels", 5),
		BuyThreshold:     getFloat(p, "buy_threshold", 1.5),
		SellThreshold:    getFloat(p, "sell_threshold", 0.67),
		MinSpreadPercent: getFloat(p, "min_spread_percent", 0.5),
		BaseConfidence:   getFloat(p, "base_confidence", 0.70),
	}
}

func tradeMomentumConfig(p map[string]interface{}) strategy.TradeMomentumConfig {
	return strategy.TradeMomentumConfig{
		BuyThreshold:   getFloat(p, "buy_threshold", 0.2),
		SellThreshold:  getFloat(p, "sell_threshold", -0.2),
		BaseConfidence: getFloat(p, "base_confidence", 0.65),
	}
}

func tickerVelocityConfig(p map[string]interface{}) strategy.TickerVelocityConfig {
	return strategy.TickerVelocityConfig{
		BuyThreshold:  getFloat(p, "buy_threshold", 0.5),
		SellThreshold: getFloat(p, "sell_threshold", -0.5),
		TimeWindow:    getSeconds(p, "time_window_seconds", 60*time.Second),
	}
}

func spreadLiquidityConfig(p map[string]interface{}) strategy.SpreadLiquidityConfig {
	return strategy.SpreadLiquidityConfig{
		SpreadThresholdBps:      getFloat(p, "spread_threshold_bps", 5),
		SpreadRatioThreshold:    getFloat(p, "spread_ratio_threshold", 2.5),
		VelocityThreshold:       getFloat(p, "velocity_threshold", 0.5),
		PersistenceThreshold:    getSeconds(p, "persistence_threshold_seconds", 30*time.Second),
		BaseConfidence:          getFloat(p, "base_confidence", 0.70),
		LookbackTicks:           getInt(p, "lookback_ticks", 20),
		MinSignalIntervalSecond: getSeconds(p, "min_signal_interval_seconds", 60*time.Second),
	}
}

func icebergConfig(p map[string]interface{}) strategy.IcebergConfig {
	return strategy.IcebergConfig{
		MinRefillCount:              getInt(p, "min_refill_count", 3),
		RefillSpeedThresholdSeconds: getSeconds(p, "refill_speed_threshold_seconds", 5*time.Second),
		ConsistencyThreshold:        getFloat(p, "consistency_threshold", 0.15),
		PersistenceThresholdSeconds: getSeconds(p, "persistence_threshold_seconds", 300*time.Second),
		LevelProximityPct:           getFloat(p, "level_proximity_pct", 1.0),
		BaseConfidence:              getFloat(p, "base_confidence", 0.70),
		MaxSymbols:                  getInt(p, "max_symbols", 500),
		HistoryWindowSeconds:        getSeconds(p, "history_window_seconds", 300*time.Second),
		MinSignalIntervalSeconds:    getSeconds(p, "min_signal_interval_seconds", 60*time.Second),
	}
}
