// Package adapter performs the pure, idempotent transformation from a
// strategy's internal signal representation to the fixed wire contract, per
// §4.7.
package adapter

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"realtime-strategies/internal/model"
)

// ConfigProvenance is the configuration source/version/override status that
// must be stamped into the wire signal's metadata, per §4.7.
type ConfigProvenance struct {
	Source     string
	Version    int
	IsOverride bool
}

// Options controls adapter behavior that depends on the caller's
// configuration rather than the signal itself.
type Options struct {
	BaseQuantity decimal.Decimal
	Provenance   ConfigProvenance
	Now          time.Time
}

var defaultConfidenceByBand = map[model.Confidence]float64{
	model.ConfidenceHigh:   0.85,
	model.ConfidenceMedium: 0.65,
	model.ConfidenceLow:    0.35,
}

func mapAction(a model.SignalAction) string {
	switch a {
	case model.ActionOpenLong:
		return "buy"
	case model.ActionOpenShort:
		return "sell"
	case model.ActionCloseLong, model.ActionCloseShort:
		return "close"
	default:
		return "hold"
	}
}

func mapSignalType(t model.SignalType) string {
	switch t {
	case model.TypeBuy:
		return "buy"
	case model.TypeSell:
		return "sell"
	default:
		return "hold"
	}
}

// resolveConfidenceScore returns the numeric confidence per §4.7: the
// internal score if present, else the categorical default band.
func resolveConfidenceScore(sig *model.InternalSignal) float64 {
	if sig.ConfidenceScore > 0 {
		return sig.ConfidenceScore
	}
	if score, ok := defaultConfidenceByBand[sig.Confidence]; ok {
		return score
	}
	return defaultConfidenceByBand[model.ConfidenceLow]
}

// riskDefaults returns stop-loss/take-profit percentages per the confidence
// bands in §4.7.
func riskDefaults(score float64) (slPct, tpPct float64) {
	switch {
	case score >= 0.8:
		return 0.02, 0.05
	case score >= 0.6:
		return 0.03, 0.04
	default:
		return 0.05, 0.03
	}
}

func absoluteRisk(side model.SignalType, price decimal.Decimal, slPct, tpPct float64) (sl, tp decimal.Decimal) {
	one := decimal.NewFromInt(1)
	slFrac := decimal.NewFromFloat(slPct)
	tpFrac := decimal.NewFromFloat(tpPct)
	if side == model.TypeSell {
		sl = price.Mul(one.Add(slFrac))
		tp = price.Mul(one.Sub(tpFrac))
		return
	}
	sl = price.Mul(one.Sub(slFrac))
	tp = price.Mul(one.Add(tpFrac))
	return
}

// Adapt transforms an internal strategy signal into the fixed wire record.
// The transformation is pure aside from freshly generated signal and
// correlation ids and the timestamp; re-adapting a logically identical internal signal
// produces an identical wire record modulo those transient fields, per
// scenario S7.
func Adapt(sig *model.InternalSignal, opts Options) *model.Signal {
	now := opts.Now
	if now.IsZero() {
		now = sig.GeneratedAt
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	strategyID := sig.StrategyID
	if strategyID == "" {
		strategyID = sig.StrategyName + "_" + sig.Symbol
	}

	score := resolveConfidenceScore(sig)
	quantity := opts.BaseQuantity.Mul(decimal.NewFromFloat(score))

	var stopLoss, takeProfit *decimal.Decimal
	var slPct, tpPct float64
	if sig.StopLoss != nil && sig.TakeProfit != nil {
		stopLoss, takeProfit = sig.StopLoss, sig.TakeProfit
		if !sig.Price.IsZero() {
			slDiff, _ := sig.Price.Sub(*sig.StopLoss).Abs().Div(sig.Price).Float64()
			tpDiff, _ := sig.TakeProfit.Sub(sig.Price).Abs().Div(sig.Price).Float64()
			slPct, tpPct = slDiff, tpDiff
		}
	} else {
		slPct, tpPct = riskDefaults(score)
		sl, tp := absoluteRisk(sig.Type, sig.Price, slPct, tpPct)
		stopLoss, takeProfit = &sl, &tp
	}

	metadata := make(map[string]interface{}, len(sig.Metadata)+6)
	for k, v := range sig.Metadata {
		metadata[k] = v
	}
	metadata["original_signal_type"] = string(sig.Type)
	metadata["original_signal_action"] = string(sig.Action)
	metadata["original_confidence"] = string(sig.Confidence)
	metadata["config_source"] = opts.Provenance.Source
	metadata["config_version"] = opts.Provenance.Version
	metadata["config_is_override"] = opts.Provenance.IsOverride

	timeframe := "tick"
	if tf, ok := sig.Metadata["timeframe"].(string); ok && tf != "" {
		timeframe = tf
	}

	indicators := make(map[string]float64, len(sig.Indicators))
	for k, v := range sig.Indicators {
		indicators[k] = v
	}

	id := uuid.NewString()

	return &model.Signal{
		SignalID:      id,
		CorrelationID: id,
		StrategyID:    strategyID,
		Symbol:        sig.Symbol,
		Action:        mapAction(sig.Action),
		SignalType:    mapSignalType(sig.Type),
		Confidence:    score,
		Strength:      model.StrengthFromScore(score),
		Price:         sig.Price,
		Quantity:      quantity,
		CurrentPrice:  sig.Price,
		StopLoss:      stopLoss,
		TakeProfit:    takeProfit,
		StopLossPct:   slPct,
		TakeProfitPct: tpPct,
		Timeframe:     timeframe,
		OrderType:     "market",
		TimeInForce:   "GTC",
		Source:        "realtime-strategies",
		Strategy:      sig.StrategyName,
		Indicators:    indicators,
		Metadata:      metadata,
		Timestamp:     now,
	}
}
