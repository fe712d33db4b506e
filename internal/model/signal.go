package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalAction is the internal action enum emitted by strategies, mirroring
// the producer-side vocabulary (OPEN_LONG/OPEN_SHORT/CLOSE_*/HOLD) before the
// SignalAdapter maps it onto the wire contract's buy/sell/hold/close enum.
type SignalAction string

const (
	ActionOpenLong   SignalAction = "OPEN_LONG"
	ActionOpenShort  SignalAction = "OPEN_SHORT"
	ActionCloseLong  SignalAction = "CLOSE_LONG"
	ActionCloseShort SignalAction = "CLOSE_SHORT"
	ActionHold       SignalAction = "HOLD"
)

// SignalType mirrors the wire-level action but is tracked as its own field
// internally, matching the original representation's redundant type/action
// pair (the bug class the adapter exists to collapse, see §4.7).
type SignalType string

const (
	TypeBuy  SignalType = "BUY"
	TypeSell SignalType = "SELL"
	TypeHold SignalType = "HOLD"
)

// Confidence is the internal categorical confidence band. It is never
// compared against a numeric threshold directly — ConfidenceScore is the
// only numeric representation, and the two are intentionally kept as
// separate fields so that kind of comparison cannot compile by accident.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// InternalSignal is what a strategy produces: categorical confidence plus a
// numeric confidence score, an internal action enum, and whatever
// strategy-specific metadata it wants to carry through to the wire record.
// The SignalAdapter (internal/adapter) is the sole place that converts this
// into the wire Signal.
type InternalSignal struct {
	Symbol          string
	Type            SignalType
	Action          SignalAction
	Confidence      Confidence
	ConfidenceScore float64
	Price           decimal.Decimal
	StrategyName    string
	StrategyID      string // optional override; adapter defaults to "{name}_{symbol}"
	Indicators      map[string]float64
	Metadata        map[string]interface{}
	// StopLoss/TakeProfit, when set by the strategy itself (spread-liquidity,
	// iceberg-detector both compute their own risk levels), take priority
	// over the adapter's confidence-banded defaults.
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	GeneratedAt time.Time
}

// Signal is the fixed wire contract consumed by the downstream executor,
// per spec §3.2.
type Signal struct {
	SignalID        string                 `json:"signal_id"`
	CorrelationID   string                 `json:"correlation_id"`
	StrategyID      string                 `json:"strategy_id"`
	Symbol          string                 `json:"symbol"`
	Action          string                 `json:"action"`
	SignalType      string                 `json:"signal_type"`
	Confidence      float64                `json:"confidence"`
	Strength        string                 `json:"strength"`
	Price           decimal.Decimal        `json:"price"`
	Quantity        decimal.Decimal        `json:"quantity"`
	CurrentPrice    decimal.Decimal        `json:"current_price"`
	StopLoss        *decimal.Decimal       `json:"stop_loss"`
	TakeProfit      *decimal.Decimal       `json:"take_profit"`
	StopLossPct     float64                `json:"stop_loss_pct"`
	TakeProfitPct   float64                `json:"take_profit_pct"`
	Timeframe       string                 `json:"timeframe"`
	OrderType       string                 `json:"order_type"`
	TimeInForce     string                 `json:"time_in_force"`
	Source          string                 `json:"source"`
	Strategy        string                 `json:"strategy"`
	Indicators      map[string]float64     `json:"indicators"`
	Metadata        map[string]interface{} `json:"metadata"`
	Timestamp       time.Time              `json:"timestamp"`
}

// Strength bands, per §4.7.
const (
	StrengthExtreme = "extreme"
	StrengthStrong  = "strong"
	StrengthMedium  = "medium"
	StrengthWeak    = "weak"
)

// StrengthFromScore derives the strength band from a numeric confidence
// score, per §4.7 and invariant 4: ≥0.9 extreme, ≥0.7 strong, ≥0.5 medium,
// else weak.
func StrengthFromScore(score float64) string {
	switch {
	case score >= 0.9:
		return StrengthExtreme
	case score >= 0.7:
		return StrengthStrong
	case score >= 0.5:
		return StrengthMedium
	default:
		return StrengthWeak
	}
}
