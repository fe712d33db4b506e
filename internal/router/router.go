// Package router implements the single-threaded cooperative dispatch
// described in §5: one decoded event is classified and fanned out, in a
// fixed order, to the depth analyzer and the strategies that care about
// that event's stream kind. Every strategy call, and the depth analyzer
// call, is wrapped in its own circuit breaker; a strategy whose breaker is
// open is skipped for that event, per §4.10/§7.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"realtime-strategies/internal/adapter"
	"realtime-strategies/internal/breaker"
	"realtime-strategies/internal/bus"
	"realtime-strategies/internal/configmgr"
	"realtime-strategies/internal/depth"
	"realtime-strategies/internal/metrics"
	"realtime-strategies/internal/model"
	"realtime-strategies/internal/strategy"
	"realtime-strategies/logger"
)

// Config controls dispatch-wide policy: the breaker thresholds applied to
// every component and the notional base quantity the adapter scales
// confidence against.
type Config struct {
	BreakerFailureThreshold int
	BreakerRecoveryTimeout  time.Duration
	BaseQuantity            decimal.Decimal
}

// Router owns the depth analyzer, the five strategies, their independent
// breakers, and the config/publish collaborators needed to turn a decoded
// event into zero or more published signals.
type Router struct {
	cfgMgr    *configmgr.Manager
	analyzer  *depth.Analyzer
	publisher *bus.Publisher
	log       *logger.Log

	baseQuantity decimal.Decimal

	obSkew    *strategy.OrderBookSkew
	tradeMom  *strategy.TradeMomentum
	tickerVel *strategy.TickerVelocity
	spreadLiq *strategy.SpreadLiquidity
	iceberg   *strategy.IcebergDetector

	breakers map[string]*breaker.Breaker
}

// component names used as both breaker keys and strategy-id prefixes.
const (
	componentDepthAnalyzer = "depth_analyzer"
	componentOrderBookSkew = "orderbook_skew"
	componentTradeMomentum = "trade_momentum"
	componentTickerVel     = "ticker_velocity"
	componentSpreadLiq     = "spread_liquidity"
	componentIceberg       = "iceberg_detector"
)

// New constructs a Router with one independent breaker per component, per
// §4.10.
func New(cfgMgr *configmgr.Manager, analyzer *depth.Analyzer, publisher *bus.Publisher, log *logger.Log, cfg Config) *Router {
	baseQty := cfg.BaseQuantity
	if baseQty.IsZero() {
		baseQty = decimal.NewFromInt(1)
	}
	r := &Router{
		cfgMgr:       cfgMgr,
		analyzer:     analyzer,
		publisher:    publisher,
		log:          log,
		baseQuantity: baseQty,
		obSkew:       strategy.NewOrderBookSkew(),
		tradeMom:     strategy.NewTradeMomentum(),
		tickerVel:    strategy.NewTickerVelocity(),
		spreadLiq:    strategy.NewSpreadLiquidity(),
		iceberg:      strategy.NewIcebergDetector(),
		breakers:     make(map[string]*breaker.Breaker, 6),
	}
	for _, name := range []string{
		componentDepthAnalyzer, componentOrderBookSkew, componentTradeMomentum,
		componentTickerVel, componentSpreadLiq, componentIceberg,
	} {
		n := name
		r.breakers[n] = breaker.New(cfg.BreakerFailureThreshold, cfg.BreakerRecoveryTimeout, func(s breaker.State) {
			metrics.RecordBreakerState(n, string(s))
		})
	}
	return r
}

// Dispatch implements bus.Dispatcher. It decodes the payload, classifies it
// by stream kind, and runs the components interested in that kind in the
// documented order. A panic anywhere below is recovered here and turned
// into an error so the consumer's own breaker/restart logic handles it,
// per §7's "unrecoverable panic caught at the dispatch boundary".
func (r *Router) Dispatch(ctx context.Context, payload []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("router: recovered panic: %v", rec)
			r.log.WithComponent("router").WithFields(logger.Fields{"panic": rec}).Error("recovered panic at dispatch boundary")
		}
	}()

	evt, decodeErr := bus.DecodeEvent(payload)
	if decodeErr != nil {
		if decodeErr == bus.ErrUnknownStream {
			metrics.IncrementUnknownStream()
			r.log.WithComponent("router").Debug("dropping event with unrecognized stream")
			return nil
		}
		metrics.IncrementParseErrors()
		r.log.WithComponent("router").WithError(decodeErr).Warn("dropping malformed event")
		return nil
	}
	metrics.IncrementMessagesProcessed()

	now := time.Now().UTC()
	switch evt.Kind {
	case model.StreamDepth:
		r.dispatchDepth(ctx, evt.Depth, now)
	case model.StreamTrade:
		r.dispatchTrade(ctx, evt.Trade, now)
	case model.StreamTicker:
		r.dispatchTicker(ctx, evt.Ticker, now)
	}
	return nil
}

func (r *Router) dispatchDepth(ctx context.Context, d *model.DepthSnapshot, now time.Time) {
	r.runBreaker(componentDepthAnalyzer, func() error {
		r.analyzer.Analyze(d, now)
		return nil
	})

	r.runStrategy(ctx, componentOrderBookSkew, d.Symbol, func(params map[string]interface{}) (*model.InternalSignal, error) {
		cfg := orderBookSkewConfig(params)
		return r.obSkew.Analyze(d, cfg), nil
	})
	r.runStrategy(ctx, componentSpreadLiq, d.Symbol, func(params map[string]interface{}) (*model.InternalSignal, error) {
		cfg := spreadLiquidityConfig(params)
		return r.spreadLiq.Analyze(d, cfg, now), nil
	})
	r.runStrategy(ctx, componentIceberg, d.Symbol, func(params map[string]interface{}) (*model.InternalSignal, error) {
		cfg := icebergConfig(params)
		return r.iceberg.Analyze(d, cfg, now), nil
	})
}

func (r *Router) dispatchTrade(ctx context.Context, t *model.Trade, now time.Time) {
	r.runStrategy(ctx, componentTradeMomentum, t.Symbol, func(params map[string]interface{}) (*model.InternalSignal, error) {
		cfg := tradeMomentumConfig(params)
		return r.tradeMom.Analyze(t, cfg), nil
	})
}

func (r *Router) dispatchTicker(ctx context.Context, tk *model.TickerUpdate, now time.Time) {
	r.runStrategy(ctx, componentTickerVel, tk.Symbol, func(params map[string]interface{}) (*model.InternalSignal, error) {
		cfg := tickerVelocityConfig(params)
		return r.tickerVel.Analyze(tk, cfg, now), nil
	})
}

// runStrategy resolves the strategy's configuration, runs it behind its
// breaker, and — if it emitted a signal — adapts and publishes it. A
// strategy whose breaker is open is skipped entirely for this event, per
// §5. A panic or error inside analyze counts as a breaker failure and is
// recorded as a strategy execution error, per §7.
func (r *Router) runStrategy(ctx context.Context, component, symbol string, analyze func(params map[string]interface{}) (*model.InternalSignal, error)) {
	b := r.breakers[component]
	if !b.Allow() {
		return
	}

	resolved := r.cfgMgr.Get(ctx, component, symbol)
	params := mergeDefaults(component, resolved.Parameters)

	var sig *model.InternalSignal
	err := b.Execute(func() (analyzeErr error) {
		defer func() {
			if rec := recover(); rec != nil {
				analyzeErr = fmt.Errorf("router: strategy panic: %v", rec)
			}
		}()
		sig, analyzeErr = analyze(params)
		return analyzeErr
	})
	if err != nil {
		metrics.RecordStrategyError(component)
		r.log.WithComponent("router").WithFields(logger.Fields{"strategy": component, "symbol": symbol}).WithError(err).Warn("strategy execution failed")
		return
	}

	if sig == nil {
		return
	}
	metrics.RecordStrategySignal(component)

	wire := adapter.Adapt(sig, adapter.Options{
		BaseQuantity: r.baseQuantity,
		Provenance: adapter.ConfigProvenance{
			Source:     resolved.Source,
			Version:    resolved.Version,
			IsOverride: resolved.IsOverride,
		},
		Now: time.Now().UTC(),
	})

	if err := r.publisher.Publish(wire); err != nil {
		r.log.WithComponent("router").WithFields(logger.Fields{"strategy": component, "symbol": symbol}).WithError(err).Warn("failed to enqueue signal for publish")
	}
}

func (r *Router) runBreaker(component string, fn func() error) {
	b := r.breakers[component]
	if err := b.Execute(fn); err != nil && err != breaker.ErrOpen {
		metrics.RecordStrategyError(component)
		r.log.WithComponent("router").WithFields(logger.Fields{"component": component}).WithError(err).Warn("component execution failed")
	}
}

func mergeDefaults(strategyID string, params map[string]interface{}) map[string]interface{} {
	merged := configmgr.DefaultsFor(strategyID)
	for k, v := range params {
		merged[k] = v
	}
	return merged
}
