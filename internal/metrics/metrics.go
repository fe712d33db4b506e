// Package metrics is the Prometheus exposition surface for the engine's
// domain counters, per §7's "user-visible behavior". It registers the
// counters named in the spec (strategy_executions_total, breaker state,
// intake counters) and serves them on /metrics; the periodic structured
// heartbeat and CloudWatch push live in the logger package, which these
// functions also forward to so both surfaces stay in sync.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"realtime-strategies/logger"
)

var (
	once sync.Once

	messagesProcessed prometheus.Counter
	parseErrorsTotal  prometheus.Counter
	unknownStreamTotal prometheus.Counter
	publishErrorsTotal prometheus.Counter
	strategyExecutions *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
)

const breakerStateOpenValue = 1
const breakerStateClosedValue = 0

// Init registers the collectors and starts the /metrics HTTP server. Safe
// to call multiple times; only the first call takes effect.
func Init(addr string) {
	once.Do(func() {
		messagesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_strategies_messages_processed_total",
			Help: "Bus events successfully decoded and dispatched",
		})
		parseErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_strategies_parse_errors_total",
			Help: "Malformed event payloads dropped before dispatch",
		})
		unknownStreamTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_strategies_unknown_stream_total",
			Help: "Events dropped for an unrecognized stream tag",
		})
		publishErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_strategies_publish_errors_total",
			Help: "Signals dropped by the publisher (failed validation or encoding, full queue, or exhausted retries)",
		})
		strategyExecutions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategy_executions_total",
			Help: "Strategy invocations by result",
		}, []string{"strategy", "result"})
		breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_open",
			Help: "1 when a component's circuit breaker is open, 0 otherwise",
		}, []string{"component"})

		prometheus.MustRegister(
			messagesProcessed, parseErrorsTotal, unknownStreamTotal, publishErrorsTotal,
			strategyExecutions, breakerState,
		)
		// The default registry already carries the Go and process
		// collectors; a duplicate registration of them is not an error here.
		for _, c := range []prometheus.Collector{
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		} {
			if err := prometheus.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}

		if addr == "" {
			addr = "0.0.0.0:2112"
		}
		log := logger.GetLogger().WithComponent("metrics")
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.WithError(err).Error("prometheus metrics server stopped")
			}
		}()
		log.WithFields(logger.Fields{"addr": addr}).Info("prometheus metrics server started")
	})
}

// IncrementMessagesProcessed records one successfully dispatched event, in
// both Prometheus and the logger heartbeat.
func IncrementMessagesProcessed() {
	if messagesProcessed != nil {
		messagesProcessed.Inc()
	}
	logger.IncrementMessagesProcessed()
}

// IncrementParseErrors records one dropped malformed payload.
func IncrementParseErrors() {
	if parseErrorsTotal != nil {
		parseErrorsTotal.Inc()
	}
	logger.IncrementParseErrors()
}

// IncrementUnknownStream records one dropped unrecognized stream tag.
func IncrementUnknownStream() {
	if unknownStreamTotal != nil {
		unknownStreamTotal.Inc()
	}
	logger.IncrementUnknownStream()
}

// IncrementPublishErrors records one signal dropped by the publisher:
// failed validation or encoding, a full queue, or exhausted retries.
func IncrementPublishErrors() {
	if publishErrorsTotal != nil {
		publishErrorsTotal.Inc()
	}
	logger.IncrementPublishErrors()
}

// RecordStrategySignal records a successful strategy execution that
// emitted a signal.
func RecordStrategySignal(strategy string) {
	if strategyExecutions != nil {
		strategyExecutions.WithLabelValues(strategy, "signal").Inc()
	}
	logger.RecordStrategySignal(strategy)
}

// RecordStrategyError records a strategy execution that failed.
func RecordStrategyError(strategy string) {
	if strategyExecutions != nil {
		strategyExecutions.WithLabelValues(strategy, "error").Inc()
	}
	logger.RecordStrategyError(strategy)
}

// RecordBreakerState records the last-observed state of a named breaker,
// driving the open/closed gauge named in §4.10/§5.
func RecordBreakerState(component, state string) {
	if breakerState != nil {
		value := float64(breakerStateClosedValue)
		if state == "OPEN" {
			value = breakerStateOpenValue
		}
		breakerState.WithLabelValues(component).Set(value)
	}
	logger.RecordBreakerState(component, state)
}
