package metrics

import "testing"

func TestRecordFunctionsAreSafeBeforeInit(t *testing.T) {
	// Init has likely already run in another test in this package; these
	// calls must not panic whether or not the collectors are registered.
	IncrementMessagesProcessed()
	IncrementParseErrors()
	IncrementUnknownStream()
	IncrementPublishErrors()
	RecordStrategySignal("orderbook_skew")
	RecordStrategyError("orderbook_skew")
	RecordBreakerState("orderbook_skew", "OPEN")
	RecordBreakerState("orderbook_skew", "CLOSED")
}

func TestInitIsIdempotent(t *testing.T) {
	Init(":0")
	Init(":0")
}
