package bus

import (
	"testing"

	"realtime-strategies/internal/model"
)

func TestDecodeEventDepth(t *testing.T) {
	payload := []byte(`{
		"stream": "btcusdt@depth20",
		"data": {
			"s": "BTCUSDT",
			"E": 1700000000000,
			"U": 10,
			"u": 11,
			"bids": [["50000.00", "1.5"], ["49999.00", "2.0"]],
			"asks": [["50001.00", "1.2"], ["50002.00", "0.8"]]
		}
	}`)

	evt, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.Kind != model.StreamDepth || evt.Depth == nil {
		t.Fatalf("expected depth event, got %+v", evt)
	}
	if evt.Depth.Symbol != "BTCUSDT" || len(evt.Depth.Bids) != 2 || len(evt.Depth.Asks) != 2 {
		t.Fatalf("unexpected depth snapshot: %+v", evt.Depth)
	}
}

func TestDecodeEventTrade(t *testing.T) {
	payload := []byte(`{
		"stream": "ethusdt@trade",
		"data": {"s": "ETHUSDT", "t": 99, "p": "3000.5", "q": "0.1", "T": 1700000000000, "m": true, "E": 1700000000000}
	}`)
	evt, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.Kind != model.StreamTrade || evt.Trade.Symbol != "ETHUSDT" {
		t.Fatalf("unexpected trade event: %+v", evt)
	}
}

func TestDecodeEventTicker(t *testing.T) {
	payload := []byte(`{
		"stream": "btcusdt@ticker",
		"data": {"s": "BTCUSDT", "c": "50000.00", "v": "1200.5", "P": "2.5", "E": 1700000000000}
	}`)
	evt, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.Kind != model.StreamTicker || evt.Ticker.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected ticker event: %+v", evt)
	}
}

func TestDecodeEventUnknownStream(t *testing.T) {
	payload := []byte(`{"stream": "btcusdt@kline_1m", "data": {"s": "BTCUSDT"}}`)
	_, err := DecodeEvent(payload)
	if err != ErrUnknownStream {
		t.Fatalf("expected ErrUnknownStream, got %v", err)
	}
}

func TestDecodeEventMalformedJSON(t *testing.T) {
	_, err := DecodeEvent([]byte(`not json`))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestDecodeEventZeroLevelsRejected(t *testing.T) {
	payload := []byte(`{
		"stream": "btcusdt@depth20",
		"data": {"s": "BTCUSDT", "bids": [], "asks": [["50001.00", "1.2"]]}
	}`)
	_, err := DecodeEvent(payload)
	if err == nil {
		t.Fatal("expected error for zero-level depth snapshot")
	}
}
