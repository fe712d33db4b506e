// Package depth computes per-symbol order-book microstructure metrics on
// every depth event and maintains a bounded rolling pressure history for
// trend queries, per §4.8.
package depth

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"realtime-strategies/internal/model"
)

// Metrics is the computed snapshot of order-book microstructure for a
// symbol at a point in time.
type Metrics struct {
	Symbol    string
	Timestamp time.Time

	BidVolume        float64
	AskVolume        float64
	ImbalanceRatio   float64
	ImbalancePercent float64

	BuyPressure float64
	SellPressure float64
	NetPressure float64

	TotalLiquidity float64
	BidDepth5      float64
	AskDepth5      float64
	BidDepth10     float64
	AskDepth10     float64

	BestBid   float64
	BestAsk   float64
	SpreadAbs float64
	SpreadBps float64
	MidPrice  float64

	VWAPBid float64
	VWAPAsk float64

	BidLevels   int
	AskLevels   int
	TotalLevels int

	StrongestBidPrice, StrongestBidQty float64
	StrongestAskPrice, StrongestAskQty float64
}

// PressurePoint is one sample in a symbol's rolling pressure history.
type PressurePoint struct {
	Timestamp      time.Time
	NetPressure    float64
	ImbalanceRatio float64
}

type symbolRecord struct {
	metrics    Metrics
	history    []PressurePoint
	lastUpdate time.Time
}

// PressureHistory is the trend-analysis view over a bounded window, per
// §4.8's query surface.
type PressureHistory struct {
	Symbol        string
	Timeframe     string
	AvgPressure   float64
	MaxPressure   float64
	MinPressure   float64
	Trend         string
	TrendStrength float64
	Points        []PressurePoint
}

const maxHistorySamples = 900 // ~15 min at 1 update/sec, per the original analyzer.

// Analyzer maintains current metrics per symbol (5-minute TTL, swept
// periodically) plus a bounded pressure/imbalance history ring per symbol.
type Analyzer struct {
	mu          sync.RWMutex
	records     map[string]*symbolRecord
	metricsTTL  time.Duration
	maxSymbols  int
}

func NewAnalyzer(metricsTTL time.Duration, maxSymbols int) *Analyzer {
	if metricsTTL <= 0 {
		metricsTTL = 5 * time.Minute
	}
	if maxSymbols <= 0 {
		maxSymbols = 100
	}
	return &Analyzer{
		records:    make(map[string]*symbolRecord),
		metricsTTL: metricsTTL,
		maxSymbols: maxSymbols,
	}
}

func sumQty(levels []model.Level, n int) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	total := decimal.Zero
	for _, l := range levels[:n] {
		total = total.Add(l.Quantity)
	}
	f, _ := total.Float64()
	return f
}

func vwap(levels []model.Level) float64 {
	if len(levels) == 0 {
		return 0
	}
	totalValue := decimal.Zero
	totalVolume := decimal.Zero
	for _, l := range levels {
		totalValue = totalValue.Add(l.Price.Mul(l.Quantity))
		totalVolume = totalVolume.Add(l.Quantity)
	}
	if totalVolume.IsZero() {
		return 0
	}
	f, _ := totalValue.Div(totalVolume).Float64()
	return f
}

func strongest(levels []model.Level) (price, qty float64) {
	if len(levels) == 0 {
		return 0, 0
	}
	best := levels[0]
	for _, l := range levels[1:] {
		if l.Quantity.GreaterThan(best.Quantity) {
			best = l
		}
	}
	p, _ := best.Price.Float64()
	q, _ := best.Quantity.Float64()
	return p, q
}

// Analyze computes metrics for a depth snapshot and records them, per
// §4.8's per-event computation.
func (a *Analyzer) Analyze(d *model.DepthSnapshot, now time.Time) Metrics {
	bidVolume := sumQty(d.Bids, len(d.Bids))
	askVolume := sumQty(d.Asks, len(d.Asks))
	totalVolume := bidVolume + askVolume

	var imbalanceRatio, imbalancePercent float64
	if totalVolume > 0 {
		imbalanceRatio = (bidVolume - askVolume) / totalVolume
		imbalancePercent = imbalanceRatio * 100
	}

	denom := totalVolume
	if denom == 0 {
		denom = 1
	}
	buyPressure := bidVolume / denom * 100
	sellPressure := askVolume / denom * 100
	netPressure := buyPressure - sellPressure

	bidDepth5 := bidVolume
	if len(d.Bids) >= 5 {
		bidDepth5 = sumQty(d.Bids, 5)
	}
	askDepth5 := askVolume
	if len(d.Asks) >= 5 {
		askDepth5 = sumQty(d.Asks, 5)
	}
	bidDepth10 := bidVolume
	if len(d.Bids) >= 10 {
		bidDepth10 = sumQty(d.Bids, 10)
	}
	askDepth10 := askVolume
	if len(d.Asks) >= 10 {
		askDepth10 = sumQty(d.Asks, 10)
	}

	var bestBid, bestAsk float64
	if len(d.Bids) > 0 {
		bestBid, _ = d.Bids[0].Price.Float64()
	}
	if len(d.Asks) > 0 {
		bestAsk, _ = d.Asks[0].Price.Float64()
	}
	var spreadAbs, midPrice, spreadBps float64
	if bestBid > 0 && bestAsk > 0 {
		spreadAbs = bestAsk - bestBid
		midPrice = (bestBid + bestAsk) / 2
		if midPrice > 0 {
			spreadBps = spreadAbs / midPrice * 10000
		}
	}

	sbp, sbq := strongest(d.Bids)
	sap, saq := strongest(d.Asks)

	metrics := Metrics{
		Symbol:            d.Symbol,
		Timestamp:         now,
		BidVolume:         bidVolume,
		AskVolume:         askVolume,
		ImbalanceRatio:    imbalanceRatio,
		ImbalancePercent:  imbalancePercent,
		BuyPressure:       buyPressure,
		SellPressure:      sellPressure,
		NetPressure:       netPressure,
		TotalLiquidity:    totalVolume,
		BidDepth5:         bidDepth5,
		AskDepth5:         askDepth5,
		BidDepth10:        bidDepth10,
		AskDepth10:        askDepth10,
		BestBid:           bestBid,
		BestAsk:           bestAsk,
		SpreadAbs:         spreadAbs,
		SpreadBps:         spreadBps,
		MidPrice:          midPrice,
		VWAPBid:           vwap(d.Bids),
		VWAPAsk:           vwap(d.Asks),
		BidLevels:         len(d.Bids),
		AskLevels:         len(d.Asks),
		TotalLevels:       len(d.Bids) + len(d.Asks),
		StrongestBidPrice: sbp,
		StrongestBidQty:   sbq,
		StrongestAskPrice: sap,
		StrongestAskQty:   saq,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records[d.Symbol]
	if !ok {
		if len(a.records) >= a.maxSymbols {
			a.evictOldestLocked()
		}
		rec = &symbolRecord{}
		a.records[d.Symbol] = rec
	}
	rec.metrics = metrics
	rec.lastUpdate = now
	rec.history = append(rec.history, PressurePoint{Timestamp: now, NetPressure: netPressure, ImbalanceRatio: imbalanceRatio})
	if len(rec.history) > maxHistorySamples {
		rec.history = rec.history[len(rec.history)-maxHistorySamples:]
	}

	return metrics
}

// evictOldestLocked drops the symbol with the oldest lastUpdate. Caller
// must hold a.mu.
func (a *Analyzer) evictOldestLocked() {
	var oldestSymbol string
	var oldestTime time.Time
	for sym, rec := range a.records {
		if oldestSymbol == "" || rec.lastUpdate.Before(oldestTime) {
			oldestSymbol, oldestTime = sym, rec.lastUpdate
		}
	}
	if oldestSymbol != "" {
		delete(a.records, oldestSymbol)
	}
}

// Current returns the most recent metrics for a symbol.
func (a *Analyzer) Current(symbol string) (Metrics, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.records[symbol]
	if !ok {
		return Metrics{}, false
	}
	return rec.metrics, true
}

// All returns current metrics for every tracked symbol.
func (a *Analyzer) All() map[string]Metrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]Metrics, len(a.records))
	for sym, rec := range a.records {
		out[sym] = rec.metrics
	}
	return out
}

var windowPoints = map[string]int{"1m": 60, "5m": 300, "15m": 900}

// PressureHistoryFor computes the trend-analysis view for a symbol over
// the given timeframe ("1m", "5m", "15m"), per §4.8.
func (a *Analyzer) PressureHistoryFor(symbol, timeframe string) (PressureHistory, bool) {
	n, ok := windowPoints[timeframe]
	if !ok {
		n = 300
	}

	a.mu.RLock()
	rec, ok := a.records[symbol]
	if !ok || len(rec.history) == 0 {
		a.mu.RUnlock()
		return PressureHistory{}, false
	}
	points := make([]PressurePoint, len(rec.history))
	copy(points, rec.history)
	a.mu.RUnlock()

	if n < len(points) {
		points = points[len(points)-n:]
	}

	avg, max, min := 0.0, points[0].NetPressure, points[0].NetPressure
	sum := 0.0
	for _, p := range points {
		sum += p.NetPressure
		if p.NetPressure > max {
			max = p.NetPressure
		}
		if p.NetPressure < min {
			min = p.NetPressure
		}
	}
	avg = sum / float64(len(points))

	trend := "neutral"
	trendStrength := 0.5
	if len(points) >= 10 {
		tail := points[len(points)-10:]
		recentSum := 0.0
		for _, p := range tail {
			recentSum += p.NetPressure
		}
		recentAvg := recentSum / 10
		switch {
		case recentAvg > 20:
			trend = "bullish"
			trendStrength = math.Min(1.0, recentAvg/50)
		case recentAvg < -20:
			trend = "bearish"
			trendStrength = math.Min(1.0, math.Abs(recentAvg)/50)
		default:
			trend = "neutral"
			trendStrength = math.Abs(recentAvg) / 50
		}
	}

	return PressureHistory{
		Symbol:        symbol,
		Timeframe:     timeframe,
		AvgPressure:   avg,
		MaxPressure:   max,
		MinPressure:   min,
		Trend:         trend,
		TrendStrength: trendStrength,
		Points:        points,
	}, true
}

// Summary aggregates sentiment and liquidity across every tracked symbol.
type Summary struct {
	SymbolsTracked       int
	BullishSymbols       int
	BearishSymbols       int
	NeutralSymbols       int
	AvgNetPressure       float64
	AvgImbalanceRatio    float64
	AvgSpreadBps         float64
	TotalLiquidity       float64
	TopBuyPressure       []string
	TopSellPressure      []string
}

func (a *Analyzer) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.records) == 0 {
		return Summary{}
	}

	var bullish, bearish int
	var sumPressure, sumImbalance, sumSpread, sumLiquidity float64
	all := make([]Metrics, 0, len(a.records))
	for _, rec := range a.records {
		m := rec.metrics
		all = append(all, m)
		if m.NetPressure > 20 {
			bullish++
		} else if m.NetPressure < -20 {
			bearish++
		}
		sumPressure += m.NetPressure
		sumImbalance += m.ImbalanceRatio
		sumSpread += m.SpreadBps
		sumLiquidity += m.TotalLiquidity
	}
	n := float64(len(all))

	sort.Slice(all, func(i, j int) bool { return all[i].BuyPressure > all[j].BuyPressure })
	topBuy := topSymbols(all, 5)
	sort.Slice(all, func(i, j int) bool { return all[i].SellPressure > all[j].SellPressure })
	topSell := topSymbols(all, 5)

	return Summary{
		SymbolsTracked:    len(a.records),
		BullishSymbols:    bullish,
		BearishSymbols:    bearish,
		NeutralSymbols:    len(a.records) - bullish - bearish,
		AvgNetPressure:    sumPressure / n,
		AvgImbalanceRatio: sumImbalance / n,
		AvgSpreadBps:      sumSpread / n,
		TotalLiquidity:    sumLiquidity,
		TopBuyPressure:    topBuy,
		TopSellPressure:   topSell,
	}
}

func topSymbols(sorted []Metrics, limit int) []string {
	if limit > len(sorted) {
		limit = len(sorted)
	}
	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = sorted[i].Symbol
	}
	return out
}

// Sweep removes symbols whose metrics have not been updated within the TTL.
func (a *Analyzer) Sweep(now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := 0
	for sym, rec := range a.records {
		if now.Sub(rec.lastUpdate) > a.metricsTTL {
			delete(a.records, sym)
			removed++
		}
	}
	return removed
}
