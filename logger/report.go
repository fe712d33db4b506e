package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"                              //cloudwatch
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types" //cloudwatch
)

type strategyStat struct {
	signals int64
	errors  int64
}

var (
	startedAt        = time.Time{}
	startedOnce      sync.Once
	messagesTotal    int64
	parseErrors      int64
	unknownStream    int64
	publishErrors    int64
	strategyStats    sync.Map // map[string]*strategyStat
	breakerStates    sync.Map // map[string]string
)

// MarkStart records the process start time used for uptime reporting.
// Safe to call multiple times; only the first call takes effect.
func MarkStart() {
	startedOnce.Do(func() {
		startedAt = time.Now()
	})
}

// IncrementMessagesProcessed records one successfully dispatched event.
func IncrementMessagesProcessed() {
	atomic.AddInt64(&messagesTotal, 1)
}

// IncrementParseErrors records one dropped malformed payload.
func IncrementParseErrors() {
	atomic.AddInt64(&parseErrors, 1)
}

// IncrementUnknownStream records one dropped unrecognized stream tag.
func IncrementUnknownStream() {
	atomic.AddInt64(&unknownStream, 1)
}

// IncrementPublishErrors records one signal dropped by the publisher
// (failed validation or encoding, full queue, or exhausted retries).
func IncrementPublishErrors() {
	atomic.AddInt64(&publishErrors, 1)
}

// RecordStrategySignal increments the signal counter for a named strategy.
func RecordStrategySignal(strategy string) {
	v, _ := strategyStats.LoadOrStore(strategy, &strategyStat{})
	atomic.AddInt64(&v.(*strategyStat).signals, 1)
}

// RecordStrategyError increments the error counter for a named strategy.
func RecordStrategyError(strategy string) {
	v, _ := strategyStats.LoadOrStore(strategy, &strategyStat{})
	atomic.AddInt64(&v.(*strategyStat).errors, 1)
}

// RecordBreakerState records the last-observed state of a named breaker.
func RecordBreakerState(name, state string) {
	breakerStates.Store(name, state)
}

// recordWarn is called by Entry.Warn for every warning emitted by a
// component. Left as a no-op stub: no counter or reporting consumer for
// per-component warn counts exists yet.
func recordWarn(component string) {
	_ = component
}

// recordError is called by Entry.Error for every error emitted by a
// component. Left as a no-op stub: no counter or reporting consumer for
// per-component error counts exists yet.
func recordError(component string) {
	_ = component
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	MarkStart()
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins the periodic heartbeat: aggregated message/signal/error
// counters, breaker states, and uptime, per §7's "user-visible behavior".
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()

	perStrategy := map[string]map[string]int64{}
	strategyStats.Range(func(k, v any) bool {
		name := k.(string)
		s := v.(*strategyStat)
		perStrategy[name] = map[string]int64{
			"signals": atomic.LoadInt64(&s.signals),
			"errors":  atomic.LoadInt64(&s.errors),
		}
		return true
	})

	breakers := map[string]string{}
	breakerStates.Range(func(k, v any) bool {
		breakers[k.(string)] = v.(string)
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	uptime := time.Duration(0)
	if !startedAt.IsZero() {
		uptime = time.Since(startedAt)
	}

	fields := Fields{
		"messages_processed": atomic.LoadInt64(&messagesTotal),
		"parse_errors":       atomic.LoadInt64(&parseErrors),
		"unknown_stream":     atomic.LoadInt64(&unknownStream),
		"publish_errors":     atomic.LoadInt64(&publishErrors),
		"per_strategy":       perStrategy,
		"breaker_states":     breakers,
		"uptime_seconds":     uptime.Seconds(),
		"goroutines":         runtime.NumGoroutine(),
		"cpu_percent":        cpuPct,
	}
	if memStats != nil {
		fields["memory_mb"] = int64(memStats.Used) / 1024 / 1024
	}

	log.WithComponent("heartbeat").WithFields(fields).Info("heartbeat")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("HostCPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MessagesProcessed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&messagesTotal)))},
		{MetricName: aws.String("ParseErrors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&parseErrors)))},
		{MetricName: aws.String("PublishErrors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&publishErrors)))},
	}
	if memStats != nil {
		data = append(data, cwtypes.MetricDatum{MetricName: aws.String("HostMemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)})
	}

	for name, stats := range perStrategy {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("StrategySignals"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("strategy"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["signals"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("StrategyErrors"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("strategy"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["errors"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
