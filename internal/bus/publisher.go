package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"realtime-strategies/internal/metrics"
	"realtime-strategies/internal/model"
	"realtime-strategies/logger"
)

// PublisherConfig configures the outbound NATS connection, retry policy,
// queue depth, and publish rate limit, per §4.7.
type PublisherConfig struct {
	URL             string
	Topic           string
	ClientName      string
	ReconnectWait   time.Duration
	MaxReconnects   int
	ConnectTimeout  time.Duration
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	RateLimitPerSec float64
	RateLimitBurst  int
	QueueSize       int
}

// Publisher publishes wire signals to the outbound bus topic. Publish is
// fire-and-forget from the strategy's viewpoint: it validates and enqueues
// without blocking on the network. The actual send, with bounded retries
// and exponential backoff, happens on the Publisher's own retry-loop
// goroutine — one of the four periodic background tasks named in §5 — so a
// slow or disconnected bus never stalls the single-threaded dispatch loop.
type Publisher struct {
	cfg     PublisherConfig
	conn    *nats.Conn
	limiter *rate.Limiter
	log     *logger.Log
	queue   chan *model.Signal

	orderCount int64
	errorCount int64
}

// NewPublisher constructs a Publisher. Connect must be called before Run.
func NewPublisher(cfg PublisherConfig, log *logger.Log) *Publisher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000 // mirrors publisher.py's asyncio.Queue(maxsize=1000)
	}
	limit := rate.Limit(cfg.RateLimitPerSec)
	if cfg.RateLimitPerSec <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	return &Publisher{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(limit, burst),
		queue:   make(chan *model.Signal, cfg.QueueSize),
	}
}

// Connect opens the NATS connection used for publishing.
func (p *Publisher) Connect() error {
	opts := []nats.Option{
		nats.Name(orDefaultString(p.cfg.ClientName, "trade-order-publisher")),
		nats.ReconnectWait(orDefaultDuration(p.cfg.ReconnectWait, time.Second)),
		nats.MaxReconnects(orDefaultInt(p.cfg.MaxReconnects, 10)),
		nats.Timeout(orDefaultDuration(p.cfg.ConnectTimeout, 10*time.Second)),
	}
	conn, err := nats.Connect(p.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("bus: publisher connect: %w", err)
	}
	p.conn = conn
	p.log.WithComponent("bus_publisher").WithFields(logger.Fields{"nats_url": p.cfg.URL}).Info("connected to bus")
	return nil
}

// Close closes the publisher's NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
	p.log.WithComponent("bus_publisher").WithFields(logger.Fields{
		"total_orders": p.orderCount, "total_errors": p.errorCount,
	}).Info("publisher stopped")
}

// validate runs the pre-publish checks named in §4.7: required fields
// present, confidence in [0,1], price > 0.
func validate(sig *model.Signal) error {
	if sig.SignalID == "" || sig.Symbol == "" || sig.StrategyID == "" {
		return fmt.Errorf("bus: signal missing required fields")
	}
	if sig.Confidence < 0 || sig.Confidence > 1 {
		return fmt.Errorf("bus: signal confidence %f out of [0,1]", sig.Confidence)
	}
	if !sig.Price.IsPositive() {
		return fmt.Errorf("bus: signal price must be positive")
	}
	return nil
}

// Publish validates and enqueues a signal for the retry-loop goroutine to
// send. It returns immediately: a full queue drops the signal and counts it
// the same as an exhausted-retry drop, rather than blocking the caller.
func (p *Publisher) Publish(sig *model.Signal) error {
	if err := validate(sig); err != nil {
		metrics.IncrementPublishErrors()
		p.log.WithComponent("bus_publisher").WithError(err).Warn("signal failed pre-publish validation")
		return err
	}
	select {
	case p.queue <- sig:
		return nil
	default:
		p.errorCount++
		metrics.IncrementPublishErrors()
		err := fmt.Errorf("bus: publish queue full, signal %s dropped", sig.SignalID)
		p.log.WithComponent("bus_publisher").WithError(err).Warn("publish queue full")
		return err
	}
}

// Run is the publisher's retry-loop background task: it drains the queue
// and sends each signal with bounded retries and exponential backoff,
// dropping (and counting) it after MaxAttempts, per §4.7 and §7's error
// table row "Publish transient failure". It returns when ctx is canceled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-p.queue:
			p.sendWithRetry(ctx, sig)
		}
	}
}

func (p *Publisher) sendWithRetry(ctx context.Context, sig *model.Signal) {
	payload, err := EncodeSignal(sig)
	if err != nil {
		p.errorCount++
		metrics.IncrementPublishErrors()
		p.log.WithComponent("bus_publisher").WithError(err).Warn("failed to encode signal")
		return
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return // context canceled; Run's own loop will exit next iteration
	}

	backoff := p.cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if p.conn == nil {
			lastErr = fmt.Errorf("bus: publisher not connected")
		} else if err := p.conn.Publish(p.cfg.Topic, payload); err != nil {
			lastErr = err
		} else {
			p.orderCount++
			p.log.WithComponent("bus_publisher").WithFields(logger.Fields{
				"signal_id": sig.SignalID, "symbol": sig.Symbol, "attempt": attempt,
			}).Debug("signal published")
			return
		}

		p.log.WithComponent("bus_publisher").WithFields(logger.Fields{
			"attempt": attempt, "max_attempts": p.cfg.MaxAttempts,
		}).WithError(lastErr).Warn("publish attempt failed")

		if attempt == p.cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff *= 2
		if backoff > p.cfg.MaxBackoff {
			backoff = p.cfg.MaxBackoff
		}
	}

	p.errorCount++
	metrics.IncrementPublishErrors()
	p.log.WithComponent("bus_publisher").WithFields(logger.Fields{
		"signal_id": sig.SignalID, "attempts": p.cfg.MaxAttempts,
	}).WithError(lastErr).Error("publish dropped after exhausting retries")
}

func orDefaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
