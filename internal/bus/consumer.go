package bus

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"realtime-strategies/internal/breaker"
	"realtime-strategies/internal/metrics"
	"realtime-strategies/logger"
)

// ConsumerConfig configures the NATS connection, subscription, and circuit
// breaker guarding it, per §4.1 and §6.
type ConsumerConfig struct {
	URL              string
	Topic            string
	ConsumerName     string
	QueueGroup       string
	ReconnectWait    time.Duration
	MaxReconnects    int
	ConnectTimeout   time.Duration
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// Dispatcher is satisfied by the router: it receives a decoded payload and
// classifies/fans it out to strategies. Kept as a narrow function type so
// bus has no import-cycle dependency on the router package.
type Dispatcher func(ctx context.Context, payload []byte) error

// Consumer subscribes to a single NATS subject under a queue group so that
// N replicas cooperatively receive each message exactly once across the
// group, per §4.1 and §6.
type Consumer struct {
	cfg     ConsumerConfig
	conn    *nats.Conn
	sub     *nats.Subscription
	breaker *breaker.Breaker
	log     *logger.Log

	messageCount int64
	errorCount   int64
	dispatch     Dispatcher
}

// NewConsumer constructs a Consumer. dispatch is invoked once per decoded
// message body, synchronously, inside the NATS client callback.
func NewConsumer(cfg ConsumerConfig, dispatch Dispatcher, log *logger.Log) *Consumer {
	c := &Consumer{cfg: cfg, dispatch: dispatch, log: log}
	c.breaker = breaker.New(cfg.FailureThreshold, cfg.RecoveryTimeout, func(s breaker.State) {
		metrics.RecordBreakerState("bus_consumer", string(s))
	})
	return c
}

// Start connects to NATS and subscribes to the configured topic under the
// configured queue group. It returns once the subscription is active;
// message processing happens in NATS's own callback goroutine, serialized
// per subscription by the client library.
func (c *Consumer) Start(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(c.cfg.ConsumerName),
		nats.ReconnectWait(orDefaultDuration(c.cfg.ReconnectWait, time.Second)),
		nats.MaxReconnects(orDefaultInt(c.cfg.MaxReconnects, 10)),
		nats.Timeout(orDefaultDuration(c.cfg.ConnectTimeout, 10*time.Second)),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.log.WithComponent("bus_consumer").WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.log.WithComponent("bus_consumer").Info("nats reconnected")
		}),
	}

	conn, err := nats.Connect(c.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("bus: connect: %w", err)
	}
	c.conn = conn
	c.log.WithComponent("bus_consumer").WithFields(logger.Fields{
		"nats_url": c.cfg.URL, "consumer_name": c.cfg.ConsumerName,
	}).Info("connected to bus")

	sub, err := conn.QueueSubscribe(c.cfg.Topic, c.cfg.QueueGroup, c.onMessage)
	if err != nil {
		conn.Close()
		return fmt.Errorf("bus: subscribe: %w", err)
	}
	c.sub = sub

	c.log.WithComponent("bus_consumer").WithFields(logger.Fields{
		"topic": c.cfg.Topic, "queue_group": c.cfg.QueueGroup,
	}).Info("subscribed to topic")
	return nil
}

func (c *Consumer) onMessage(msg *nats.Msg) {
	err := c.breaker.Execute(func() error {
		return c.dispatch(context.Background(), msg.Data)
	})
	if err != nil {
		atomic.AddInt64(&c.errorCount, 1)
		c.log.WithComponent("bus_consumer").WithError(err).Warn("dispatch failed")
		return
	}
	atomic.AddInt64(&c.messageCount, 1)
}

// Stop drains the subscription and closes the connection, per consumer.py's
// graceful-shutdown sequence.
func (c *Consumer) Stop() error {
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			c.log.WithComponent("bus_consumer").WithError(err).Warn("error draining subscription")
		}
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.log.WithComponent("bus_consumer").WithFields(logger.Fields{
		"total_messages": atomic.LoadInt64(&c.messageCount),
		"total_errors":   atomic.LoadInt64(&c.errorCount),
	}).Info("consumer stopped")
	return nil
}

// Metrics reports the consumer's running counters, for the heartbeat/health
// surface.
func (c *Consumer) Metrics() (messages, errs int64, connected bool) {
	connected = c.conn != nil && c.conn.IsConnected()
	return atomic.LoadInt64(&c.messageCount), atomic.LoadInt64(&c.errorCount), connected
}

func orDefaultDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
