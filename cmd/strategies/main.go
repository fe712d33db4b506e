package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realtime-strategies/config"
	"realtime-strategies/internal/api"
	"realtime-strategies/internal/bus"
	"realtime-strategies/internal/configmgr"
	"realtime-strategies/internal/depth"
	"realtime-strategies/internal/metrics"
	"realtime-strategies/internal/router"
	"realtime-strategies/logger"
)

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Service.Name,
		"version": cfg.Service.Version,
	}).Info("starting realtime-strategies")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, orDefault(cfg.Store.ConnectTimeout, 10*time.Second))
	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Store.URI))
	connectCancel()
	if err != nil {
		log.WithError(err).Error("failed to connect to document store")
		os.Exit(1)
	}
	store := configmgr.NewMongoStore(mongoClient.Database(cfg.Store.Database))

	cfgMgr := configmgr.NewManager(store, cfg.ConfigMgr.CacheTTL)
	analyzer := depth.NewAnalyzer(cfg.Depth.MetricsTTL, cfg.Depth.MaxSymbols)

	publisher := bus.NewPublisher(bus.PublisherConfig{
		URL:             cfg.Bus.URL,
		Topic:           cfg.Bus.Publish.Topic,
		ClientName:      cfg.Bus.Publish.ClientName,
		ReconnectWait:   cfg.Bus.Publish.ReconnectWait,
		MaxReconnects:   cfg.Bus.Publish.MaxReconnects,
		ConnectTimeout:  cfg.Bus.Publish.ConnectTimeout,
		MaxAttempts:     cfg.Bus.Publish.MaxAttempts,
		InitialBackoff:  cfg.Bus.Publish.InitialBackoff,
		MaxBackoff:      cfg.Bus.Publish.MaxBackoff,
		RateLimitPerSec: cfg.Bus.Publish.RateLimitPerSec,
		RateLimitBurst:  cfg.Bus.Publish.RateLimitBurst,
		QueueSize:       cfg.Bus.Publish.QueueSize,
	}, log)
	if err := publisher.Connect(); err != nil {
		log.WithError(err).Error("failed to connect publisher to bus")
		os.Exit(1)
	}
	defer publisher.Close()

	baseQty, err := decimal.NewFromString(cfg.Router.BaseQuantity)
	if err != nil {
		log.WithError(err).Warn("invalid router.base_quantity, defaulting to 1")
		baseQty = decimal.NewFromInt(1)
	}
	rtr := router.New(cfgMgr, analyzer, publisher, log, router.Config{
		BreakerFailureThreshold: cfg.Router.BreakerFailureThreshold,
		BreakerRecoveryTimeout:  cfg.Router.BreakerRecoveryTimeout,
		BaseQuantity:            baseQty,
	})

	consumer := bus.NewConsumer(bus.ConsumerConfig{
		URL:              cfg.Bus.URL,
		Topic:            cfg.Bus.Consumer.Topic,
		ConsumerName:     cfg.Bus.Consumer.ConsumerName,
		QueueGroup:       cfg.Bus.Consumer.QueueGroup,
		ReconnectWait:    cfg.Bus.Consumer.ReconnectWait,
		MaxReconnects:    cfg.Bus.Consumer.MaxReconnects,
		ConnectTimeout:   cfg.Bus.Consumer.ConnectTimeout,
		FailureThreshold: cfg.Bus.Consumer.FailureThreshold,
		RecoveryTimeout:  cfg.Bus.Consumer.RecoveryTimeout,
	}, rtr.Dispatch, log)

	if cfg.Metrics.Addr != "" {
		metrics.Init(cfg.Metrics.Addr)
	}
	if cfg.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.CloudWatch.Region, cfg.CloudWatch.Namespace, cfg.CloudWatch.Dashboard)
		metrics.InitCloudWatch(cfg.CloudWatch.Region, cfg.CloudWatch.Namespace, cfg.CloudWatch.Dashboard)
	}

	restServer := api.New(cfgMgr, analyzer, log, api.Config{
		Addr:         cfg.API.Addr,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	})
	restServer.Start()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		publisher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runTicker(ctx, orDefault(cfg.ConfigMgr.RefreshInterval, time.Minute), func() {
			cfgMgr.SweepCache(time.Now().UTC())
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runTicker(ctx, orDefault(cfg.Depth.SweepInterval, time.Minute), func() {
			evicted := analyzer.Sweep(time.Now().UTC())
			if evicted > 0 {
				log.WithComponent("depth").WithFields(logger.Fields{"evicted": evicted}).Debug("swept stale symbol state")
			}
		})
	}()

	logger.StartReport(ctx, log, orDefault(cfg.Heartbeat.Interval, 30*time.Second))

	if err := consumer.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start bus consumer")
		os.Exit(1)
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("REST surface shutdown error")
	}
	shutdownCancel()

	log.Info("stopping bus consumer")
	if err := consumer.Stop(); err != nil {
		log.WithError(err).Warn("bus consumer stop error")
	}

	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := mongoClient.Disconnect(disconnectCtx); err != nil {
		log.WithError(err).Warn("document store disconnect error")
	}
	disconnectCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("realtime-strategies stopped")
}

// runTicker invokes fn on every tick until ctx is cancelled, the fire-and-log
// pattern shared by the ConfigManager cache refresher and the DepthAnalyzer
// TTL sweeper, the two periodic background tasks named in §5 that aren't
// already owned by a component's own Run loop.
func runTicker(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
