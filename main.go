package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spotgate/config"
	"spotgate/gateway"
	"spotgate/internal/channel"
	"spotgate/internal/metrics"
	"spotgate/logger"
	"spotgate/models"
	"spotgate/stream"
	"spotgate/writer"
)

const listenKeyKeepAlive = 30 * time.Minute

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath, "config/config.yml"))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Gateway.Name,
		"version": cfg.Gateway.Version,
		"mode":    cfg.Gateway.Mode,
		"env":     config.AppEnvironment(),
	}).Info("starting spotgate")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.Configure(cfg.Metrics)
	if err := metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch); err != nil {
		log.WithError(err).Warn("CloudWatch disabled")
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	sinks, stores, parquetWriter, err := buildSinks(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("failed to initialize kline archive")
		os.Exit(1)
	}

	opts := []gateway.Option{}
	if len(sinks) > 0 {
		opts = append(opts, gateway.WithSink(sinks))
	}
	gw := gateway.NewFromConfig(cfg, opts...)

	if err := gw.Ping(ctx); err != nil {
		log.WithError(err).Error("venue unreachable")
		os.Exit(1)
	}
	if serverTime, err := gw.ServerTime(ctx); err == nil {
		log.WithFields(logger.Fields{
			"server_time": serverTime.UTC().Format(time.RFC3339Nano),
			"skew_ms":     time.Since(serverTime).Milliseconds(),
		}).Info("venue reachable")
	}

	specs, err := parseStreams(cfg.Stream.Streams)
	if err != nil {
		log.WithError(err).Error("invalid stream configuration")
		os.Exit(1)
	}

	channels := channel.NewChannels(cfg.Stream.EventBuffer, cfg.Stream.EventBuffer)

	var producers sync.WaitGroup
	if len(specs) > 0 {
		producers.Add(1)
		go func() {
			defer producers.Done()
			err := gw.Subscribe(ctx, channels.MarketHandler(ctx), specs...)
			logStreamEnd(log, "market stream", err)
		}()
	}

	if cfg.Stream.UserData {
		producers.Add(1)
		go func() {
			defer producers.Done()
			runUserData(ctx, log, gw, channels)
		}()
	}

	var consumers sync.WaitGroup
	consumers.Add(1)
	go func() {
		defer consumers.Done()
		consume(log, channels)
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		producers.Wait()
		channels.Close()
		consumers.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	if parquetWriter != nil {
		log.Info("stopping kline parquet writer")
		parquetWriter.Stop()
	}
	for _, store := range stores {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("failed to close kline store")
		}
	}

	log.Info("spotgate stopped")
}

func buildSinks(ctx context.Context, cfg *config.Config) (writer.MultiSink, []*writer.KlineStore, *writer.KlineParquetWriter, error) {
	var sinks writer.MultiSink
	var stores []*writer.KlineStore

	if cfg.Archive.Postgres.Enabled {
		store, err := writer.NewPostgresKlineStore(ctx, cfg.Archive.Postgres.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		stores = append(stores, store)
		sinks = append(sinks, store)
	}
	if cfg.Archive.SQLite.Enabled {
		store, err := writer.NewSQLiteKlineStore(ctx, cfg.Archive.SQLite.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		stores = append(stores, store)
		sinks = append(sinks, store)
	}

	var pw *writer.KlineParquetWriter
	if cfg.Archive.S3.Enabled {
		var err error
		pw, err = writer.NewKlineParquetWriter(ctx, cfg.Archive.S3)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pw.Start(ctx); err != nil {
			return nil, nil, nil, err
		}
		sinks = append(sinks, pw)
	}
	return sinks, stores, pw, nil
}

func parseStreams(names []string) ([]stream.Spec, error) {
	specs := make([]stream.Spec, 0, len(names))
	for _, name := range names {
		spec, err := stream.ParseStreamName(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// runUserData holds a listen key open for the life of ctx and forwards
// account events. The key is closed on the way out.
func runUserData(ctx context.Context, log *logger.Log, gw *gateway.Gateway, channels *channel.Channels) {
	entry := log.WithComponent("user_data")
	listenKey, err := gw.CreateListenKey(ctx)
	if err != nil {
		entry.WithError(err).Error("failed to create listen key")
		return
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := gw.CloseListenKey(closeCtx, listenKey); err != nil {
			entry.WithError(err).Warn("failed to close listen key")
		}
	}()

	go func() {
		ticker := time.NewTicker(listenKeyKeepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := gw.KeepAliveListenKey(ctx, listenKey); err != nil {
					entry.WithError(err).Warn("listen key keepalive failed")
				}
			}
		}
	}()

	err = gw.ListenUserData(ctx, listenKey, channels.UserHandler(ctx))
	logStreamEnd(log, "user data stream", err)
}

func logStreamEnd(log *logger.Log, name string, err error) {
	entry := log.WithComponent("main").WithField("stream", name)
	switch {
	case err == nil:
		entry.Info("stream closed by venue")
	case errors.Is(err, context.Canceled):
		entry.Info("stream stopped")
	default:
		entry.WithError(err).Error("stream failed")
	}
}

func consume(log *logger.Log, channels *channel.Channels) {
	entry := log.WithComponent("consumer")
	market, user := channels.Market, channels.User
	for market != nil || user != nil {
		select {
		case ev, ok := <-market:
			if !ok {
				market = nil
				continue
			}
			fields := logger.Fields{"symbol": ev.Symbol(), "type": ev.Type()}
			if depth, ok := ev.Payload.(*models.DepthEvent); ok {
				fields["final_update_id"] = depth.FinalUpdateID
			}
			entry.WithFields(fields).Debug("market event")
		case ev, ok := <-user:
			if !ok {
				user = nil
				continue
			}
			if report, ok := ev.Payload.(*models.ExecutionReport); ok {
				entry.WithFields(logger.Fields{
					"symbol":   report.Symbol,
					"order_id": report.OrderID,
					"status":   report.Status,
				}).Info("order update")
				continue
			}
			entry.WithField("event", ev.Type).Debug("account event")
		}
	}
	stats := channels.GetStats()
	entry.WithFields(logger.Fields{
		"market_sent":    stats.MarketSent,
		"market_dropped": stats.MarketDropped,
		"user_sent":      stats.UserSent,
		"user_dropped":   stats.UserDropped,
	}).Info("consumer drained")
}
