package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bloomCache/internal/feed"
	"bloomCache/internal/metrics"
	"bloomCache/internal/refresh"
)

func runRefresher(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if logger != nil {
		defer logger.Sync()
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, "bloomcache")

	opts := []refresh.Option{refresh.WithMetrics(m)}
	if d.sink != nil {
		opts = append(opts, refresh.WithSink(d.sink))
	}
	engine := refresh.NewEngine(refresh.Config{
		Topic:        d.topic,
		StatsEvery:   cfg.StatsEvery,
		MaxInFlight:  cfg.MaxInFlight,
		FetchTimeout: cfg.FetchTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, d.store, d.fetcher, logger, opts...)
	defer engine.Close()

	logger.Info("bloomcache start",
		zap.Uint64("chain_id", cfg.ChainID),
		zap.Int("pairs", d.store.Len()),
		zap.String("topic", d.topic.Hex()),
		zap.String("multicall", cfg.Multicall),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("max_in_flight", cfg.MaxInFlight),
		zap.Uint64("stats_every", cfg.StatsEvery),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PgDSN != ""),
	)

	head, err := d.client.LatestBlockNumber(ctx)
	if err != nil {
		logger.Error("read chain head failed, continuing unseeded", zap.Error(err))
	} else if _, err := engine.Seed(ctx, head); err != nil {
		logger.Error("seeding failed, continuing unseeded", zap.Error(err))
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	blocks := feed.New(feed.Config{
		PollInterval: cfg.PollInterval,
		MaxBackfill:  cfg.MaxBackfill,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, d.client, logger, feed.WithErrorHandler(func(error) {
		m.FeedErrorsTotal.Inc()
	}))

	if err := blocks.Run(ctx, engine.HandleBlock); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}
