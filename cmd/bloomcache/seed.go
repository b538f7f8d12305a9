package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bloomCache/internal/model"
	"bloomCache/internal/refresh"
)

func runSeed(cmd *cobra.Command, _ []string) error {
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

	engine := refresh.NewEngine(refresh.Config{
		Topic:        d.topic,
		MaxInFlight:  1,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, d.store, d.fetcher, logger)
	defer engine.Close()

	head, err := d.client.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}
	if _, err := engine.Seed(ctx, head); err != nil {
		return err
	}

	snapshot := d.store.Snapshot()
	records := make([]model.PairRecord, 0, len(snapshot))
	for _, pair := range snapshot {
		records = append(records, pair.Record())
	}

	if d.sink != nil {
		if err := d.sink.PutPairs(ctx, records); err != nil {
			return fmt.Errorf("write pairs: %w", err)
		}
		return nil
	}

	for _, r := range records {
		logger.Info("pair",
			zap.String("address", r.Address),
			zap.String("reserve0", r.Reserve0),
			zap.String("reserve1", r.Reserve1),
			zap.Uint64("updated_at_block", r.UpdatedAtBlock),
		)
	}
	return nil
}
