package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bloomCache/internal/chain"
	"bloomCache/internal/config"
	"bloomCache/internal/multicall"
	"bloomCache/internal/pairs"
	"bloomCache/internal/storage"
	"bloomCache/internal/storage/postgres"
)

// deps holds what both commands build from the configuration.
type deps struct {
	client  *chain.Client
	store   *pairs.Store
	fetcher *multicall.Fetcher
	topic   common.Hash
	sink    storage.Storage
	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, logger, err
	}
	return cfg, logger, nil
}

func buildDeps(ctx context.Context, cfg config.Config, logger *zap.Logger) (*deps, error) {
	addresses, err := config.ParseAddresses(cfg.Pairs)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("pair list is required")
	}

	topic, err := config.ParseTopic(cfg.Topic)
	if err != nil {
		return nil, err
	}

	multicallAddr, err := config.ParseAddress(cfg.Multicall)
	if err != nil {
		return nil, err
	}

	d := &deps{topic: topic}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	d.client = client
	d.closers = append(d.closers, client.Close)

	if cfg.ChainID != 0 {
		chainID, err := client.GetChainID(ctx)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("get chain id: %w", err)
		}
		if !chainID.IsUint64() || chainID.Uint64() != cfg.ChainID {
			d.Close()
			return nil, fmt.Errorf("chain id mismatch: node reports %s, expected %d", chainID, cfg.ChainID)
		}
	}

	var sinks storage.Multi
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PgDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PgDSN, cfg.ChainID)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.closers = append(d.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			d.Close()
			return nil, err
		}
		sinks = append(sinks, pg)
	}
	if len(sinks) > 0 {
		d.sink = sinks
	}

	d.store = pairs.NewStore(addresses)
	d.fetcher = multicall.NewFetcher(client, multicallAddr, cfg.BatchSize, logger)
	return d, nil
}
