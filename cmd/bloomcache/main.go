package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bloomCache/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "bloomcache",
		Short:        "Bloom-gated pair reserve cache",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Seed the cache and follow new blocks",
		RunE:  runRefresher,
	}

	addChainFlags(runCmd.Flags())
	runCmd.Flags().Uint64("stats-every", 100, "blocks between effectiveness snapshots")
	runCmd.Flags().Int("max-in-flight", 32, "maximum concurrent block pipelines")
	runCmd.Flags().Duration("fetch-timeout", 10*time.Second, "per-block fetch timeout")
	runCmd.Flags().Duration("poll-interval", 2*time.Second, "head polling interval when subscriptions are unavailable")
	runCmd.Flags().Uint64("max-backfill", 128, "maximum missed blocks replayed per gap")
	runCmd.Flags().String("out", "", "optional JSONL path for block outcomes and snapshots")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for block outcomes and snapshots")
	runCmd.Flags().String("metrics-addr", "", "optional Prometheus listen address (e.g. :9102)")

	root.AddCommand(runCmd)

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Fetch all tracked pairs once at the chain head and print them",
		RunE:  runSeed,
	}

	addChainFlags(seedCmd.Flags())
	seedCmd.Flags().String("out", "", "optional JSONL path for pair reserves")
	seedCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for pair reserves")

	root.AddCommand(seedCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "RPC URL (ws/wss enables new-head subscriptions)")
	flags.Uint64("chain-id", config.DefaultChainID, "expected chain id, 0 skips the check")
	flags.String("multicall", config.DefaultMulticall, "Multicall3 contract address")
	flags.StringSlice("pair", nil, "tracked pair addresses (comma-separated)")
	flags.String("topic", config.DefaultTopic, "event topic gating the per-pair bloom tests")
	flags.Int("batch-size", 500, "maximum sub-calls per multicall request")
	flags.Int("max-retries", 5, "maximum retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
