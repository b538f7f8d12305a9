package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// DefaultMulticall is the Multicall3 deployment shared by most EVM chains.
	DefaultMulticall = "0xcA11bde05977b3631167028862bE2a173976CA11"
	// DefaultTopic is keccak256("Sync(uint112,uint112)").
	DefaultTopic = "0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1"
	// DefaultChainID is Polygon PoS.
	DefaultChainID = 137
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL       string
	ChainID      uint64
	Multicall    string
	Pairs        []string
	Topic        string
	BatchSize    int
	StatsEvery   uint64
	MaxInFlight  int
	FetchTimeout time.Duration
	PollInterval time.Duration
	MaxBackfill  uint64
	MaxRetries   int
	RetryBackoff time.Duration
	Out          string
	PgDSN        string
	MetricsAddr  string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BLOOMCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", uint64(DefaultChainID))
	v.SetDefault("multicall", DefaultMulticall)
	v.SetDefault("topic", DefaultTopic)
	v.SetDefault("batch-size", 500)
	v.SetDefault("stats-every", uint64(100))
	v.SetDefault("max-in-flight", 32)
	v.SetDefault("fetch-timeout", 10*time.Second)
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("max-backfill", uint64(128))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:       v.GetString("rpc"),
		ChainID:      v.GetUint64("chain-id"),
		Multicall:    v.GetString("multicall"),
		Pairs:        getStringSlice(v, "pair"),
		Topic:        v.GetString("topic"),
		BatchSize:    v.GetInt("batch-size"),
		StatsEvery:   v.GetUint64("stats-every"),
		MaxInFlight:  v.GetInt("max-in-flight"),
		FetchTimeout: v.GetDuration("fetch-timeout"),
		PollInterval: v.GetDuration("poll-interval"),
		MaxBackfill:  v.GetUint64("max-backfill"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		Out:          v.GetString("out"),
		PgDSN:        v.GetString("pg-dsn"),
		MetricsAddr:  v.GetString("metrics-addr"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("pair list is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be positive")
	}
	if c.MaxInFlight <= 0 {
		return fmt.Errorf("max-in-flight must be positive")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
