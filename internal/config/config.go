// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

type Config struct {
	RPCList             []string `mapstructure:"rpc_list"`
	Commitment          string   `mapstructure:"commitment"`
	WalletKey           string   `mapstructure:"wallet_key"`
	PoolCacheTTL        int      `mapstructure:"pool_cache_ttl"`        // seconds
	HistoryRefresh      int      `mapstructure:"history_refresh"`       // seconds
	PricePollInterval   int      `mapstructure:"price_poll_interval"`   // seconds
	PriceChangePercent  float64  `mapstructure:"price_change_percent"`  // listener threshold
	ScanConcurrency     int      `mapstructure:"scan_concurrency"`
	ConfirmationTimeout int      `mapstructure:"confirmation_timeout"` // seconds
	DebugLogging        bool     `mapstructure:"debug_logging"`
	LogFile             string   `mapstructure:"log_file"`
}

const (
	DefaultPoolCacheTTL        = 300
	DefaultHistoryRefresh      = 300
	DefaultPricePollInterval   = 5
	DefaultPriceChangePercent  = 1.0
	DefaultScanConcurrency     = 8
	DefaultConfirmationTimeout = 60
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"pool_cache_ttl":       DefaultPoolCacheTTL,
		"history_refresh":      DefaultHistoryRefresh,
		"price_poll_interval":  DefaultPricePollInterval,
		"price_change_percent": DefaultPriceChangePercent,
		"scan_concurrency":     DefaultScanConcurrency,
		"confirmation_timeout": DefaultConfirmationTimeout,
		"commitment":           "confirmed",
		"log_file":             "meteora-client.log",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	switch cfg.Commitment {
	case "", "processed", "confirmed", "finalized":
	default:
		return errors.New("invalid commitment level")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.PoolCacheTTL <= 0 {
		return errors.New("invalid pool_cache_ttl")
	}
	if cfg.HistoryRefresh <= 0 {
		return errors.New("invalid history_refresh")
	}
	if cfg.PricePollInterval <= 0 {
		return errors.New("invalid price_poll_interval")
	}
	if cfg.PriceChangePercent <= 0 {
		return errors.New("invalid price_change_percent")
	}
	if cfg.ScanConcurrency <= 0 {
		return errors.New("invalid scan_concurrency")
	}
	if cfg.ConfirmationTimeout <= 0 {
		return errors.New("invalid confirmation_timeout")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("METEORA_CLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envWalletKey := v.GetString("WALLET_KEY")
	if envWalletKey != "" {
		cfg.WalletKey = envWalletKey
	}

	envRPCList := v.GetString("RPC_LIST")
	if envRPCList != "" {
		rpcs := strings.Split(envRPCList, ",")
		var cleanRPCs []string
		for _, rpc := range rpcs {
			clean := strings.TrimSpace(rpc)
			if clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}
	return nil
}
