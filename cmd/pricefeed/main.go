// ====================================
// File: cmd/pricefeed/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/meteora-client/internal/blockchain/solbc"
	"github.com/rovshanmuradov/meteora-client/internal/config"
	"github.com/rovshanmuradov/meteora-client/internal/dex/meteora"
	"github.com/rovshanmuradov/meteora-client/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "path to configuration file")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: pricefeed [-config path] <mint> [mint...]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      7,
		Compress:    true,
		Development: cfg.DebugLogging,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, flag.Args()); err != nil && err != context.Canceled {
		log.Fatal("pricefeed terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, log *logger.Logger, mintArgs []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mints := make([]solana.PublicKey, 0, len(mintArgs))
	for _, arg := range mintArgs {
		mint, err := solana.PublicKeyFromBase58(arg)
		if err != nil {
			return fmt.Errorf("invalid mint %q: %w", arg, err)
		}
		mints = append(mints, mint)
	}

	client, err := solbc.NewClientWithCommitment(cfg.RPCList, rpc.CommitmentType(cfg.Commitment), log.Logger)
	if err != nil {
		return fmt.Errorf("initialize rpc client: %w", err)
	}

	poolOpts := meteora.DefaultPoolManagerOptions()
	poolOpts.CacheTTL = time.Duration(cfg.PoolCacheTTL) * time.Second
	poolOpts.ScanConcurrency = cfg.ScanConcurrency
	pools := meteora.NewPoolManager(client, log.Logger, poolOpts)

	feed := meteora.NewPriceFeed(client, pools, log.Logger, meteora.PriceFeedOptions{
		RefreshInterval: time.Duration(cfg.HistoryRefresh) * time.Second,
	})
	listener := meteora.NewPriceListener(feed, log.Logger, meteora.PriceListenerOptions{
		PollInterval:    time.Duration(cfg.PricePollInterval) * time.Second,
		ChangeThreshold: cfg.PriceChangePercent / 100.0,
	})

	for _, mint := range mints {
		if price, err := feed.CurrentPrice(ctx, mint); err != nil {
			log.Warn("initial price unavailable", zap.Stringer("mint", mint), zap.Error(err))
		} else {
			log.Info("initial price",
				zap.Stringer("mint", mint),
				zap.Float64("price_sol", price.SolPrice),
				zap.Float64("price_usd", price.USDPrice))
		}

		ch := listener.Subscribe(mint)
		go func(mint solana.PublicKey, ch <-chan meteora.TokenPrice) {
			for update := range ch {
				log.Info("price update",
					zap.Stringer("mint", mint),
					zap.Float64("price_sol", update.SolPrice),
					zap.Float64("price_usd", update.USDPrice),
					zap.Uint64("liquidity", update.Liquidity))
			}
		}(mint, ch)
	}

	log.Info("pricefeed started",
		zap.Int("mints", len(mints)),
		zap.Int("rpc_endpoints", len(cfg.RPCList)))
	return listener.Run(ctx)
}
