// ==================================
// File: internal/dex/meteora/price.go
// ==================================
package meteora

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/meteora-client/internal/blockchain"
)

// PriceFeed вычисляет спот-цены и агрегированные цены из резервов пулов и
// синтезирует исторические свечи для графиков.
type PriceFeed struct {
	client blockchain.Client
	pools  *PoolManager
	logger *zap.Logger

	history *historicalCache

	rngMu sync.Mutex
	rng   *rand.Rand
}

// PriceFeedOptions содержит настройки фида. Нулевые значения заменяются
// значениями по умолчанию.
type PriceFeedOptions struct {
	// RandSeed задает зерно генератора джиттера синтетических свечей.
	// Ноль означает посев от текущего времени.
	RandSeed int64
	// RefreshInterval — минимальный возраст кеша истории перед перечиткой.
	RefreshInterval time.Duration
}

// NewPriceFeed создает фид поверх существующего менеджера пулов, чтобы оба
// разделяли один кеш.
func NewPriceFeed(client blockchain.Client, pools *PoolManager, logger *zap.Logger, opts PriceFeedOptions) *PriceFeed {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	refresh := opts.RefreshInterval
	if refresh <= 0 {
		refresh = HistoryRefreshInterval
	}
	return &PriceFeed{
		client:  client,
		pools:   pools,
		logger:  logger.Named("price_feed"),
		history: newHistoricalCache(refresh),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (pf *PriceFeed) randFloat() float64 {
	pf.rngMu.Lock()
	defer pf.rngMu.Unlock()
	return pf.rng.Float64()
}

// CurrentPrice возвращает спот-цену минта из самого глубокого его пула.
func (pf *PriceFeed) CurrentPrice(ctx context.Context, mint solana.PublicKey) (*TokenPrice, error) {
	addrs, err := pf.pools.FindPoolsForToken(ctx, mint)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, newError(ErrCodeNoLiquidityPool, "no liquidity pool found for mint "+mint.String(), nil)
	}

	var (
		best     *PoolInfo
		bestLiq  uint64
		skipped  int
		lastSkip error
	)
	for _, addr := range addrs {
		info, err := pf.pools.GetPoolInfoCached(ctx, addr)
		if err != nil {
			skipped++
			lastSkip = err
			continue
		}
		if liq := info.Liquidity(); best == nil || liq > bestLiq {
			best = info
			bestLiq = liq
		}
	}
	if best == nil {
		pf.logger.Warn("all candidate pools failed to load",
			zap.Stringer("mint", mint), zap.Int("skipped", skipped), zap.Error(lastSkip))
		return nil, newError(ErrCodeNoLiquidityPool, "no readable liquidity pool for mint "+mint.String(), lastSkip)
	}

	priceSOL, priceUSD, err := pf.calculatePrices(ctx, best, mint)
	if err != nil {
		return nil, err
	}
	return &TokenPrice{
		TokenMint: mint,
		SolPrice:  priceSOL,
		USDPrice:  priceUSD,
		Liquidity: bestLiq,
		Timestamp: time.Now().Unix(),
	}, nil
}

// WeightedPrice агрегирует спот-цену по всем пулам минта, взвешивая каждый
// пул его ликвидностью. Пулы на пылевом пороге и ниже игнорируются, чтобы
// почти пустой пул не искажал результат.
func (pf *PriceFeed) WeightedPrice(ctx context.Context, mint solana.PublicKey) (*TokenPrice, error) {
	addrs, err := pf.pools.FindPoolsForToken(ctx, mint)
	if err != nil {
		return nil, err
	}

	var (
		weightedSum float64
		totalWeight float64
		totalLiq    uint64
	)
	for _, addr := range addrs {
		info, err := pf.pools.GetPoolInfoCached(ctx, addr)
		if err != nil {
			pf.logger.Debug("skipping unreadable pool", zap.Stringer("pool", addr), zap.Error(err))
			continue
		}
		liq := info.Liquidity()
		if liq <= MinPoolLiquidity {
			continue
		}
		price, err := poolSpotPrice(info, mint)
		if err != nil {
			pf.logger.Debug("skipping pool with degenerate reserves", zap.Stringer("pool", addr))
			continue
		}
		weightedSum += price * float64(liq)
		totalWeight += float64(liq)
		totalLiq += liq
	}
	if totalWeight == 0 {
		return nil, newError(ErrCodeNoLiquidityPool, "no pool with sufficient liquidity for mint "+mint.String(), nil)
	}

	priceSOL := weightedSum / totalWeight
	solUSD := pf.solUSDPrice(ctx)
	return &TokenPrice{
		TokenMint: mint,
		SolPrice:  priceSOL,
		USDPrice:  priceSOL * solUSD,
		Liquidity: totalLiq,
		Timestamp: time.Now().Unix(),
	}, nil
}

// calculatePrices вычисляет цену минта в SOL и USD внутри одного пула.
func (pf *PriceFeed) calculatePrices(ctx context.Context, pool *PoolInfo, mint solana.PublicKey) (float64, float64, error) {
	priceSOL, err := poolSpotPrice(pool, mint)
	if err != nil {
		return 0, 0, err
	}
	solUSD := pf.solUSDPrice(ctx)
	return priceSOL, priceSOL * solUSD, nil
}

// poolSpotPrice — нормализованное по decimals отношение резервов: сколько
// противоположного токена дает одна единица mint.
func poolSpotPrice(pool *PoolInfo, mint solana.PublicKey) (float64, error) {
	normA := float64(pool.TokenAReserveAmount) / math.Pow10(int(pool.TokenADecimals))
	normB := float64(pool.TokenBReserveAmount) / math.Pow10(int(pool.TokenBDecimals))
	if normA == 0 || normB == 0 {
		return 0, newError(ErrCodeInvalidPrice, "pool "+pool.Address.String()+" has an empty reserve", nil)
	}
	if pool.TokenAMint.Equals(mint) {
		return normB / normA, nil
	}
	return normA / normB, nil
}

// solUSDPrice получает референсную цену нативного актива из пула WSOL/USDC.
// Любая ошибка деградирует до фиксированного фолбэка, чтобы ценообразование
// продолжало работать без референсного пула.
func (pf *PriceFeed) solUSDPrice(ctx context.Context) float64 {
	pools, err := pf.pools.FindPoolsForPair(ctx, WSOLMint, USDCMint)
	if err != nil || len(pools) == 0 {
		pf.logger.Debug("no WSOL/USDC reference pool, using fallback price",
			zap.Float64("fallback", FallbackSolUSDPrice), zap.Error(err))
		return FallbackSolUSDPrice
	}
	price, err := poolSpotPrice(&pools[0], WSOLMint)
	if err != nil || price <= 0 {
		pf.logger.Debug("reference pool has degenerate reserves, using fallback price",
			zap.Float64("fallback", FallbackSolUSDPrice))
		return FallbackSolUSDPrice
	}
	return price
}
