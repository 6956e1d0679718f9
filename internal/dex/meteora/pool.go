// =============================
// File: internal/dex/meteora/pool.go
// =============================
package meteora

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/meteora-client/internal/blockchain"
)

// poolEntry хранит один снимок пула вместе со временем его загрузки.
type poolEntry struct {
	info      PoolInfo
	fetchedAt time.Time
}

// poolCache содержит список адресов всех пулов программы и снимки отдельных
// пулов. Каждая запись устаревает независимо по TTL.
type poolCache struct {
	allPools   []solana.PublicKey
	lastUpdate time.Time
	pools      map[solana.PublicKey]poolEntry
}

// PoolManager отвечает за поиск пулов Meteora и кеширование их состояния.
// Мьютекс защищает только кеш и никогда не удерживается во время RPC-вызова:
// два конкурентных вызова могут продублировать обновление, но не повредить
// состояние.
type PoolManager struct {
	client    blockchain.Client
	logger    *zap.Logger
	programID solana.PublicKey
	cacheTTL  time.Duration
	scanLimit int

	mu    sync.Mutex
	cache poolCache
}

// PoolManagerOptions содержит опции для создания нового PoolManager.
type PoolManagerOptions struct {
	ProgramID solana.PublicKey
	CacheTTL  time.Duration
	// ScanConcurrency ограничивает параллелизм декодирования пулов при поиске.
	ScanConcurrency int
}

// DefaultPoolManagerOptions возвращает настройки по умолчанию.
func DefaultPoolManagerOptions() PoolManagerOptions {
	return PoolManagerOptions{
		ProgramID:       MeteoraProgramID,
		CacheTTL:        DefaultPoolCacheTTL,
		ScanConcurrency: 8,
	}
}

// NewPoolManager создает PoolManager с указанными опциями.
func NewPoolManager(client blockchain.Client, logger *zap.Logger, opts ...PoolManagerOptions) *PoolManager {
	options := DefaultPoolManagerOptions()
	if len(opts) > 0 {
		options = opts[0]
		if options.ProgramID.IsZero() {
			options.ProgramID = MeteoraProgramID
		}
		if options.CacheTTL <= 0 {
			options.CacheTTL = DefaultPoolCacheTTL
		}
		if options.ScanConcurrency <= 0 {
			options.ScanConcurrency = 8
		}
	}
	return &PoolManager{
		client:    client,
		logger:    logger.Named("pool_manager"),
		programID: options.ProgramID,
		cacheTTL:  options.CacheTTL,
		scanLimit: options.ScanConcurrency,
		cache:     poolCache{pools: make(map[solana.PublicKey]poolEntry)},
	}
}

// wrapClientErr переводит транспортные ошибки в типизированную таксономию.
func wrapClientErr(err error) *Error {
	if errors.Is(err, blockchain.ErrAccountNotFound) {
		return newError(ErrCodeAccountNotFound, "", err)
	}
	return errRPC(err)
}

// ListAllPools возвращает адреса всех пулов, принадлежащих программе. Список
// кешируется и переиспользуется до истечения TTL.
func (pm *PoolManager) ListAllPools(ctx context.Context) ([]solana.PublicKey, error) {
	pm.mu.Lock()
	if time.Since(pm.cache.lastUpdate) < pm.cacheTTL && len(pm.cache.allPools) > 0 {
		pools := make([]solana.PublicKey, len(pm.cache.allPools))
		copy(pools, pm.cache.allPools)
		pm.mu.Unlock()
		return pools, nil
	}
	pm.mu.Unlock()

	accounts, err := pm.client.GetProgramAccounts(ctx, pm.programID)
	if err != nil {
		return nil, wrapClientErr(err)
	}
	pools := make([]solana.PublicKey, 0, len(accounts))
	for _, acc := range accounts {
		pools = append(pools, acc.Pubkey)
	}

	pm.mu.Lock()
	pm.cache.allPools = pools
	pm.cache.lastUpdate = time.Now()
	pm.mu.Unlock()

	pm.logger.Debug("Refreshed pool address list", zap.Int("count", len(pools)))

	out := make([]solana.PublicKey, len(pools))
	copy(out, pools)
	return out, nil
}

// GetPoolInfo получает и декодирует пул напрямую из кластера. Снимок
// корректен только на момент загрузки.
func (pm *PoolManager) GetPoolInfo(ctx context.Context, poolAddress solana.PublicKey) (*PoolInfo, error) {
	data, err := pm.client.GetAccountData(ctx, poolAddress)
	if err != nil {
		return nil, wrapClientErr(err)
	}
	layout, err := parsePoolAccount(data)
	if err != nil {
		return nil, err
	}

	// Десятичные знаки, supply и оба резерва читаются одним батчевым
	// запросом, чтобы снимок был внутренне согласован.
	refs := []solana.PublicKey{
		layout.tokenAMint,
		layout.tokenBMint,
		layout.tokenAReserve,
		layout.tokenBReserve,
		layout.lpMint,
	}
	raw, err := pm.client.GetMultipleAccountsData(ctx, refs)
	if err != nil {
		return nil, wrapClientErr(err)
	}
	for i, d := range raw {
		if d == nil {
			return nil, errAccountNotFound(refs[i].String())
		}
	}

	decimalsA, _, err := decodeMint(raw[0])
	if err != nil {
		return nil, err
	}
	decimalsB, _, err := decodeMint(raw[1])
	if err != nil {
		return nil, err
	}
	reserveA, err := decodeTokenAmount(raw[2])
	if err != nil {
		return nil, err
	}
	reserveB, err := decodeTokenAmount(raw[3])
	if err != nil {
		return nil, err
	}
	_, lpSupply, err := decodeMint(raw[4])
	if err != nil {
		return nil, err
	}

	return &PoolInfo{
		Address:             poolAddress,
		TokenAMint:          layout.tokenAMint,
		TokenBMint:          layout.tokenBMint,
		TokenAReserve:       layout.tokenAReserve,
		TokenBReserve:       layout.tokenBReserve,
		LPMint:              layout.lpMint,
		FeeAccount:          layout.feeAccount,
		TradeFeeBps:         DefaultTradeFeeBps,
		TokenADecimals:      decimalsA,
		TokenBDecimals:      decimalsB,
		TokenAReserveAmount: reserveA,
		TokenBReserveAmount: reserveB,
		LPSupply:            lpSupply,
	}, nil
}

// GetPoolInfoCached возвращает кешированный снимок, пока его индивидуальный
// таймстемп внутри TTL, иначе перечитывает пул и обновляет кеш.
func (pm *PoolManager) GetPoolInfoCached(ctx context.Context, poolAddress solana.PublicKey) (*PoolInfo, error) {
	pm.mu.Lock()
	if entry, ok := pm.cache.pools[poolAddress]; ok && time.Since(entry.fetchedAt) < pm.cacheTTL {
		info := entry.info
		pm.mu.Unlock()
		return &info, nil
	}
	pm.mu.Unlock()

	info, err := pm.GetPoolInfo(ctx, poolAddress)
	if err != nil {
		return nil, err
	}

	pm.mu.Lock()
	pm.cache.pools[poolAddress] = poolEntry{info: *info, fetchedAt: time.Now()}
	pm.mu.Unlock()
	return info, nil
}

// scanPools конкурентно декодирует все известные пулы и передает каждый
// успешный снимок в keep. Пулы, которые не удалось декодировать,
// пропускаются. Результаты сохраняют порядок обнаружения.
func (pm *PoolManager) scanPools(ctx context.Context, keep func(*PoolInfo) bool) ([]*PoolInfo, error) {
	addresses, err := pm.ListAllPools(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*PoolInfo, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pm.scanLimit)
	for i, addr := range addresses {
		g.Go(func() error {
			info, err := pm.GetPoolInfoCached(gctx, addr)
			if err != nil {
				pm.logger.Debug("Skipping undecodable pool",
					zap.String("pool", addr.String()), zap.Error(err))
				return nil
			}
			if keep(info) {
				results[i] = info
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, wrapClientErr(err)
	}

	matched := make([]*PoolInfo, 0, len(results))
	for _, info := range results {
		if info != nil {
			matched = append(matched, info)
		}
	}
	return matched, nil
}

// FindPoolsForToken возвращает адреса всех пулов, содержащих минт с любой
// стороны, в порядке обнаружения.
func (pm *PoolManager) FindPoolsForToken(ctx context.Context, mint solana.PublicKey) ([]solana.PublicKey, error) {
	matched, err := pm.scanPools(ctx, func(info *PoolInfo) bool {
		return info.HasMint(mint)
	})
	if err != nil {
		return nil, err
	}
	pools := make([]solana.PublicKey, 0, len(matched))
	for _, info := range matched {
		pools = append(pools, info.Address)
	}
	return pools, nil
}

// FindPoolsForPair возвращает полные снимки всех пулов для пары токенов в
// любой ориентации, в порядке обнаружения.
func (pm *PoolManager) FindPoolsForPair(ctx context.Context, tokenA, tokenB solana.PublicKey) ([]PoolInfo, error) {
	matched, err := pm.scanPools(ctx, func(info *PoolInfo) bool {
		return (info.TokenAMint.Equals(tokenA) && info.TokenBMint.Equals(tokenB)) ||
			(info.TokenAMint.Equals(tokenB) && info.TokenBMint.Equals(tokenA))
	})
	if err != nil {
		return nil, err
	}
	pools := make([]PoolInfo, 0, len(matched))
	for _, info := range matched {
		pools = append(pools, *info)
	}
	return pools, nil
}

// PoolLiquidity возвращает суммарный сырой резерв пула.
func (pm *PoolManager) PoolLiquidity(ctx context.Context, poolAddress solana.PublicKey) (uint64, error) {
	info, err := pm.GetPoolInfoCached(ctx, poolAddress)
	if err != nil {
		return 0, err
	}
	return info.Liquidity(), nil
}
