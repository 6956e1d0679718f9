// ==================================
// File: internal/dex/meteora/candles.go
// ==================================
package meteora

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/meteora-client/internal/blockchain"
)

// maxPoolsPerHistory ограничивает число пулов, участвующих в одном запросе
// истории.
const maxPoolsPerHistory = 5

type historyKey struct {
	mint  solana.PublicKey
	frame TimeFrame
}

// historicalCache хранит синтезированные серии свечей по ключу
// (минт, таймфрейм), чтобы повторные запросы графика внутри окна обновления
// не ходили в RPC.
type historicalCache struct {
	refresh time.Duration

	mu        sync.Mutex
	series    map[historyKey][]CandleStick
	lastFetch map[solana.PublicKey]time.Time
}

func newHistoricalCache(refresh time.Duration) *historicalCache {
	return &historicalCache{
		refresh:   refresh,
		series:    make(map[historyKey][]CandleStick),
		lastFetch: make(map[solana.PublicKey]time.Time),
	}
}

// get возвращает до limit самых свежих кешированных свечей, старые первыми.
func (hc *historicalCache) get(mint solana.PublicKey, frame TimeFrame, limit int) []CandleStick {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	series := hc.series[historyKey{mint: mint, frame: frame}]
	if len(series) == 0 {
		return nil
	}
	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	out := make([]CandleStick, len(series))
	copy(out, series)
	return out
}

// fresh сообщает, обновлялся ли минт внутри окна обновления.
func (hc *historicalCache) fresh(mint solana.PublicKey) bool {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	last, ok := hc.lastFetch[mint]
	return ok && time.Since(last) < hc.refresh
}

// update вливает свечи в серию (минт, фрейм), дедуплицируя по таймстемпу и
// оставляя только новейшие MaxCachedCandles записей.
func (hc *historicalCache) update(mint solana.PublicKey, frame TimeFrame, candles []CandleStick) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	key := historyKey{mint: mint, frame: frame}
	seen := make(map[int64]struct{}, len(hc.series[key])+len(candles))
	merged := make([]CandleStick, 0, len(hc.series[key])+len(candles))
	for _, c := range hc.series[key] {
		seen[c.Timestamp] = struct{}{}
		merged = append(merged, c)
	}
	for _, c := range candles {
		if _, dup := seen[c.Timestamp]; dup {
			continue
		}
		seen[c.Timestamp] = struct{}{}
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	if len(merged) > MaxCachedCandles {
		merged = merged[len(merged)-MaxCachedCandles:]
	}
	hc.series[key] = merged
	hc.lastFetch[mint] = time.Now()
}

// GetHistoricalPrices возвращает limit свечей минта на заданном таймфрейме,
// старые первыми. Никакого оффчейн-индексера за этим нет: свечи — оценка,
// синтезированная из недавних сигнатур транзакций пулов и текущих резервов,
// с фолбэком на случайное блуждание вокруг живой спот-цены, когда активность
// не видна.
func (pf *PriceFeed) GetHistoricalPrices(ctx context.Context, mint solana.PublicKey, frame TimeFrame, limit int) ([]CandleStick, error) {
	if !frame.Valid() {
		return nil, errInvalidInput("unsupported timeframe " + string(frame))
	}
	if limit <= 0 {
		return nil, errInvalidInput("candle limit must be positive")
	}

	// Кеш обслуживает запрос только целиком: недобор длины уходит на
	// пересинтез.
	if pf.history.fresh(mint) {
		if cached := pf.history.get(mint, frame, limit); len(cached) == limit {
			return cached, nil
		}
	}

	candles, err := pf.fetchHistoricalPrices(ctx, mint, frame, limit)
	if err != nil {
		return nil, err
	}
	pf.history.update(mint, frame, candles)
	return candles, nil
}

func (pf *PriceFeed) fetchHistoricalPrices(ctx context.Context, mint solana.PublicKey, frame TimeFrame, limit int) ([]CandleStick, error) {
	addrs, err := pf.pools.FindPoolsForToken(ctx, mint)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, newError(ErrCodeNoLiquidityPool, "no liquidity pool found for mint "+mint.String(), nil)
	}
	if len(addrs) > maxPoolsPerHistory {
		addrs = addrs[:maxPoolsPerHistory]
	}

	solUSD := pf.solUSDPrice(ctx)
	var events []swapEvent
	for _, addr := range addrs {
		poolEvents, err := pf.collectPoolEvents(ctx, addr, mint, 2*limit, solUSD)
		if err != nil {
			pf.logger.Debug("skipping pool during history synthesis",
				zap.Stringer("pool", addr), zap.Error(err))
			continue
		}
		events = append(events, poolEvents...)
	}

	if len(events) == 0 {
		candles, err := pf.syntheticWalk(ctx, mint, frame, limit)
		if err != nil {
			return nil, newError(ErrCodeNoHistoricalData,
				"no swap activity and no live price for mint "+mint.String(), err)
		}
		return candles, nil
	}

	candles := pf.eventsToCandles(events, frame, limit)
	return candles, nil
}

// collectPoolEvents превращает недавние сигнатуры транзакций пула в
// приблизительные свап-события, оцененные по текущим резервам пула.
func (pf *PriceFeed) collectPoolEvents(ctx context.Context, pool, mint solana.PublicKey, max int, solUSD float64) ([]swapEvent, error) {
	info, err := pf.pools.GetPoolInfoCached(ctx, pool)
	if err != nil {
		return nil, err
	}
	basePrice, err := poolSpotPrice(info, mint)
	if err != nil {
		return nil, err
	}

	sigs, err := pf.client.GetSignaturesForAddress(ctx, pool, max)
	if err != nil {
		pf.logger.Debug("signature lookup failed", zap.Stringer("pool", pool), zap.Error(err))
		return nil, nil
	}
	if len(sigs) > max {
		sigs = sigs[:max]
	}

	otherMint := info.TokenBMint
	if !info.TokenAMint.Equals(mint) {
		otherMint = info.TokenAMint
	}
	reserveMagnitude := float64(info.Liquidity()) / 1000.0

	events := make([]swapEvent, 0, len(sigs))
	for _, sig := range sigs {
		if sig.Failed {
			continue
		}
		ts := pf.eventTimestamp(ctx, sig)
		jitter := 1 + (pf.randFloat()-0.5)*0.10
		price := basePrice * jitter
		volume := reserveMagnitude * (0.1 + 0.9*pf.randFloat())
		events = append(events, swapEvent{
			timestamp:    ts,
			inputMint:    otherMint,
			outputMint:   mint,
			inputAmount:  uint64(volume),
			outputAmount: uint64(volume / math.Max(price, 1e-12)),
			price:        price,
			volumeUSD:    volume * solUSD,
		})
	}
	return events, nil
}

// eventTimestamp определяет время блока сигнатуры с фолбэком на случайную
// точку последних суток, когда нода времени не дает.
func (pf *PriceFeed) eventTimestamp(ctx context.Context, sig blockchain.SignatureInfo) int64 {
	if sig.BlockTime != nil {
		return sig.BlockTime.Unix()
	}
	if bt, err := pf.client.GetTransactionBlockTime(ctx, sig.Signature); err == nil && bt != nil {
		return bt.Unix()
	}
	return time.Now().Unix() - int64(pf.randFloat()*86400)
}

// eventsToCandles раскладывает события по границам фрейма и заполняет
// пропуски, чтобы серия была непрерывной и ровно limit длиной.
func (pf *PriceFeed) eventsToCandles(events []swapEvent, frame TimeFrame, limit int) []CandleStick {
	sort.Slice(events, func(i, j int) bool { return events[i].timestamp < events[j].timestamp })

	frameSec := frame.Seconds()
	buckets := make(map[int64][]swapEvent)
	for _, ev := range events {
		bucket := ev.timestamp / frameSec * frameSec
		buckets[bucket] = append(buckets[bucket], ev)
	}

	candles := make([]CandleStick, 0, len(buckets))
	for ts, evs := range buckets {
		c := CandleStick{
			Timestamp: ts,
			TimeFrame: frame,
			Open:      evs[0].price,
			High:      evs[0].price,
			Low:       evs[0].price,
			Close:     evs[len(evs)-1].price,
		}
		for _, ev := range evs {
			if ev.price > c.High {
				c.High = ev.price
			}
			if ev.price < c.Low {
				c.Low = ev.price
			}
			c.Volume += ev.volumeUSD
		}
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })

	candles = pf.fillCandleGaps(candles, frame, limit)
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles
}

// fillCandleGaps проецирует наблюдаемые свечи на выровненную шкалу из ровно
// limit слотов, заканчивающуюся сейчас, интерполируя плоскую свечу для
// каждого слота без активности.
func (pf *PriceFeed) fillCandleGaps(candles []CandleStick, frame TimeFrame, limit int) []CandleStick {
	if len(candles) >= limit {
		return candles
	}
	frameSec := frame.Seconds()
	end := time.Now().Unix() / frameSec * frameSec
	start := end - int64(limit-1)*frameSec

	byTS := make(map[int64]CandleStick, len(candles))
	for _, c := range candles {
		byTS[c.Timestamp] = c
	}

	filled := make([]CandleStick, 0, limit)
	for ts := start; ts <= end; ts += frameSec {
		if c, ok := byTS[ts]; ok {
			filled = append(filled, c)
			continue
		}
		price := pf.interpolatePrice(candles, ts)
		filled = append(filled, CandleStick{
			Timestamp: ts,
			TimeFrame: frame,
			Open:      price,
			High:      price * 1.01,
			Low:       price * 0.99,
			Close:     price,
			Volume:    0,
		})
	}
	return filled
}

// interpolatePrice оценивает цену в точке ts по ближайшим наблюдаемым свечам
// с обеих сторон.
func (pf *PriceFeed) interpolatePrice(candles []CandleStick, ts int64) float64 {
	if len(candles) == 0 {
		return 1.0
	}
	var before, after *CandleStick
	for i := range candles {
		c := &candles[i]
		if c.Timestamp <= ts && (before == nil || c.Timestamp > before.Timestamp) {
			before = c
		}
		if c.Timestamp > ts && (after == nil || c.Timestamp < after.Timestamp) {
			after = c
		}
	}
	switch {
	case before != nil && after != nil:
		span := float64(after.Timestamp - before.Timestamp)
		if span == 0 {
			return before.Close
		}
		ratio := float64(ts-before.Timestamp) / span
		return before.Close + (after.Close-before.Close)*ratio
	case before != nil:
		return before.Close
	case after != nil:
		return after.Close
	default:
		return candles[0].Close
	}
}

// syntheticWalk строит серию случайного блуждания вокруг живой спот-цены для
// минтов, чьи пулы не показывают активности. Волатильность масштабируется
// квадратным корнем таймфрейма.
func (pf *PriceFeed) syntheticWalk(ctx context.Context, mint solana.PublicKey, frame TimeFrame, limit int) ([]CandleStick, error) {
	current, err := pf.CurrentPrice(ctx, mint)
	if err != nil {
		return nil, err
	}

	frameSec := frame.Seconds()
	end := time.Now().Unix() / frameSec * frameSec
	volatility := 0.02 * math.Sqrt(float64(frameSec)/86400.0)
	liquidity := float64(current.Liquidity)

	price := current.SolPrice
	candles := make([]CandleStick, 0, limit)
	for i := 0; i < limit; i++ {
		ts := end - int64(limit-1-i)*frameSec
		change := 1 + (pf.randFloat()-0.5)*2*volatility
		open := price
		price *= change
		high := math.Max(open, price) * (1 + pf.randFloat()*0.015)
		low := math.Min(open, price) * (1 - pf.randFloat()*0.015)
		candles = append(candles, CandleStick{
			Timestamp: ts,
			TimeFrame: frame,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     price,
			Volume:    liquidity * (0.5 + pf.randFloat()*0.5) * 0.01,
		})
	}
	return candles, nil
}
