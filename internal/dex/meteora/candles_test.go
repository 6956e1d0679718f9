// ==================================
// File: internal/dex/meteora/candles_test.go
// ==================================
package meteora

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/meteora-client/internal/blockchain"
)

func TestGetHistoricalPricesValidation(t *testing.T) {
	feed := newTestFeed(newMockClient())

	_, err := feed.GetHistoricalPrices(context.Background(), testKey(2), TimeFrame("7m"), 10)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidInput))

	_, err = feed.GetHistoricalPrices(context.Background(), testKey(2), TimeFrameH1, 0)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidInput))
}

func TestGetHistoricalPricesNoPools(t *testing.T) {
	feed := newTestFeed(newMockClient())

	_, err := feed.GetHistoricalPrices(context.Background(), testKey(2), TimeFrameH1, 10)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeNoLiquidityPool))
}

func requireContiguousSeries(t *testing.T, candles []CandleStick, frame TimeFrame, limit int) {
	t.Helper()
	frameSec := frame.Seconds()
	require.Len(t, candles, limit)
	for i, c := range candles {
		assert.Zero(t, c.Timestamp%frameSec, "timestamp must sit on a frame boundary")
		if i > 0 {
			assert.Equal(t, candles[i-1].Timestamp+frameSec, c.Timestamp, "series must be contiguous and ascending")
		}
		assert.Greater(t, c.Open, 0.0)
		assert.Greater(t, c.Close, 0.0)
		assert.GreaterOrEqual(t, c.High, c.Open)
		assert.GreaterOrEqual(t, c.High, c.Close)
		assert.LessOrEqual(t, c.Low, c.Open)
		assert.LessOrEqual(t, c.Low, c.Close)
		assert.GreaterOrEqual(t, c.Volume, 0.0)
	}
}

func TestGetHistoricalPricesSyntheticWalk(t *testing.T) {
	client := newMockClient()
	mint := testKey(2)
	// A pool exists but has no transaction history at all.
	client.installPool(testPool{
		address: testKey(20), mintA: mint, mintB: testKey(3),
		reserveA: 100_000, reserveB: 200_000,
	})

	feed := newTestFeed(client)
	candles, err := feed.GetHistoricalPrices(context.Background(), mint, TimeFrameM5, 24)
	require.NoError(t, err)
	requireContiguousSeries(t, candles, TimeFrameM5, 24)
}

func TestGetHistoricalPricesFromEvents(t *testing.T) {
	client := newMockClient()
	mint := testKey(2)
	pool := testPool{
		address: testKey(20), mintA: mint, mintB: testKey(3),
		reserveA: 100_000, reserveB: 200_000,
	}
	client.installPool(pool)

	now := time.Now()
	var sigs []blockchain.SignatureInfo
	for i := 0; i < 8; i++ {
		bt := now.Add(-time.Duration(i*10) * time.Minute)
		sigs = append(sigs, blockchain.SignatureInfo{
			Signature: solana.Signature{byte(i + 1)},
			BlockTime: &bt,
		})
	}
	client.mu.Lock()
	client.signatures[pool.address] = sigs
	client.mu.Unlock()

	feed := newTestFeed(client)
	candles, err := feed.GetHistoricalPrices(context.Background(), mint, TimeFrameM15, 12)
	require.NoError(t, err)
	requireContiguousSeries(t, candles, TimeFrameM15, 12)

	// Observed trades land inside the window, so some volume is nonzero.
	var totalVolume float64
	for _, c := range candles {
		totalVolume += c.Volume
	}
	assert.Greater(t, totalVolume, 0.0)
}

func TestGetHistoricalPricesServedFromCache(t *testing.T) {
	client := newMockClient()
	mint := testKey(2)
	client.installPool(testPool{
		address: testKey(20), mintA: mint, mintB: testKey(3),
		reserveA: 100_000, reserveB: 200_000,
	})

	feed := newTestFeed(client)
	first, err := feed.GetHistoricalPrices(context.Background(), mint, TimeFrameH1, 10)
	require.NoError(t, err)
	sigCalls := client.callCount("GetSignaturesForAddress")

	second, err := feed.GetHistoricalPrices(context.Background(), mint, TimeFrameH1, 10)
	require.NoError(t, err)
	assert.Equal(t, sigCalls, client.callCount("GetSignaturesForAddress"),
		"a fresh cache entry must not trigger new signature scans")
	assert.Equal(t, first, second)
}

func TestGetHistoricalPricesCacheServesFullLengthOnly(t *testing.T) {
	client := newMockClient()
	mint := testKey(2)
	client.installPool(testPool{
		address: testKey(20), mintA: mint, mintB: testKey(3),
		reserveA: 100_000, reserveB: 200_000,
	})

	feed := newTestFeed(client)
	_, err := feed.GetHistoricalPrices(context.Background(), mint, TimeFrameH1, 10)
	require.NoError(t, err)

	// A larger request inside the refresh window cannot be satisfied by the
	// short cached series; it must resynthesize to the full length.
	candles, err := feed.GetHistoricalPrices(context.Background(), mint, TimeFrameH1, 24)
	require.NoError(t, err)
	requireContiguousSeries(t, candles, TimeFrameH1, 24)
}

func TestGetHistoricalPricesSeededReproducibility(t *testing.T) {
	build := func() []CandleStick {
		client := newMockClient()
		mint := testKey(2)
		client.installPool(testPool{
			address: testKey(20), mintA: mint, mintB: testKey(3),
			reserveA: 100_000, reserveB: 200_000,
		})
		feed := newTestFeed(client)
		candles, err := feed.GetHistoricalPrices(context.Background(), mint, TimeFrameH1, 16)
		require.NoError(t, err)
		return candles
	}

	a := build()
	b := build()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Open, b[i].Open, "same seed must reproduce the walk")
		assert.Equal(t, a[i].Close, b[i].Close)
	}
}

func TestHistoricalCacheTrimsToLimit(t *testing.T) {
	hc := newHistoricalCache(time.Minute)
	mint := testKey(2)

	candles := make([]CandleStick, 0, MaxCachedCandles+50)
	for i := 0; i < MaxCachedCandles+50; i++ {
		candles = append(candles, CandleStick{Timestamp: int64(i) * 3600, Close: 1.0})
	}
	hc.update(mint, TimeFrameH1, candles)

	got := hc.get(mint, TimeFrameH1, MaxCachedCandles+50)
	assert.Len(t, got, MaxCachedCandles)
	// The oldest rows fell off.
	assert.Equal(t, int64(50)*3600, got[0].Timestamp)
}

func TestHistoricalCacheKeyedByTimeframe(t *testing.T) {
	hc := newHistoricalCache(time.Minute)
	mint := testKey(2)

	hc.update(mint, TimeFrameH1, []CandleStick{{Timestamp: 3600, Close: 1.0}})
	hc.update(mint, TimeFrameM5, []CandleStick{{Timestamp: 300, Close: 2.0}, {Timestamp: 600, Close: 2.1}})

	assert.Len(t, hc.get(mint, TimeFrameH1, 10), 1)
	assert.Len(t, hc.get(mint, TimeFrameM5, 10), 2)
	assert.Empty(t, hc.get(mint, TimeFrameD1, 10))
}

func TestHistoricalCacheDeduplicates(t *testing.T) {
	hc := newHistoricalCache(time.Minute)
	mint := testKey(2)

	hc.update(mint, TimeFrameH1, []CandleStick{{Timestamp: 3600, Close: 1.0}})
	hc.update(mint, TimeFrameH1, []CandleStick{{Timestamp: 3600, Close: 9.9}, {Timestamp: 7200, Close: 1.1}})

	got := hc.get(mint, TimeFrameH1, 10)
	require.Len(t, got, 2)
	// The first observation of a bucket wins.
	assert.Equal(t, 1.0, got[0].Close)
}

func TestEventsToCandlesBucketing(t *testing.T) {
	feed := newTestFeed(newMockClient())
	base := time.Now().Unix() / 3600 * 3600

	events := []swapEvent{
		{timestamp: base - 7200 + 10, price: 1.0, volumeUSD: 100},
		{timestamp: base - 7200 + 50, price: 1.2, volumeUSD: 50},
		{timestamp: base - 3600 + 10, price: 0.9, volumeUSD: 30},
	}
	candles := feed.eventsToCandles(events, TimeFrameH1, 4)
	require.Len(t, candles, 4)

	// The two events of the older bucket merged into one candle.
	var bucket *CandleStick
	for i := range candles {
		if candles[i].Timestamp == base-7200 {
			bucket = &candles[i]
		}
	}
	require.NotNil(t, bucket)
	assert.Equal(t, 1.0, bucket.Open)
	assert.Equal(t, 1.2, bucket.Close)
	assert.Equal(t, 1.2, bucket.High)
	assert.Equal(t, 1.0, bucket.Low)
	assert.InDelta(t, 150.0, bucket.Volume, 1e-9)
}
