// ==================================
// File: internal/dex/meteora/price_test.go
// ==================================
package meteora

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFeed(client *mockClient) *PriceFeed {
	pools := NewPoolManager(client, zap.NewNop())
	return NewPriceFeed(client, pools, zap.NewNop(), PriceFeedOptions{RandSeed: 42})
}

func TestPoolSpotPrice(t *testing.T) {
	pool := &PoolInfo{
		TokenAMint:          testKey(2),
		TokenBMint:          testKey(3),
		TokenADecimals:      0,
		TokenBDecimals:      0,
		TokenAReserveAmount: 100,
		TokenBReserveAmount: 200,
	}

	priceA, err := poolSpotPrice(pool, pool.TokenAMint)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, priceA, 1e-12)

	priceB, err := poolSpotPrice(pool, pool.TokenBMint)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, priceB, 1e-12)
}

func TestPoolSpotPriceNormalizesDecimals(t *testing.T) {
	// 1 token A (6 decimals) against 50 token B (9 decimals).
	pool := &PoolInfo{
		TokenAMint:          testKey(2),
		TokenBMint:          testKey(3),
		TokenADecimals:      6,
		TokenBDecimals:      9,
		TokenAReserveAmount: 1_000_000,
		TokenBReserveAmount: 50_000_000_000,
	}
	price, err := poolSpotPrice(pool, pool.TokenAMint)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, price, 1e-9)
}

func TestPoolSpotPriceEmptyReserve(t *testing.T) {
	pool := &PoolInfo{
		TokenAMint:          testKey(2),
		TokenBMint:          testKey(3),
		TokenAReserveAmount: 0,
		TokenBReserveAmount: 200,
	}
	_, err := poolSpotPrice(pool, pool.TokenAMint)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidPrice))
}

func TestCurrentPricePicksDeepestPool(t *testing.T) {
	client := newMockClient()
	mint := testKey(2)
	other := testKey(3)
	// Shallow pool priced at 2, deep pool priced at 3.
	client.installPool(testPool{
		address: testKey(20), mintA: mint, mintB: other,
		reserveA: 1_000, reserveB: 2_000,
	})
	client.installPool(testPool{
		address: testKey(30), mintA: mint, mintB: other,
		reserveA: 100_000, reserveB: 300_000,
	})

	feed := newTestFeed(client)
	price, err := feed.CurrentPrice(context.Background(), mint)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, price.SolPrice, 1e-9)
	assert.Equal(t, uint64(400_000), price.Liquidity)
	// No WSOL/USDC pool exists, so USD pricing uses the fixed fallback.
	assert.InDelta(t, 3.0*FallbackSolUSDPrice, price.USDPrice, 1e-6)
}

func TestCurrentPriceNoPools(t *testing.T) {
	feed := newTestFeed(newMockClient())
	_, err := feed.CurrentPrice(context.Background(), testKey(2))
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeNoLiquidityPool))
}

func TestWeightedPrice(t *testing.T) {
	client := newMockClient()
	mint := testKey(2)
	other := testKey(3)
	// price 2 with liquidity 3000, price 4 with liquidity 5000.
	client.installPool(testPool{
		address: testKey(20), mintA: mint, mintB: other,
		reserveA: 1_000, reserveB: 2_000,
	})
	client.installPool(testPool{
		address: testKey(30), mintA: mint, mintB: other,
		reserveA: 1_000, reserveB: 4_000,
	})
	// Dust pool with an absurd price must be ignored.
	client.installPool(testPool{
		address: testKey(40), mintA: mint, mintB: other,
		reserveA: 1, reserveB: 999,
	})

	feed := newTestFeed(client)
	price, err := feed.WeightedPrice(context.Background(), mint)
	require.NoError(t, err)

	// (2*3000 + 4*5000) / 8000
	assert.InDelta(t, 3.25, price.SolPrice, 1e-9)
	// Liquidity is the sum over qualifying pools; the dust pool is excluded.
	assert.Equal(t, uint64(8_000), price.Liquidity)
}

func TestWeightedPriceAllDust(t *testing.T) {
	client := newMockClient()
	mint := testKey(2)
	client.installPool(testPool{
		address: testKey(20), mintA: mint, mintB: testKey(3),
		reserveA: 10, reserveB: 20,
	})

	feed := newTestFeed(client)
	_, err := feed.WeightedPrice(context.Background(), mint)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeNoLiquidityPool))
}

func TestSolUSDPriceFromReferencePool(t *testing.T) {
	client := newMockClient()
	mint := testKey(2)
	other := testKey(3)
	client.installPool(testPool{
		address: testKey(20), mintA: mint, mintB: other,
		reserveA: 1_000, reserveB: 2_000,
	})
	// WSOL/USDC at 150 USDC per SOL, both sides 6 decimals equivalent.
	client.installPool(testPool{
		address: testKey(30), mintA: WSOLMint, mintB: USDCMint,
		reserveA: 10_000, reserveB: 1_500_000,
	})

	feed := newTestFeed(client)
	price, err := feed.CurrentPrice(context.Background(), mint)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, price.SolPrice, 1e-9)
	assert.InDelta(t, 300.0, price.USDPrice, 1e-6)
}
