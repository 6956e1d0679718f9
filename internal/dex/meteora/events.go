// ==================================
// File: internal/dex/meteora/events.go
// ==================================
package meteora

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultChangeThreshold = 0.01
	subscriberBufferSize   = 16
)

// PriceListener polls spot prices for subscribed mints and fans significant
// moves out to subscribers. A slow subscriber never blocks the poll loop:
// updates it cannot take are dropped.
type PriceListener struct {
	feed      *PriceFeed
	logger    *zap.Logger
	interval  time.Duration
	threshold float64

	mu   sync.Mutex
	subs map[solana.PublicKey][]chan TokenPrice
	last map[solana.PublicKey]float64
}

// PriceListenerOptions tunes the listener. Zero values fall back to a 5s
// poll and a 1% change threshold.
type PriceListenerOptions struct {
	PollInterval    time.Duration
	ChangeThreshold float64
}

func NewPriceListener(feed *PriceFeed, logger *zap.Logger, opts PriceListenerOptions) *PriceListener {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	threshold := opts.ChangeThreshold
	if threshold <= 0 {
		threshold = defaultChangeThreshold
	}
	return &PriceListener{
		feed:      feed,
		logger:    logger.Named("price_listener"),
		interval:  interval,
		threshold: threshold,
		subs:      make(map[solana.PublicKey][]chan TokenPrice),
		last:      make(map[solana.PublicKey]float64),
	}
}

// Subscribe registers interest in a mint and returns the update channel.
// The first poll after subscribing always delivers an update.
func (pl *PriceListener) Subscribe(mint solana.PublicKey) <-chan TokenPrice {
	ch := make(chan TokenPrice, subscriberBufferSize)
	pl.mu.Lock()
	pl.subs[mint] = append(pl.subs[mint], ch)
	pl.mu.Unlock()
	pl.logger.Debug("subscriber added", zap.Stringer("mint", mint))
	return ch
}

// Unsubscribe removes a channel previously returned by Subscribe and closes
// it. Unknown channels are ignored.
func (pl *PriceListener) Unsubscribe(mint solana.PublicKey, ch <-chan TokenPrice) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	chans := pl.subs[mint]
	for i, c := range chans {
		if c == ch {
			pl.subs[mint] = append(chans[:i], chans[i+1:]...)
			close(c)
			break
		}
	}
	if len(pl.subs[mint]) == 0 {
		delete(pl.subs, mint)
		delete(pl.last, mint)
	}
}

// Run polls until the context is cancelled. It always returns ctx.Err().
func (pl *PriceListener) Run(ctx context.Context) error {
	ticker := time.NewTicker(pl.interval)
	defer ticker.Stop()

	pl.logger.Info("price listener started", zap.Duration("interval", pl.interval))
	for {
		select {
		case <-ctx.Done():
			pl.closeAll()
			return ctx.Err()
		case <-ticker.C:
			pl.pollOnce(ctx)
		}
	}
}

func (pl *PriceListener) pollOnce(ctx context.Context) {
	pl.mu.Lock()
	mints := make([]solana.PublicKey, 0, len(pl.subs))
	for mint := range pl.subs {
		mints = append(mints, mint)
	}
	pl.mu.Unlock()

	for _, mint := range mints {
		price, err := pl.feed.CurrentPrice(ctx, mint)
		if err != nil {
			pl.logger.Debug("price poll failed", zap.Stringer("mint", mint), zap.Error(err))
			continue
		}
		pl.maybeNotify(mint, price)
	}
}

// maybeNotify delivers the price to subscribers on the first observation of
// a mint and afterwards only when the move exceeds the change threshold.
func (pl *PriceListener) maybeNotify(mint solana.PublicKey, price *TokenPrice) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	prev, seen := pl.last[mint]
	if seen && prev > 0 {
		change := math.Abs(price.SolPrice-prev) / prev
		if change < pl.threshold {
			return
		}
	}
	pl.last[mint] = price.SolPrice

	for _, ch := range pl.subs[mint] {
		select {
		case ch <- *price:
		default:
			pl.logger.Debug("dropping update for slow subscriber", zap.Stringer("mint", mint))
		}
	}
}

func (pl *PriceListener) closeAll() {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	for mint, chans := range pl.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(pl.subs, mint)
	}
	pl.last = make(map[solana.PublicKey]float64)
}
