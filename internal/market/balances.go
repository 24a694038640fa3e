package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leantrace/eltrader/internal/domain"
)

// AccountFetcher fetches the current account balances over REST.
type AccountFetcher interface {
	FetchBalances(ctx context.Context) ([]domain.Balance, error)
}

// Balances caches per-asset free and locked amounts. It is seeded from a
// REST account fetch and kept current by account position events from the
// user data stream: each event carries the full new state of the assets it
// names, so updates replace rather than accumulate.
type Balances struct {
	fetcher AccountFetcher
	logger  *slog.Logger

	mu         sync.RWMutex
	byAsset    map[string]domain.Balance
	lastUpdate time.Time
}

// NewBalances creates an empty balance cache.
func NewBalances(fetcher AccountFetcher, logger *slog.Logger) *Balances {
	return &Balances{
		fetcher: fetcher,
		logger:  logger.With(slog.String("component", "balances")),
		byAsset: make(map[string]domain.Balance),
	}
}

// Initialize seeds the cache from a REST account fetch.
func (b *Balances) Initialize(ctx context.Context) error {
	balances, err := b.fetcher.FetchBalances(ctx)
	if err != nil {
		return fmt.Errorf("market: initialize balances: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, bal := range balances {
		b.byAsset[bal.Asset] = bal
	}
	b.lastUpdate = time.Now()
	b.logger.Info("balances initialized", slog.Int("assets", len(balances)))
	return nil
}

// ApplyPosition merges an account position event. Events older than the
// cache's last update are dropped.
func (b *Balances) ApplyPosition(pos domain.AccountPosition) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pos.EventTime.Before(b.lastUpdate) {
		return
	}
	for _, bal := range pos.Balances {
		b.byAsset[bal.Asset] = bal
	}
	b.lastUpdate = pos.EventTime
}

// Free returns the free amount of asset, or false when unknown.
func (b *Balances) Free(asset string) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bal, ok := b.byAsset[asset]
	if !ok {
		return decimal.Zero, false
	}
	return bal.Free, true
}

// Snapshot returns a copy of all cached balances.
func (b *Balances) Snapshot() []domain.Balance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Balance, 0, len(b.byAsset))
	for _, bal := range b.byAsset {
		out = append(out, bal)
	}
	return out
}
