// Package market maintains the local replica of exchange market state: the
// per-symbol order book, the bounded candle window, and the account balance
// cache. Each structure has a single writer (its feed task) and supports
// consistent point-in-time reads from the strategy scheduler.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leantrace/eltrader/internal/domain"
)

// DepthSnapshot is the REST order book snapshot the synchronizer rebuilds
// from.
type DepthSnapshot struct {
	LastUpdateID int64
	Bids         []domain.PriceLevel
	Asks         []domain.PriceLevel
}

// SnapshotFetcher fetches a fresh depth snapshot for a symbol.
type SnapshotFetcher interface {
	FetchDepthSnapshot(ctx context.Context, symbol string) (DepthSnapshot, error)
}

// Book reconciles a consistent two-sided order book from a REST snapshot
// plus a stream of diffs. It starts unsynced; a gap in the diff sequence
// drops the book back to unsynced and triggers a snapshot refetch.
type Book struct {
	symbol  string
	fetcher SnapshotFetcher
	logger  *slog.Logger

	mu           sync.RWMutex
	bids         map[string]domain.PriceLevel
	asks         map[string]domain.PriceLevel
	lastUpdateID int64
	ready        bool
	resyncs      int64
}

// NewBook creates an unsynced book for symbol.
func NewBook(symbol string, fetcher SnapshotFetcher, logger *slog.Logger) *Book {
	return &Book{
		symbol:  symbol,
		fetcher: fetcher,
		logger:  logger.With(slog.String("component", "order_book"), slog.String("symbol", symbol)),
		bids:    make(map[string]domain.PriceLevel),
		asks:    make(map[string]domain.PriceLevel),
	}
}

// Sync fetches a REST snapshot and replaces the book contents. On failure
// the book stays (or becomes) unsynced and readers keep seeing not-ready.
func (b *Book) Sync(ctx context.Context) error {
	snap, err := b.fetcher.FetchDepthSnapshot(ctx, b.symbol)
	if err != nil {
		b.mu.Lock()
		b.ready = false
		b.mu.Unlock()
		return fmt.Errorf("market: sync %s: %w", b.symbol, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = make(map[string]domain.PriceLevel, len(snap.Bids))
	for _, lvl := range snap.Bids {
		if lvl.Quantity.IsPositive() {
			b.bids[lvl.Price.String()] = lvl
		}
	}
	b.asks = make(map[string]domain.PriceLevel, len(snap.Asks))
	for _, lvl := range snap.Asks {
		if lvl.Quantity.IsPositive() {
			b.asks[lvl.Price.String()] = lvl
		}
	}
	b.lastUpdateID = snap.LastUpdateID
	b.ready = true

	b.logger.Info("book synced",
		slog.Int64("last_update_id", snap.LastUpdateID),
		slog.Int("bids", len(b.bids)),
		slog.Int("asks", len(b.asks)),
	)
	return nil
}

// Apply merges one depth diff into the book.
//
// Stale diffs (final id at or below the current sequence) are dropped with
// domain.ErrStaleUpdate. A diff whose first id leaves a hole above the
// current sequence returns domain.ErrSequenceGap after marking the book
// unsynced; the caller must resync before applying further diffs.
func (b *Book) Apply(update domain.DepthUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.ready {
		return fmt.Errorf("market: apply %s: %w", b.symbol, domain.ErrNotReady)
	}
	if update.FinalUpdateID <= b.lastUpdateID {
		return fmt.Errorf("market: apply %s [%d,%d] at %d: %w",
			b.symbol, update.FirstUpdateID, update.FinalUpdateID, b.lastUpdateID, domain.ErrStaleUpdate)
	}
	if update.FirstUpdateID > b.lastUpdateID+1 {
		b.ready = false
		return fmt.Errorf("market: apply %s [%d,%d] at %d: %w",
			b.symbol, update.FirstUpdateID, update.FinalUpdateID, b.lastUpdateID, domain.ErrSequenceGap)
	}

	applyDeltas(b.bids, update.Bids)
	applyDeltas(b.asks, update.Asks)
	b.lastUpdateID = update.FinalUpdateID
	return nil
}

// HandleUpdate applies a diff, transparently dropping stale diffs and
// resyncing on a sequence gap. It is the entry point for the depth feed
// task.
func (b *Book) HandleUpdate(ctx context.Context, update domain.DepthUpdate) error {
	err := b.Apply(update)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrStaleUpdate):
		return nil
	case errors.Is(err, domain.ErrSequenceGap), errors.Is(err, domain.ErrNotReady):
		b.mu.Lock()
		b.resyncs++
		n := b.resyncs
		b.mu.Unlock()
		b.logger.Warn("resyncing book",
			slog.Int64("first_update_id", update.FirstUpdateID),
			slog.Int64("resyncs", n),
		)
		return b.Sync(ctx)
	default:
		return err
	}
}

// Ready reports whether the book holds a consistent snapshot-plus-diffs
// state. Strategy consumers must skip evaluation while false.
func (b *Book) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// Resyncs returns how many snapshot refetches gaps have forced.
func (b *Book) Resyncs() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.resyncs
}

// Snapshot returns a point-in-time consistent copy of the book with bids
// descending and asks ascending. It returns domain.ErrNotReady while the
// book is unsynced.
func (b *Book) Snapshot() (domain.BookSnapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.ready {
		return domain.BookSnapshot{}, fmt.Errorf("market: snapshot %s: %w", b.symbol, domain.ErrNotReady)
	}

	snap := domain.BookSnapshot{
		Symbol:       b.symbol,
		Bids:         collectLevels(b.bids, true),
		Asks:         collectLevels(b.asks, false),
		LastUpdateID: b.lastUpdateID,
		Taken:        time.Now(),
	}
	return snap, nil
}

// BestBid returns the highest bid price, or false when unsynced or empty.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	snap, err := b.Snapshot()
	if err != nil {
		return decimal.Zero, false
	}
	lvl, ok := snap.BestBid()
	return lvl.Price, ok
}

// BestAsk returns the lowest ask price, or false when unsynced or empty.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	snap, err := b.Snapshot()
	if err != nil {
		return decimal.Zero, false
	}
	lvl, ok := snap.BestAsk()
	return lvl.Price, ok
}

// applyDeltas upserts each level into side; a zero quantity removes the
// price key.
func applyDeltas(side map[string]domain.PriceLevel, deltas []domain.PriceLevel) {
	for _, lvl := range deltas {
		key := lvl.Price.String()
		if lvl.Quantity.IsZero() {
			delete(side, key)
			continue
		}
		side[key] = lvl
	}
}

// collectLevels copies a side into a sorted slice; descending for bids,
// ascending for asks.
func collectLevels(side map[string]domain.PriceLevel, descending bool) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(side))
	for _, lvl := range side {
		out = append(out, lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
