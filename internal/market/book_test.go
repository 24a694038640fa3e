package market

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leantrace/eltrader/internal/domain"
)

type fakeFetcher struct {
	snapshots []DepthSnapshot
	calls     int
	err       error
}

func (f *fakeFetcher) FetchDepthSnapshot(_ context.Context, _ string) (DepthSnapshot, error) {
	if f.err != nil {
		return DepthSnapshot{}, f.err
	}
	i := f.calls
	if i >= len(f.snapshots) {
		i = len(f.snapshots) - 1
	}
	f.calls++
	return f.snapshots[i], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func level(price, qty string) domain.PriceLevel {
	return domain.PriceLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

func testSnapshot() DepthSnapshot {
	return DepthSnapshot{
		LastUpdateID: 100,
		Bids:         []domain.PriceLevel{level("99.5", "2"), level("99.0", "1")},
		Asks:         []domain.PriceLevel{level("100.5", "3"), level("101.0", "4")},
	}
}

func TestBookNotReadyBeforeSync(t *testing.T) {
	b := NewBook("BTCUSDT", &fakeFetcher{snapshots: []DepthSnapshot{testSnapshot()}}, discardLogger())

	assert.False(t, b.Ready())
	_, err := b.Snapshot()
	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestBookSyncAndSnapshot(t *testing.T) {
	b := NewBook("BTCUSDT", &fakeFetcher{snapshots: []DepthSnapshot{testSnapshot()}}, discardLogger())
	require.NoError(t, b.Sync(context.Background()))
	require.True(t, b.Ready())

	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(100), snap.LastUpdateID)

	bid, ok := snap.BestBid()
	require.True(t, ok)
	ask, ok := snap.BestAsk()
	require.True(t, ok)
	assert.Equal(t, "99.5", bid.Price.String())
	assert.Equal(t, "100.5", ask.Price.String())
	assert.True(t, bid.Price.LessThan(ask.Price))
}

func TestBookStaleDiffDropped(t *testing.T) {
	b := NewBook("BTCUSDT", &fakeFetcher{snapshots: []DepthSnapshot{testSnapshot()}}, discardLogger())
	require.NoError(t, b.Sync(context.Background()))

	err := b.Apply(domain.DepthUpdate{
		Symbol:        "BTCUSDT",
		FirstUpdateID: 90,
		FinalUpdateID: 100,
		Bids:          []domain.PriceLevel{level("99.5", "9")},
	})
	assert.ErrorIs(t, err, domain.ErrStaleUpdate)

	// The stale diff must not have touched the book.
	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "2", snap.Bids[0].Quantity.String())

	// HandleUpdate swallows staleness without a resync.
	require.NoError(t, b.HandleUpdate(context.Background(), domain.DepthUpdate{
		FirstUpdateID: 95, FinalUpdateID: 100,
	}))
	assert.Equal(t, int64(0), b.Resyncs())
}

func TestBookGapTriggersExactlyOneResync(t *testing.T) {
	second := testSnapshot()
	second.LastUpdateID = 200
	fetcher := &fakeFetcher{snapshots: []DepthSnapshot{testSnapshot(), second}}
	b := NewBook("BTCUSDT", fetcher, discardLogger())
	require.NoError(t, b.Sync(context.Background()))

	// 102 > 100+1 is a hole: the book must resync from a fresh snapshot.
	err := b.HandleUpdate(context.Background(), domain.DepthUpdate{
		FirstUpdateID: 102,
		FinalUpdateID: 105,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), b.Resyncs())
	assert.Equal(t, 2, fetcher.calls)
	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(200), snap.LastUpdateID)
}

func TestBookZeroQuantityRemovesLevel(t *testing.T) {
	b := NewBook("BTCUSDT", &fakeFetcher{snapshots: []DepthSnapshot{testSnapshot()}}, discardLogger())
	require.NoError(t, b.Sync(context.Background()))

	require.NoError(t, b.Apply(domain.DepthUpdate{
		FirstUpdateID: 101,
		FinalUpdateID: 101,
		Bids:          []domain.PriceLevel{level("99.5", "0")},
	}))
	snap, err := b.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, "99", snap.Bids[0].Price.String())

	// Re-adding the level with a nonzero quantity restores it.
	require.NoError(t, b.Apply(domain.DepthUpdate{
		FirstUpdateID: 102,
		FinalUpdateID: 102,
		Bids:          []domain.PriceLevel{level("99.5", "7")},
	}))
	snap, err = b.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Bids, 2)
	assert.Equal(t, "99.5", snap.Bids[0].Price.String())
	assert.Equal(t, "7", snap.Bids[0].Quantity.String())
}

// TestBookReplayEquivalence replays a diff sequence into the book and into
// a naive reference map and requires identical end states.
func TestBookReplayEquivalence(t *testing.T) {
	b := NewBook("BTCUSDT", &fakeFetcher{snapshots: []DepthSnapshot{testSnapshot()}}, discardLogger())
	require.NoError(t, b.Sync(context.Background()))

	// Keys follow decimal.String() normalization ("99.0" renders as "99").
	ref := map[string]string{
		level("99.5", "2").Price.String(): "2",
		level("99.0", "1").Price.String(): "1",
	}
	updates := []domain.DepthUpdate{
		{FirstUpdateID: 101, FinalUpdateID: 102, Bids: []domain.PriceLevel{level("99.5", "5"), level("98.5", "1")}},
		{FirstUpdateID: 103, FinalUpdateID: 103, Bids: []domain.PriceLevel{level("99.0", "0")}},
		{FirstUpdateID: 104, FinalUpdateID: 106, Bids: []domain.PriceLevel{level("99.25", "2.5"), level("98.5", "0.5")}},
	}
	for _, u := range updates {
		require.NoError(t, b.Apply(u))
		for _, lvl := range u.Bids {
			if lvl.Quantity.IsZero() {
				delete(ref, lvl.Price.String())
			} else {
				ref[lvl.Price.String()] = lvl.Quantity.String()
			}
		}
	}

	snap, err := b.Snapshot()
	require.NoError(t, err)
	got := make(map[string]string, len(snap.Bids))
	for _, lvl := range snap.Bids {
		got[lvl.Price.String()] = lvl.Quantity.String()
	}
	assert.Equal(t, ref, got)

	// Bids come back strictly descending.
	for i := 1; i < len(snap.Bids); i++ {
		assert.True(t, snap.Bids[i-1].Price.GreaterThan(snap.Bids[i].Price))
	}
}

// TestBookRandomizedDiffsKeepSidesOrdered applies a long random but
// sequence-valid diff stream and checks the snapshot invariants after every
// apply: bids strictly descending, asks strictly ascending, best bid below
// best ask.
func TestBookRandomizedDiffsKeepSidesOrdered(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := NewBook("BTCUSDT", &fakeFetcher{snapshots: []DepthSnapshot{testSnapshot()}}, discardLogger())
	require.NoError(t, b.Sync(context.Background()))

	// Bid prices stay below 100, ask prices above, matching a real feed
	// where the exchange never crosses the sides.
	randomLevels := func(side string) []domain.PriceLevel {
		out := make([]domain.PriceLevel, 0, 4)
		for j := 0; j < rng.Intn(4)+1; j++ {
			var price string
			if side == "bid" {
				price = fmt.Sprintf("%d.%02d", 90+rng.Intn(10), rng.Intn(100))
			} else {
				price = fmt.Sprintf("%d.%02d", 101+rng.Intn(10), rng.Intn(100))
			}
			out = append(out, level(price, strconv.Itoa(rng.Intn(5))))
		}
		return out
	}

	next := int64(101)
	for i := 0; i < 500; i++ {
		span := int64(rng.Intn(3) + 1)
		u := domain.DepthUpdate{
			FirstUpdateID: next,
			FinalUpdateID: next + span - 1,
			Bids:          randomLevels("bid"),
			Asks:          randomLevels("ask"),
		}
		next += span
		require.NoError(t, b.Apply(u))

		snap, err := b.Snapshot()
		require.NoError(t, err)
		for k := 1; k < len(snap.Bids); k++ {
			require.True(t, snap.Bids[k-1].Price.GreaterThan(snap.Bids[k].Price))
		}
		for k := 1; k < len(snap.Asks); k++ {
			require.True(t, snap.Asks[k-1].Price.LessThan(snap.Asks[k].Price))
		}
		bid, bidOK := snap.BestBid()
		ask, askOK := snap.BestAsk()
		if bidOK && askOK {
			require.True(t, bid.Price.LessThan(ask.Price),
				"best bid %s not below best ask %s at step %d", bid.Price, ask.Price, i)
		}
		for _, lvl := range snap.Bids {
			require.True(t, lvl.Quantity.IsPositive())
		}
		for _, lvl := range snap.Asks {
			require.True(t, lvl.Quantity.IsPositive())
		}
	}
}
