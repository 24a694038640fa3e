// Package feed wires the exchange market-data and user-data streams into
// the in-memory market state: order books, candle windows, and the balance
// cache.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leantrace/eltrader/internal/domain"
	"github.com/leantrace/eltrader/internal/market"
	"github.com/leantrace/eltrader/internal/platform/binance"
)

// listenKeyKeepAlive is how often the user-data listen key is refreshed;
// the exchange expires idle keys after sixty minutes.
const listenKeyKeepAlive = 30 * time.Minute

// depthBuffer sizes the per-symbol depth queue. Diffs arrive every second
// or so; the buffer only has to cover the duration of a snapshot refetch.
const depthBuffer = 256

// Config holds the subscription parameters.
type Config struct {
	Symbols  []string
	Interval string
	// Backfill is how many historical bars seed each candle window.
	Backfill int
}

// Feeder owns the exchange stream subscriptions for all configured symbols
// and is the sole writer of the per-symbol market state. Depth diffs are
// applied by one goroutine per symbol so a snapshot refetch for one symbol
// never stalls the others.
type Feeder struct {
	cfg      Config
	ws       *binance.WSClient
	rest     *binance.RestClient
	states   map[string]*market.SymbolState
	balances *market.Balances
	logger   *slog.Logger

	depthCh map[string]chan domain.DepthUpdate
}

// New creates a feeder over the given per-symbol states.
func New(
	cfg Config,
	ws *binance.WSClient,
	rest *binance.RestClient,
	states map[string]*market.SymbolState,
	balances *market.Balances,
	logger *slog.Logger,
) *Feeder {
	depthCh := make(map[string]chan domain.DepthUpdate, len(states))
	for symbol := range states {
		depthCh[symbol] = make(chan domain.DepthUpdate, depthBuffer)
	}
	return &Feeder{
		cfg:      cfg,
		ws:       ws,
		rest:     rest,
		states:   states,
		balances: balances,
		logger:   logger.With(slog.String("component", "feeder")),
		depthCh:  depthCh,
	}
}

// Run seeds the market state over REST, connects the stream transport, and
// dispatches events until ctx is cancelled.
func (f *Feeder) Run(ctx context.Context) error {
	if err := f.seed(ctx); err != nil {
		return err
	}

	listenKey, err := f.rest.StartUserDataStream(ctx)
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	f.ws.SetListenKey(listenKey)

	f.registerHandlers()

	if err := f.ws.Connect(ctx); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	defer f.ws.Close()

	if err := f.ws.Subscribe(ctx, f.streams(listenKey)); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	f.logger.Info("feeder started",
		slog.Int("symbols", len(f.states)),
		slog.String("interval", f.cfg.Interval),
	)

	g, gctx := errgroup.WithContext(ctx)
	for symbol := range f.states {
		symbol := symbol
		g.Go(func() error {
			return f.applyDepth(gctx, symbol)
		})
	}
	g.Go(func() error {
		return f.keepAlive(gctx, listenKey)
	})
	return g.Wait()
}

// seed initializes balances, one order book snapshot, and a historical
// candle backfill per symbol before any stream event is processed.
func (f *Feeder) seed(ctx context.Context) error {
	if err := f.balances.Initialize(ctx); err != nil {
		return fmt.Errorf("feed: %w", err)
	}

	for symbol, state := range f.states {
		candles, err := f.rest.Klines(ctx, symbol, f.cfg.Interval, f.cfg.Backfill)
		if err != nil {
			return fmt.Errorf("feed: backfill %s: %w", symbol, err)
		}
		for _, row := range candles {
			state.Candles.Upsert(row.ToDomain())
		}

		if err := state.Book.Sync(ctx); err != nil {
			return err
		}

		// Seed the last trade price so the first entry can be sized
		// before any trade event arrives.
		price, err := f.rest.TickerPrice(ctx, symbol)
		if err != nil {
			return fmt.Errorf("feed: ticker price %s: %w", symbol, err)
		}
		state.RecordTradePrice(price, time.Now())
		f.logger.Info("symbol seeded",
			slog.String("symbol", symbol),
			slog.Int("candles", len(candles)),
		)
	}
	return nil
}

func (f *Feeder) registerHandlers() {
	f.ws.OnDepth(func(u domain.DepthUpdate) {
		ch, ok := f.depthCh[u.Symbol]
		if !ok {
			return
		}
		// The read loop must not block on a slow applier; a full queue
		// drops the diff and the sequence check forces a resync.
		select {
		case ch <- u:
		default:
			f.logger.Warn("depth queue full, dropping diff", slog.String("symbol", u.Symbol))
		}
	})

	f.ws.OnKline(func(ev domain.CandleEvent) {
		state, ok := f.states[ev.Symbol]
		if !ok {
			return
		}
		state.Candles.Upsert(ev.Candle)
	})

	f.ws.OnAggTrade(func(t domain.TradeTick) {
		state, ok := f.states[t.Symbol]
		if !ok {
			return
		}
		state.RecordTradePrice(t.Price, t.At)
	})

	f.ws.OnMiniTicker(func(t domain.TickerUpdate) {
		state, ok := f.states[t.Symbol]
		if !ok {
			return
		}
		// Close price stands in for the last trade until an aggTrade
		// arrives for the symbol.
		if _, seen := state.LastTradePrice(); !seen {
			state.RecordTradePrice(t.Close, t.At)
		}
	})

	f.ws.OnAccountPosition(func(pos domain.AccountPosition) {
		f.balances.ApplyPosition(pos)
	})

	f.ws.OnBalanceDelta(func(d domain.BalanceDelta) {
		// Deltas are observed only; full position events are authoritative
		// for the balance cache.
		f.logger.Debug("balance delta",
			slog.String("asset", d.Asset),
			slog.String("delta", d.Delta.String()),
		)
	})

	f.ws.OnDisconnect(func(err error) {
		// The transport reconnects and resubscribes on its own; diffs
		// missed during the outage surface as a sequence gap and force
		// a book resync.
		f.logger.Warn("stream disconnected", slog.Any("error", err))
	})
}

// applyDepth is the single writer for one symbol's order book.
func (f *Feeder) applyDepth(ctx context.Context, symbol string) error {
	state := f.states[symbol]
	ch := f.depthCh[symbol]
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u := <-ch:
			if err := state.Book.HandleUpdate(ctx, u); err != nil {
				f.logger.Error("depth apply failed",
					slog.String("symbol", symbol),
					slog.Any("error", err),
				)
			}
		}
	}
}

func (f *Feeder) keepAlive(ctx context.Context, listenKey string) error {
	ticker := time.NewTicker(listenKeyKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.rest.KeepAliveUserDataStream(ctx, listenKey); err != nil {
				f.logger.Warn("listen key keepalive failed", slog.Any("error", err))
			}
		}
	}
}

// streams builds the combined-stream subscription list: market channels
// per symbol plus the user-data listen key.
func (f *Feeder) streams(listenKey string) []string {
	out := make([]string, 0, len(f.cfg.Symbols)*4+1)
	for _, symbol := range f.cfg.Symbols {
		s := strings.ToLower(symbol)
		out = append(out,
			s+"@depth",
			s+"@kline_"+f.cfg.Interval,
			s+"@miniTicker",
			s+"@aggTrade",
		)
	}
	return append(out, listenKey)
}
