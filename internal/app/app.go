// Package app provides top-level application lifecycle management for the
// trading engine. It wires the exchange clients, stores, market state, feed,
// and strategy scheduler, and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/leantrace/eltrader/internal/config"
	"github.com/leantrace/eltrader/internal/executor"
	"github.com/leantrace/eltrader/internal/feed"
	"github.com/leantrace/eltrader/internal/strategy"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the market-data feeder and the strategy
// scheduler, and blocks until the context is cancelled or a task fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting trading engine",
		slog.Any("symbols", a.cfg.Trading.Symbols()),
		slog.String("interval", a.cfg.Trading.Interval),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	budget, err := a.cfg.Trading.BridgeBudget()
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	exec := executor.New(executor.Config{
		Budget:   budget,
		MinLots:  a.minLots(),
		Strategy: "momentum",
	}, deps.Rest, deps.OrderStore, deps.EventStore, a.logger)

	evaluator := strategy.NewEvaluator(strategy.DefaultParams())
	scheduler := strategy.NewScheduler(strategy.SchedulerConfig{
		Tick:        a.cfg.Trading.TickIntervalDuration(),
		Channel:     a.cfg.Trading.DecisionChannel,
		EnableExits: a.cfg.Trading.EnableExits,
	}, deps.States, evaluator, exec, deps.SignalBus, a.logger)

	feeder := feed.New(feed.Config{
		Symbols:  a.cfg.Trading.Symbols(),
		Interval: a.cfg.Trading.Interval,
		Backfill: a.cfg.Trading.CandleWindow,
	}, deps.WS, deps.Rest, deps.States, deps.Balances, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feeder.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	return g.Wait()
}

// minLots resolves the configured per-symbol minimum lot sizes into
// decimals, skipping entries that fail to parse (validation has already
// reported those).
func (a *App) minLots() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(a.cfg.Trading.MinLotSizes))
	for symbol := range a.cfg.Trading.MinLotSizes {
		if d, ok := a.cfg.Trading.MinLotSize(symbol); ok {
			out[strings.ToUpper(symbol)] = d
		}
	}
	return out
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down trading engine")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
