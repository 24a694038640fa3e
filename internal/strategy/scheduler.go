package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leantrace/eltrader/internal/domain"
	"github.com/leantrace/eltrader/internal/market"
)

// OrderSubmitter sizes and submits orders on behalf of the scheduler.
type OrderSubmitter interface {
	SubmitEntry(ctx context.Context, symbol string, lastTradePrice decimal.Decimal) (*domain.Order, error)
	SubmitExit(ctx context.Context, symbol string, quantity decimal.Decimal) (*domain.Order, error)
}

// SchedulerConfig holds the evaluation cadence and decision publication
// settings.
type SchedulerConfig struct {
	Tick        time.Duration
	Channel     string
	EnableExits bool
}

// Scheduler runs the strategy evaluation on a fixed-delay schedule across
// all configured symbols. Each symbol is evaluated independently; a tick
// that arrives while the previous evaluation for that symbol is still
// running is skipped, so evaluations for one symbol never overlap.
type Scheduler struct {
	cfg       SchedulerConfig
	states    map[string]*market.SymbolState
	records   map[string]*Record
	inFlight  map[string]*sync.Mutex
	evaluator *Evaluator
	submitter OrderSubmitter
	bus       domain.SignalBus
	logger    *slog.Logger
	stopping  atomic.Bool
}

// NewScheduler creates a scheduler over the given per-symbol states. The
// bus may be nil, in which case decisions are only logged.
func NewScheduler(
	cfg SchedulerConfig,
	states map[string]*market.SymbolState,
	evaluator *Evaluator,
	submitter OrderSubmitter,
	bus domain.SignalBus,
	logger *slog.Logger,
) *Scheduler {
	records := make(map[string]*Record, len(states))
	inFlight := make(map[string]*sync.Mutex, len(states))
	for symbol := range states {
		records[symbol] = NewRecord()
		inFlight[symbol] = &sync.Mutex{}
	}
	return &Scheduler{
		cfg:       cfg,
		states:    states,
		records:   records,
		inFlight:  inFlight,
		evaluator: evaluator,
		submitter: submitter,
		bus:       bus,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// Record returns the trading record for symbol, or nil for an unknown
// symbol.
func (s *Scheduler) Record(symbol string) *Record {
	return s.records[symbol]
}

// Run evaluates every symbol on each tick until ctx is cancelled. After
// cancellation no new order submissions start; submissions already in
// flight run to completion.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.logger.Info("scheduler started",
		slog.Duration("tick", s.cfg.Tick),
		slog.Int("symbols", len(s.states)),
		slog.Bool("exits_enabled", s.cfg.EnableExits),
	)

	for {
		select {
		case <-ctx.Done():
			s.stopping.Store(true)
			return ctx.Err()
		case <-ticker.C:
			for symbol := range s.states {
				go s.evaluateSymbol(ctx, symbol)
			}
		}
	}
}

// evaluateSymbol runs one guarded evaluation tick for a symbol. Faults,
// including panics out of the rule evaluation, are contained here so one
// bad tick never takes the scheduler down.
func (s *Scheduler) evaluateSymbol(ctx context.Context, symbol string) {
	mu := s.inFlight[symbol]
	if !mu.TryLock() {
		s.logger.Debug("tick skipped, evaluation in flight", slog.String("symbol", symbol))
		return
	}
	defer mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			fault := &domain.StrategyFault{Symbol: symbol, Err: fmt.Errorf("panic: %v", r)}
			s.logger.Error("evaluation fault", slog.String("symbol", symbol), slog.Any("error", fault))
		}
	}()

	if err := s.evaluate(ctx, symbol); err != nil {
		fault := &domain.StrategyFault{Symbol: symbol, Err: err}
		s.logger.Error("evaluation fault", slog.String("symbol", symbol), slog.Any("error", fault))
	}
}

func (s *Scheduler) evaluate(ctx context.Context, symbol string) error {
	state := s.states[symbol]
	record := s.records[symbol]

	if !state.Book.Ready() {
		s.logger.Debug("book not ready, skipping", slog.String("symbol", symbol))
		return nil
	}
	candles := state.Candles.Ordered()
	if len(candles) < s.evaluator.MinBars() {
		s.logger.Debug("candle window warming up", slog.String("symbol", symbol), slog.Int("candles", len(candles)))
		return nil
	}

	long := record.Position() == PositionLong
	entryPrice, entryQty, _ := record.Entry()
	decision := s.evaluator.Evaluate(candles, long, entryPrice)

	barIndex := len(candles) - 1
	lastClose := candles[barIndex].Close
	actionable := (decision == domain.DecisionEnter && !long) ||
		(decision == domain.DecisionExit && long && s.cfg.EnableExits)

	s.publish(ctx, domain.DecisionEvent{
		Symbol:     symbol,
		Decision:   decision,
		ClosePrice: lastClose,
		BarIndex:   barIndex,
		Actionable: actionable,
		At:         time.Now(),
	})

	switch decision {
	case domain.DecisionEnter:
		if long {
			return nil
		}
		return s.enter(ctx, symbol, state, record, barIndex, lastClose)
	case domain.DecisionExit:
		if !long {
			return nil
		}
		if !s.cfg.EnableExits {
			s.logger.Info("exit signal suppressed",
				slog.String("symbol", symbol),
				slog.String("close", lastClose.String()),
			)
			return nil
		}
		return s.exit(ctx, symbol, record, barIndex, lastClose, entryQty)
	default:
		return nil
	}
}

func (s *Scheduler) enter(ctx context.Context, symbol string, state *market.SymbolState, record *Record, barIndex int, lastClose decimal.Decimal) error {
	if s.stopping.Load() {
		return nil
	}

	price, ok := state.LastTradePrice()
	if !ok {
		price = lastClose
	}

	// Submissions started before shutdown run to completion.
	order, err := s.submitter.SubmitEntry(context.WithoutCancel(ctx), symbol, price)
	if err != nil {
		return fmt.Errorf("submit entry: %w", err)
	}
	if err := record.Enter(barIndex, price, order.OrigQty, time.Now()); err != nil {
		return fmt.Errorf("record entry: %w", err)
	}

	s.logger.Info("position entered",
		slog.String("symbol", symbol),
		slog.String("price", price.String()),
		slog.String("quantity", order.OrigQty.String()),
		slog.String("order_id", order.ID),
	)
	return nil
}

func (s *Scheduler) exit(ctx context.Context, symbol string, record *Record, barIndex int, lastClose, quantity decimal.Decimal) error {
	if s.stopping.Load() {
		return nil
	}

	order, err := s.submitter.SubmitExit(context.WithoutCancel(ctx), symbol, quantity)
	if err != nil {
		return fmt.Errorf("submit exit: %w", err)
	}
	if err := record.Exit(barIndex, lastClose, quantity, time.Now()); err != nil {
		return fmt.Errorf("record exit: %w", err)
	}

	s.logger.Info("position exited",
		slog.String("symbol", symbol),
		slog.String("close", lastClose.String()),
		slog.String("quantity", quantity.String()),
		slog.String("order_id", order.ID),
	)
	return nil
}

func (s *Scheduler) publish(ctx context.Context, evt domain.DecisionEvent) {
	s.logger.Info("decision",
		slog.String("symbol", evt.Symbol),
		slog.String("decision", string(evt.Decision)),
		slog.String("close", evt.ClosePrice.String()),
		slog.Bool("actionable", evt.Actionable),
	)
	if s.bus == nil || s.cfg.Channel == "" {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn("decision marshal failed", slog.Any("error", err))
		return
	}
	if err := s.bus.Publish(ctx, s.cfg.Channel, payload); err != nil {
		s.logger.Warn("decision publish failed", slog.Any("error", err))
	}
}
