package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leantrace/eltrader/internal/cache/redis"
	"github.com/leantrace/eltrader/internal/config"
	"github.com/leantrace/eltrader/internal/crypto"
	"github.com/leantrace/eltrader/internal/domain"
	"github.com/leantrace/eltrader/internal/market"
	"github.com/leantrace/eltrader/internal/platform/binance"
	"github.com/leantrace/eltrader/internal/store/postgres"
)

// Dependencies bundles the wired collaborators the trading engine runs on.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Rest *binance.RestClient
	WS   *binance.WSClient

	OrderStore domain.OrderStore
	EventStore domain.DomainEventStore
	SignalBus  domain.SignalBus

	States   map[string]*market.SymbolState
	Balances *market.Balances
}

// snapshotAdapter exposes the REST depth endpoint as a market.SnapshotFetcher.
type snapshotAdapter struct {
	rest *binance.RestClient
}

// depthSnapshotLimit is the number of levels fetched per side on resync.
const depthSnapshotLimit = 1000

func (a snapshotAdapter) FetchDepthSnapshot(ctx context.Context, symbol string) (market.DepthSnapshot, error) {
	resp, err := a.rest.Depth(ctx, symbol, depthSnapshotLimit)
	if err != nil {
		return market.DepthSnapshot{}, err
	}
	return market.DepthSnapshot{
		LastUpdateID: resp.LastUpdateID,
		Bids:         resp.BidLevels(),
		Asks:         resp.AskLevels(),
	}, nil
}

// accountAdapter exposes the REST account endpoint as a market.AccountFetcher.
type accountAdapter struct {
	rest *binance.RestClient
}

func (a accountAdapter) FetchBalances(ctx context.Context) ([]domain.Balance, error) {
	resp, err := a.rest.Account(ctx)
	if err != nil {
		return nil, err
	}
	return resp.DomainBalances(), nil
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Exchange clients ---
	secret, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:           cfg.Binance.ApiSecret,
		EncryptedSecretPath: cfg.Binance.EncryptedSecretPath,
		Password:            cfg.Binance.SecretPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: api secret: %w", err)
	}
	signer := crypto.NewSigner(cfg.Binance.ApiKey, secret)
	deps.Rest = binance.NewRestClient(cfg.Binance.RestURL, signer, cfg.Binance.RecvWindowMs)
	deps.WS = binance.NewWSClient(cfg.Binance.WsURL, logger)

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if err := pgClient.RunMigrations(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
	}

	pool := pgClient.Pool()
	deps.OrderStore = postgres.NewOrderStore(pool)
	deps.EventStore = postgres.NewEventStore(pool)

	// --- Redis (optional) ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- Per-symbol market state ---
	fetcher := snapshotAdapter{rest: deps.Rest}
	deps.States = make(map[string]*market.SymbolState)
	for _, symbol := range cfg.Trading.Symbols() {
		deps.States[symbol] = market.NewSymbolState(symbol, fetcher, cfg.Trading.CandleWindow, logger)
	}
	deps.Balances = market.NewBalances(accountAdapter{rest: deps.Rest}, logger)

	return deps, cleanup, nil
}
