package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pumbayo1/quiltracker/internal/alerting"
	"github.com/pumbayo1/quiltracker/internal/config"
	"github.com/pumbayo1/quiltracker/internal/loader"
	"github.com/pumbayo1/quiltracker/internal/oracle"
	"github.com/pumbayo1/quiltracker/internal/scheduler"
	"github.com/pumbayo1/quiltracker/internal/server"
	"github.com/pumbayo1/quiltracker/internal/store"
	"github.com/pumbayo1/quiltracker/internal/watch"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (store.ObservationStore, func(), error) {
	switch a.Config.Store.Backend {
	case "postgres":
		pool, err := store.NewPool(ctx, a.Config.Store)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		closer := func() {
			pg.Close()
		}
		return pg, closer, nil
	case "memory":
		a.Logger.Warn().Msg("memory store configured; balance history is lost on restart")
		return store.NewMemoryStore(), nil, nil
	default:
		return store.NewCSVStore(a.Config.Store.DataDir, a.Logger), nil, nil
	}
}

func (a *App) newOracle() *oracle.Client {
	cfg := a.Config.Oracle

	var fetcher oracle.PriceFetcher
	switch cfg.Source {
	case "coingecko":
		fetcher = oracle.NewCoinGecko(oracle.CoinGeckoOptions{
			BaseURL:    cfg.BaseURL,
			AssetID:    cfg.AssetID,
			VsCurrency: cfg.VsCurrency,
			Timeout:    cfg.RequestTimeout,
			UserAgent:  cfg.UserAgent,
		}, a.Logger)
	case "onchain":
		fetcher = oracle.NewOnChain(oracle.OnChainOptions{
			RPCURL:      cfg.Ethereum.RPCURL,
			FeedAddress: cfg.Ethereum.FeedAddress,
			Timeout:     cfg.Ethereum.RequestTimeout,
		}, a.Logger)
	default:
		a.Logger.Warn().Msg("price oracle disabled; USD figures will be zero")
	}

	return oracle.NewClient(fetcher, cfg.RetryOnce, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// Serve runs the tracker: the HTTP ingest/dashboard server plus the optional
// stale-peer watchdog, until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	ld := loader.New(st, a.Logger)
	quotes := a.newOracle()

	srv := server.New(server.Options{
		Addr:         a.Config.Server.Addr,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}, st, ld, quotes, a.Logger)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Start(ctx)
	})

	if a.Config.Watch.Enabled {
		sched := scheduler.New(scheduler.Options{
			Interval:     a.Config.Watch.Interval,
			AlignToClock: true,
		}, a.Logger)
		dog := watch.New(watch.Options{
			StaleAfter: a.Config.Watch.StaleAfter,
			AlertsOn:   a.Config.Alerting.Enabled,
		}, sched, ld, a.newNotifier(), a.Logger)
		group.Go(func() error {
			return dog.Run(ctx)
		})
	}

	a.Logger.Info().Str("store", a.Config.Store.Backend).Msg("starting balance tracker")
	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("tracker terminated with error")
		return err
	}

	a.Logger.Info().Msg("balance tracker stopped")
	return nil
}

// ExportOptions hold parameters for exporting balance history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	Chart     string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ReportOptions carry a one-shot manual balance submission.
type ReportOptions struct {
	PeerID    string
	Balance   string
	Timestamp string
}
