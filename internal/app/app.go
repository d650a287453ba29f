package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"price-oracle/internal/alerting"
	"price-oracle/internal/api"
	"price-oracle/internal/chain"
	"price-oracle/internal/config"
	"price-oracle/internal/events"
	"price-oracle/internal/keystore"
	"price-oracle/internal/logging"
	"price-oracle/internal/metrics"
	"price-oracle/internal/offchain"
	"price-oracle/internal/scheduler"
	"price-oracle/internal/service"
	"price-oracle/internal/storage"
	"price-oracle/internal/tx"
	"price-oracle/internal/txpool"
	"price-oracle/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app")}
}

func (a *App) keyType() (tx.KeyType, error) {
	return tx.ParseKeyType(a.Config.Keystore.KeyType)
}

func (a *App) openKeystore() (*keystore.Keystore, error) {
	keyType, err := a.keyType()
	if err != nil {
		return nil, err
	}
	return keystore.Open(keystore.Options{
		Dir:         a.Config.Keystore.Dir,
		KeyType:     keyType,
		Passphrase:  a.Config.Keystore.Passphrase,
		LightScrypt: a.Config.Keystore.LightScrypt,
	}, a.Logger)
}

func (a *App) newFetcher() *offchain.Fetcher {
	userAgent := a.Config.Oracle.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	return offchain.NewFetcher(offchain.FetcherOptions{
		URL:       a.Config.Oracle.URL,
		Timeout:   a.Config.Oracle.RequestTimeout,
		UserAgent: userAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	if a.Config.Database.AutoMigrate {
		if err := storage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running oracle node.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics.Init()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	keys, err := a.openKeystore()
	if err != nil {
		return err
	}
	if len(keys.Accounts()) == 0 {
		a.Logger.Warn().Str("dir", a.Config.Keystore.Dir).Msg("no local accounts; prices will be fetched but not submitted")
	}

	var (
		blockStore storage.BlockStore
		eventStore storage.EventStore
		locker     storage.AdvisoryLocker
	)
	if store != nil {
		blockStore = store
		eventStore = store
		locker = store
	}

	pool := txpool.New(a.Config.TxPool.MaxSize, a.Logger)
	bus := events.NewBus(0, a.Logger)
	node := chain.New(chain.Options{
		KeyType:        keys.KeyType(),
		MaxTxsPerBlock: a.Config.Chain.MaxTxsPerBlock,
	}, pool, blockStore, bus, a.Logger)
	if err := node.Restore(ctx); err != nil {
		return err
	}

	submitter := offchain.NewSubmitter(keys.KeyType(), keys, pool, a.Logger)
	worker := offchain.NewWorker(a.newFetcher(), submitter, node, 0, a.Logger)
	node.Subscribe(worker.OnBlock)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Chain.BlockTime,
		AlignToSlot:  a.Config.Chain.AlignToBlock,
		StartupDelay: a.Config.Chain.StartupDelay,
	}, a.Logger)

	svc := service.New(service.Options{AdvisoryLockKey: a.Config.Chain.AdvisoryLockKey}, sched, node, locker, a.Logger)
	svc.Attach("offchain_worker", worker)
	if a.Config.API.Enabled {
		svc.Attach("api", api.NewServer(api.Options{Addr: a.Config.API.Addr}, node, bus, eventStore, a.Logger))
	}
	if notifier := a.newNotifier(); notifier != nil {
		svc.Attach("alerting", alerting.NewForwarder(bus, notifier, node, a.Logger))
	}

	a.Logger.Info().
		Str("version", version.String()).
		Uint64("height", node.Height()).
		Dur("block_time", a.Config.Chain.BlockTime).
		Int("accounts", len(keys.Accounts())).
		Msg("starting oracle node")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("node terminated with error")
		return err
	}

	a.Logger.Info().Msg("oracle node stopped")
	return nil
}

// Fetch performs a single offchain fetch and returns the price in cents.
func (a *App) Fetch(ctx context.Context) (uint32, error) {
	price, err := a.newFetcher().FetchPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	return uint32(price), nil
}

// ExportOptions hold parameters for exporting persisted blocks.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Events bool
}

// SimulateOptions configure an in-memory run of the pipeline.
type SimulateOptions struct {
	Blocks   int
	Price    uint32
	Accounts int
}
