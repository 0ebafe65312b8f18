package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/tradevault/platform/internal/app/realtime"
	"github.com/tradevault/platform/internal/app/services/accounts"
	affiliatesvc "github.com/tradevault/platform/internal/app/services/affiliates"
	analyticssvc "github.com/tradevault/platform/internal/app/services/analytics"
	billingsvc "github.com/tradevault/platform/internal/app/services/billing"
	exchangesvc "github.com/tradevault/platform/internal/app/services/exchanges"
	journalsvc "github.com/tradevault/platform/internal/app/services/journalnotes"
	pricefeedsvc "github.com/tradevault/platform/internal/app/services/pricefeed"
	syncersvc "github.com/tradevault/platform/internal/app/services/syncer"
	tradesvc "github.com/tradevault/platform/internal/app/services/trades"
	walletsvc "github.com/tradevault/platform/internal/app/services/wallets"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/internal/app/storage/memory"
	"github.com/tradevault/platform/internal/app/system"
	"github.com/tradevault/platform/internal/chainrpc"
	"github.com/tradevault/platform/internal/config"
	"github.com/tradevault/platform/internal/payments"
	"github.com/tradevault/platform/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Accounts    storage.AccountStore
	Trades      storage.TradeStore
	Notes       storage.NoteStore
	Connections storage.ConnectionStore
	Sync        storage.SyncStore
	Affiliates  storage.AffiliateStore
	Billing     storage.BillingStore
	PriceFeeds  storage.PriceFeedStore
	Wallets     storage.WalletStore
}

// Application ties the journal services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Accounts   *accounts.Service
	Trades     *tradesvc.Service
	Analytics  *analyticssvc.Service
	Journal    *journalsvc.Service
	Exchanges  *exchangesvc.Service
	Sync       *syncersvc.Service
	Affiliates *affiliatesvc.Service
	Billing    *billingsvc.Service
	PriceFeeds *pricefeedsvc.Service
	Wallets    *walletsvc.Service
	Realtime   *realtime.Hub
}

// New builds a fully initialised application with the provided stores.
func New(cfg config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Accounts == nil {
		stores.Accounts = mem
	}
	if stores.Trades == nil {
		stores.Trades = mem
	}
	if stores.Notes == nil {
		stores.Notes = mem
	}
	if stores.Connections == nil {
		stores.Connections = mem
	}
	if stores.Sync == nil {
		stores.Sync = mem
	}
	if stores.Affiliates == nil {
		stores.Affiliates = mem
	}
	if stores.Billing == nil {
		stores.Billing = mem
	}
	if stores.PriceFeeds == nil {
		stores.PriceFeeds = mem
	}
	if stores.Wallets == nil {
		stores.Wallets = mem
	}

	manager := system.NewManager()
	hub := realtime.NewHub(nil, log)

	acctService := accounts.New(stores.Accounts, stores.Affiliates, []byte(cfg.JWTSecret), cfg.TokenTTL, log)
	affiliateService := affiliatesvc.New(stores.Affiliates, stores.Accounts, log)
	tradeService := tradesvc.New(stores.Trades, hub, log)
	analyticsService := analyticssvc.New(stores.Trades, log)
	journalService := journalsvc.New(stores.Notes, log)
	exchangeService := exchangesvc.New(stores.Connections, cfg.CredentialKey, log)
	syncService := syncersvc.New(stores.Sync, stores.Connections, log)
	syncService.SetEventPublisher(hub)

	processor := payments.NewClient(payments.Config{
		APIBase:       cfg.Payments.APIBase,
		SecretKey:     cfg.Payments.SecretKey,
		WebhookSecret: cfg.Payments.WebhookSecret,
	})
	billingService := billingsvc.New(stores.Billing, acctService, affiliateService, processor, billingsvc.Config{
		ProPriceID:   cfg.Payments.ProPrice,
		ElitePriceID: cfg.Payments.ElitePrice,
		SuccessURL:   cfg.Payments.SuccessURL,
		CancelURL:    cfg.Payments.CancelURL,
		ReturnURL:    cfg.Payments.ReturnURL,
	}, log)

	var cache *pricefeedsvc.QuoteCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache = pricefeedsvc.NewQuoteCache(rdb, 0)
	}
	priceFeedService := pricefeedsvc.New(stores.PriceFeeds, cache, log)

	var chainClient *chainrpc.Client
	var explorer *chainrpc.Explorer
	if cfg.Chain.RPCURL != "" {
		var err error
		chainClient, err = chainrpc.NewClient(chainrpc.Config{RPCURL: cfg.Chain.RPCURL})
		if err != nil {
			return nil, fmt.Errorf("configure chain RPC: %w", err)
		}
	} else {
		log.Warn("CHAIN_RPC_URL not set; wallet balances disabled")
	}
	if cfg.Chain.ExplorerAPI != "" {
		var err error
		explorer, err = chainrpc.NewExplorer(chainrpc.ExplorerConfig{
			APIBase: cfg.Chain.ExplorerAPI,
			APIKey:  cfg.Chain.ExplorerAPIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("configure explorer: %w", err)
		}
	} else {
		log.Warn("EXPLORER_API_BASE not set; wallet history disabled")
	}
	walletService := walletsvc.New(stores.Wallets, chainClient, explorer, nil, log)

	runner := syncersvc.NewRunner(syncService, exchangeService, tradeService, syncersvc.NewRESTImporter(), log)
	scheduler := syncersvc.NewScheduler(syncService, log)
	streamWorker := syncersvc.NewStreamWorker(syncService, exchangeService, tradeService, syncersvc.NewWSStreamer(log), log)
	refresher := pricefeedsvc.NewRefresher(priceFeedService, pricefeedsvc.NewHTTPFetcher(nil), hub, log)

	for _, svc := range []system.Service{hub, runner, scheduler, streamWorker, refresher} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		Accounts:   acctService,
		Trades:     tradeService,
		Analytics:  analyticsService,
		Journal:    journalService,
		Exchanges:  exchangeService,
		Sync:       syncService,
		Affiliates: affiliateService,
		Billing:    billingService,
		PriceFeeds: priceFeedService,
		Wallets:    walletService,
		Realtime:   hub,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
