package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/markjakearzadon/shoegame-gobackend/internal/config"
	"github.com/markjakearzadon/shoegame-gobackend/internal/db"
	"github.com/markjakearzadon/shoegame-gobackend/internal/services"
)

const (
	callbackLogName = "callbacks.log"
	stkErrorLogName = "stk_errors.log"
	ledgerFileName  = "transactions.json"
)

// app is the wired set of services shared by every subcommand.
type app struct {
	payments  *services.PaymentService
	callbacks *services.CallbackService
	catalog   *services.CatalogService
	carts     *services.CartService

	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	callbackLog, err := db.NewAppendLog(filepath.Join(cfg.LogDir, callbackLogName))
	if err != nil {
		return nil, err
	}
	errorLog, err := db.NewAppendLog(filepath.Join(cfg.LogDir, stkErrorLogName))
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.LedgerBackend == "redis" || cfg.CartBackend == "redis" {
		redisClient, err = db.ConnectRedis(ctx, cfg.RedisConn)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return redisClient.Close() })
	}

	ledger, err := a.openLedger(ctx, cfg, redisClient)
	if err != nil {
		a.Close()
		return nil, err
	}

	var cartStore services.CartStore = db.NewMemoryCartStore()
	if cfg.CartBackend == "redis" {
		cartStore = db.NewRedisCartStore(redisClient, cfg.CartTTL)
	}

	catalog, err := services.NewCatalogService()
	if err != nil {
		a.Close()
		return nil, err
	}

	gateway := services.NewDarajaClient(cfg.BaseURL, cfg.ConsumerKey, cfg.ConsumerSecret, cfg.HTTPTimeout)
	a.payments = services.NewPaymentService(gateway, errorLog, services.PaymentSettings{
		ShortCode:        cfg.BusinessShortCode,
		Passkey:          cfg.Passkey,
		CallbackURL:      cfg.CallbackURL,
		AccountReference: cfg.AccountReference,
	})
	a.callbacks = services.NewCallbackService(ledger, callbackLog)
	a.catalog = catalog
	a.carts = services.NewCartService(cartStore, catalog, a.payments)
	return a, nil
}

func (a *app) openLedger(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (db.Ledger, error) {
	switch cfg.LedgerBackend {
	case "mongo":
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Disconnect)

		ledger := db.NewMongoLedger(client.Database(cfg.MongoDB))
		if err := ledger.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create ledger indexes: %w", err)
		}
		return ledger, nil
	case "redis":
		return db.NewRedisLedger(redisClient, db.DefaultLedgerKey), nil
	default:
		return db.NewFileLedger(filepath.Join(cfg.LogDir, ledgerFileName))
	}
}

// Close releases backend connections in reverse order of opening.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			slog.Error("Error closing backend", "error", err)
		}
	}
	a.closers = nil
}
