package cmd

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payments-router/app/cache"
	"github.com/vibast-solutions/ms-go-payments-router/app/lock"
	"github.com/vibast-solutions/ms-go-payments-router/app/provider"
	"github.com/vibast-solutions/ms-go-payments-router/app/ratelimit"
	"github.com/vibast-solutions/ms-go-payments-router/app/repository"
	"github.com/vibast-solutions/ms-go-payments-router/app/service"
	"github.com/vibast-solutions/ms-go-payments-router/app/token"
	"github.com/vibast-solutions/ms-go-payments-router/config"
)

const storeKeyPrefix = "payments_router:"

type runtimeDeps struct {
	db    *sql.DB
	store cache.Store
}

func mustCreateGatewayService() (*config.Config, *service.GatewayService, *runtimeDeps, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	var store cache.Store
	if cfg.Redis.URL != "" {
		redisStore, err := cache.NewRedisStore(cfg.Redis.URL, storeKeyPrefix)
		if err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to connect to Redis")
		}
		store = redisStore
	} else {
		logrus.Warn("REDIS_URL is empty, locks and rate windows are kept in process memory")
		store = cache.NewMemoryStore()
	}

	settingsRepo := repository.NewSettingsRepository(db)
	gatewayClient := provider.NewClient(provider.ClientConfig{
		BaseURL:           cfg.Gateway.BaseURL,
		HTTPTimeout:       cfg.Gateway.HTTPTimeout,
		StatusHTTPTimeout: cfg.Gateway.StatusHTTPTimeout,
	})

	gatewayService := service.NewGatewayService(service.Dependencies{
		Accounts:   repository.NewAccountRepository(settingsRepo),
		Orders:     repository.NewOrderRepository(db),
		Links:      repository.NewPaymentLinkRepository(db),
		Gateway:    gatewayClient,
		Locks:      lock.NewManager(store, cfg.Routing.LockTimeout, nil),
		Limiter:    ratelimit.NewLimiter(store, cfg.Routing.RateWindow, cfg.Routing.RateMaxRequests, nil),
		Tokens:     token.NewIssuer(cfg.Gateway.TokenSecret, cfg.Gateway.TokenTTL, store, nil),
		Cache:      store,
		GatewayCfg: cfg.Gateway,
		RoutingCfg: cfg.Routing,
		JobsCfg:    cfg.Jobs,
	})

	cleanup := func() {
		if err := store.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close store")
		}
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, gatewayService, &runtimeDeps{db: db, store: store}, cleanup
}
