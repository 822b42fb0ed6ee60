// pdgateway - a PagerDuty-compatible events gateway: ingest, enrich,
// dispatch, and poll activity back out as webhooks.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pdaltagent/pdgateway/internal/application/activitypoller"
	"github.com/pdaltagent/pdgateway/internal/application/dispatch"
	"github.com/pdaltagent/pdgateway/internal/application/plugin"
	"github.com/pdaltagent/pdgateway/internal/application/rulestore"
	"github.com/pdaltagent/pdgateway/internal/application/scheduler"
	"github.com/pdaltagent/pdgateway/internal/config"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/api/rest"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/cache"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/imsclient"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/logger"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Logging)
	logger.SetDefault(appLogger)
	appLogger.Info("starting pdgateway", "port", cfg.Server.Port)

	db, err := storage.NewDB(&storage.Config{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MinConnections,
		ConnMaxLifetime: cfg.Database.MaxConnLifetime,
		ConnMaxIdleTime: cfg.Database.MaxIdleTime,
		Debug:           cfg.Logging.Level == "debug",
	})
	if err != nil {
		appLogger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer storage.Close(db)

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		appLogger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	ruleStore := rulestore.New(storage.NewRuleRepository(db), rulestore.WithLogger(appLogger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ruleStore.Load(ctx); err != nil {
		appLogger.Error("failed to load rule store", "error", err)
		os.Exit(1)
	}
	go ruleStore.Run(ctx)

	pluginHost := plugin.NewHost(cfg.PluginHost, plugin.WithLogger(appLogger))
	if err := pluginHost.Register(plugin.NewEnrichmentPlugin(ruleStore, plugin.WithDebugTraces(cfg.Logging.Debug))); err != nil {
		appLogger.Error("failed to register enrichment plugin", "error", err)
		os.Exit(1)
	}

	if cfg.PluginHost.ReloadOnChange {
		go pluginHost.Watch(ctx, cfg.PluginHost.Dir, cfg.PluginHost.DefaultInterval)
	}

	queue := dispatch.NewQueue(redisCache.Client())
	dispatcher := dispatch.New(cfg.Dispatch, queue, pluginHost, dispatch.WithLogger(appLogger))
	go dispatcher.Run(ctx)

	if cfg.Polling.Enabled() {
		ims := imsclient.New(cfg.Polling.IMSBaseURL, cfg.Polling.APIToken, &http.Client{Timeout: 30 * time.Second})
		poller := activitypoller.New(cfg.Polling, ims, storage.NewDedupeRepository(db), storage.NewActivityCursorRepository(db), dispatcher, activitypoller.WithLogger(appLogger))
		go poller.Run(ctx)
		appLogger.Info("activity poller started", "interval_seconds", cfg.Polling.IntervalSeconds)
	} else {
		appLogger.Info("activity poller disabled: API_TOKEN or WEBHOOK_DEST_URL not set")
	}

	sched := scheduler.New(cfg.PluginHost, cfg.Dispatch.BaseURL, dispatcher)
	for _, reg := range pluginHost.Fetchers() {
		if err := sched.Register(reg); err != nil {
			appLogger.Error("failed to register scheduled fetcher", "plugin", reg.Name, "error", err)
			os.Exit(1)
		}
	}
	sched.Start()
	defer sched.Stop(context.Background())

	router, err := rest.NewRouter(cfg, dispatcher, appLogger)
	if err != nil {
		appLogger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("ingress adapter listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("graceful shutdown failed", "error", err)
	}
}
