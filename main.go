package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/cachestore"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/database"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/messaging"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/metrics"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/productrepository"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/app"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/coalescing"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/config"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/ports"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/ratelimiting"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/reporting"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/telemetry"
)

func main() {
	ctx := context.Background()

	conf, err := config.ConfigFromEnv()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("Failed to load config", "error", err.Error())
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("instanceID", conf.InstanceID())

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	otelShutdown, err := telemetry.SetupOTelSDK(ctx, "high-load-systems-lab", conf.MetricsExporter())
	if err != nil {
		fail("Failed to initialize telemetry", "error", err.Error())
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			logger.Error("Failed to shut down telemetry", "error", err.Error())
		}
	}()

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	cacheStore, err := cachestore.NewStoreFromConfig(conf)
	if err != nil {
		fail("Failed to initialize cache store", "error", err.Error())
	}
	defer cacheStore.Close()
	logger.Info("Initialized cache store")

	coordinator := coalescing.NewCoordinator(1*time.Minute, 10*time.Minute)
	defer coordinator.Close()

	accessor := app.NewCacheAside(
		cacheStore,
		coordinator,
		metrics.NewOTelAccessRecorder(),
		app.WithWaitTimeout(conf.CacheWaitTimeout()),
	)

	logger.Info("Initializing database connection")
	masterDB, err := database.NewPostgresDatabase(conf.DatabaseURL())
	if err != nil {
		fail("Failed to initialize master database", "error", err.Error())
	}
	logger.Info("Initialized database connection")

	schemaName := database.GetSchemaName(!conf.IsProduction())

	err = database.NewDatabaseMigrator(masterDB, logger.With("component", "migrator")).Migrate(ctx, schemaName)
	if err != nil {
		fail("Failed to migrate database", "error", err.Error())
	}

	err = database.Seed(ctx, masterDB, schemaName, logger.With("component", "seeder"))
	if err != nil {
		fail("Failed to seed database", "error", err.Error())
	}

	// The replica is connected directly: schema management happens on the
	// master and replicates over.
	var replicaDB *sqlx.DB
	if conf.ReplicaDatabaseURL() != "" {
		replicaDB, err = sqlx.Connect("postgres", conf.ReplicaDatabaseURL())
		if err != nil {
			fail("Failed to initialize replica database", "error", err.Error())
		}
		logger.Info("Initialized replica database connection")
	} else {
		logger.Info("No replica configured, all reads go to the master")
	}

	routedDB := database.NewRouted(masterDB, replicaDB, conf.ReplicaReadPercent())
	defer routedDB.Close()

	repo := productrepository.NewPostgresProductRepository(routedDB, schemaName)
	logger.Info("Initialized ProductRepository")

	producer, err := messaging.NewProducerOrNoop(conf)
	if err != nil {
		fail("Failed to initialize producer", "error", err.Error())
	}
	defer producer.Close()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if conf.KafkaBrokers() != "" {
		consumer := messaging.NewConsumer(conf.KafkaBrokers(), conf.KafkaTopic(), conf.InstanceID())
		defer consumer.Close()
		go func() {
			if err := consumer.Run(consumerCtx); err != nil {
				logger.Error("Consumer stopped", "error", err.Error())
			}
		}()
		logger.Info("Started kafka consumer", "topic", conf.KafkaTopic())
	}

	getProductsCached := app.BuildGetProductsCached(accessor, repo, conf.CacheTTL())
	getUsersCached := app.BuildGetUsersCached(accessor, repo, conf.CacheTTL())
	getProductsDB := app.BuildGetProductsDB(repo)

	writeItem := app.BuildWriteItem(repo)
	readItems := app.BuildReadItems(repo)
	countItems := app.BuildCountItems(repo)
	bulkInsertItems := app.BuildBulkInsertItems(repo)
	getReplicationLag := app.BuildGetReplicationLag(repo)

	if routedDB.HasReplica() {
		if err := metrics.RegisterReplicationLagGauge(getReplicationLag); err != nil {
			fail("Failed to register replication lag gauge", "error", err.Error())
		}
	}

	processSync := app.BuildProcessSync(conf.SyncSleep(), conf.InstanceID())
	produceAsync := app.BuildProduceAsync(producer, conf.InstanceID(), time.Now)

	// Load tests run unthrottled by default; RATE_LIMIT_RPS opts in.
	extraMiddlewares := []func(http.HandlerFunc) http.HandlerFunc{}
	if conf.RateLimitRPS() > 0 {
		ipRateLimiter, stopRateLimiter := ratelimiting.NewTokenBucketRateLimiter(
			ratelimiting.RefillPerSecond(conf.RateLimitRPS()),
			ratelimiting.BurstSize(conf.RateLimitRPS()*10),
		)
		defer stopRateLimiter()

		extraMiddlewares = append(extraMiddlewares, ports.NewRateLimitMiddleware(
			ratelimiting.NewRequestBasedRateLimiter(ipRateLimiter, ratelimiting.IPKeyFunc),
			func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"success":false,"cause":"rate limit exceeded"}`))
			},
		))
	}

	http.HandleFunc(
		"GET /{$}",
		ports.MakeIndexHandler(conf.InstanceID(), logger.With("port", "index"), sentryMiddleware),
	)
	http.HandleFunc(
		"GET /health",
		ports.MakeHealthHandler(conf.InstanceID(), conf.KafkaBrokers() != "", logger.With("port", "health"), sentryMiddleware),
	)

	http.HandleFunc(
		"GET /api/data",
		ports.MakeDataHandler(logger.With("port", "data"), sentryMiddleware),
	)
	http.HandleFunc(
		"GET /api/slow",
		ports.MakeSlowHandler(logger.With("port", "slow"), sentryMiddleware),
	)
	http.HandleFunc(
		"GET /api/random_error",
		ports.MakeRandomErrorHandler(logger.With("port", "randomerror"), sentryMiddleware),
	)

	http.HandleFunc(
		"GET /api/products/db",
		ports.MakeGetUncachedPayloadHandler(
			"productsdb",
			getProductsDB,
			logger.With("port", "productsdb"),
			sentryMiddleware,
			extraMiddlewares...,
		),
	)
	http.HandleFunc(
		"GET /api/products/cached",
		ports.MakeGetCachedPayloadHandler(
			"productscached",
			getProductsCached,
			logger.With("port", "productscached"),
			sentryMiddleware,
			extraMiddlewares...,
		),
	)
	http.HandleFunc(
		"GET /api/users/cached",
		ports.MakeGetCachedPayloadHandler(
			"userscached",
			getUsersCached,
			logger.With("port", "userscached"),
			sentryMiddleware,
			extraMiddlewares...,
		),
	)

	http.HandleFunc(
		"POST /cache/invalidate",
		ports.MakeCacheInvalidateHandler(accessor, logger.With("port", "cacheinvalidate"), sentryMiddleware),
	)
	http.HandleFunc(
		"GET /cache/stats",
		ports.MakeCacheStatsHandler(cacheStore, logger.With("port", "cachestats"), sentryMiddleware),
	)

	http.HandleFunc(
		"POST /write",
		ports.MakeWriteItemHandler(writeItem, logger.With("port", "writeitem"), sentryMiddleware),
	)
	http.HandleFunc(
		"GET /read",
		ports.MakeReadItemsHandler(readItems, logger.With("port", "readitems"), sentryMiddleware),
	)
	http.HandleFunc(
		"GET /read/master",
		ports.MakeCountItemsHandler(countItems, database.TargetMaster, logger.With("port", "readmaster"), sentryMiddleware),
	)
	http.HandleFunc(
		"GET /read/replica",
		ports.MakeCountItemsHandler(countItems, database.TargetReplica, logger.With("port", "readreplica"), sentryMiddleware),
	)
	http.HandleFunc(
		"POST /bulk-insert",
		ports.MakeBulkInsertHandler(bulkInsertItems, logger.With("port", "bulkinsert"), sentryMiddleware),
	)
	http.HandleFunc(
		"GET /replication-lag",
		ports.MakeReplicationLagHandler(getReplicationLag, logger.With("port", "replicationlag"), sentryMiddleware),
	)
	http.HandleFunc(
		"GET /set-replica-percent/{percent}",
		ports.MakeSetReplicaPercentHandler(routedDB, logger.With("port", "setreplicapercent"), sentryMiddleware),
	)

	http.HandleFunc(
		"GET /sync",
		ports.MakeSyncHandler(processSync, logger.With("port", "sync"), sentryMiddleware),
	)
	http.HandleFunc(
		"GET /async",
		ports.MakeAsyncHandler(produceAsync, conf.InstanceID(), logger.With("port", "async"), sentryMiddleware),
	)

	if conf.MetricsExporter() == "prometheus" {
		http.Handle("GET /metrics", promhttp.Handler())
	}

	logger.Info("Init complete")
	err = http.ListenAndServe(fmt.Sprintf(":%s", conf.Port()), nil)
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
