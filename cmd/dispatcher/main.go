package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/dispatch-engine/internal/alert"
	"github.com/ignite/dispatch-engine/internal/api"
	"github.com/ignite/dispatch-engine/internal/compose"
	"github.com/ignite/dispatch-engine/internal/config"
	"github.com/ignite/dispatch-engine/internal/dispatch"
	"github.com/ignite/dispatch-engine/internal/feedback"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
	"github.com/ignite/dispatch-engine/internal/provider"
	"github.com/ignite/dispatch-engine/internal/queue"
	"github.com/ignite/dispatch-engine/internal/ratelimit"
	"github.com/ignite/dispatch-engine/internal/region"
	"github.com/ignite/dispatch-engine/internal/repository/postgres"
	"github.com/ignite/dispatch-engine/internal/reputation"
	"github.com/ignite/dispatch-engine/internal/suppression"
	"github.com/ignite/dispatch-engine/internal/warmup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis: the shared hot state for suppressions, the token bucket, the
	// retry queue, warm-up counters, and the scheduler lock.
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("parsing redis url: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("connecting to redis: %v", err)
	}
	logger.Info("connected to redis")

	suppressions := suppression.NewStore(rdb, cfg.Suppression.TTL())
	var audit warmup.Audit
	if cfg.Postgres.URL != "" {
		db, err := sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			log.Fatalf("opening postgres: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		if err := db.PingContext(pingCtx); err != nil {
			log.Fatalf("pinging postgres: %v", err)
		}
		suppressions.SetArchive(postgres.NewSuppressionArchive(db))
		audit = postgres.NewWarmupAudit(db)
		logger.Info("connected to postgres archive")
	} else {
		logger.Warn("no postgres configured, running without archive and audit")
	}

	// One provider client per region, in config order.
	clients := make(map[string]provider.Client, len(cfg.Regions))
	sdkClients := make(map[string]*sesv2.Client, len(cfg.Regions))
	for _, reg := range cfg.Regions {
		client, err := provider.NewSESClient(ctx, cfg.Provider.AccessKey, cfg.Provider.SecretKey, reg, cfg.Provider.Timeout())
		if err != nil {
			log.Fatalf("building SES client for %s: %v", reg.Name, err)
		}
		clients[reg.Name] = client
		sdkClients[reg.Name] = client.SDK()
	}

	registry, err := region.NewRegistry(cfg.Regions)
	if err != nil {
		log.Fatalf("building region registry: %v", err)
	}

	monitor := reputation.NewSESMonitor(sdkClients, registry.Primary().Name)
	health := region.NewHealthMonitor(registry, clients, monitor, rdb)

	bucket := ratelimit.NewTokenBucket(rdb, "", cfg.Bucket.Capacity, cfg.Bucket.RefillPerSec)
	bucket.StartRefill(ctx)

	composer := compose.NewComposer(cfg.Tracking.BaseURL, cfg.Tracking.Secret)
	retry := queue.NewRetryQueue(rdb, cfg.Queue.Key)

	dispatcher := dispatch.NewDispatcher(suppressions, bucket, registry, health, clients, composer, retry, rdb, dispatch.Options{})

	alerter := alert.NewAlerter(cfg.Alert)
	warmups := warmup.NewManager(rdb, monitor, alerter, audit, cfg.Warmup.Schedule)
	dispatcher.AddObserver(warmups)

	queue.NewDrainer(retry, dispatcher, cfg.Queue.DrainIdle()).Start(ctx)
	warmup.NewScheduler(warmups, dispatcher, rdb, cfg.Warmup).Start(ctx)

	processor := feedback.NewProcessor(rdb, suppressions, cfg.Suppression.SoftBounceThreshold)
	server := api.NewServer(dispatcher, suppressions, warmups, processor, health, retry, composer)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("dispatch engine listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err.Error())
	}
	logger.Info("dispatch engine stopped")
}
