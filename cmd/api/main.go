package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/framefit/framefit/internal/api"
	"github.com/framefit/framefit/internal/config"
	"github.com/framefit/framefit/internal/queue"
	"github.com/framefit/framefit/internal/ratelimit"
	"github.com/framefit/framefit/internal/session"
	"github.com/framefit/framefit/internal/storage"
	"github.com/framefit/framefit/internal/store"
	"github.com/framefit/framefit/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	traceCtx, traceCancel := context.WithTimeout(context.Background(), 10*time.Second)
	shutdownTracing, err := telemetry.SetupTracing(traceCtx, telemetry.TraceConfig{
		ServiceName:  "framefit-api",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	}, logger)
	traceCancel()
	if err != nil {
		logger.Fatalf("setup tracing: %v", err)
	}

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		Access:    cfg.Storage.AccessKey,
		Secret:    cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		logger.Fatalf("create storage client: %v", err)
	}

	bucketCtx, bucketCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := storageClient.EnsureBucket(bucketCtx); err != nil {
		logger.Printf("ensure bucket failed (uploads may fail until storage is up): %v", err)
	}
	bucketCancel()

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	var auditStore store.AuditStore
	storeCtx, storeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pgStore, err := store.NewPostgresAuditStore(storeCtx, cfg.Database.DSN)
	storeCancel()
	if err != nil {
		logger.Printf("postgres unavailable, audit logs kept in memory: %v", err)
		auditStore = store.NewMemoryAuditStore()
	} else {
		defer pgStore.Close()
		auditStore = pgStore
	}

	sessions := session.NewRegistry(storageClient, api.QueueApplier{Queue: queueClient})

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	defer redisClient.Close()

	opts := []api.Option{}
	limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.API.RateLimitCapacity, cfg.API.RateLimitWindow, "")
	if err != nil {
		logger.Printf("rate limiter disabled: %v", err)
	} else {
		opts = append(opts, api.WithRateLimiter(limiter, cfg.API.UserIDHeader))
	}

	app := api.NewServer(logger, sessions, auditStore, opts...)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}
