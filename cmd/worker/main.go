package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/framefit/framefit/internal/config"
	"github.com/framefit/framefit/internal/render"
	"github.com/framefit/framefit/internal/storage"
	"github.com/framefit/framefit/internal/store"
	"github.com/framefit/framefit/internal/telemetry"
	"github.com/framefit/framefit/internal/webhook"
	"github.com/framefit/framefit/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	traceCtx, traceCancel := context.WithTimeout(context.Background(), 10*time.Second)
	shutdownTracing, err := telemetry.SetupTracing(traceCtx, telemetry.TraceConfig{
		ServiceName:  "framefit-worker",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	}, logger)
	traceCancel()
	if err != nil {
		logger.Fatalf("setup tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Printf("tracing shutdown failed: %v", err)
		}
	}()

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

	renderClient := render.NewClient(render.Config{
		Timeout:     cfg.Render.Timeout,
		MaxAttempts: cfg.Render.MaxAttempts,
	})

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret: cfg.Webhook.SigningSecret,
		MaxAttempts:   3,
	})

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

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, renderClient, storageClient, webhookClient, auditStore)
	if err != nil {
		logger.Fatalf("create worker: %v", err)
	}

	go func() {
		metricsAddr := ":9091"
		logger.Printf("worker metrics on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, srv.MetricsHandler()); err != nil {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	logger.Printf(
		"starting worker concurrency=%d max_active_exports=%d queue=%s redis=%s",
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActiveExports,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
	)

	if err := srv.Run(); err != nil {
		logger.Fatalf("worker failed: %v", err)
	}
}
