package worker

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/framefit/framefit/internal/config"
	"github.com/framefit/framefit/internal/domain"
	"github.com/framefit/framefit/internal/queue"
	"github.com/framefit/framefit/internal/store"
)

// Server consumes export jobs: it fetches the derived image from the external
// processor, copies it into the object store, records an audit row, and
// reports the outcome over webhook.
type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	sem           chan struct{}
	renderer      derivedFetcher
	storage       objectWriter
	webhookClient webhookSender
	auditStore    store.AuditStore
	metrics       *metrics
	tracer        trace.Tracer
}

type derivedFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

type objectWriter interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	ObjectURL(objectKey string) string
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	renderer derivedFetcher,
	storage objectWriter,
	webhookClient webhookSender,
	auditStore store.AuditStore,
) (*Server, error) {
	if renderer == nil {
		return nil, fmt.Errorf("render client is required")
	}
	if storage == nil {
		return nil, fmt.Errorf("storage client is required")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:           make(chan struct{}, max(1, workerCfg.MaxActiveExports)),
		renderer:      renderer,
		storage:       storage,
		webhookClient: webhookClient,
		auditStore:    auditStore,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("framefit/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeExportImage, s.handleExportImage)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleExportImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := "failed"

	payload, err := queue.ParseExportImagePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.export_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("session.id", payload.SessionID),
		attribute.Int("export.directives", len(payload.Descriptor.Directives)),
	)
	defer span.End()
	defer func() {
		s.metrics.exportDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.exportsTotal.WithLabelValues(outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeExports.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeExports.Dec()
	}()

	s.logger.Printf(
		"exporting session=%s directives=%d url=%s",
		payload.SessionID,
		len(payload.Descriptor.Directives),
		payload.PreviewURL,
	)

	data, contentType, err := s.renderer.Fetch(ctx, payload.PreviewURL)
	if err != nil {
		return s.failExport(ctx, span, payload, fmt.Errorf("fetch derived image: %w", err))
	}

	objectKey := exportObjectKey(payload.SessionID, contentType)
	if err := s.storage.WriteObject(ctx, objectKey, data, contentType); err != nil {
		return s.failExport(ctx, span, payload, fmt.Errorf("store derived image: %w", err))
	}

	s.logger.Printf("exported session=%s object=%s bytes=%d", payload.SessionID, objectKey, len(data))
	s.metrics.derivedBytes.Add(float64(len(data)))
	s.metrics.directivesApplied.Add(float64(len(payload.Descriptor.Directives)))
	s.recordExportLog(ctx, payload, objectKey, int64(len(data)))

	if err := s.dispatchWebhook(ctx, payload, "export.completed", map[string]any{
		"session_id":   payload.SessionID,
		"status":       "succeeded",
		"object_key":   objectKey,
		"url":          s.storage.ObjectURL(objectKey),
		"bytes":        len(data),
		"requested_at": payload.RequestedAt,
		"completed_at": time.Now().UTC(),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = "succeeded"
	span.SetStatus(codes.Ok, "exported")
	return nil
}

func (s *Server) failExport(ctx context.Context, span trace.Span, payload queue.ExportImagePayload, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "export failed")
	s.dispatchWebhookBestEffort(ctx, payload, "export.failed", map[string]any{
		"session_id":   payload.SessionID,
		"status":       "failed",
		"requested_at": payload.RequestedAt,
		"failed_at":    time.Now().UTC(),
		"error":        err.Error(),
	})
	return err
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.ExportImagePayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery failed session=%s event=%s err=%v", payload.SessionID, event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

func (s *Server) dispatchWebhookBestEffort(ctx context.Context, payload queue.ExportImagePayload, event string, body map[string]any) {
	_ = s.dispatchWebhook(ctx, payload, event, body)
}

func (s *Server) recordExportLog(ctx context.Context, payload queue.ExportImagePayload, objectKey string, bytes int64) {
	if s.auditStore == nil {
		return
	}

	entry := domain.ExportLog{
		SessionID:  payload.SessionID,
		ObjectKey:  objectKey,
		Bytes:      bytes,
		Directives: len(payload.Descriptor.Directives),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.auditStore.CreateExportLog(ctx, entry); err != nil {
		s.logger.Printf("export log write failed session=%s err=%v", payload.SessionID, err)
	}
}

func exportObjectKey(sessionID, contentType string) string {
	return fmt.Sprintf("exports/%s/%d%s", sessionID, time.Now().UTC().UnixNano(), extensionFor(contentType))
}

func extensionFor(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpeg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
