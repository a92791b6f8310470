package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/framefit/framefit/internal/domain"
	"github.com/framefit/framefit/internal/queue"
	"github.com/framefit/framefit/internal/session"
	"github.com/framefit/framefit/internal/store"
)

type Server struct {
	logger       *log.Logger
	sessions     *session.Registry
	auditStore   store.AuditStore
	rateLimiter  RateLimiter
	userIDHeader string
	metrics      *metrics
	tracer       trace.Tracer
	mux          *http.ServeMux
}

type Option func(*Server)

func WithRateLimiter(limiter RateLimiter, userIDHeader string) Option {
	return func(s *Server) {
		s.rateLimiter = limiter
		if userIDHeader != "" {
			s.userIDHeader = userIDHeader
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

func NewServer(logger *log.Logger, sessions *session.Registry, auditStore store.AuditStore, opts ...Option) *Server {
	s := &Server{
		logger:       logger,
		sessions:     sessions,
		auditStore:   auditStore,
		userIDHeader: "X-User-ID",
		metrics:      newMetrics(),
		tracer:       otel.Tracer("framefit/api"),
		mux:          http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Handler returns the full middleware chain: tracing, rate limiting, request
// metrics, then the route mux.
func (s *Server) Handler() http.Handler {
	return s.withTracing(s.withRateLimit(s.metrics.withHTTPMetrics(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("POST /v1/sessions/{id}/upload", s.handleUpload)
	s.mux.HandleFunc("PATCH /v1/sessions/{id}/config", s.handlePatchConfig)
	s.mux.HandleFunc("POST /v1/sessions/{id}/tab", s.handleTransformTab)
	s.mux.HandleFunc("POST /v1/sessions/{id}/export", s.handleExport)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleCloseSession)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess, err := s.sessions.Create()
	if err != nil {
		s.logger.Printf("create session failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	s.metrics.sessionsOpened.Inc()
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	file, err := readMultipartFile(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	image, err := sess.SubmitFile(r.Context(), file)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	// A zero FileID means the session closed mid-upload and the result was
	// discarded; there is nothing to record.
	if image.FileID != "" {
		s.metrics.uploadsTotal.WithLabelValues("succeeded").Inc()
		s.recordUploadLog(r.Context(), sess.ID(), image)
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	var patch domain.ConfigPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	snap, err := sess.ParameterChanged(patch)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTransformTab(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	if err := sess.RequestTransformTab(); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	var req struct {
		WebhookURL string `json:"webhook_url,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	if err := sess.ApplyTransform(r.Context(), req.WebhookURL); err != nil {
		s.writeSessionError(w, err)
		return
	}

	s.metrics.exportsEnqueued.Inc()
	writeJSON(w, http.StatusAccepted, sess.Snapshot())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Release(r.PathValue("id")); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	s.metrics.sessionsClosed.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// writeSessionError maps the domain error taxonomy onto HTTP statuses. Every
// branch is a recoverable error: state is unchanged and the message is safe
// to show the user.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	var (
		phaseErr      *domain.PhaseError
		validationErr *domain.ValidationError
		unknownErr    *domain.UnknownOptionError
		remoteErr     *domain.RemoteUploadError
	)

	switch {
	case errors.Is(err, domain.ErrUnsupportedMedia):
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrFileTooLarge):
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrUploadInProgress),
		errors.Is(err, domain.ErrTransformInProgress),
		errors.Is(err, domain.ErrNoUploadedImage):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &phaseErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &validationErr), errors.As(err, &unknownErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.As(err, &remoteErr):
		s.metrics.uploadsTotal.WithLabelValues("failed").Inc()
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		s.logger.Printf("unexpected session error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (s *Server) recordUploadLog(ctx context.Context, sessionID string, image domain.UploadedImage) {
	if s.auditStore == nil {
		return
	}
	entry := domain.UploadLog{
		SessionID: sessionID,
		FileID:    image.FileID,
		Bytes:     image.Size,
		Width:     image.Width,
		Height:    image.Height,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.auditStore.CreateUploadLog(ctx, entry); err != nil {
		s.logger.Printf("upload log write failed session=%s err=%v", sessionID, err)
	}
}

// QueueApplier adapts the asynq queue client to the session's transform
// collaborator boundary.
type QueueApplier struct {
	Queue exportEnqueuer
}

type exportEnqueuer interface {
	EnqueueExportImage(ctx context.Context, payload queue.ExportImagePayload) (*asynq.TaskInfo, error)
}

func (a QueueApplier) Apply(ctx context.Context, req session.ApplyRequest) error {
	payload := queue.ExportImagePayload{
		SessionID:   req.SessionID,
		Descriptor:  req.Descriptor,
		PreviewURL:  req.PreviewURL,
		WebhookURL:  req.WebhookURL,
		RequestedAt: time.Now().UTC(),
	}
	if _, err := a.Queue.EnqueueExportImage(ctx, payload); err != nil {
		return fmt.Errorf("enqueue export: %w", err)
	}
	return nil
}

func readMultipartFile(r *http.Request) (domain.UploadFile, error) {
	// One MiB of slack above the admission cap so an oversized file reaches
	// the size check and gets its specific error, not a multipart failure.
	if err := r.ParseMultipartForm(domain.MaxUploadBytes + 1<<20); err != nil {
		return domain.UploadFile{}, fmt.Errorf("parse multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.UploadFile{}, errors.New("multipart field \"file\" is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.UploadFile{}, fmt.Errorf("read upload: %w", err)
	}

	return domain.UploadFile{
		Name:        header.Filename,
		ContentType: contentTypeOf(header),
		Data:        data,
	}, nil
}

func contentTypeOf(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
