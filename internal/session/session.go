// Package session owns the editing state machine for one upload-and-transform
// session: phase transitions, the uploaded image record, the transformation
// config, and the busy flags that double as reentrancy guards.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/framefit/framefit/internal/compose"
	"github.com/framefit/framefit/internal/domain"
)

type Phase string

const (
	PhaseClosed    Phase = "closed"
	PhaseUpload    Phase = "upload"
	PhaseTransform Phase = "transform"
)

// Uploader is the external asset store boundary. Exactly one outcome shape:
// a populated image record or an error.
type Uploader interface {
	Upload(ctx context.Context, file domain.UploadFile) (domain.UploadedImage, error)
}

// TransformApplier hands a compiled descriptor to the external processor
// pipeline for materialization.
type TransformApplier interface {
	Apply(ctx context.Context, req ApplyRequest) error
}

// ApplyRequest is one materialization order: the descriptor to apply, the
// rendered processor URL, and where to report completion.
type ApplyRequest struct {
	SessionID  string
	Descriptor compose.Descriptor
	PreviewURL string
	WebhookURL string
}

// Session is the single owner of one editing session. All fields are guarded
// by mu; the upload and apply calls run outside the lock and re-validate the
// epoch when they return, so a call that outlives Close has its result
// discarded instead of resurrecting the session.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time
	phase     Phase
	epoch     uint64

	uploading    bool
	transforming bool

	image      *domain.UploadedImage
	config     domain.TransformConfig
	descriptor compose.Descriptor
	previewURL string

	uploader Uploader
	applier  TransformApplier
}

// Snapshot is a read-only view for the presentation layer.
type Snapshot struct {
	ID           string                 `json:"id"`
	Phase        Phase                  `json:"phase"`
	Uploading    bool                   `json:"uploading"`
	Transforming bool                   `json:"transforming"`
	Image        *domain.UploadedImage  `json:"image,omitempty"`
	Config       domain.TransformConfig `json:"config"`
	Descriptor   compose.Descriptor     `json:"descriptor"`
	PreviewURL   string                 `json:"preview_url,omitempty"`
}

func New(id string, uploader Uploader, applier TransformApplier) *Session {
	return &Session{
		id:        id,
		createdAt: time.Now().UTC(),
		phase:     PhaseClosed,
		config:    domain.DefaultConfig(),
		uploader:  uploader,
		applier:   applier,
	}
}

func (s *Session) ID() string {
	return s.id
}

// Open transitions closed to upload and resets the config to its defaults.
// The machine is restartable: Open is valid again after any Close.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseClosed {
		return &domain.PhaseError{Op: "open", Phase: string(s.phase)}
	}
	s.phase = PhaseUpload
	s.config = domain.DefaultConfig()
	return nil
}

// SubmitFile runs the admission checks, delegates to the asset store, and on
// success produces the session's UploadedImage and advances to the transform
// phase. At most one upload may be outstanding; a second call while one is in
// flight is rejected, not queued. The uploading flag is false on every exit
// path, and admission failures never set it.
func (s *Session) SubmitFile(ctx context.Context, file domain.UploadFile) (domain.UploadedImage, error) {
	s.mu.Lock()
	if s.phase != PhaseUpload {
		phase := s.phase
		s.mu.Unlock()
		return domain.UploadedImage{}, &domain.PhaseError{Op: "submit_file", Phase: string(phase)}
	}
	if s.uploading {
		s.mu.Unlock()
		return domain.UploadedImage{}, domain.ErrUploadInProgress
	}
	if err := domain.CheckUploadFile(file); err != nil {
		s.mu.Unlock()
		return domain.UploadedImage{}, err
	}
	s.uploading = true
	epoch := s.epoch
	s.mu.Unlock()

	image, err := s.uploader.Upload(ctx, file)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		// The session closed while the upload was in flight. The result is
		// discarded; Close already cleared the flags.
		return domain.UploadedImage{}, nil
	}
	s.uploading = false

	if err != nil {
		var remote *domain.RemoteUploadError
		if !errors.As(err, &remote) {
			err = &domain.RemoteUploadError{Message: err.Error()}
		}
		return domain.UploadedImage{}, err
	}

	s.uploadSucceededLocked(image)
	return image, nil
}

// UploadSucceeded records a completed upload and advances upload to
// transform. Outside the upload phase it is a no-op, which makes duplicate
// success signals harmless.
func (s *Session) UploadSucceeded(image domain.UploadedImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadSucceededLocked(image)
}

func (s *Session) uploadSucceededLocked(image domain.UploadedImage) {
	if s.phase != PhaseUpload {
		return
	}
	s.image = &image
	s.phase = PhaseTransform
	s.recompileLocked()
}

// ParameterChanged merges patch into the config through schema validation and
// recompiles the descriptor. It is only legal in the transform phase; calls
// issued earlier are a caller sequencing bug and come back as a PhaseError
// with the config untouched.
func (s *Session) ParameterChanged(patch domain.ConfigPatch) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseTransform {
		return Snapshot{}, &domain.PhaseError{Op: "parameter_changed", Phase: string(s.phase)}
	}

	next, err := domain.ApplyPatch(s.config, patch)
	if err != nil {
		return Snapshot{}, err
	}

	s.config = next
	s.recompileLocked()
	return s.snapshotLocked(), nil
}

// RequestTransformTab is the manual upload-to-transform advance. It requires
// an uploaded image; in the transform phase it is already satisfied and is a
// no-op.
func (s *Session) RequestTransformTab() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseTransform:
		return nil
	case PhaseUpload:
		if s.image == nil {
			return domain.ErrNoUploadedImage
		}
		s.phase = PhaseTransform
		s.recompileLocked()
		return nil
	default:
		return &domain.PhaseError{Op: "request_transform_tab", Phase: string(s.phase)}
	}
}

// ApplyTransform hands the current descriptor to the transform collaborator.
// The transforming flag covers the call's duration and rejects overlapping
// requests; a call that returns after Close is discarded via the epoch guard.
func (s *Session) ApplyTransform(ctx context.Context, webhookURL string) error {
	s.mu.Lock()
	if s.phase != PhaseTransform {
		phase := s.phase
		s.mu.Unlock()
		return &domain.PhaseError{Op: "apply_transform", Phase: string(phase)}
	}
	if s.image == nil {
		s.mu.Unlock()
		return domain.ErrNoUploadedImage
	}
	if s.transforming {
		s.mu.Unlock()
		return domain.ErrTransformInProgress
	}
	s.transforming = true
	epoch := s.epoch
	req := ApplyRequest{
		SessionID:  s.id,
		Descriptor: s.descriptor,
		PreviewURL: s.previewURL,
		WebhookURL: webhookURL,
	}
	s.mu.Unlock()

	err := s.applier.Apply(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	s.transforming = false
	return err
}

// Close moves any phase to closed and discards everything the session owned:
// the image record, the config, the compiled descriptor. Bumping the epoch
// invalidates any result still in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.phase = PhaseClosed
	s.uploading = false
	s.transforming = false
	s.image = nil
	s.config = domain.DefaultConfig()
	s.descriptor = compose.Descriptor{}
	s.previewURL = ""
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:           s.id,
		Phase:        s.phase,
		Uploading:    s.uploading,
		Transforming: s.transforming,
		Config:       s.config,
		Descriptor:   s.descriptor,
		PreviewURL:   s.previewURL,
	}
	if s.image != nil {
		image := *s.image
		snap.Image = &image
	}
	return snap
}

func (s *Session) recompileLocked() {
	if s.image == nil {
		return
	}
	s.descriptor = compose.Compile(s.config, *s.image)
	s.previewURL = compose.PreviewURL(s.descriptor)
}
