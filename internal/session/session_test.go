package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/framefit/framefit/internal/domain"
)

type stubUploader struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	image   domain.UploadedImage
	err     error
}

func (u *stubUploader) Upload(_ context.Context, _ domain.UploadFile) (domain.UploadedImage, error) {
	u.mu.Lock()
	u.calls++
	release := u.release
	u.mu.Unlock()

	if release != nil {
		<-release
	}
	return u.image, u.err
}

func (u *stubUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

type stubApplier struct {
	mu    sync.Mutex
	calls int
	last  ApplyRequest
	err   error
}

func (a *stubApplier) Apply(_ context.Context, req ApplyRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.last = req
	return a.err
}

func testImage() domain.UploadedImage {
	return domain.UploadedImage{
		URL:    "https://assets.example.com/uploads/f1/cat.png",
		FileID: "f1",
		Width:  1024,
		Height: 768,
		Size:   2048,
	}
}

func pngFile() domain.UploadFile {
	return domain.UploadFile{Name: "cat.png", ContentType: "image/png", Data: []byte{1, 2, 3}}
}

func openSession(t *testing.T, uploader Uploader, applier TransformApplier) *Session {
	t.Helper()
	s := New("s-1", uploader, applier)
	if err := s.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestSubmitFileAdvancesToTransform(t *testing.T) {
	uploader := &stubUploader{image: testImage()}
	s := openSession(t, uploader, &stubApplier{})

	image, err := s.SubmitFile(context.Background(), pngFile())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if image.FileID != "f1" {
		t.Fatalf("expected uploaded image record, got %+v", image)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseTransform {
		t.Fatalf("expected phase transform, got %s", snap.Phase)
	}
	if snap.Uploading {
		t.Fatal("uploading flag must be false after the call returns")
	}
	if snap.Image == nil || snap.Image.FileID != "f1" {
		t.Fatalf("expected image in snapshot, got %+v", snap.Image)
	}
	if snap.PreviewURL != testImage().URL {
		t.Fatalf("default config must preview the bare base URL, got %s", snap.PreviewURL)
	}
}

func TestSubmitFileRejectsNonImage(t *testing.T) {
	uploader := &stubUploader{image: testImage()}
	s := openSession(t, uploader, &stubApplier{})

	file := domain.UploadFile{Name: "doc.pdf", ContentType: "application/pdf", Data: []byte{1}}
	_, err := s.SubmitFile(context.Background(), file)
	if !errors.Is(err, domain.ErrUnsupportedMedia) {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}
	if uploader.callCount() != 0 {
		t.Fatal("rejected file must never reach the store")
	}

	snap := s.Snapshot()
	if snap.Uploading {
		t.Fatal("uploading flag must stay false on admission failure")
	}
	if snap.Phase != PhaseUpload {
		t.Fatalf("expected phase upload, got %s", snap.Phase)
	}
}

func TestSubmitFileSecondCallRejectedWhileInFlight(t *testing.T) {
	uploader := &stubUploader{image: testImage(), release: make(chan struct{})}
	s := openSession(t, uploader, &stubApplier{})

	done := make(chan error, 1)
	go func() {
		_, err := s.SubmitFile(context.Background(), pngFile())
		done <- err
	}()

	waitFor(t, func() bool { return s.Snapshot().Uploading })

	_, err := s.SubmitFile(context.Background(), pngFile())
	if !errors.Is(err, domain.ErrUploadInProgress) {
		t.Fatalf("expected ErrUploadInProgress, got %v", err)
	}
	if uploader.callCount() != 1 {
		t.Fatalf("second call must not hit the store, got %d calls", uploader.callCount())
	}

	close(uploader.release)
	if err := <-done; err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
}

func TestSubmitFileRemoteFailureStaysInUpload(t *testing.T) {
	uploader := &stubUploader{err: errors.New("bucket unreachable")}
	s := openSession(t, uploader, &stubApplier{})

	_, err := s.SubmitFile(context.Background(), pngFile())
	var remoteErr *domain.RemoteUploadError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteUploadError, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseUpload {
		t.Fatalf("remote failure must leave phase upload, got %s", snap.Phase)
	}
	if snap.Uploading {
		t.Fatal("uploading flag must be false after a remote failure")
	}
	if snap.Image != nil {
		t.Fatal("no image record may exist after a failed upload")
	}
}

func TestCloseDuringInFlightUploadDiscardsResult(t *testing.T) {
	uploader := &stubUploader{image: testImage(), release: make(chan struct{})}
	s := openSession(t, uploader, &stubApplier{})

	done := make(chan error, 1)
	go func() {
		_, err := s.SubmitFile(context.Background(), pngFile())
		done <- err
	}()

	waitFor(t, func() bool { return s.Snapshot().Uploading })
	s.Close()
	close(uploader.release)

	if err := <-done; err != nil {
		t.Fatalf("discarded result must not surface an error, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseClosed {
		t.Fatalf("expected phase closed, got %s", snap.Phase)
	}
	if snap.Image != nil {
		t.Fatal("late upload result must not resurrect the session")
	}
}

func TestParameterChangedBeforeUploadIsPhaseError(t *testing.T) {
	s := openSession(t, &stubUploader{}, &stubApplier{})

	ratio := "1:1"
	_, err := s.ParameterChanged(domain.ConfigPatch{AspectRatio: &ratio})
	var phaseErr *domain.PhaseError
	if !errors.As(err, &phaseErr) {
		t.Fatalf("expected PhaseError, got %v", err)
	}

	if got := s.Snapshot().Config; got != domain.DefaultConfig() {
		t.Fatalf("rejected call must not mutate config: %+v", got)
	}
}

func TestParameterChangedRecompilesDescriptor(t *testing.T) {
	s := openSession(t, &stubUploader{image: testImage()}, &stubApplier{})
	if _, err := s.SubmitFile(context.Background(), pngFile()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ratio := "1:1"
	focus := "face"
	snap, err := s.ParameterChanged(domain.ConfigPatch{AspectRatio: &ratio, SmartCropFocus: &focus})
	if err != nil {
		t.Fatalf("parameter change: %v", err)
	}

	if len(snap.Descriptor.Directives) != 1 {
		t.Fatalf("expected one directive, got %+v", snap.Descriptor.Directives)
	}
	if snap.Descriptor.Directives[0].Focus != domain.FocusFace {
		t.Fatalf("expected face focus in descriptor, got %+v", snap.Descriptor.Directives[0])
	}
	if snap.PreviewURL == testImage().URL {
		t.Fatal("preview URL must carry the directive string")
	}

	bogus := "sideways"
	_, err = s.ParameterChanged(domain.ConfigPatch{SmartCropFocus: &bogus})
	var unknownErr *domain.UnknownOptionError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownOptionError, got %v", err)
	}
	if s.Snapshot().Config.SmartCropFocus != domain.FocusFace {
		t.Fatal("failed patch must keep the prior focus")
	}
}

func TestUploadSucceededIsIdempotent(t *testing.T) {
	s := openSession(t, &stubUploader{}, &stubApplier{})

	first := testImage()
	s.UploadSucceeded(first)

	duplicate := testImage()
	duplicate.FileID = "f2"
	s.UploadSucceeded(duplicate)

	snap := s.Snapshot()
	if snap.Phase != PhaseTransform {
		t.Fatalf("expected phase transform, got %s", snap.Phase)
	}
	if snap.Image.FileID != "f1" {
		t.Fatalf("duplicate success signal must be a no-op, got image %s", snap.Image.FileID)
	}
}

func TestRequestTransformTabRequiresImage(t *testing.T) {
	s := openSession(t, &stubUploader{}, &stubApplier{})

	if err := s.RequestTransformTab(); !errors.Is(err, domain.ErrNoUploadedImage) {
		t.Fatalf("expected ErrNoUploadedImage, got %v", err)
	}

	s.UploadSucceeded(testImage())
	if err := s.RequestTransformTab(); err != nil {
		t.Fatalf("tab advance with image failed: %v", err)
	}
	// Already in transform: stays a no-op.
	if err := s.RequestTransformTab(); err != nil {
		t.Fatalf("repeat tab request must be a no-op, got %v", err)
	}
}

func TestApplyTransformGuards(t *testing.T) {
	applier := &stubApplier{}
	s := openSession(t, &stubUploader{image: testImage()}, applier)

	err := s.ApplyTransform(context.Background(), "")
	var phaseErr *domain.PhaseError
	if !errors.As(err, &phaseErr) {
		t.Fatalf("expected PhaseError before upload, got %v", err)
	}

	if _, err := s.SubmitFile(context.Background(), pngFile()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := s.ApplyTransform(context.Background(), "https://hooks.example.com/done"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applier.calls != 1 {
		t.Fatalf("expected one apply call, got %d", applier.calls)
	}
	if applier.last.SessionID != "s-1" || applier.last.WebhookURL != "https://hooks.example.com/done" {
		t.Fatalf("unexpected apply request: %+v", applier.last)
	}
	if s.Snapshot().Transforming {
		t.Fatal("transforming flag must be false after the call returns")
	}
}

func TestCloseThenOpenRestarts(t *testing.T) {
	s := openSession(t, &stubUploader{image: testImage()}, &stubApplier{})
	if _, err := s.SubmitFile(context.Background(), pngFile()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ratio := "16:9"
	if _, err := s.ParameterChanged(domain.ConfigPatch{AspectRatio: &ratio}); err != nil {
		t.Fatalf("parameter change: %v", err)
	}

	s.Close()
	snap := s.Snapshot()
	if snap.Phase != PhaseClosed || snap.Image != nil || snap.PreviewURL != "" {
		t.Fatalf("close must discard everything: %+v", snap)
	}
	if snap.Config != domain.DefaultConfig() {
		t.Fatalf("close must reset config to defaults: %+v", snap.Config)
	}

	if err := s.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := s.Snapshot().Phase; got != PhaseUpload {
		t.Fatalf("expected phase upload after reopen, got %s", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
