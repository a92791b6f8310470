package session

import (
	"errors"
	"testing"
)

func TestRegistryLifecycle(t *testing.T) {
	registry := NewRegistry(&stubUploader{}, &stubApplier{})

	s, err := registry.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Snapshot().Phase != PhaseUpload {
		t.Fatalf("created session must be open, got %s", s.Snapshot().Phase)
	}

	got, ok := registry.Get(s.ID())
	if !ok || got != s {
		t.Fatal("expected to look up the created session")
	}
	if registry.Len() != 1 {
		t.Fatalf("expected one live session, got %d", registry.Len())
	}

	if err := registry.Release(s.ID()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if s.Snapshot().Phase != PhaseClosed {
		t.Fatal("release must close the session")
	}
	if _, ok := registry.Get(s.ID()); ok {
		t.Fatal("released session must be forgotten")
	}

	if err := registry.Release(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
