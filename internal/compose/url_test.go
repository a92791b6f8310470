package compose

import (
	"strings"
	"testing"

	"github.com/framefit/framefit/internal/domain"
)

func TestPreviewURLEmptyDescriptor(t *testing.T) {
	d := Descriptor{BaseURL: "https://assets.example.com/uploads/x/source.png"}
	if got := PreviewURL(d); got != d.BaseURL {
		t.Fatalf("empty descriptor must return the base URL, got %s", got)
	}
}

func TestPreviewURLRendersDirectivesInOrder(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.AspectRatio = domain.AspectSquare
	cfg.SmartCropFocus = domain.FocusFace
	cfg.BackgroundRemoved = true
	cfg.TextOverlay = "Sale"
	cfg.TextPosition = domain.PositionSouthEast

	got := PreviewURL(Compile(cfg, testBase))

	if !strings.HasPrefix(got, testBase.URL+"?tr=") {
		t.Fatalf("expected tr query on the base URL, got %s", got)
	}
	resizeIdx := strings.Index(got, "w-400,h-400")
	backgroundIdx := strings.Index(got, "e-removedotbg")
	textIdx := strings.Index(got, "l-text")
	if resizeIdx < 0 || backgroundIdx < 0 || textIdx < 0 {
		t.Fatalf("missing directive segments: %s", got)
	}
	if !(resizeIdx < backgroundIdx && backgroundIdx < textIdx) {
		t.Fatalf("segments out of order: %s", got)
	}
	if !strings.Contains(got, "fo-face") {
		t.Fatalf("expected crop focus in resize segment: %s", got)
	}
	if !strings.Contains(got, "lpo-southeast") {
		t.Fatalf("expected compound position without underscore: %s", got)
	}
	if !strings.Contains(got, "co-ffffff") {
		t.Fatalf("expected color without hash: %s", got)
	}
}

func TestPreviewURLAppendsToExistingQuery(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.DropShadow = true

	base := testBase
	base.URL = "https://assets.example.com/source.png?v=2"
	got := PreviewURL(Compile(cfg, base))
	if !strings.Contains(got, "?v=2&tr=e-shadow") {
		t.Fatalf("expected tr appended with &, got %s", got)
	}
}
