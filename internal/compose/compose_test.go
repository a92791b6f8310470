package compose

import (
	"reflect"
	"testing"

	"github.com/framefit/framefit/internal/domain"
)

var testBase = domain.UploadedImage{
	URL:    "https://assets.example.com/uploads/abc/source.png",
	FileID: "abc",
	Width:  3000,
	Height: 2000,
	Size:   1 << 20,
}

func TestCompileSquareFaceCrop(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.AspectRatio = domain.AspectSquare
	cfg.SmartCropFocus = domain.FocusFace

	d := Compile(cfg, testBase)

	if len(d.Directives) != 1 {
		t.Fatalf("expected exactly one directive, got %d: %+v", len(d.Directives), d.Directives)
	}
	resize := d.Directives[0]
	if resize.Kind != DirectiveResize {
		t.Fatalf("expected resize directive, got %s", resize.Kind)
	}
	if resize.Width != 400 || resize.Height != 400 {
		t.Fatalf("expected 400x400, got %dx%d", resize.Width, resize.Height)
	}
	if resize.Focus != domain.FocusFace {
		t.Fatalf("expected crop focus face, got %s", resize.Focus)
	}
}

func TestCompileCustomSizeWithText(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.AspectRatio = domain.AspectCustom
	cfg.CustomWidth = 1200
	cfg.CustomHeight = 300
	cfg.TextOverlay = "Sale"
	cfg.TextFontSize = 60
	cfg.TextColor = "#ff0000"
	cfg.TextPosition = domain.PositionSouth

	d := Compile(cfg, testBase)

	if len(d.Directives) != 2 {
		t.Fatalf("expected resize and text directives, got %+v", d.Directives)
	}
	resize := d.Directives[0]
	if resize.Kind != DirectiveResize || resize.Width != 1200 || resize.Height != 300 {
		t.Fatalf("unexpected resize: %+v", resize)
	}
	if resize.Focus != domain.FocusAuto {
		t.Fatalf("expected default focus auto, got %s", resize.Focus)
	}
	text := d.Directives[1]
	if text.Kind != DirectiveText {
		t.Fatalf("expected text directive, got %s", text.Kind)
	}
	if text.Text != "Sale" || text.FontSize != 60 || text.Color != "#ff0000" || text.Position != domain.PositionSouth {
		t.Fatalf("unexpected text directive: %+v", text)
	}
}

func TestCompileOriginalEmitsNoResize(t *testing.T) {
	d := Compile(domain.DefaultConfig(), testBase)
	if len(d.Directives) != 0 {
		t.Fatalf("expected an empty descriptor for defaults, got %+v", d.Directives)
	}
	if d.BaseURL != testBase.URL {
		t.Fatalf("expected base URL carried through, got %s", d.BaseURL)
	}
}

func TestCompileBackgroundRemovalPrecedesText(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.BackgroundRemoved = true
	cfg.DropShadow = true
	cfg.TextOverlay = "Hello"

	d := Compile(cfg, testBase)

	backgroundIdx, textIdx := -1, -1
	for i, directive := range d.Directives {
		switch directive.Kind {
		case DirectiveRemoveBackground:
			backgroundIdx = i
		case DirectiveText:
			textIdx = i
		}
	}
	if backgroundIdx < 0 || textIdx < 0 {
		t.Fatalf("expected both background and text directives: %+v", d.Directives)
	}
	if backgroundIdx >= textIdx {
		t.Fatalf("background removal must precede text: %+v", d.Directives)
	}
}

func TestCompileWhitespaceTextIsNoOp(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.TextOverlay = "   "

	d := Compile(cfg, testBase)
	for _, directive := range d.Directives {
		if directive.Kind == DirectiveText {
			t.Fatalf("whitespace-only text must not emit a directive: %+v", d.Directives)
		}
	}
}

func TestCompileShadowWithoutCutout(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.DropShadow = true

	d := Compile(cfg, testBase)
	if len(d.Directives) != 1 || d.Directives[0].Kind != DirectiveDropShadow {
		t.Fatalf("shadow flag alone must emit exactly the shadow directive: %+v", d.Directives)
	}
}

func TestCompileIsPure(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.AspectRatio = domain.AspectWide
	cfg.BackgroundRemoved = true
	cfg.TextOverlay = "Twice"

	first := Compile(cfg, testBase)
	second := Compile(cfg, testBase)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different descriptors:\n%+v\n%+v", first, second)
	}
}

func TestCompilePanicsOnInvalidConfig(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for a config outside its domain")
		}
	}()

	cfg := domain.DefaultConfig()
	cfg.TextFontSize = 0
	Compile(cfg, testBase)
}
