// Package compose turns a validated TransformConfig into the ordered
// transformation descriptor the external image processor consumes. Compilation
// is a pure function of its inputs: no hidden state, identical inputs yield
// identical descriptors.
package compose

import (
	"fmt"
	"strings"

	"github.com/framefit/framefit/internal/domain"
)

type DirectiveKind string

const (
	DirectiveResize           DirectiveKind = "resize"
	DirectiveRemoveBackground DirectiveKind = "remove_background"
	DirectiveDropShadow       DirectiveKind = "drop_shadow"
	DirectiveText             DirectiveKind = "text"
)

// Directive is one atomic transformation operation. Only the fields relevant
// to its kind are populated.
type Directive struct {
	Kind DirectiveKind `json:"kind"`

	Width  int              `json:"width,omitempty"`
	Height int              `json:"height,omitempty"`
	Focus  domain.CropFocus `json:"focus,omitempty"`

	Text     string              `json:"text,omitempty"`
	FontSize int                 `json:"font_size,omitempty"`
	Color    string              `json:"color,omitempty"`
	Position domain.TextPosition `json:"position,omitempty"`
}

// Descriptor is the ordered directive list for one base asset. Order matters:
// the processor applies each directive to the output of the previous one.
type Descriptor struct {
	BaseURL    string      `json:"base_url"`
	Directives []Directive `json:"directives"`
}

// Compile builds the descriptor for cfg against base. Stage order is fixed:
// dimension, background removal, drop shadow, text overlay. Background removal
// precedes the text stage so overlays composite onto the cleaned image. The
// shadow directive is emitted on the flag alone, with no dependency on
// background removal.
//
// Compile never fails for a config produced by the domain package; a config
// violating its own domain here means the schema and the composer are out of
// sync, which is a programming error, not user input.
func Compile(cfg domain.TransformConfig, base domain.UploadedImage) Descriptor {
	if !cfg.Valid() {
		panic(fmt.Sprintf("compose: config violates its declared domain: %+v", cfg))
	}

	directives := make([]Directive, 0, 4)

	switch cfg.AspectRatio {
	case domain.AspectOriginal:
		// no resize directive
	case domain.AspectCustom:
		directives = append(directives, Directive{
			Kind:   DirectiveResize,
			Width:  cfg.CustomWidth,
			Height: cfg.CustomHeight,
			Focus:  cfg.SmartCropFocus,
		})
	default:
		preset := domain.AspectPresets[cfg.AspectRatio]
		directives = append(directives, Directive{
			Kind:   DirectiveResize,
			Width:  preset.Width,
			Height: preset.Height,
			Focus:  cfg.SmartCropFocus,
		})
	}

	if cfg.BackgroundRemoved {
		directives = append(directives, Directive{Kind: DirectiveRemoveBackground})
	}

	if cfg.DropShadow {
		directives = append(directives, Directive{Kind: DirectiveDropShadow})
	}

	if text := strings.TrimSpace(cfg.TextOverlay); text != "" {
		directives = append(directives, Directive{
			Kind:     DirectiveText,
			Text:     text,
			FontSize: cfg.TextFontSize,
			Color:    cfg.TextColor,
			Position: cfg.TextPosition,
		})
	}

	return Descriptor{
		BaseURL:    base.URL,
		Directives: directives,
	}
}
