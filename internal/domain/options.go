package domain

import (
	"strings"
)

type AspectRatio string

const (
	AspectOriginal AspectRatio = "original"
	AspectSquare   AspectRatio = "1:1"
	AspectWide     AspectRatio = "16:9"
	AspectPortrait AspectRatio = "4:5"
	AspectStory    AspectRatio = "9:16"
	AspectCustom   AspectRatio = "custom"
)

type CropFocus string

const (
	FocusAuto   CropFocus = "auto"
	FocusFace   CropFocus = "face"
	FocusCenter CropFocus = "center"
	FocusTop    CropFocus = "top"
	FocusBottom CropFocus = "bottom"
)

type TextPosition string

const (
	PositionCenter    TextPosition = "center"
	PositionNorth     TextPosition = "north"
	PositionSouth     TextPosition = "south"
	PositionEast      TextPosition = "east"
	PositionWest      TextPosition = "west"
	PositionNorthEast TextPosition = "north_east"
	PositionNorthWest TextPosition = "north_west"
	PositionSouthEast TextPosition = "south_east"
	PositionSouthWest TextPosition = "south_west"
)

// AspectPreset is the fixed output size for a named aspect ratio.
type AspectPreset struct {
	Width  int
	Height int
}

// AspectPresets maps each named ratio to its output dimensions. The original
// and custom ratios have no preset: original emits no resize at all, custom
// uses the config's own width and height.
var AspectPresets = map[AspectRatio]AspectPreset{
	AspectSquare:   {Width: 400, Height: 400},
	AspectWide:     {Width: 1280, Height: 720},
	AspectPortrait: {Width: 800, Height: 1000},
	AspectStory:    {Width: 720, Height: 1280},
}

// Bounds for the numeric options. Out-of-range patch values are clamped into
// these ranges, never rejected.
const (
	MinCustomDimension = 100
	MaxCustomDimension = 2000
	MinTextFontSize    = 12
	MaxTextFontSize    = 200
)

// TransformConfig holds every recognized transformation option. Any config
// produced by this package satisfies every field's declared domain; callers
// mutate it only through ApplyPatch.
type TransformConfig struct {
	AspectRatio       AspectRatio  `json:"aspect_ratio"`
	CustomWidth       int          `json:"custom_width"`
	CustomHeight      int          `json:"custom_height"`
	SmartCropFocus    CropFocus    `json:"smart_crop_focus"`
	TextOverlay       string       `json:"text_overlay"`
	TextFontSize      int          `json:"text_font_size"`
	TextColor         string       `json:"text_color"`
	TextPosition      TextPosition `json:"text_position"`
	BackgroundRemoved bool         `json:"background_removed"`
	DropShadow        bool         `json:"drop_shadow"`
}

// ConfigPatch is a partial update to a TransformConfig. Nil fields keep the
// prior value.
type ConfigPatch struct {
	AspectRatio       *string `json:"aspect_ratio,omitempty"`
	CustomWidth       *int    `json:"custom_width,omitempty"`
	CustomHeight      *int    `json:"custom_height,omitempty"`
	SmartCropFocus    *string `json:"smart_crop_focus,omitempty"`
	TextOverlay       *string `json:"text_overlay,omitempty"`
	TextFontSize      *int    `json:"text_font_size,omitempty"`
	TextColor         *string `json:"text_color,omitempty"`
	TextPosition      *string `json:"text_position,omitempty"`
	BackgroundRemoved *bool   `json:"background_removed,omitempty"`
	DropShadow        *bool   `json:"drop_shadow,omitempty"`
}

// DefaultConfig returns the declared defaults for every option.
func DefaultConfig() TransformConfig {
	return TransformConfig{
		AspectRatio:       AspectOriginal,
		CustomWidth:       800,
		CustomHeight:      600,
		SmartCropFocus:    FocusAuto,
		TextOverlay:       "",
		TextFontSize:      50,
		TextColor:         "#ffffff",
		TextPosition:      PositionCenter,
		BackgroundRemoved: false,
		DropShadow:        false,
	}
}

// ApplyPatch merges patch into cfg and returns the result. Numeric fields are
// clamped into their bounds. Enumerated fields outside the closed set fail
// with *UnknownOptionError; a malformed color fails with *ValidationError.
// On any error the returned config is the unchanged input: validation happens
// before commit, never after.
func ApplyPatch(cfg TransformConfig, patch ConfigPatch) (TransformConfig, error) {
	next := cfg

	if patch.AspectRatio != nil {
		ratio := AspectRatio(strings.TrimSpace(*patch.AspectRatio))
		if !validAspectRatio(ratio) {
			return cfg, &UnknownOptionError{Field: "aspect_ratio", Value: *patch.AspectRatio}
		}
		next.AspectRatio = ratio
	}
	if patch.CustomWidth != nil {
		next.CustomWidth = clamp(*patch.CustomWidth, MinCustomDimension, MaxCustomDimension)
	}
	if patch.CustomHeight != nil {
		next.CustomHeight = clamp(*patch.CustomHeight, MinCustomDimension, MaxCustomDimension)
	}
	if patch.SmartCropFocus != nil {
		focus := CropFocus(strings.TrimSpace(*patch.SmartCropFocus))
		if !validCropFocus(focus) {
			return cfg, &UnknownOptionError{Field: "smart_crop_focus", Value: *patch.SmartCropFocus}
		}
		next.SmartCropFocus = focus
	}
	if patch.TextOverlay != nil {
		next.TextOverlay = *patch.TextOverlay
	}
	if patch.TextFontSize != nil {
		next.TextFontSize = clamp(*patch.TextFontSize, MinTextFontSize, MaxTextFontSize)
	}
	if patch.TextColor != nil {
		color := strings.ToLower(strings.TrimSpace(*patch.TextColor))
		if !validHexColor(color) {
			return cfg, &ValidationError{Field: "text_color", Constraint: "must be a #rrggbb hex color"}
		}
		next.TextColor = color
	}
	if patch.TextPosition != nil {
		position := TextPosition(strings.TrimSpace(*patch.TextPosition))
		if !validTextPosition(position) {
			return cfg, &UnknownOptionError{Field: "text_position", Value: *patch.TextPosition}
		}
		next.TextPosition = position
	}
	if patch.BackgroundRemoved != nil {
		next.BackgroundRemoved = *patch.BackgroundRemoved
	}
	if patch.DropShadow != nil {
		next.DropShadow = *patch.DropShadow
	}

	return next, nil
}

// Valid reports whether every field of cfg satisfies its declared domain. A
// config that only ever passed through DefaultConfig and ApplyPatch is always
// valid; the composer treats a violation here as an invariant breach.
func (c TransformConfig) Valid() bool {
	return validAspectRatio(c.AspectRatio) &&
		c.CustomWidth >= MinCustomDimension && c.CustomWidth <= MaxCustomDimension &&
		c.CustomHeight >= MinCustomDimension && c.CustomHeight <= MaxCustomDimension &&
		validCropFocus(c.SmartCropFocus) &&
		c.TextFontSize >= MinTextFontSize && c.TextFontSize <= MaxTextFontSize &&
		validHexColor(c.TextColor) &&
		validTextPosition(c.TextPosition)
}

func validAspectRatio(r AspectRatio) bool {
	switch r {
	case AspectOriginal, AspectSquare, AspectWide, AspectPortrait, AspectStory, AspectCustom:
		return true
	}
	return false
}

func validCropFocus(f CropFocus) bool {
	switch f {
	case FocusAuto, FocusFace, FocusCenter, FocusTop, FocusBottom:
		return true
	}
	return false
}

func validTextPosition(p TextPosition) bool {
	switch p {
	case PositionCenter, PositionNorth, PositionSouth, PositionEast, PositionWest,
		PositionNorthEast, PositionNorthWest, PositionSouthEast, PositionSouthWest:
		return true
	}
	return false
}

func validHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
