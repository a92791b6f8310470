package compose

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/framefit/framefit/internal/domain"
)

// PreviewURL renders the descriptor as the processor's URL directive string:
// one comma-joined segment per directive, segments joined by ":", carried in
// the tr query parameter of the base asset URL. An empty descriptor returns
// the base URL untouched.
func PreviewURL(d Descriptor) string {
	if len(d.Directives) == 0 {
		return d.BaseURL
	}

	segments := make([]string, 0, len(d.Directives))
	for _, directive := range d.Directives {
		segments = append(segments, directiveSegment(directive))
	}

	separator := "?"
	if strings.Contains(d.BaseURL, "?") {
		separator = "&"
	}
	return d.BaseURL + separator + "tr=" + strings.Join(segments, ":")
}

func directiveSegment(d Directive) string {
	switch d.Kind {
	case DirectiveResize:
		parts := []string{
			"w-" + strconv.Itoa(d.Width),
			"h-" + strconv.Itoa(d.Height),
			"c-maintain_ratio",
		}
		if focus := focusParam(d.Focus); focus != "" {
			parts = append(parts, "fo-"+focus)
		}
		return strings.Join(parts, ",")
	case DirectiveRemoveBackground:
		return "e-removedotbg"
	case DirectiveDropShadow:
		return "e-shadow"
	case DirectiveText:
		parts := []string{
			"l-text",
			"i-" + url.QueryEscape(d.Text),
			"fs-" + strconv.Itoa(d.FontSize),
			"co-" + strings.TrimPrefix(d.Color, "#"),
			"lpo-" + positionParam(d.Position),
			"l-end",
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

func focusParam(f domain.CropFocus) string {
	switch f {
	case domain.FocusAuto:
		return "auto"
	case domain.FocusFace:
		return "face"
	case domain.FocusCenter:
		return "center"
	case domain.FocusTop:
		return "top"
	case domain.FocusBottom:
		return "bottom"
	default:
		return ""
	}
}

func positionParam(p domain.TextPosition) string {
	// The processor's overlay grammar spells compound positions without the
	// underscore.
	return strings.ReplaceAll(string(p), "_", "")
}
