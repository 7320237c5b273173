package convert

import (
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/vectorize-mcp/internal/imaging"
	"github.com/ironsheep/vectorize-mcp/internal/trace"
)

// Preprocess selects the raster fed to the tracer.
type Preprocess string

const (
	// PreprocessNone traces the normalized grayscale image.
	PreprocessNone Preprocess = "none"
	// PreprocessEdge traces a Sobel edge raster, for photographs.
	PreprocessEdge Preprocess = "edge"
)

// ParsePreprocess accepts "none", "edge" or an empty string (none).
func ParsePreprocess(s string) (Preprocess, error) {
	switch p := Preprocess(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PreprocessNone, nil
	case PreprocessNone, PreprocessEdge:
		return p, nil
	}
	return "", invalid("Unknown preprocess mode %q. Use none or edge.", s)
}

// Background selects between a transparent result and an opaque fill.
type Background struct {
	Transparent bool   `json:"transparent"`
	Color       string `json:"bg_color"`
}

// Request is one conversion.
type Request struct {
	// Data is the uploaded PNG or JPEG.
	Data []byte

	// MIME is the declared content type of Data.
	MIME string

	Params     trace.Params
	Preprocess Preprocess

	// Edge overrides the service's default edge settings when non-nil.
	// It is only consulted for PreprocessEdge.
	Edge *imaging.EdgeConfig

	Background Background
}

// NewRequest returns a request with the default parameters: threshold 224,
// black lines, no preprocessing and a transparent background.
func NewRequest(data []byte, mime string) Request {
	return Request{
		Data:       data,
		MIME:       mime,
		Params:     trace.DefaultParams(),
		Preprocess: PreprocessNone,
		Background: Background{Transparent: true, Color: "#ffffff"},
	}
}

// Result is a successful conversion.
type Result struct {
	SVG    string `json:"svg"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	// EdgeFallback is set when edge preprocessing was requested but the
	// normalized raster was traced instead.
	EdgeFallback bool `json:"edge_fallback,omitempty"`
}

// ParseColor validates a "#rgb" or "#rrggbb" colour and returns it as
// lowercase "#rrggbb".
func ParseColor(s string) (string, error) {
	hex := strings.TrimSpace(s)
	if (len(hex) != 4 && len(hex) != 7) || hex[0] != '#' {
		return "", invalid("Invalid color %q. Use #rgb or #rrggbb.", s)
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return "", invalid("Invalid color %q. Use #rgb or #rrggbb.", s)
	}
	return c.Hex(), nil
}

// validate checks every parameter and returns a copy with colours
// canonicalized and defaults filled in.
func (r Request) validate(defaultEdge imaging.EdgeConfig) (Request, imaging.EdgeConfig, error) {
	if len(r.Data) == 0 {
		return r, defaultEdge, ErrNoFile
	}
	if err := r.Params.Validate(); err != nil {
		return r, defaultEdge, invalid("Invalid trace parameters: %v.", err)
	}

	mode, err := ParsePreprocess(string(r.Preprocess))
	if err != nil {
		return r, defaultEdge, err
	}
	r.Preprocess = mode

	edge := defaultEdge
	if r.Edge != nil {
		edge = *r.Edge
	}
	if mode == PreprocessEdge {
		if err := edge.Validate(); err != nil {
			return r, edge, invalid("Invalid edge settings: %v.", err)
		}
	}

	if r.Params.LineColor == "" {
		r.Params.LineColor = trace.DefaultParams().LineColor
	}
	if r.Params.LineColor, err = ParseColor(r.Params.LineColor); err != nil {
		return r, edge, err
	}
	if !r.Background.Transparent {
		if r.Background.Color == "" {
			r.Background.Color = "#ffffff"
		}
		if r.Background.Color, err = ParseColor(r.Background.Color); err != nil {
			return r, edge, err
		}
	}
	return r, edge, nil
}
