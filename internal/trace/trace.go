// Package trace is the boundary to the bitmap-to-path tracer.
//
// The tracer itself is an external collaborator. This package fixes its call
// contract (a single-channel raster plus Params in, SVG markup out) and ships
// one implementation, Potrace, which drives the potrace binary over pipes so
// nothing touches the filesystem.
package trace

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
)

// TurnPolicy resolves ambiguous turns during path decomposition.
type TurnPolicy string

// Turn policies understood by potrace.
const (
	TurnBlack    TurnPolicy = "black"
	TurnWhite    TurnPolicy = "white"
	TurnLeft     TurnPolicy = "left"
	TurnRight    TurnPolicy = "right"
	TurnMinority TurnPolicy = "minority"
	TurnMajority TurnPolicy = "majority"
)

// ParseTurnPolicy accepts a policy name case-insensitively.
func ParseTurnPolicy(s string) (TurnPolicy, error) {
	p := TurnPolicy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case TurnBlack, TurnWhite, TurnLeft, TurnRight, TurnMinority, TurnMajority:
		return p, nil
	}
	return "", fmt.Errorf("unknown turn policy %q", s)
}

// Params are the tracing parameters. They are passed through to the tracer.
type Params struct {
	// Threshold is the 0-255 luminance below which a pixel counts as ink.
	Threshold int `json:"threshold"`

	// TurdSize suppresses speckles of up to this many pixels.
	TurdSize int `json:"turd_size"`

	// OptTolerance is the curve optimization tolerance.
	OptTolerance float64 `json:"opt_tolerance"`

	TurnPolicy TurnPolicy `json:"turn_policy"`

	// LineColor is the fill for traced paths, as "#rrggbb".
	LineColor string `json:"line_color"`

	// Invert traces light shapes on a dark background.
	Invert bool `json:"invert"`
}

// DefaultParams returns threshold 224, turd size 2, tolerance 0.28,
// minority turns and black lines.
func DefaultParams() Params {
	return Params{
		Threshold:    224,
		TurdSize:     2,
		OptTolerance: 0.28,
		TurnPolicy:   TurnMinority,
		LineColor:    "#000000",
	}
}

// Validate checks the documented ranges.
func (p Params) Validate() error {
	if p.Threshold < 0 || p.Threshold > 255 {
		return fmt.Errorf("threshold must be within 0-255, got %d", p.Threshold)
	}
	if p.TurdSize < 0 {
		return fmt.Errorf("turd size must be >= 0, got %d", p.TurdSize)
	}
	if !(p.OptTolerance > 0) || math.IsInf(p.OptTolerance, 0) {
		return fmt.Errorf("opt tolerance must be a finite value > 0, got %v", p.OptTolerance)
	}
	if _, err := ParseTurnPolicy(string(p.TurnPolicy)); err != nil {
		return err
	}
	return nil
}

// Tracer converts a raster into SVG markup.
//
// Implementations must not retry: tracing is deterministic, so the same input
// would fail the same way.
type Tracer interface {
	Trace(ctx context.Context, img image.Image, params Params) (string, error)
}

// TracerFunc adapts a function to the Tracer interface.
type TracerFunc func(ctx context.Context, img image.Image, params Params) (string, error)

// Trace calls f.
func (f TracerFunc) Trace(ctx context.Context, img image.Image, params Params) (string, error) {
	return f(ctx, img, params)
}

// Error describes a tracer failure.
type Error struct {
	Tool string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Tool, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
