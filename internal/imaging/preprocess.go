package imaging

import (
	"errors"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
)

var errEmptyRaster = errors.New("raster has no pixels")

// NormalizeOptions tunes the plain grayscale path.
type NormalizeOptions struct {
	// Gamma is used for gamma-correct resampling when an image has to be
	// shrunk into the working size. Values <= 0 disable the correction.
	Gamma float64

	// StretchLow and StretchHigh are the histogram percentiles (0-100) mapped
	// to 0 and 255 by the contrast stretch.
	StretchLow  float64
	StretchHigh float64
}

// DefaultNormalizeOptions returns gamma 2.2 and a 1st/99th percentile stretch.
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{Gamma: 2.2, StretchLow: 1, StretchHigh: 99}
}

// Options configures a Preprocessor.
type Options struct {
	Limits    Limits
	Normalize NormalizeOptions
	Flat      FlatThresholds
	Logger    logrus.FieldLogger
}

// Preprocessor turns decoded uploads into rasters the tracer can use.
//
// It is stateless apart from its configuration and may be shared across
// goroutines.
type Preprocessor struct {
	guard *Guard
	norm  NormalizeOptions
	flat  FlatThresholds
	log   logrus.FieldLogger
}

// NewPreprocessor creates a Preprocessor. Zero-valued options take defaults.
func NewPreprocessor(opts Options) *Preprocessor {
	norm := opts.Normalize
	if norm.StretchHigh <= norm.StretchLow {
		d := DefaultNormalizeOptions()
		norm.StretchLow, norm.StretchHigh = d.StretchLow, d.StretchHigh
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Preprocessor{
		guard: NewGuard(opts.Limits),
		norm:  norm,
		flat:  opts.Flat.withDefaults(),
		log:   log,
	}
}

// orient applies the EXIF orientation and the soft downscale guard.
func (p *Preprocessor) orient(img image.Image, o Orientation) image.Image {
	img = o.Apply(img)
	b := img.Bounds()
	if p.guard.Exceeds(b.Dx(), b.Dy()) {
		ws := p.guard.Limits().WorkingSize
		p.log.WithFields(logrus.Fields{
			"width":        b.Dx(),
			"height":       b.Dy(),
			"working_size": ws,
		}).Debug("downscaling oversized raster")
		img = fitGammaCorrect(img, ws, p.norm.Gamma)
	}
	return img
}

// safely runs fn, converting a panic from a decode or resize oddity into an error.
func safely(fn func() (image.Image, error)) (out image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("preprocessing panicked: %v", r)
		}
	}()
	return fn()
}
