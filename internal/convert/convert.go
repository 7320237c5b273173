// Package convert is the raster-to-SVG entry point.
//
// Convert runs the whole pipeline for one upload:
//
//	limit guard -> header probe -> decode -> normalize | edge prepass -> tracer -> canonicalize
//
// Every stage works on in-memory buffers owned by the call. Nothing is cached
// between calls and nothing is written to disk, so a Service can be shared by
// any number of concurrent requests.
package convert

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/vectorize-mcp/internal/imaging"
	"github.com/ironsheep/vectorize-mcp/internal/svg"
	"github.com/ironsheep/vectorize-mcp/internal/trace"
)

// Config configures a Service. Zero values take the package defaults.
type Config struct {
	Limits    imaging.Limits
	Normalize imaging.NormalizeOptions
	Flat      imaging.FlatThresholds

	// Edge is used for edge requests that carry no settings of their own.
	Edge imaging.EdgeConfig

	// TraceTimeout bounds a single tracer call. Zero means no limit beyond
	// the caller's context.
	TraceTimeout time.Duration
}

// Service converts uploads into canonical SVG.
type Service struct {
	guard   *imaging.Guard
	pre     *imaging.Preprocessor
	tracer  trace.Tracer
	edge    imaging.EdgeConfig
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewService creates a Service around tracer.
func NewService(cfg Config, tracer trace.Tracer, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Normalize == (imaging.NormalizeOptions{}) {
		cfg.Normalize = imaging.DefaultNormalizeOptions()
	}
	if cfg.Edge == (imaging.EdgeConfig{}) {
		cfg.Edge = imaging.DefaultEdgeConfig()
	}
	return &Service{
		guard: imaging.NewGuard(cfg.Limits),
		pre: imaging.NewPreprocessor(imaging.Options{
			Limits:    cfg.Limits,
			Normalize: cfg.Normalize,
			Flat:      cfg.Flat,
			Logger:    log,
		}),
		tracer:  tracer,
		edge:    cfg.Edge,
		timeout: cfg.TraceTimeout,
		log:     log,
	}
}

// Guard returns the limit guard the service enforces.
func (s *Service) Guard() *imaging.Guard {
	return s.guard
}

// UploadTooLarge is the 413 for a body cut off at the upload limit.
func (s *Service) UploadTooLarge() error {
	return fromLimit(s.guard.TooLarge())
}

// Prepared is a raster ready for the tracer.
type Prepared struct {
	Image image.Image

	// Probe is nil when the header could not be read.
	Probe *imaging.ProbeResult

	// Edge is set for PreprocessEdge requests.
	Edge *imaging.EdgeResult
}

// Convert runs the full pipeline. Validation failures are returned as
// *ValidationError, decode and tracer failures as *ConversionError, and
// cancellation as the context's error. No partial output is ever returned.
func (s *Service) Convert(ctx context.Context, req Request) (*Result, error) {
	req, _, err := req.validate(s.edge)
	if err != nil {
		return nil, err
	}

	prep, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	raw, err := s.trace(ctx, prep.Image, req.Params)
	if err != nil {
		return nil, err
	}

	doc := svg.Canonicalize(raw, svg.Options{
		LineColor:   req.Params.LineColor,
		Transparent: req.Background.Transparent,
		Background:  req.Background.Color,
	})

	res := &Result{
		SVG:    doc.SVG,
		Width:  int(math.Round(doc.Width)),
		Height: int(math.Round(doc.Height)),
	}
	if prep.Edge != nil {
		res.EdgeFallback = prep.Edge.Fallback
	}

	s.log.WithFields(logrus.Fields{
		"width":         res.Width,
		"height":        res.Height,
		"preprocess":    req.Preprocess,
		"edge_fallback": res.EdgeFallback,
		"svg_bytes":     len(res.SVG),
	}).Info("conversion complete")

	return res, nil
}

// Prepare validates, guards, decodes and preprocesses req without tracing.
func (s *Service) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	req, edge, err := req.validate(s.edge)
	if err != nil {
		return nil, err
	}

	if err := s.guard.CheckUpload(int64(len(req.Data)), req.MIME); err != nil {
		return nil, fromLimit(err)
	}

	probe, err := imaging.Probe(req.Data)
	if err != nil {
		// The header probe is best effort; the decoder may still cope.
		s.log.WithError(err).WithField("bytes", len(req.Data)).Warn("header probe failed, skipping dimension guard")
	} else if err := s.guard.CheckDimensions(probe.Width, probe.Height); err != nil {
		return nil, fromLimit(err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, orientation, err := imaging.Decode(req.Data)
	if err != nil {
		return nil, &ConversionError{Op: "decode", Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prep := &Prepared{Probe: probe}
	switch req.Preprocess {
	case PreprocessEdge:
		prep.Edge = s.pre.DetectEdges(img, orientation, edge)
		prep.Image = prep.Edge.Image
	default:
		prep.Image = s.pre.Normalize(img, orientation)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return prep, nil
}

func (s *Service) trace(ctx context.Context, img image.Image, params trace.Params) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.tracer.Trace(ctx, img, params)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "", &ConversionError{Op: "trace", Err: err}
	}

	s.log.WithFields(logrus.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
		"raw_bytes":   len(raw),
	}).Debug("trace complete")
	return raw, nil
}
