// Package imaging prepares uploaded rasters for tracing.
//
// It covers everything that happens to pixels before the external tracer sees
// them: a header-only probe and the limit guard that runs on it, full decode
// with EXIF orientation, the plain normalization path (flatten, grayscale,
// gamma-correct downscale, percentile stretch) and the Sobel edge path with its
// flat-result fallback.
//
// # Pipeline
//
//	Guard.Check -> Decode -> Preprocessor.Normalize            (preprocess=none)
//	Guard.Check -> Decode -> Preprocessor.DetectEdges          (preprocess=edge)
//
// Every stage returns a new image; inputs are never modified. ReadFile loads
// a file from disk for the same pipeline once its size and sniffed type pass
// the guard.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with the origin at the top-left corner.
// Output rasters always start at (0,0) regardless of the input's bounds.
//
// # Thread Safety
//
// Guard and Preprocessor hold only immutable configuration and are safe for
// concurrent use. Nothing is cached between calls: decoded images and all
// intermediate buffers belong to the caller and are released with it.
//
// # Failure Modes
//
// The guard reports *LimitError values. Normalization and edge detection fail
// soft: if an internal step cannot complete, the input image is returned
// unchanged and a warning is logged.
package imaging
