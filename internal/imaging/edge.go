package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// Sobel kernels in row-major order over the 3x3 neighbourhood.
var (
	sobelX = [9]int{-1, 0, 1, -2, 0, 2, -1, 0, 1}
	sobelY = [9]int{-1, -2, -1, 0, 0, 0, 1, 2, 1}
)

// edgeBackground is the value of border pixels, which the kernel never visits.
const edgeBackground = 255

var errTooSmall = errors.New("raster too small for a 3x3 kernel")

// EdgeConfig controls the edge prepass.
type EdgeConfig struct {
	// BlurSigma is the Gaussian standard deviation applied before the
	// gradient. Values <= 0 skip the blur.
	BlurSigma float64 `json:"blur_sigma"`

	// EdgeBoost scales the gradient magnitude before clamping to 255.
	EdgeBoost float64 `json:"edge_boost"`
}

// DefaultEdgeConfig returns sigma 0.8 and a boost of 1.0.
func DefaultEdgeConfig() EdgeConfig {
	return EdgeConfig{BlurSigma: 0.8, EdgeBoost: 1.0}
}

// Validate checks BlurSigma >= 0 and EdgeBoost > 0.
func (c EdgeConfig) Validate() error {
	if c.BlurSigma < 0 || math.IsNaN(c.BlurSigma) || math.IsInf(c.BlurSigma, 0) {
		return fmt.Errorf("blur sigma must be a finite value >= 0, got %v", c.BlurSigma)
	}
	if !(c.EdgeBoost > 0) || math.IsInf(c.EdgeBoost, 0) {
		return fmt.Errorf("edge boost must be a finite value > 0, got %v", c.EdgeBoost)
	}
	return nil
}

// EdgeResult is the outcome of DetectEdges.
type EdgeResult struct {
	// Image is the raster to trace: the Sobel output, or Normalize's output
	// when Fallback is set.
	Image image.Image

	// Fallback reports that the edge raster was discarded.
	Fallback bool

	// Reason explains a fallback ("flat", "too_small" or "error").
	Reason string

	// Stats are the sampled statistics of the edge raster. Zero when the
	// edge raster was never produced.
	Stats FlatStats
}

// DetectEdges computes a gradient-magnitude raster where strong edges are dark
// and flat regions are near white.
//
// # Algorithm
//
//  1. Orientation, soft downscale, white flatten and grayscale, as Normalize
//     does, but without the contrast stretch
//  2. Gaussian blur with cfg.BlurSigma (skipped when <= 0)
//  3. Sobel gradient on every interior pixel:
//     m = sqrt(Gx² + Gy²) * cfg.EdgeBoost, clamped to 255, output = 255 - m.
//     Border rows and columns stay at 255.
//  4. Degeneracy check on a strided sample of the output. A flat result
//     would trace to an empty or fully filled drawing, so it is replaced
//     by Normalize(img, o).
//
// Rasters that collapse to 1 pixel wide or high take the same fallback.
// Rows are convolved in parallel; each output pixel only reads the blurred
// input, so the result does not depend on scheduling.
func (p *Preprocessor) DetectEdges(img image.Image, o Orientation, cfg EdgeConfig) *EdgeResult {
	var edges *image.Gray
	_, err := safely(func() (image.Image, error) {
		var err error
		edges, err = p.edges(img, o, cfg)
		return edges, err
	})
	if err != nil {
		reason := "error"
		if errors.Is(err, errTooSmall) {
			reason = "too_small"
		} else {
			p.log.WithError(err).WithField("stage", "edges").Warn("edge prepass failed, using normalized raster")
		}
		return &EdgeResult{Image: p.Normalize(img, o), Fallback: true, Reason: reason}
	}

	stats := SampleFlatness(edges.Pix, p.flat.SampleStep)
	if p.flat.IsFlat(stats) {
		p.log.WithFields(logrus.Fields{
			"min":      stats.Min,
			"max":      stats.Max,
			"mean":     stats.Mean,
			"variance": stats.Variance,
		}).Debug("edge raster is flat, using normalized raster")
		return &EdgeResult{Image: p.Normalize(img, o), Fallback: true, Reason: "flat", Stats: stats}
	}

	p.log.WithFields(logFields(edges)).Debug("edge raster ready")
	return &EdgeResult{Image: edges, Stats: stats}
}

func (p *Preprocessor) edges(img image.Image, o Orientation, cfg EdgeConfig) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errEmptyRaster
	}
	if cfg.EdgeBoost <= 0 {
		cfg.EdgeBoost = DefaultEdgeConfig().EdgeBoost
	}

	gray := imaging.Grayscale(flatten(p.orient(img, o)))
	if cfg.BlurSigma > 0 {
		gray = imaging.Blur(gray, cfg.BlurSigma)
	}
	src := grayFromNRGBA(gray)

	b := src.Bounds()
	if b.Dx() <= 1 || b.Dy() <= 1 {
		return nil, errTooSmall
	}
	return sobel(src, cfg.EdgeBoost), nil
}

// sobel applies the gradient kernels to src. src must be anchored at (0,0).
func sobel(src *image.Gray, boost float64) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for i := range dst.Pix {
		dst.Pix[i] = edgeBackground
	}
	if w < 3 || h < 3 {
		return dst
	}

	// Interior rows 1..h-2 are split across workers.
	parallel.Line(h-2, func(start, end int) {
		for y := start + 1; y < end+1; y++ {
			for x := 1; x < w-1; x++ {
				var gx, gy, n int
				for j := -1; j <= 1; j++ {
					row := (y+j)*src.Stride + x
					for i := -1; i <= 1; i++ {
						v := int(src.Pix[row+i])
						gx += v * sobelX[n]
						gy += v * sobelY[n]
						n++
					}
				}
				m := math.Sqrt(float64(gx*gx+gy*gy)) * boost
				if m > 255 {
					m = 255
				}
				dst.Pix[y*dst.Stride+x] = uint8(255 - m)
			}
		}
	})
	return dst
}
