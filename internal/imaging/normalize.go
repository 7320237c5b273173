package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/histogram"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// Normalize produces the canonical grayscale raster fed to the tracer when no
// edge preprocessing is requested.
//
// Steps, in order:
//
//  1. EXIF orientation correction
//  2. Soft downscale into the working size if the image still exceeds the
//     limits (aspect ratio preserved, resampled in linear light)
//  3. Flatten onto opaque white, dropping the alpha channel
//  4. Luminance conversion (ITU-R BT.601 weights)
//  5. Percentile contrast stretch to the full 0-255 range
//
// Normalize fails soft: if any step cannot complete, img is returned unchanged.
// The result is otherwise always an *image.Gray anchored at (0,0).
func (p *Preprocessor) Normalize(img image.Image, o Orientation) image.Image {
	out, err := safely(func() (image.Image, error) {
		return p.normalize(img, o)
	})
	if err != nil {
		p.log.WithError(err).WithField("stage", "normalize").
			Warn("normalization failed, passing original raster through")
		return img
	}
	return out
}

func (p *Preprocessor) normalize(img image.Image, o Orientation) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errEmptyRaster
	}
	gray := flattenGray(p.orient(img, o))
	return stretchContrast(gray, p.norm.StretchLow, p.norm.StretchHigh), nil
}

// flatten composites img over opaque white. The result has no transparency.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// flattenGray flattens img and converts it to a single-channel raster.
func flattenGray(img image.Image) *image.Gray {
	return grayFromNRGBA(imaging.Grayscale(flatten(img)))
}

// grayFromNRGBA copies the red channel of an already-desaturated image into a
// one byte per pixel buffer.
func grayFromNRGBA(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * dst.Stride
		for x := 0; x < w; x++ {
			dst.Pix[di+x] = src.Pix[si+x*4]
		}
	}
	return dst
}

// fitGammaCorrect shrinks img to fit within size x size. With gamma > 0 the
// resampling happens on linearized values so dark lines do not wash out.
func fitGammaCorrect(img image.Image, size int, gamma float64) image.Image {
	if gamma <= 0 || gamma == 1 {
		return imaging.Fit(img, size, size, imaging.Lanczos)
	}
	linear := imaging.AdjustGamma(img, 1/gamma)
	return imaging.AdjustGamma(imaging.Fit(linear, size, size, imaging.Lanczos), gamma)
}

// stretchContrast maps the low/high percentile levels of gray to 0 and 255.
// A raster whose percentiles coincide (a uniform image) is returned as-is.
func stretchContrast(gray *image.Gray, lowPct, highPct float64) *image.Gray {
	hist := histogram.NewRGBAHistogram(gray)
	bins := hist.R.Bins

	total := 0
	for _, n := range bins {
		total += n
	}
	if total == 0 {
		return gray
	}

	lo := percentileLevel(bins, total, lowPct)
	hi := percentileLevel(bins, total, highPct)
	if hi <= lo {
		return gray
	}

	var lut [256]uint8
	scale := 255 / float64(hi-lo)
	for v := 0; v < 256; v++ {
		switch {
		case v <= lo:
			lut[v] = 0
		case v >= hi:
			lut[v] = 255
		default:
			lut[v] = uint8(math.Round(float64(v-lo) * scale))
		}
	}

	out := image.NewGray(gray.Rect)
	for i, v := range gray.Pix {
		out.Pix[i] = lut[v]
	}
	return out
}

// percentileLevel returns the smallest level whose cumulative count reaches
// pct percent of total.
func percentileLevel(bins []int, total int, pct float64) int {
	target := int(math.Ceil(float64(total) * pct / 100))
	if target < 1 {
		target = 1
	}
	cum := 0
	for level, n := range bins {
		cum += n
		if cum >= target {
			return level
		}
	}
	return len(bins) - 1
}

// logFields summarizes a raster for debug logs.
func logFields(img image.Image) logrus.Fields {
	b := img.Bounds()
	return logrus.Fields{"width": b.Dx(), "height": b.Dy()}
}
