package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// ErrEmptyInput is returned when there are no bytes to decode.
var ErrEmptyInput = errors.New("empty image data")

// ProbeResult contains what can be learned from an image header alone.
type ProbeResult struct {
	// Width is the stored width in pixels (before EXIF orientation).
	Width int `json:"width"`

	// Height is the stored height in pixels (before EXIF orientation).
	Height int `json:"height"`

	// Format is the registered decoder name: "png" or "jpeg".
	Format string `json:"format"`

	// Megapixels is Width*Height/1e6.
	Megapixels float64 `json:"megapixels"`

	// ColorDepth is "8-bit" or "16-bit" per channel.
	ColorDepth string `json:"color_depth"`

	// HasAlpha reports whether the stored color model carries transparency.
	HasAlpha bool `json:"has_alpha"`
}

// Probe reads image dimensions from the header without decoding pixel data.
//
// This is the cheap metadata path the guard runs on: it allocates no pixel
// buffer, so hostile headers announcing huge images cost nothing to reject.
func Probe(data []byte) (*ProbeResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to probe image header: %w", err)
	}
	depth, alpha := describeModel(cfg.ColorModel)
	return &ProbeResult{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Format:     format,
		Megapixels: Megapixels(cfg.Width, cfg.Height),
		ColorDepth: depth,
		HasAlpha:   alpha,
	}, nil
}

// describeModel maps a decoder's color model to channel depth and alpha
// presence. Opaque truecolor PNG reports RGBAModel and JPEG reports
// YCbCr, Gray or CMYK, none of which carry alpha.
func describeModel(m color.Model) (depth string, alpha bool) {
	depth = "8-bit"
	switch m {
	case color.NRGBAModel:
		alpha = true
	case color.NRGBA64Model:
		depth, alpha = "16-bit", true
	case color.RGBA64Model, color.Gray16Model:
		depth = "16-bit"
	}
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				alpha = true
				break
			}
		}
	}
	return depth, alpha
}

// Decode fully decodes PNG or JPEG data and reports its EXIF orientation.
//
// The returned image is in stored orientation; callers apply the orientation
// through the Preprocessor. Images without EXIF data report OrientationNormal.
func Decode(data []byte) (image.Image, Orientation, error) {
	if len(data) == 0 {
		return nil, OrientationNormal, ErrEmptyInput
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, OrientationNormal, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, readOrientation(data), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// readOrientation extracts the EXIF orientation tag. Missing or malformed EXIF
// data is common (PNG never carries it here) and yields OrientationNormal.
func readOrientation(data []byte) Orientation {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return OrientationNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationNormal
	}
	v, err := tag.Int(0)
	if err != nil {
		return OrientationNormal
	}
	o := Orientation(v)
	if !o.Valid() {
		return OrientationNormal
	}
	return o
}
