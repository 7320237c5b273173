package imaging

import (
	"fmt"
	"strings"
)

// Default ceilings applied when a Limits field is left at zero.
const (
	DefaultMaxUploadBytes int64   = 200 * 1024 * 1024
	DefaultMaxMegapixels  float64 = 80
	DefaultMaxSide                = 12000
	DefaultWorkingSize            = 4000
)

// DefaultAllowedMIME is the set of upload types the pipeline accepts.
var DefaultAllowedMIME = []string{"image/png", "image/jpeg"}

// Limits bounds the work a single conversion may cause.
type Limits struct {
	// MaxUploadBytes is the largest accepted upload, in bytes.
	MaxUploadBytes int64

	// MaxMegapixels caps width*height/1e6 of the decoded image.
	MaxMegapixels float64

	// MaxSide caps both width and height, in pixels.
	MaxSide int

	// AllowedMIME lists accepted content types (compared case-insensitively).
	AllowedMIME []string

	// WorkingSize is the bounding box images are shrunk into when they still
	// exceed MaxSide or MaxMegapixels at preprocessing time.
	WorkingSize int
}

// DefaultLimits returns the stock ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxUploadBytes: DefaultMaxUploadBytes,
		MaxMegapixels:  DefaultMaxMegapixels,
		MaxSide:        DefaultMaxSide,
		AllowedMIME:    append([]string(nil), DefaultAllowedMIME...),
		WorkingSize:    DefaultWorkingSize,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxUploadBytes <= 0 {
		l.MaxUploadBytes = d.MaxUploadBytes
	}
	if l.MaxMegapixels <= 0 {
		l.MaxMegapixels = d.MaxMegapixels
	}
	if l.MaxSide <= 0 {
		l.MaxSide = d.MaxSide
	}
	if len(l.AllowedMIME) == 0 {
		l.AllowedMIME = d.AllowedMIME
	}
	if l.WorkingSize <= 0 {
		l.WorkingSize = d.WorkingSize
	}
	return l
}

// LimitReason classifies a guard rejection.
type LimitReason int

const (
	// ReasonUnsupportedType means the MIME type is not in the allowed set.
	ReasonUnsupportedType LimitReason = iota + 1
	// ReasonUploadTooLarge means the byte length exceeds MaxUploadBytes.
	ReasonUploadTooLarge
	// ReasonUnreadableDimensions means width or height probed as zero.
	ReasonUnreadableDimensions
	// ReasonDimensionsTooLarge means a side or the megapixel count is over the limit.
	ReasonDimensionsTooLarge
)

func (r LimitReason) String() string {
	switch r {
	case ReasonUnsupportedType:
		return "unsupported_type"
	case ReasonUploadTooLarge:
		return "upload_too_large"
	case ReasonUnreadableDimensions:
		return "unreadable_dimensions"
	case ReasonDimensionsTooLarge:
		return "dimensions_too_large"
	default:
		return "unknown"
	}
}

// LimitError is returned by Guard when an input is rejected. Message is meant
// for end users and embeds the measured values.
type LimitError struct {
	Reason  LimitReason
	Message string
}

func (e *LimitError) Error() string {
	return e.Message
}

// Guard validates uploads against Limits before any pixel data is decoded.
type Guard struct {
	limits Limits
}

// NewGuard creates a guard. Zero-valued fields of limits fall back to the defaults.
func NewGuard(limits Limits) *Guard {
	return &Guard{limits: limits.withDefaults()}
}

// Limits returns the effective limits, defaults included.
func (g *Guard) Limits() Limits {
	return g.limits
}

// Check runs every rule: MIME type, upload size, then dimensions.
func (g *Guard) Check(byteLength int64, mimeType string, width, height int) error {
	if err := g.CheckUpload(byteLength, mimeType); err != nil {
		return err
	}
	return g.CheckDimensions(width, height)
}

// CheckUpload validates the type and byte length of an upload.
func (g *Guard) CheckUpload(byteLength int64, mimeType string) error {
	if !g.allowed(mimeType) {
		return &LimitError{
			Reason:  ReasonUnsupportedType,
			Message: "Only PNG or JPEG images are allowed.",
		}
	}
	if byteLength > g.limits.MaxUploadBytes {
		return g.TooLarge()
	}
	return nil
}

// TooLarge returns the upload size rejection. Transports that stop reading a
// body at the limit report it without knowing the full length.
func (g *Guard) TooLarge() *LimitError {
	return &LimitError{
		Reason:  ReasonUploadTooLarge,
		Message: fmt.Sprintf("File too large. Max %d MB per image.", g.limits.MaxUploadBytes/(1024*1024)),
	}
}

// CheckDimensions validates probed pixel dimensions.
func (g *Guard) CheckDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return &LimitError{
			Reason:  ReasonUnreadableDimensions,
			Message: "Could not read image dimensions. Try a different file.",
		}
	}
	if g.Exceeds(width, height) {
		return &LimitError{
			Reason: ReasonDimensionsTooLarge,
			Message: fmt.Sprintf("Image too large: %d×%d (~%.1f MP). Max %dpx per side or %g MP.",
				width, height, Megapixels(width, height), g.limits.MaxSide, g.limits.MaxMegapixels),
		}
	}
	return nil
}

// Exceeds reports whether width x height breaks the side or megapixel ceiling.
func (g *Guard) Exceeds(width, height int) bool {
	return width > g.limits.MaxSide || height > g.limits.MaxSide ||
		Megapixels(width, height) > g.limits.MaxMegapixels
}

func (g *Guard) allowed(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	for _, a := range g.limits.AllowedMIME {
		if strings.EqualFold(a, mt) {
			return true
		}
	}
	return false
}

// Megapixels returns width*height/1e6.
func Megapixels(width, height int) float64 {
	return float64(width) * float64(height) / 1e6
}
