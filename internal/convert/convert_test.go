package convert

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/vectorize-mcp/internal/imaging"
	"github.com/ironsheep/vectorize-mcp/internal/trace"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// sizeTracer echoes the raster size back as a potrace-style document.
func sizeTracer(calls *int) trace.Tracer {
	return trace.TracerFunc(func(_ context.Context, img image.Image, _ trace.Params) (string, error) {
		if calls != nil {
			*calls++
		}
		b := img.Bounds()
		return fmt.Sprintf(`<?xml version="1.0" standalone="no"?>
<svg version="1.0" xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">
<rect x="0" y="0" width="%d" height="%d" fill="#fff"/>
<path d="M0 0L1 1"/>
</svg>`, b.Dx(), b.Dy(), b.Dx(), b.Dy()), nil
	})
}

func newTestService(tr trace.Tracer) *Service {
	return NewService(Config{}, tr, quietLogger())
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uniformPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return encodePNG(t, img)
}

// pngHeader returns a PNG signature and IHDR chunk announcing w x h with no
// pixel data behind it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestConvert_UniformWhiteEdgeFallsBack(t *testing.T) {
	calls := 0
	svc := newTestService(sizeTracer(&calls))

	req := NewRequest(uniformPNG(t, 500, 500, color.White), "image/png")
	req.Preprocess = PreprocessEdge
	req.Edge = &imaging.EdgeConfig{BlurSigma: 0.8, EdgeBoost: 1.0}

	res, err := svc.Convert(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.True(t, res.EdgeFallback)
	assert.Equal(t, 500, res.Width)
	assert.Equal(t, 500, res.Height)
	assert.Contains(t, res.SVG, `viewBox="0 0 500 500"`)
	assert.NotContains(t, res.SVG, "<?xml")
	assert.NotContains(t, res.SVG, "<rect")
	assert.Contains(t, res.SVG, `<path d="M0 0L1 1" fill="#000000"/>`)
}

func TestConvert_OpaqueBackgroundAndColor(t *testing.T) {
	svc := newTestService(sizeTracer(nil))

	req := NewRequest(uniformPNG(t, 40, 30, color.Black), "image/png")
	req.Params.LineColor = "#0EA5E9"
	req.Background = Background{Transparent: false, Color: "#FFF"}

	res, err := svc.Convert(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(res.SVG, "<rect"))
	assert.Contains(t, res.SVG, `<rect x="0" y="0" width="40" height="30" fill="#ffffff"/>`)
	assert.Contains(t, res.SVG, `fill="#0ea5e9"`)
	assert.False(t, res.EdgeFallback)
}

func TestConvert_PassesParamsToTracer(t *testing.T) {
	var got trace.Params
	var gotBounds image.Rectangle
	svc := newTestService(trace.TracerFunc(func(_ context.Context, img image.Image, p trace.Params) (string, error) {
		got = p
		gotBounds = img.Bounds()
		return `<path d="M0 0"/>`, nil
	}))

	req := NewRequest(uniformPNG(t, 12, 8, color.Gray{Y: 90}), "image/png")
	req.Params.Threshold = 128
	req.Params.Invert = true
	req.Params.TurnPolicy = trace.TurnBlack

	res, err := svc.Convert(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 128, got.Threshold)
	assert.True(t, got.Invert)
	assert.Equal(t, trace.TurnBlack, got.TurnPolicy)
	assert.Equal(t, image.Rect(0, 0, 12, 8), gotBounds)

	// A bare fragment is wrapped in the default canvas.
	assert.Equal(t, 1024, res.Width)
	assert.Contains(t, res.SVG, `<path d="M0 0" fill="#000000"/>`)
}

func TestConvert_Rejections(t *testing.T) {
	smallPNG := uniformPNG(t, 4, 4, color.White)

	tests := []struct {
		name       string
		cfg        Config
		req        func() Request
		wantStatus int
		wantMsg    []string
	}{
		{
			name:       "no file",
			req:        func() Request { return NewRequest(nil, "image/png") },
			wantStatus: http.StatusBadRequest,
			wantMsg:    []string{"No file uploaded."},
		},
		{
			name:       "wrong type",
			req:        func() Request { return NewRequest(smallPNG, "image/gif") },
			wantStatus: http.StatusUnsupportedMediaType,
			wantMsg:    []string{"Only PNG or JPEG images are allowed."},
		},
		{
			name:       "upload too large",
			cfg:        Config{Limits: imaging.Limits{MaxUploadBytes: 1 << 20}},
			req:        func() Request { return NewRequest(make([]byte, 1<<20+1), "image/png") },
			wantStatus: http.StatusRequestEntityTooLarge,
			wantMsg:    []string{"File too large. Max 1 MB per image."},
		},
		{
			name:       "dimensions too large",
			req:        func() Request { return NewRequest(pngHeader(13000, 8000), "image/png") },
			wantStatus: http.StatusRequestEntityTooLarge,
			wantMsg:    []string{"13000×8000", "~104.0 MP", "12000px"},
		},
		{
			name: "bad color",
			req: func() Request {
				r := NewRequest(smallPNG, "image/png")
				r.Params.LineColor = "blue-ish"
				return r
			},
			wantStatus: http.StatusBadRequest,
			wantMsg:    []string{"Invalid color"},
		},
		{
			name: "bad background color",
			req: func() Request {
				r := NewRequest(smallPNG, "image/png")
				r.Background = Background{Color: "#12"}
				return r
			},
			wantStatus: http.StatusBadRequest,
			wantMsg:    []string{"Invalid color"},
		},
		{
			name: "bad threshold",
			req: func() Request {
				r := NewRequest(smallPNG, "image/png")
				r.Params.Threshold = 300
				return r
			},
			wantStatus: http.StatusBadRequest,
			wantMsg:    []string{"threshold"},
		},
		{
			name: "bad preprocess",
			req: func() Request {
				r := NewRequest(smallPNG, "image/png")
				r.Preprocess = "sketch"
				return r
			},
			wantStatus: http.StatusBadRequest,
			wantMsg:    []string{"preprocess"},
		},
		{
			name: "bad edge settings",
			req: func() Request {
				r := NewRequest(smallPNG, "image/png")
				r.Preprocess = PreprocessEdge
				r.Edge = &imaging.EdgeConfig{BlurSigma: 1, EdgeBoost: 0}
				return r
			},
			wantStatus: http.StatusBadRequest,
			wantMsg:    []string{"edge boost"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			svc := NewService(tt.cfg, sizeTracer(&calls), quietLogger())

			res, err := svc.Convert(context.Background(), tt.req())
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Zero(t, calls, "tracer must not run for rejected input")

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %T: %v", err, err)
			assert.Equal(t, tt.wantStatus, ve.Status)
			assert.Equal(t, tt.wantStatus, Status(err))
			for _, m := range tt.wantMsg {
				assert.Contains(t, ve.Message, m)
			}
		})
	}
}

func TestConvert_DecodeFailure(t *testing.T) {
	calls := 0
	svc := newTestService(sizeTracer(&calls))

	// A valid header with no pixel data passes the guard but cannot decode.
	_, err := svc.Convert(context.Background(), NewRequest(pngHeader(10, 10), "image/png"))

	var ce *ConversionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "decode", ce.Op)
	assert.Equal(t, http.StatusInternalServerError, Status(err))
	assert.Zero(t, calls)
}

func TestConvert_UnreadableHeaderIsSoft(t *testing.T) {
	svc := newTestService(sizeTracer(nil))

	// The probe fails, which is not a validation error by itself; the
	// decoder then reports the real problem.
	_, err := svc.Convert(context.Background(), NewRequest([]byte("definitely not an image"), "image/png"))

	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
	var ce *ConversionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "decode", ce.Op)
}

func TestConvert_TraceFailure(t *testing.T) {
	cause := errors.New("potrace exploded")
	svc := newTestService(trace.TracerFunc(func(context.Context, image.Image, trace.Params) (string, error) {
		return "", cause
	}))

	res, err := svc.Convert(context.Background(), NewRequest(uniformPNG(t, 8, 8, color.White), "image/png"))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, cause)

	var ce *ConversionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "trace", ce.Op)
	assert.Equal(t, http.StatusInternalServerError, Status(err))
}

func TestConvert_Canceled(t *testing.T) {
	calls := 0
	svc := newTestService(sizeTracer(&calls))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Convert(ctx, NewRequest(uniformPNG(t, 8, 8, color.White), "image/png"))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestConvert_TraceTimeout(t *testing.T) {
	blocking := trace.TracerFunc(func(ctx context.Context, _ image.Image, _ trace.Params) (string, error) {
		<-ctx.Done()
		return "<svg/>", nil
	})
	svc := NewService(Config{TraceTimeout: 20 * time.Millisecond}, blocking, quietLogger())

	res, err := svc.Convert(context.Background(), NewRequest(uniformPNG(t, 8, 8, color.White), "image/png"))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, http.StatusGatewayTimeout, Status(err))
}

func TestPrepare(t *testing.T) {
	svc := newTestService(sizeTracer(nil))

	req := NewRequest(uniformPNG(t, 20, 10, color.White), "image/png")
	prep, err := svc.Prepare(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, prep.Probe)
	assert.Equal(t, 20, prep.Probe.Width)
	assert.Equal(t, "png", prep.Probe.Format)
	assert.Nil(t, prep.Edge)
	assert.Equal(t, image.Rect(0, 0, 20, 10), prep.Image.Bounds())

	req.Preprocess = PreprocessEdge
	prep, err = svc.Prepare(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, prep.Edge)
	assert.True(t, prep.Edge.Fallback)
	assert.Equal(t, "flat", prep.Edge.Reason)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"#000000", "#000000", false},
		{"#0EA5E9", "#0ea5e9", false},
		{" #fff ", "#ffffff", false},
		{"#abc", "#aabbcc", false},
		{"white", "", true},
		{"#12345", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				var ve *ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, http.StatusBadRequest, ve.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePreprocess(t *testing.T) {
	p, err := ParsePreprocess("")
	require.NoError(t, err)
	assert.Equal(t, PreprocessNone, p)

	p, err = ParsePreprocess(" EDGE ")
	require.NoError(t, err)
	assert.Equal(t, PreprocessEdge, p)

	_, err = ParsePreprocess("blur")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, Status(nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, Status(&ValidationError{Status: 413}))
	assert.Equal(t, http.StatusGatewayTimeout, Status(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, StatusClientClosedRequest, Status(context.Canceled))
	assert.Equal(t, http.StatusInternalServerError, Status(errors.New("boom")))
}
