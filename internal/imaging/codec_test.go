package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe_PNG(t *testing.T) {
	data := encodeTestPNG(t, createInMemoryImage(64, 32, color.White))

	res, err := Probe(data)
	require.NoError(t, err)
	assert.Equal(t, 64, res.Width)
	assert.Equal(t, 32, res.Height)
	assert.Equal(t, "png", res.Format)
	assert.InDelta(t, 0.002048, res.Megapixels, 1e-9)
}

func TestProbe_JPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, createInMemoryImage(40, 30, color.Gray{Y: 90}), nil))

	res, err := Probe(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 30, res.Height)
	assert.Equal(t, "jpeg", res.Format)
}

func TestProbe_ColorModel(t *testing.T) {
	translucent := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	translucent.Set(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

	gray16 := image.NewGray16(image.Rect(0, 0, 4, 4))
	gray16.SetGray16(0, 0, color.Gray16{Y: 0x1234})

	palette := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{
		color.NRGBA{A: 0},
		color.NRGBA{R: 255, A: 255},
	})

	tests := []struct {
		name      string
		img       image.Image
		wantDepth string
		wantAlpha bool
	}{
		{"opaque rgb", createInMemoryImage(4, 4, color.White), "8-bit", false},
		{"translucent", translucent, "8-bit", true},
		{"gray16", gray16, "16-bit", false},
		{"palette with transparent entry", palette, "8-bit", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Probe(encodeTestPNG(t, tt.img))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDepth, res.ColorDepth)
			assert.Equal(t, tt.wantAlpha, res.HasAlpha)
		})
	}
}

func TestProbe_HeaderOnly(t *testing.T) {
	// A 13000x8000 header with no pixel data: the probe must answer from
	// the header alone and the guard must reject it.
	res, err := Probe(pngHeader(13000, 8000))
	require.NoError(t, err)
	assert.Equal(t, 13000, res.Width)
	assert.Equal(t, 8000, res.Height)

	err = NewGuard(DefaultLimits()).CheckDimensions(res.Width, res.Height)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "13000×8000")

	_, _, err = Decode(pngHeader(13000, 8000))
	assert.Error(t, err, "full decode of a header-only file should fail")
}

func TestProbe_Errors(t *testing.T) {
	_, err := Probe(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Probe([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	src := createCheckerboard(20, 10, 5)

	img, o, err := Decode(encodeTestPNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, OrientationNormal, o)
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())

	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{r, g, b})
}

func TestDecode_Errors(t *testing.T) {
	_, _, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, _, err = Decode([]byte{0x89, 'P', 'N', 'G'})
	assert.Error(t, err)
}

func TestEncodePNG_RoundTrip(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 2))
	copy(src.Pix, []uint8{0, 50, 100, 150, 200, 250})

	data, err := EncodePNG(src)
	require.NoError(t, err)

	img, _, err := Decode(data)
	require.NoError(t, err)
	for i, want := range src.Pix {
		x, y := i%3, i/3
		got := color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
		assert.Equal(t, want, got, "pixel (%d,%d)", x, y)
	}
}

func TestOrientation_Apply(t *testing.T) {
	src := createInMemoryImage(20, 10, color.White)
	src.Set(0, 0, color.Black)

	tests := []struct {
		o          Orientation
		wantBounds image.Rectangle
	}{
		{OrientationNormal, image.Rect(0, 0, 20, 10)},
		{OrientationFlipH, image.Rect(0, 0, 20, 10)},
		{OrientationRotate180, image.Rect(0, 0, 20, 10)},
		{OrientationFlipV, image.Rect(0, 0, 20, 10)},
		{OrientationTranspose, image.Rect(0, 0, 10, 20)},
		{OrientationRotate270, image.Rect(0, 0, 10, 20)},
		{OrientationTransverse, image.Rect(0, 0, 10, 20)},
		{OrientationRotate90, image.Rect(0, 0, 10, 20)},
		{Orientation(42), image.Rect(0, 0, 20, 10)},
	}

	for _, tt := range tests {
		out := tt.o.Apply(src)
		assert.Equal(t, tt.wantBounds, out.Bounds(), "orientation %d", tt.o)
	}

	// FlipH moves the marker from the top-left to the top-right corner.
	flipped := OrientationFlipH.Apply(src)
	r, _, _, _ := flipped.At(19, 0).RGBA()
	assert.Equal(t, uint32(0), r)
}

func TestOrientation_Valid(t *testing.T) {
	assert.True(t, OrientationNormal.Valid())
	assert.True(t, OrientationRotate90.Valid())
	assert.False(t, Orientation(0).Valid())
	assert.False(t, Orientation(9).Valid())
}
