package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestDecodeFormats(t *testing.T) {
	img, format, err := Decode(encodePNG(t, solidImage(80, 60)))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 80, img.Bounds().Dx())

	_, format, err = Decode(encodeJPEG(t, solidImage(80, 60)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode([]byte("definitely not an image"))
	require.Error(t, err)
}

func TestTooSmall(t *testing.T) {
	assert.True(t, TooSmall(solidImage(30, 30)))
	// One adequate side is enough.
	assert.False(t, TooSmall(solidImage(30, 200)))
	assert.False(t, TooSmall(solidImage(100, 100)))
}

func TestPadProducesCardAspect(t *testing.T) {
	out, contentType, err := Pad(solidImage(300, 300), "png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)

	padded, _, err := Decode(out)
	require.NoError(t, err)
	b := padded.Bounds()
	// Square input grows horizontally to 3:2.
	assert.Equal(t, 450, b.Dx())
	assert.Equal(t, 300, b.Dy())
}

func TestPadGrowsShortSideForWideInput(t *testing.T) {
	out, _, err := Pad(solidImage(600, 100), "png")
	require.NoError(t, err)

	padded, _, err := Decode(out)
	require.NoError(t, err)
	b := padded.Bounds()
	assert.Equal(t, 600, b.Dx())
	assert.Equal(t, 400, b.Dy())
}

func TestPadDownscalesOversizedInput(t *testing.T) {
	out, _, err := Pad(solidImage(2400, 1200), "png")
	require.NoError(t, err)

	padded, _, err := Decode(out)
	require.NoError(t, err)
	b := padded.Bounds()
	assert.LessOrEqual(t, b.Dx(), maxImageSide*padAspectW/padAspectH)
	assert.LessOrEqual(t, b.Dy(), maxImageSide)
}

func TestPadKeepsJPEG(t *testing.T) {
	_, contentType, err := Pad(solidImage(300, 200), "jpeg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestPadFillsWithWhite(t *testing.T) {
	out, _, err := Pad(solidImage(300, 300), "png")
	require.NoError(t, err)

	padded, _, err := Decode(out)
	require.NoError(t, err)
	// The leftmost column is padding, not image.
	r, g, b, _ := padded.At(0, 150).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)
}
