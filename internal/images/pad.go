package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
)

const (
	// minImageSide rejects tracking pixels and thumbnails: an image with all
	// sides below this is unusable as a cover.
	minImageSide = 50

	// maxImageSide bounds the padded output; larger sources are downscaled
	// before compositing.
	maxImageSide = 1168

	// padAspectW/padAspectH define the fixed canvas aspect for article cards.
	padAspectW = 3
	padAspectH = 2
)

// Decode parses image bytes into an image.Image. Decoder panics on malformed
// input are converted into errors so a bad image never takes down the run.
func Decode(data []byte) (img image.Image, format string, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, format, err = nil, "", fmt.Errorf("images: decoder panic: %v", r)
		}
	}()
	img, format, err = image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("images: decode: %w", err)
	}
	return img, format, nil
}

// TooSmall reports whether every side of the image is below the minimum cover
// size.
func TooSmall(img image.Image) bool {
	b := img.Bounds()
	return b.Dx() < minImageSide && b.Dy() < minImageSide
}

// Pad composites the image centered on a white canvas with the fixed card
// aspect, downscaling oversized sources first, and re-encodes it. JPEG sources
// stay JPEG; everything else becomes PNG.
func Pad(img image.Image, format string) ([]byte, string, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if w > maxImageSide || h > maxImageSide {
		img = resize.Thumbnail(maxImageSide, maxImageSide, img, resize.Lanczos3)
		b = img.Bounds()
		w, h = b.Dx(), b.Dy()
	}

	// Grow the short dimension until the canvas hits the target aspect.
	canvasW, canvasH := w, h
	if w*padAspectH >= h*padAspectW {
		canvasH = w * padAspectH / padAspectW
	} else {
		canvasW = h * padAspectW / padAspectH
	}

	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	offset := image.Pt((canvasW-w)/2, (canvasH-h)/2)
	draw.Draw(canvas, image.Rectangle{Min: offset, Max: offset.Add(image.Pt(w, h))}, img, b.Min, draw.Over)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 85}); err != nil {
			return nil, "", fmt.Errorf("images: encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	default:
		if err := png.Encode(&buf, canvas); err != nil {
			return nil, "", fmt.Errorf("images: encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	}
}
