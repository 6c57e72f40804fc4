// Package imaging decodes captured photos and prepares them for the detectors.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned when there is nothing to decode.
var ErrEmptyImage = errors.New("empty image data")

// Rotations are the quarter turns, in degrees, tried by text recognition.
var Rotations = []int{0, 90, 180, 270}

// Decode decodes JPEG, PNG, GIF, BMP, TIFF or WebP data. EXIF orientation on
// JPEG is honoured so camera photos come out upright.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Rotate turns img clockwise by a multiple of 90 degrees. Other angles are
// rejected since the detectors only need quarter turns.
func Rotate(img image.Image, degrees int) (image.Image, error) {
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		return img, nil
	case 90:
		return imaging.Rotate270(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate90(img), nil
	default:
		return nil, fmt.Errorf("unsupported rotation %d", degrees)
	}
}

// FitWithin downscales img so neither side exceeds maxSide, keeping the aspect
// ratio. Images already small enough are returned unchanged.
func FitWithin(img image.Image, maxSide int) image.Image {
	if maxSide <= 0 {
		return img
	}
	bw, bh := img.Bounds().Dx(), img.Bounds().Dy()
	scale := math.Min(float64(maxSide)/float64(bw), float64(maxSide)/float64(bh))
	if scale >= 1.0 {
		return img
	}
	w := int(math.Max(1, math.Round(float64(bw)*scale)))
	h := int(math.Max(1, math.Round(float64(bh)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

// EncodePNG encodes img losslessly for engines that take encoded bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
