// Package tesseract recognizes text locally through the gosseract bindings.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/example/idcard-check/internal/imaging"
)

// maxSide bounds the image handed to Tesseract; phone photos are far larger
// than OCR needs.
const maxSide = 2000

// Recognizer implements detection.TextRecognizer with Tesseract.
type Recognizer struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewRecognizer builds a recognizer for the given Tesseract languages
// (for example "eng" or "rus").
func NewRecognizer(languages ...string) *Recognizer {
	return &Recognizer{
		languages:     append([]string(nil), languages...),
		clientFactory: gosseract.NewClient,
	}
}

// Recognize returns the full text found in img. A fresh client is used per
// call because gosseract clients are not safe for concurrent use.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := imaging.EncodePNG(imaging.FitWithin(img, maxSide))
	if err != nil {
		return "", err
	}

	c := r.clientFactory()
	defer c.Close()

	if len(r.languages) > 0 {
		if err := c.SetLanguage(r.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("set page segmentation: %w", err)
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
