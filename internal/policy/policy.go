// Package policy decides whether a captured image shows what its side
// promises.
package policy

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/example/idcard-check/internal/detection"
	"github.com/example/idcard-check/internal/document"
)

var (
	// DefaultFrontKeywords must all appear on the front of a Tajik ID card.
	DefaultFrontKeywords = []string{"identity card", "republic of tajikistan", "id no"}
	// DefaultBackKeywords must all appear on the back of the card.
	DefaultBackKeywords = []string{"address", "idtjk"}
)

// Detector is the subset of the detection gateway the policy relies on.
type Detector interface {
	DetectFaces(ctx context.Context, img image.Image) []detection.Face
	RecognizeText(ctx context.Context, img image.Image, keywords []string) bool
}

// Keywords holds the text each document side must carry.
type Keywords struct {
	Front []string
	Back  []string
}

// DefaultKeywords returns the built-in keyword sets.
func DefaultKeywords() Keywords {
	return Keywords{
		Front: append([]string(nil), DefaultFrontKeywords...),
		Back:  append([]string(nil), DefaultBackKeywords...),
	}
}

// Policy maps a side and an image to a verdict.
type Policy struct {
	detector Detector
	keywords Keywords
	logger   *zap.Logger
}

// New constructs a policy. Empty keyword sets fall back to the defaults.
func New(detector Detector, keywords Keywords, logger *zap.Logger) *Policy {
	if len(keywords.Front) == 0 {
		keywords.Front = DefaultFrontKeywords
	}
	if len(keywords.Back) == 0 {
		keywords.Back = DefaultBackKeywords
	}
	return &Policy{detector: detector, keywords: keywords, logger: logger.Named("validation_policy")}
}

// Evaluate runs the rules for side against img.
//
// FRONT needs at least one face and every front keyword; text recognition is
// skipped when no face is found. BACK needs every back keyword and never looks
// for faces. FACE needs more than one face.
func (p *Policy) Evaluate(ctx context.Context, side document.Side, img image.Image) (document.Result, error) {
	var result document.Result
	switch side {
	case document.Front:
		result = p.front(ctx, img)
	case document.Back:
		result = p.back(ctx, img)
	case document.Face:
		result = p.face(ctx, img)
	default:
		return document.Result{}, fmt.Errorf("%w: %q", document.ErrUnknownSide, side)
	}
	p.logger.Info("verdict",
		zap.String("side", side.String()),
		zap.String("verdict", string(result.Verdict)),
		zap.String("reason", string(result.Reason)),
	)
	return result, nil
}

func (p *Policy) front(ctx context.Context, img image.Image) document.Result {
	if len(p.detector.DetectFaces(ctx, img)) == 0 {
		return document.Reject(document.ReasonNoFace)
	}
	if !p.detector.RecognizeText(ctx, img, p.keywords.Front) {
		return document.Reject(document.ReasonTextNotFound)
	}
	return document.Accept(document.ReasonDocumentValid)
}

func (p *Policy) back(ctx context.Context, img image.Image) document.Result {
	if !p.detector.RecognizeText(ctx, img, p.keywords.Back) {
		return document.Reject(document.ReasonTextNotFound)
	}
	return document.Accept(document.ReasonDocumentValid)
}

// face requires more than one detected face.
func (p *Policy) face(ctx context.Context, img image.Image) document.Result {
	if len(p.detector.DetectFaces(ctx, img)) > 1 {
		return document.Accept(document.ReasonFaceDetected)
	}
	return document.Reject(document.ReasonNoFace)
}
