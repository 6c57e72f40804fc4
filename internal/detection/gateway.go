package detection

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/example/idcard-check/internal/imaging"
	"github.com/example/idcard-check/internal/logging"
)

// Gateway runs detections against the configured providers.
type Gateway struct {
	faces       FaceDetector
	text        TextRecognizer
	faceOptions Options
	rotations   []int
	timeout     time.Duration
	logger      *zap.Logger
}

// GatewayOption customises a Gateway.
type GatewayOption func(*Gateway)

// WithFaceOptions sets the face detector preset.
func WithFaceOptions(opts Options) GatewayOption {
	return func(g *Gateway) { g.faceOptions = opts }
}

// WithRotations overrides the orientations tried by RecognizeText. An empty
// list disables the retry and only tries the image as captured.
func WithRotations(degrees ...int) GatewayOption {
	return func(g *Gateway) {
		if len(degrees) == 0 {
			g.rotations = []int{0}
			return
		}
		g.rotations = append([]int(nil), degrees...)
	}
}

// WithTimeout bounds every provider call. Zero leaves calls bounded only by
// the caller's context.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// NewGateway constructs a gateway over the given providers.
func NewGateway(faces FaceDetector, text TextRecognizer, logger *zap.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		faces:       faces,
		text:        text,
		faceOptions: FastOptions,
		rotations:   imaging.Rotations,
		logger:      logger.Named("detection_gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DetectFaces returns the faces found in img. A detector error yields an
// empty list.
func (g *Gateway) DetectFaces(ctx context.Context, img image.Image) []Face {
	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	faces, err := g.faces.Detect(callCtx, img, g.faceOptions)
	if err != nil {
		logging.WithOperation(g.logger, "detection.detect_faces", "").
			Warn("face detection failed, treating as no faces", zap.Error(err))
		return []Face{}
	}
	g.logger.Debug("faces detected", zap.Int("count", len(faces)))
	return faces
}

// RecognizeText reports whether img carries every keyword. Each configured
// rotation is tried in order until one matches; a recognizer error at one
// rotation moves on to the next. The result is false only once every rotation
// has been tried.
func (g *Gateway) RecognizeText(ctx context.Context, img image.Image, keywords []string) bool {
	opLogger := logging.WithOperation(g.logger, "detection.recognize_text", "")
	for _, degrees := range g.rotations {
		if err := ctx.Err(); err != nil {
			opLogger.Warn("text recognition abandoned", zap.Error(err))
			return false
		}

		rotated, err := imaging.Rotate(img, degrees)
		if err != nil {
			opLogger.Warn("skipping rotation", zap.Int("degrees", degrees), zap.Error(err))
			continue
		}

		text, err := g.recognize(ctx, rotated)
		if err != nil {
			opLogger.Warn("text recognition failed", zap.Int("degrees", degrees), zap.Error(err))
			continue
		}

		if ContainsAll(text, keywords) {
			opLogger.Debug("keywords found", zap.Int("degrees", degrees))
			return true
		}
	}
	return false
}

func (g *Gateway) recognize(ctx context.Context, img image.Image) (string, error) {
	callCtx, cancel := g.callContext(ctx)
	defer cancel()
	return g.text.Recognize(callCtx, img)
}

func (g *Gateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}
