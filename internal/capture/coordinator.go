package capture

import (
	"context"
	"image"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/idcard-check/internal/document"
	"github.com/example/idcard-check/internal/logging"
)

// Coordinator runs capture cycles. The side travels with each Request, so
// overlapping cycles never read each other's side; lastSide is kept only for
// reporting and is last-writer-wins.
type Coordinator struct {
	loader    Loader
	evaluator Evaluator
	notifier  Notifier
	renderer  Renderer
	logger    *zap.Logger

	mu       sync.Mutex
	lastSide document.Side
}

// NewCoordinator wires a coordinator.
func NewCoordinator(loader Loader, evaluator Evaluator, notifier Notifier, renderer Renderer, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		loader:    loader,
		evaluator: evaluator,
		notifier:  notifier,
		renderer:  renderer,
		logger:    logger.Named("capture_coordinator"),
	}
}

// Begin records side as selected and returns a new request for it.
func (c *Coordinator) Begin(side document.Side) (Request, error) {
	if !side.Valid() {
		return Request{}, document.ErrUnknownSide
	}
	c.mu.Lock()
	c.lastSide = side
	c.mu.Unlock()

	return Request{
		ID:            uuid.NewString(),
		Side:          side,
		DestinationID: side.DestinationID(),
	}, nil
}

// LastSide reports the most recently selected side.
func (c *Coordinator) LastSide() (document.Side, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSide, c.lastSide != ""
}

// SelectSide runs a whole cycle for side, asking provider for the photo.
func (c *Coordinator) SelectSide(ctx context.Context, side document.Side, provider Provider) (Outcome, error) {
	req, err := c.Begin(side)
	if err != nil {
		return Outcome{}, err
	}

	res, err := provider.RequestCapture(ctx, req.DestinationID)
	if err != nil {
		logging.WithOperation(c.logger, "capture.request", req.ID).Warn("capture provider failed", zap.Error(err))
		res = Result{}
	}
	return c.Complete(ctx, req, res)
}

// Complete finishes req once the provider has answered. A failed capture or
// an undecodable photo ends the cycle with a message and no policy run.
func (c *Coordinator) Complete(ctx context.Context, req Request, res Result) (Outcome, error) {
	opLogger := logging.WithOperation(c.logger, "capture.complete", req.ID)
	if !res.Success || res.Location == "" {
		opLogger.Info("capture did not produce a photo", zap.String("side", req.Side.String()))
		return c.fail(ctx, req, document.ReasonCaptureFailed), nil
	}

	img, err := c.loader.Load(ctx, res.Location)
	c.discard(ctx, req, res.Location)
	if err != nil {
		opLogger.Warn("failed to load captured photo", zap.Error(err))
		return c.fail(ctx, req, document.ReasonLoadFailed), nil
	}

	outcome, err := c.OnImageReady(ctx, req.Side, img)
	outcome.RequestID = req.ID
	return outcome, err
}

// OnImageReady evaluates img for side. A nil image is reported to the user
// and goes no further.
func (c *Coordinator) OnImageReady(ctx context.Context, side document.Side, img image.Image) (Outcome, error) {
	if img == nil {
		return c.fail(ctx, Request{Side: side}, document.ReasonLoadFailed), nil
	}

	result, err := c.evaluator.Evaluate(ctx, side, img)
	if err != nil {
		return Outcome{}, err
	}

	message := c.renderer.Render(ctx, result.Reason)
	c.notifier.ShowMessage(ctx, message)
	return Outcome{
		Side:      side,
		Result:    result,
		Message:   message,
		Evaluated: true,
	}, nil
}

func (c *Coordinator) fail(ctx context.Context, req Request, reason document.Reason) Outcome {
	message := c.renderer.Render(ctx, reason)
	c.notifier.ShowMessage(ctx, message)
	return Outcome{
		RequestID: req.ID,
		Side:      req.Side,
		Result:    document.Reject(reason),
		Message:   message,
	}
}

func (c *Coordinator) discard(ctx context.Context, req Request, location string) {
	if err := c.loader.Remove(ctx, location); err != nil {
		logging.WithOperation(c.logger, "capture.discard", req.ID).
			Warn("failed to remove captured photo", zap.String("location", location), zap.Error(err))
	}
}
