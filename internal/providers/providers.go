// Package providers builds the detection gateway for the configured backend.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/example/idcard-check/internal/config"
	"github.com/example/idcard-check/internal/detection"
	"github.com/example/idcard-check/internal/detection/opencv"
	"github.com/example/idcard-check/internal/detection/tesseract"
	"github.com/example/idcard-check/internal/grpcclient"
)

// Open connects the face detector and text recognizer selected by cfg and
// returns a gateway over them. The closer releases the backend.
func Open(ctx context.Context, cfg *config.Checker, logger *zap.Logger) (*detection.Gateway, io.Closer, error) {
	var (
		faces  detection.FaceDetector
		text   detection.TextRecognizer
		closer io.Closer
	)

	switch cfg.DetectionBackend {
	case config.BackendLocal:
		detector, err := opencv.NewFaceDetector(cfg.CascadePath)
		if err != nil {
			return nil, nil, fmt.Errorf("load face cascades: %w", err)
		}
		faces, text, closer = detector, tesseract.NewRecognizer(cfg.OCRLanguages...), detector
		logger.Info("using local detection providers",
			zap.String("cascade_path", cfg.CascadePath),
			zap.Strings("ocr_languages", cfg.OCRLanguages))
	case config.BackendGRPC:
		client, conn, err := grpcclient.DialVision(ctx, cfg.VisionAddr, logger)
		if err != nil {
			return nil, nil, err
		}
		faces, text, closer = client, client, conn
		logger.Info("using remote vision service", zap.String("addr", cfg.VisionAddr))
	default:
		return nil, nil, errors.New("unknown detection backend " + cfg.DetectionBackend)
	}

	gateway := detection.NewGateway(faces, text, logger,
		detection.WithFaceOptions(detection.Preset(cfg.FacePreset)),
		detection.WithTimeout(cfg.DetectionTimeout),
	)
	return gateway, closer, nil
}
