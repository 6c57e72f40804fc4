package grpcclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/idcard-check/internal/detection"
	"github.com/example/idcard-check/internal/imaging"
	"github.com/example/idcard-check/internal/logging"
)

const (
	detectFacesMethod   = "/idcheck.vision.v1.Vision/DetectFaces"
	recognizeTextMethod = "/idcheck.vision.v1.Vision/RecognizeText"

	// maxSide keeps request messages well under the default 4 MiB gRPC limit.
	maxSide = 1600
)

// VisionClient talks to a remote vision service that exposes face detection
// and text recognition. Messages are google.protobuf.Struct values so the
// service contract needs no generated stubs on this side.
type VisionClient struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

// DialVision returns a ready-to-use client for the vision service.
func DialVision(ctx context.Context, addr string, logger *zap.Logger) (*VisionClient, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_vision", "", err)
		logger.Error("failed to dial vision service", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewVisionClient(conn, logger), conn, nil
}

// NewVisionClient wraps an existing connection.
func NewVisionClient(conn grpc.ClientConnInterface, logger *zap.Logger) *VisionClient {
	return &VisionClient{conn: conn, logger: logger.Named("vision_client")}
}

// Detect implements detection.FaceDetector.
func (c *VisionClient) Detect(ctx context.Context, img image.Image, opts detection.Options) ([]detection.Face, error) {
	req, err := c.imageRequest(img, map[string]interface{}{
		"mode":           string(opts.Mode),
		"landmarks":      string(opts.Landmarks),
		"classification": string(opts.Classification),
	})
	if err != nil {
		return nil, err
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, detectFacesMethod, req, resp); err != nil {
		wrapped := logging.NewOperationError("grpcclient.detect_faces", "", err)
		c.logger.Error("vision call failed", zap.Error(wrapped))
		return nil, wrapped
	}
	return parseFaces(resp)
}

// Recognize implements detection.TextRecognizer.
func (c *VisionClient) Recognize(ctx context.Context, img image.Image) (string, error) {
	req, err := c.imageRequest(img, nil)
	if err != nil {
		return "", err
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, recognizeTextMethod, req, resp); err != nil {
		wrapped := logging.NewOperationError("grpcclient.recognize_text", "", err)
		c.logger.Error("vision call failed", zap.Error(wrapped))
		return "", wrapped
	}
	return resp.GetFields()["text"].GetStringValue(), nil
}

func (c *VisionClient) imageRequest(img image.Image, extra map[string]interface{}) (*structpb.Struct, error) {
	data, err := imaging.EncodePNG(imaging.FitWithin(img, maxSide))
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{
		"image_png": base64.StdEncoding.EncodeToString(data),
	}
	for k, v := range extra {
		fields[k] = v
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build vision request: %w", err)
	}
	return req, nil
}

func parseFaces(resp *structpb.Struct) ([]detection.Face, error) {
	list := resp.GetFields()["faces"].GetListValue()
	faces := make([]detection.Face, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		entry := v.GetStructValue()
		if entry == nil {
			return nil, fmt.Errorf("face %d: expected object", i)
		}
		f := entry.GetFields()
		x := int(f["x"].GetNumberValue())
		y := int(f["y"].GetNumberValue())
		w := int(f["width"].GetNumberValue())
		h := int(f["height"].GetNumberValue())
		faces = append(faces, detection.Face{
			Bounds:     image.Rect(x, y, x+w, y+h),
			Confidence: f["confidence"].GetNumberValue(),
		})
	}
	return faces, nil
}
