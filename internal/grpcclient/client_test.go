package grpcclient

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/idcard-check/internal/detection"
	"github.com/example/idcard-check/internal/logging"
)

type fakeConn struct {
	methods  []string
	requests []*structpb.Struct
	reply    *structpb.Struct
	err      error
}

func (f *fakeConn) Invoke(ctx context.Context, method string, args, reply interface{}, opts ...grpc.CallOption) error {
	f.methods = append(f.methods, method)
	f.requests = append(f.requests, args.(*structpb.Struct))
	if f.err != nil {
		return f.err
	}
	proto.Merge(reply.(*structpb.Struct), f.reply)
	return nil
}

func (f *fakeConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams not supported")
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestDetectSendsOptionsAndParsesFaces(t *testing.T) {
	conn := &fakeConn{reply: mustStruct(t, map[string]interface{}{
		"faces": []interface{}{
			map[string]interface{}{"x": 1, "y": 2, "width": 10, "height": 20, "confidence": 0.9},
			map[string]interface{}{"x": 30, "y": 5, "width": 8, "height": 8, "confidence": 0.7},
		},
	})}
	client := NewVisionClient(conn, zap.NewNop())

	faces, err := client.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)), detection.AccurateOptions)
	require.NoError(t, err)

	require.Len(t, faces, 2)
	assert.Equal(t, image.Rect(1, 2, 11, 22), faces[0].Bounds)
	assert.InDelta(t, 0.9, faces[0].Confidence, 1e-9)
	assert.Equal(t, []string{detectFacesMethod}, conn.methods)

	sent := conn.requests[0].GetFields()
	assert.Equal(t, "accurate", sent["mode"].GetStringValue())
	assert.Equal(t, "all", sent["landmarks"].GetStringValue())
	assert.NotEmpty(t, sent["image_png"].GetStringValue())
}

func TestDetectWithoutFacesReturnsEmpty(t *testing.T) {
	conn := &fakeConn{reply: mustStruct(t, map[string]interface{}{})}
	client := NewVisionClient(conn, zap.NewNop())

	faces, err := client.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)), detection.FastOptions)
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestRecognizeReturnsText(t *testing.T) {
	conn := &fakeConn{reply: mustStruct(t, map[string]interface{}{"text": "ADDRESS IDTJK"})}
	client := NewVisionClient(conn, zap.NewNop())

	text, err := client.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	assert.Equal(t, "ADDRESS IDTJK", text)
	assert.Equal(t, []string{recognizeTextMethod}, conn.methods)
}

func TestRecognizeWrapsTransportErrors(t *testing.T) {
	conn := &fakeConn{err: errors.New("unavailable")}
	client := NewVisionClient(conn, zap.NewNop())

	_, err := client.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	require.Error(t, err)

	var opErr *logging.OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "grpcclient.recognize_text", opErr.Operation)
}
