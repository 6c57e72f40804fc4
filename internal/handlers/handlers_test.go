package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/example/idcard-check/internal/auth"
	"github.com/example/idcard-check/internal/capture"
	"github.com/example/idcard-check/internal/document"
	"github.com/example/idcard-check/internal/imaging"
	"github.com/example/idcard-check/internal/messages"
	"github.com/example/idcard-check/internal/repository"
	"github.com/example/idcard-check/internal/usecase"
)

const testJWTSecret = "test-secret"

type stubService struct {
	startErr   error
	submitErr  error
	verifyErr  error
	currentErr error

	verifySides []document.Side
	submitIDs   []string
	catalog     *messages.Catalog
}

func (s *stubService) StartCapture(ctx context.Context, userID string, side document.Side) (*repository.CaptureRequest, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	return &repository.CaptureRequest{
		RequestID:   "req-1",
		UserID:      userID,
		Side:        side.String(),
		Destination: side.DestinationID(),
		Status:      repository.StatusPending,
	}, nil
}

func (s *stubService) SubmitImage(ctx context.Context, userID, requestID string, data []byte) (*capture.Outcome, error) {
	s.submitIDs = append(s.submitIDs, requestID)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.outcome(ctx, requestID, document.Back, document.Reject(document.ReasonTextNotFound)), nil
}

func (s *stubService) Verify(ctx context.Context, userID string, side document.Side, data []byte) (*capture.Outcome, error) {
	s.verifySides = append(s.verifySides, side)
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.outcome(ctx, "req-2", side, document.Accept(document.ReasonFaceDetected)), nil
}

func (s *stubService) outcome(ctx context.Context, id string, side document.Side, result document.Result) *capture.Outcome {
	message := s.catalog.Render(ctx, result.Reason)
	return &capture.Outcome{RequestID: id, Side: side, Result: result, Message: message, Evaluated: true}
}

func (s *stubService) CurrentCapture(ctx context.Context, userID string) (*repository.CaptureRequest, error) {
	if s.currentErr != nil {
		return nil, s.currentErr
	}
	return &repository.CaptureRequest{RequestID: "req-9", Side: "FACE", Status: repository.StatusPending}, nil
}

func (s *stubService) GetCaptureSummary(ctx context.Context, userID string) (*usecase.CaptureSummary, error) {
	return &usecase.CaptureSummary{Total: 3, Completed: 2, Failed: 1}, nil
}

func newTestRouter(svc *stubService) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize
	svc.catalog = messages.NewCatalog()
	RegisterRoutes(router, svc, auth.JWTMiddleware(testJWTSecret, ""), Config{Catalog: svc.catalog})
	return router
}

func serve(t *testing.T, router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json %q: %v", resp.Body.String(), err)
	}
	return body
}

func TestHealthNeedsNoAuth(t *testing.T) {
	router := newTestRouter(&stubService{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
}

func TestVerifyRequiresAuth(t *testing.T) {
	router := newTestRouter(&stubService{})
	body, contentType := buildMultipartBody(t, "image/png", pngPhoto(t))

	req := httptest.NewRequest(http.MethodPost, "/verify/front", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestVerifyRejectsLargeUpload(t *testing.T) {
	router := newTestRouter(&stubService{})
	body, contentType := buildMultipartBody(t, "image/png", bytes.Repeat([]byte("a"), MaxUploadSize+1))

	req := httptest.NewRequest(http.MethodPost, "/verify/front", body)
	req.Header.Set("Content-Type", contentType)
	resp := serve(t, router, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
}

func TestVerifyRejectsUnsupportedContentType(t *testing.T) {
	router := newTestRouter(&stubService{})
	body, contentType := buildMultipartBody(t, "text/plain", []byte("hello"))

	req := httptest.NewRequest(http.MethodPost, "/verify/front", body)
	req.Header.Set("Content-Type", contentType)
	resp := serve(t, router, req)

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
	}
}

func TestVerifyRejectsUnknownSide(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)
	body, contentType := buildMultipartBody(t, "image/png", pngPhoto(t))

	req := httptest.NewRequest(http.MethodPost, "/verify/selfie", body)
	req.Header.Set("Content-Type", contentType)
	resp := serve(t, router, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
	if len(svc.verifySides) != 0 {
		t.Fatalf("service must not be called")
	}
}

func TestVerifyReturnsLocalizedVerdict(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)
	body, contentType := buildMultipartBody(t, "image/png", pngPhoto(t))

	req := httptest.NewRequest(http.MethodPost, "/verify/face", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept-Language", "ru")
	resp := serve(t, router, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}
	got := decode(t, resp)
	if got["verdict"] != "VALID" || got["side"] != "FACE" || got["reason"] != "face_detected" {
		t.Fatalf("unexpected body: %v", got)
	}
	if got["message"] != "✅ Лицо обнаружено" {
		t.Fatalf("expected russian message, got %v", got["message"])
	}
}

func TestStartCapture(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/captures", strings.NewReader(`{"side":"back"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := serve(t, router, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.Code)
	}
	got := decode(t, resp)
	if got["destination"] != "BACK_photo.jpg" || got["request_id"] != "req-1" {
		t.Fatalf("unexpected body: %v", got)
	}
}

func TestStartCaptureValidatesBody(t *testing.T) {
	router := newTestRouter(&stubService{})

	for _, payload := range []string{`{}`, `{"side":"passport"}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/captures", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		if resp := serve(t, router, req); resp.Code != http.StatusBadRequest {
			t.Fatalf("payload %s: expected 400, got %d", payload, resp.Code)
		}
	}
}

func TestSubmitImageErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{repository.ErrNotFound, http.StatusNotFound},
		{usecase.ErrCaptureClosed, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		router := newTestRouter(&stubService{submitErr: tc.err})
		body, contentType := buildMultipartBody(t, "image/png", pngPhoto(t))

		req := httptest.NewRequest(http.MethodPut, "/captures/req-1/image", body)
		req.Header.Set("Content-Type", contentType)
		if resp := serve(t, router, req); resp.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, resp.Code)
		}
	}
}

func TestSubmitImage(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)
	body, contentType := buildMultipartBody(t, "image/png", pngPhoto(t))

	req := httptest.NewRequest(http.MethodPut, "/captures/req-7/image", body)
	req.Header.Set("Content-Type", contentType)
	resp := serve(t, router, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	if len(svc.submitIDs) != 1 || svc.submitIDs[0] != "req-7" {
		t.Fatalf("unexpected submissions %v", svc.submitIDs)
	}
	if got := decode(t, resp); got["message"] != "⛔ ID card text not found" {
		t.Fatalf("unexpected message %v", got["message"])
	}
}

func TestCurrentCaptureNotFound(t *testing.T) {
	router := newTestRouter(&stubService{currentErr: usecase.ErrNoCurrentCapture})

	resp := serve(t, router, httptest.NewRequest(http.MethodGet, "/captures/current", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.Code)
	}
}

func TestSummary(t *testing.T) {
	router := newTestRouter(&stubService{})

	resp := serve(t, router, httptest.NewRequest(http.MethodGet, "/captures/summary", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	if got := decode(t, resp); got["total"] != float64(3) {
		t.Fatalf("unexpected body %v", got)
	}
}

func pngPhoto(t *testing.T) []byte {
	t.Helper()
	data, err := imaging.EncodePNG(image.NewGray(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatalf("failed to encode photo: %v", err)
	}
	return data
}

func buildMultipartBody(t *testing.T, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="upload"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func buildTestToken(t *testing.T, subject string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
