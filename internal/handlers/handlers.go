package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/idcard-check/internal/auth"
	"github.com/example/idcard-check/internal/capture"
	"github.com/example/idcard-check/internal/document"
	"github.com/example/idcard-check/internal/messages"
	"github.com/example/idcard-check/internal/repository"
	"github.com/example/idcard-check/internal/usecase"
)

// MaxUploadSize is the default limit for an uploaded photo.
const MaxUploadSize = 10 << 20

// multipartOverhead leaves room for boundaries and headers around the photo.
const multipartOverhead = 64 << 10

var acceptedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/bmp", "image/tiff", "image/gif"}

// CaptureService is what the HTTP layer needs from the capture use case.
type CaptureService interface {
	StartCapture(ctx context.Context, userID string, side document.Side) (*repository.CaptureRequest, error)
	SubmitImage(ctx context.Context, userID, requestID string, data []byte) (*capture.Outcome, error)
	Verify(ctx context.Context, userID string, side document.Side, data []byte) (*capture.Outcome, error)
	CurrentCapture(ctx context.Context, userID string) (*repository.CaptureRequest, error)
	GetCaptureSummary(ctx context.Context, userID string) (*usecase.CaptureSummary, error)
}

// Config tunes the HTTP layer.
type Config struct {
	MaxUploadSize int64
	Catalog       *messages.Catalog
	Logger        *zap.Logger
}

type handler struct {
	svc           CaptureService
	maxUploadSize int64
	catalog       *messages.Catalog
	logger        *zap.Logger
}

type startCaptureRequest struct {
	Side string `json:"side" binding:"required"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc CaptureService, authMiddleware gin.HandlerFunc, cfg Config) {
	h := &handler{
		svc:           svc,
		maxUploadSize: cfg.MaxUploadSize,
		catalog:       cfg.Catalog,
		logger:        cfg.Logger,
	}
	if h.maxUploadSize <= 0 {
		h.maxUploadSize = MaxUploadSize
	}
	if h.catalog == nil {
		h.catalog = messages.NewCatalog()
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authorized := router.Group("/", authMiddleware)
	authorized.POST("/captures", h.startCapture)
	authorized.GET("/captures/current", h.currentCapture)
	authorized.GET("/captures/summary", h.summary)
	authorized.PUT("/captures/:id/image", h.submitImage)
	authorized.POST("/verify/:side", h.verify)
}

func (h *handler) startCapture(c *gin.Context) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var body startCaptureRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side is required"})
		return
	}
	side, err := document.ParseSide(body.Side)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.svc.StartCapture(c.Request.Context(), userID, side)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, captureJSON(record))
}

func (h *handler) submitImage(c *gin.Context) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	requestID := c.Param("id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	data, ok := h.readImage(c)
	if !ok {
		return
	}

	outcome, err := h.svc.SubmitImage(h.withLanguage(c), userID, requestID, data)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomeJSON(outcome))
}

func (h *handler) verify(c *gin.Context) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	side, err := document.ParseSide(c.Param("side"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, ok := h.readImage(c)
	if !ok {
		return
	}

	outcome, err := h.svc.Verify(h.withLanguage(c), userID, side, data)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomeJSON(outcome))
}

func (h *handler) currentCapture(c *gin.Context) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	record, err := h.svc.CurrentCapture(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, captureJSON(record))
}

func (h *handler) summary(c *gin.Context) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	summary, err := h.svc.GetCaptureSummary(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// readImage reads the "image" form file, enforcing the size limit and
// accepting only image payloads. It writes the error response itself.
func (h *handler) readImage(c *gin.Context) ([]byte, bool) {
	limit := h.maxUploadSize + multipartOverhead
	if c.Request.ContentLength > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return nil, false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	file, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return nil, false
	}
	if file.Size > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return nil, false
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return nil, false
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return nil, false
	}

	detected := mimetype.Detect(data)
	if !isAcceptedImage(detected) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported content type " + detected.String()})
		return nil, false
	}
	return data, true
}

func isAcceptedImage(m *mimetype.MIME) bool {
	for _, accepted := range acceptedImageTypes {
		if m.Is(accepted) {
			return true
		}
	}
	return false
}

func (h *handler) withLanguage(c *gin.Context) context.Context {
	lang := h.catalog.Match(c.GetHeader("Accept-Language"))
	return messages.WithLanguage(c.Request.Context(), lang)
}

func (h *handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, document.ErrUnknownSide):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, usecase.ErrNoCurrentCapture):
		c.JSON(http.StatusNotFound, gin.H{"error": "capture not found"})
	case errors.Is(err, usecase.ErrCaptureClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func captureJSON(record *repository.CaptureRequest) gin.H {
	return gin.H{
		"request_id":  record.RequestID,
		"side":        record.Side,
		"destination": record.Destination,
		"status":      record.Status,
		"created_at":  record.CreatedAt,
	}
}

func outcomeJSON(outcome *capture.Outcome) gin.H {
	return gin.H{
		"request_id": outcome.RequestID,
		"side":       outcome.Side,
		"verdict":    outcome.Result.Verdict,
		"reason":     outcome.Result.Reason,
		"message":    outcome.Message,
	}
}
