package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/idcard-check/internal/capture"
	"github.com/example/idcard-check/internal/document"
	"github.com/example/idcard-check/internal/logging"
	"github.com/example/idcard-check/internal/repository"
	"github.com/example/idcard-check/internal/retry"
)

var (
	// ErrCaptureClosed is returned when an image arrives for a capture that
	// has already finished.
	ErrCaptureClosed = errors.New("capture request already finished")
	// ErrNoCurrentCapture is returned when the user has no live capture.
	ErrNoCurrentCapture = errors.New("no current capture")
)

// CaptureRepository defines the persistence operations needed by the use case.
type CaptureRepository interface {
	Create(ctx context.Context, req *repository.CaptureRequest) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.CaptureRequest, error)
	Finish(ctx context.Context, requestID string, status repository.CaptureStatus) error
	CountByStatus(ctx context.Context, userID string) ([]repository.StatusCount, error)
}

// Coordinator is the capture cycle driver.
type Coordinator interface {
	Begin(side document.Side) (capture.Request, error)
	Complete(ctx context.Context, req capture.Request, res capture.Result) (capture.Outcome, error)
}

// CaptureUseCase ties capture cycles to users: it records requests, tracks
// each user's current capture and runs uploads through the coordinator.
type CaptureUseCase struct {
	repo        CaptureRepository
	cache       Cache
	coordinator Coordinator
	store       capture.Saver
	logger      *zap.Logger
	retry       retry.Policy
	captureTTL  time.Duration
}

type currentCapture struct {
	RequestID   string    `json:"request_id"`
	Side        string    `json:"side"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewCaptureUseCase constructs a new use case instance.
func NewCaptureUseCase(repo CaptureRepository, cache Cache, coordinator Coordinator, store capture.Saver, captureTTL time.Duration, logger *zap.Logger) *CaptureUseCase {
	return &CaptureUseCase{
		repo:        repo,
		cache:       cache,
		coordinator: coordinator,
		store:       store,
		logger:      logger.Named("capture_usecase"),
		retry:       retry.Default,
		captureTTL:  captureTTL,
	}
}

// StartCapture opens a capture request for side and makes it the user's
// current one. An older pending request is superseded but stays usable.
func (uc *CaptureUseCase) StartCapture(ctx context.Context, userID string, side document.Side) (*repository.CaptureRequest, error) {
	req, err := uc.coordinator.Begin(side)
	if err != nil {
		return nil, err
	}
	opLogger := logging.WithOperation(uc.logger, "usecase.start_capture", req.ID)

	record := &repository.CaptureRequest{
		RequestID:   req.ID,
		UserID:      userID,
		Side:        req.Side.String(),
		Destination: req.DestinationID,
		Status:      repository.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := uc.repo.Create(ctx, record); err != nil {
		wrapped := logging.NewOperationError("usecase.save_capture", req.ID, err)
		opLogger.Error("failed to persist capture request", zap.Error(wrapped))
		return nil, wrapped
	}

	serialized, err := json.Marshal(currentCapture{
		RequestID:   record.RequestID,
		Side:        record.Side,
		Destination: record.Destination,
		CreatedAt:   record.CreatedAt,
	})
	if err != nil {
		opLogger.Error("failed to serialize current capture", zap.Error(err))
		return nil, err
	}

	if err := retry.Do(ctx, uc.retry, uc.logger, "cache.set.current", req.ID, func() error {
		return uc.cache.Set(ctx, currentCaptureKey(userID), string(serialized), uc.captureTTL)
	}); err != nil {
		opLogger.Error("failed to record current capture", zap.Error(err))
		if finishErr := uc.repo.Finish(ctx, req.ID, repository.StatusFailed); finishErr != nil {
			opLogger.Warn("failed to close abandoned capture request", zap.Error(finishErr))
		}
		return nil, err
	}

	opLogger.Info("capture started", zap.String("side", record.Side))
	return record, nil
}

// SubmitImage delivers the photo for a pending capture request and returns
// the outcome of its cycle. Empty data counts as a cancelled capture.
func (uc *CaptureUseCase) SubmitImage(ctx context.Context, userID, requestID string, data []byte) (*capture.Outcome, error) {
	record, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	if record.Status != repository.StatusPending {
		return nil, ErrCaptureClosed
	}
	side, err := document.ParseSide(record.Side)
	if err != nil {
		return nil, err
	}

	opLogger := logging.WithOperation(uc.logger, "usecase.submit_image", requestID)
	if current, err := uc.current(ctx, userID, requestID); err == nil && current.RequestID != requestID {
		opLogger.Warn("capture superseded by a newer request", zap.String("current_request_id", current.RequestID))
	}

	ctx = capture.WithOwner(ctx, userID)
	provider := capture.BytesProvider{Store: uc.store, Owner: userID, Data: data}
	res, err := provider.RequestCapture(ctx, record.Destination)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.store_capture", requestID, err)
		opLogger.Error("failed to store captured photo", zap.Error(wrapped))
		return nil, wrapped
	}

	outcome, err := uc.coordinator.Complete(ctx, capture.Request{
		ID:            record.RequestID,
		Side:          side,
		DestinationID: record.Destination,
	}, res)
	if err != nil {
		return nil, logging.NewOperationError("usecase.complete_capture", requestID, err)
	}

	status := repository.StatusFailed
	if outcome.Evaluated {
		status = repository.StatusCompleted
	}
	if err := uc.repo.Finish(ctx, requestID, status); err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			opLogger.Warn("capture finished concurrently", zap.Error(err))
		} else {
			opLogger.Error("failed to finish capture request", zap.Error(err))
			return nil, err
		}
	}

	return &outcome, nil
}

// Verify runs a complete cycle for side with data in one call.
func (uc *CaptureUseCase) Verify(ctx context.Context, userID string, side document.Side, data []byte) (*capture.Outcome, error) {
	record, err := uc.StartCapture(ctx, userID, side)
	if err != nil {
		return nil, err
	}
	return uc.SubmitImage(ctx, userID, record.RequestID, data)
}

// CurrentCapture returns the user's most recent capture request.
func (uc *CaptureUseCase) CurrentCapture(ctx context.Context, userID string) (*repository.CaptureRequest, error) {
	current, err := uc.current(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	return uc.repo.FindByRequestIDAndUser(ctx, current.RequestID, userID)
}

func (uc *CaptureUseCase) current(ctx context.Context, userID, requestID string) (*currentCapture, error) {
	var cached string
	err := retry.Do(ctx, uc.retry, uc.logger, "cache.get.current", requestID, func() error {
		value, err := uc.cache.Get(ctx, currentCaptureKey(userID))
		if err != nil {
			return err
		}
		cached = value
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoCurrentCapture
	}
	if err != nil {
		return nil, err
	}

	var payload currentCapture
	if err := json.Unmarshal([]byte(cached), &payload); err != nil {
		logging.WithOperation(uc.logger, "usecase.current_capture", requestID).Warn("failed to decode current capture", zap.Error(err))
		return nil, ErrNoCurrentCapture
	}
	return &payload, nil
}
