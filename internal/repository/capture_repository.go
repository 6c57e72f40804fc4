package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/idcard-check/internal/retry"
)

var (
	// ErrNotFound is returned when no capture request matches.
	ErrNotFound = errors.New("capture request not found")
	// ErrNotPending is returned when finishing a request that already finished.
	ErrNotPending = errors.New("capture request is not pending")
)

// CaptureStatus tracks where a capture request is in its cycle.
type CaptureStatus string

const (
	StatusPending   CaptureStatus = "pending"
	StatusCompleted CaptureStatus = "completed"
	StatusFailed    CaptureStatus = "failed"
)

// CaptureRequest is a persisted capture request. Verdicts are not stored;
// the row only records that a cycle was started and whether it ended with
// a photo being evaluated.
type CaptureRequest struct {
	ID          uint          `gorm:"primaryKey"`
	RequestID   string        `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID      string        `gorm:"column:user_id;index;size:64"`
	Side        string        `gorm:"column:side;size:8"`
	Destination string        `gorm:"column:destination;size:64"`
	Status      CaptureStatus `gorm:"column:status;index;size:16"`
	CreatedAt   time.Time     `gorm:"column:created_at"`
	FinishedAt  *time.Time    `gorm:"column:finished_at"`
}

// TableName overrides the default table name.
func (CaptureRequest) TableName() string {
	return "capture_requests"
}

// StatusCount is one row of a per-status aggregation.
type StatusCount struct {
	Status CaptureStatus
	Count  int64
}

// CaptureRepository persists capture requests in Postgres.
type CaptureRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewCaptureRepository creates a new repository instance.
func NewCaptureRepository(db *gorm.DB, logger *zap.Logger) *CaptureRepository {
	return &CaptureRepository{
		db:             db,
		logger:         logger.Named("capture_repository"),
		retryAttempts:  retry.Default.Attempts,
		initialBackoff: retry.Default.InitialBackoff,
		maxBackoff:     retry.Default.MaxBackoff,
	}
}

// AutoMigrate ensures the schema is available.
func (r *CaptureRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&CaptureRequest{})
	})
}

// Create persists a new capture request.
func (r *CaptureRepository) Create(ctx context.Context, req *CaptureRequest) error {
	return r.executeWithRetry(ctx, "repository.create", req.RequestID, func() error {
		return r.db.WithContext(ctx).Create(req).Error
	})
}

// FindByRequestIDAndUser retrieves a capture request owned by userID.
func (r *CaptureRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*CaptureRequest, error) {
	var req CaptureRequest
	err := r.executeWithRetry(ctx, "repository.find", requestID, func() error {
		err := r.db.WithContext(ctx).First(&req, "request_id = ? AND user_id = ?", requestID, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Finish moves a pending request to status. Only one caller can finish a
// given request; the others get ErrNotPending.
func (r *CaptureRepository) Finish(ctx context.Context, requestID string, status CaptureStatus) error {
	return r.executeWithRetry(ctx, "repository.finish", requestID, func() error {
		now := time.Now().UTC()
		res := r.db.WithContext(ctx).
			Model(&CaptureRequest{}).
			Where("request_id = ? AND status = ?", requestID, StatusPending).
			Updates(map[string]interface{}{"status": status, "finished_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotPending
		}
		return nil
	})
}

// CountByStatus aggregates a user's capture requests per status.
func (r *CaptureRepository) CountByStatus(ctx context.Context, userID string) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.executeWithRetry(ctx, "repository.count_by_status", "", func() error {
		rows = rows[:0]
		return r.db.WithContext(ctx).
			Model(&CaptureRequest{}).
			Select("status, count(*) as count").
			Where("user_id = ?", userID).
			Group("status").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CaptureRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	policy := retry.Policy{
		Attempts:       r.retryAttempts,
		InitialBackoff: r.initialBackoff,
		MaxBackoff:     r.maxBackoff,
	}
	return retry.Do(ctx, policy, r.logger, operation, requestID, fn)
}
