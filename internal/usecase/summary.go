package usecase

import (
	"context"

	"github.com/example/idcard-check/internal/repository"
)

// CaptureSummary counts a user's capture requests by status.
type CaptureSummary struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// GetCaptureSummary aggregates the user's capture requests.
func (uc *CaptureUseCase) GetCaptureSummary(ctx context.Context, userID string) (*CaptureSummary, error) {
	rows, err := uc.repo.CountByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &CaptureSummary{}
	for _, row := range rows {
		summary.Total += row.Count
		switch row.Status {
		case repository.StatusPending:
			summary.Pending += row.Count
		case repository.StatusCompleted:
			summary.Completed += row.Count
		case repository.StatusFailed:
			summary.Failed += row.Count
		}
	}
	return summary, nil
}
