package cache

import (
	"context"

	"certwatch/pkg/models"
)

// Store keeps the latest result per target host for serve mode.
type Store interface {
	Get(ctx context.Context, host string) (*models.TargetReport, bool)
	Set(ctx context.Context, host string, report *models.TargetReport)
	Clear()
	Size() int
	// Close releases background resources. Safe to call more than once.
	Close()
}
