package cache

import (
	"context"

	"certwatch/pkg/models"
)

type NoOpStore struct{}

func NewNoOpStore() *NoOpStore {
	return &NoOpStore{}
}

func (n *NoOpStore) Get(ctx context.Context, host string) (*models.TargetReport, bool) {
	return nil, false
}

func (n *NoOpStore) Set(ctx context.Context, host string, report *models.TargetReport) {}

func (n *NoOpStore) Close() {}

func (n *NoOpStore) Clear() {}

func (n *NoOpStore) Size() int {
	return 0
}
