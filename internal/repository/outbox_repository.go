package repository

import (
	"context"

	"templateshop/internal/domain/model"
)

type OutboxRepository interface {
	Append(ctx context.Context, event model.OutboxEvent) error
	ListUnpublished(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID string) error
}
