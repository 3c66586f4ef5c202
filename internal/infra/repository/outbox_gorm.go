package repository

import (
	"context"
	"time"

	"templateshop/internal/domain/model"
	repo "templateshop/internal/repository"

	"gorm.io/gorm"
)

type OutboxGormRepository struct {
	db *gorm.DB
}

func NewOutboxGormRepository(db *gorm.DB) *OutboxGormRepository {
	return &OutboxGormRepository{db: db}
}

func (r *OutboxGormRepository) Append(ctx context.Context, event model.OutboxEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(&event).Error
}

// 古い順
func (r *OutboxGormRepository) ListUnpublished(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at asc").
		Order("id asc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *OutboxGormRepository) MarkPublished(ctx context.Context, eventID string) error {
	res := r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ? AND published_at IS NULL", eventID).
		Update("published_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
