package repository

import (
	"context"
	"fmt"

	"templateshop/internal/domain/model"
	repo "templateshop/internal/repository"

	"gorm.io/gorm"
)

type AuditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) *AuditLogGormRepository {
	return &AuditLogGormRepository{db: db}
}

var _ repo.AuditLogRepository = (*AuditLogGormRepository)(nil)

func (r *AuditLogGormRepository) Create(ctx context.Context, entry model.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("create audit log (%s %s/%s): %w", entry.Action, entry.ResourceType, entry.ResourceID, err)
	}
	return nil
}

func (r *AuditLogGormRepository) ListByResource(ctx context.Context, resourceType model.AuditResourceType, resourceID string, limit int) ([]model.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var logs []model.AuditLog
	err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
