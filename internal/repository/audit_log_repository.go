package repository

import (
	"context"

	"templateshop/internal/domain/model"
)

// 管理者操作の記録。書き込みは状態変更と同じトランザクションで行う
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
	// 対象リソースの履歴（古い順）
	ListByResource(ctx context.Context, resourceType model.AuditResourceType, resourceID string, limit int) ([]model.AuditLog, error)
}
