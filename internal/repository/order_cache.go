package repository

import (
	"context"

	"templateshop/internal/domain/model"
)

// ポーリング用の注文キャッシュ（intent_id -> 注文）。見つかった注文だけ入れる
type OrderCache interface {
	Get(ctx context.Context, intentID string) (model.OrderWithItems, bool, error)
	Set(ctx context.Context, o model.OrderWithItems) error
	Delete(ctx context.Context, intentID string) error
}
