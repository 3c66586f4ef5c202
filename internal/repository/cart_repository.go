package repository

import (
	"context"

	"templateshop/internal/domain/model"
)

type CartRepository interface {
	// ユーザーのカート行を取得（無ければ作成）し、FOR UPDATEでロックする
	LockOrCreateByUserID(ctx context.Context, userID string) (model.Cart, error)
	// 無ければ ErrNotFound。ロックあり
	LockByUserID(ctx context.Context, userID string) (model.Cart, error)
	FindByUserID(ctx context.Context, userID string) (model.Cart, error)
	Clear(ctx context.Context, cartID int64) error
}
