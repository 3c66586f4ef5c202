package repository

import (
	"context"
	"time"

	"templateshop/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *string
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 冪等チェック用。無ければ ErrNotFound
	FindByPaymentIntentID(ctx context.Context, intentID string) (model.Order, error)
	ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error)
	// 同じintentが既にあれば ErrDuplicatePaymentIntent
	Create(ctx context.Context, order model.Order) (int64, error)
	// from のどれかの時だけ to に更新。一致しなければ ErrStatusConflict
	UpdateStatus(ctx context.Context, orderID int64, from []model.OrderStatus, to model.OrderStatus) error
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
