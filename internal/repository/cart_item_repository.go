package repository

import (
	"context"

	"templateshop/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	FindByCartAndTemplate(ctx context.Context, cartID int64, templateID, variantID string) (model.CartItem, error)
	Create(ctx context.Context, item model.CartItem) (model.CartItem, error)
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	// 明細の持ち主（user_id）。無ければ ErrNotFound
	OwnerOf(ctx context.Context, cartItemID int64) (string, error)
}
