package repository

import (
	"context"

	"templateshop/internal/domain/model"
)

// テンプレート（商品）の読み取り。カタログ管理はこのサービスの外。
type TemplateRepository interface {
	// ソフト削除済みは ErrNotFound。公開状態の判定は呼び出し側
	FindByID(ctx context.Context, id string) (model.Template, error)
	// 価格計算用。非公開・削除済みも返す（決済済みの注文確定で使う）
	FindForPricing(ctx context.Context, id string) (model.Template, error)
	FindVariant(ctx context.Context, variantID string) (model.TemplateVariant, error)

	Create(ctx context.Context, t model.Template) error
	CreateVariant(ctx context.Context, v model.TemplateVariant) error
	UpdatePrice(ctx context.Context, id string, price int64) error
}
