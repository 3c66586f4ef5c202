package repository

import (
	"context"

	"templateshop/internal/domain/model"
)

// ゲートウェイの状態ミラー
type PaymentIntentRepository interface {
	Create(ctx context.Context, intent model.PaymentIntent) error
	FindByID(ctx context.Context, intentID string) (model.PaymentIntent, error)
	// 無ければ作る。SUCCEEDEDからは戻さない
	UpsertStatus(ctx context.Context, intent model.PaymentIntent) error
	// 決済成功なのに注文が無いもの
	ListUnreconciled(ctx context.Context, limit int) ([]model.PaymentIntent, error)
}
