package repository

import (
	"context"
	"errors"

	"templateshop/internal/domain/model"
	repo "templateshop/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentIntentGormRepository struct {
	db *gorm.DB
}

func NewPaymentIntentGormRepository(db *gorm.DB) *PaymentIntentGormRepository {
	return &PaymentIntentGormRepository{db: db}
}

func (r *PaymentIntentGormRepository) insertIgnore(ctx context.Context, intent model.PaymentIntent) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "intent_id"}}, DoNothing: true}).
		Create(&intent).Error
}

// 同じintentが既にあれば何もしない（通知が先に届いた場合など）
func (r *PaymentIntentGormRepository) Create(ctx context.Context, intent model.PaymentIntent) error {
	if intent.Status == "" {
		intent.Status = model.PaymentIntentCreated
	}
	return r.insertIgnore(ctx, intent)
}

func (r *PaymentIntentGormRepository) FindByID(ctx context.Context, intentID string) (model.PaymentIntent, error) {
	var pi model.PaymentIntent
	err := r.db.WithContext(ctx).Where("intent_id = ?", intentID).First(&pi).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PaymentIntent{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PaymentIntent{}, err
	}
	return pi, nil
}

// 無ければ作る。SUCCEEDEDから他へは戻さない（黙って無視）
func (r *PaymentIntentGormRepository) UpsertStatus(ctx context.Context, intent model.PaymentIntent) error {
	if err := r.insertIgnore(ctx, intent); err != nil {
		return err
	}

	var cur model.PaymentIntent
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("intent_id = ?", intent.IntentID).
		First(&cur).Error; err != nil {
		return err
	}
	if !cur.Status.CanMoveTo(intent.Status) {
		return nil
	}

	updates := map[string]any{
		"status":         intent.Status,
		"failure_reason": intent.FailureReason,
	}
	if intent.OrderID != nil {
		updates["order_id"] = *intent.OrderID
	}
	if intent.AmountMinorUnits > 0 {
		updates["amount_minor_units"] = intent.AmountMinorUnits
	}
	if intent.Currency != "" {
		updates["currency"] = intent.Currency
	}
	return r.db.WithContext(ctx).
		Model(&model.PaymentIntent{}).
		Where("intent_id = ?", intent.IntentID).
		Updates(updates).Error
}

// 成功したのに注文が無いintent（空カートでの決済など）。要返金確認
func (r *PaymentIntentGormRepository) ListUnreconciled(ctx context.Context, limit int) ([]model.PaymentIntent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []model.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("status = ?", model.PaymentIntentSucceeded).
		Where("NOT EXISTS (SELECT 1 FROM orders WHERE orders.payment_intent_id = payment_intents.intent_id)").
		Order("updated_at asc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return []model.PaymentIntent{}, err
	}
	return out, nil
}
