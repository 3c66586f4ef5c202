package model

import "time"

type PaymentIntentStatus string

const (
	PaymentIntentCreated   PaymentIntentStatus = "CREATED"
	PaymentIntentSucceeded PaymentIntentStatus = "SUCCEEDED"
	PaymentIntentFailed    PaymentIntentStatus = "FAILED"
)

// ゲートウェイ側の状態のミラー。正はゲートウェイ
type PaymentIntent struct {
	IntentID         string              `gorm:"primaryKey;type:varchar(128)" json:"intent_id"`
	UserID           string              `gorm:"type:varchar(64);not null;index" json:"user_id"`
	AmountMinorUnits int64               `gorm:"not null" json:"amount_minor_units"`
	Currency         string              `gorm:"type:varchar(8);not null" json:"currency"`
	Status           PaymentIntentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ItemCount        int64               `gorm:"not null;default:0" json:"item_count"`
	CartHash         string              `gorm:"type:varchar(64)" json:"cart_hash"`
	OrderID          *int64              `gorm:"index" json:"order_id,omitempty"`
	FailureReason    string              `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	CreatedAt        time.Time           `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// SUCCEEDEDは戻さない
func (s PaymentIntentStatus) CanMoveTo(next PaymentIntentStatus) bool {
	switch s {
	case PaymentIntentSucceeded:
		return next == PaymentIntentSucceeded
	case PaymentIntentCreated, PaymentIntentFailed, "":
		return true
	}
	return false
}
