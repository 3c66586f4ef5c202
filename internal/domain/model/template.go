package model

import (
	"time"

	"gorm.io/gorm"
)

// 販売するテンプレート。価格は現在値（可変）
type Template struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Price     int64          `gorm:"not null" json:"price"`
	Currency  string         `gorm:"type:varchar(8);not null;default:'USD'" json:"currency"`
	IsActive  bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// テンプレートのバリエーション。PriceOverrideがあればそちらを使う
type TemplateVariant struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TemplateID    string    `gorm:"type:varchar(64);not null;index" json:"template_id"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	PriceOverride *int64    `json:"price_override,omitempty"`
	IsActive      bool      `gorm:"not null;default:false" json:"is_active"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// UnitPrice は variant を考慮した現在の単価を返す。
func UnitPrice(t Template, v *TemplateVariant) int64 {
	if v != nil && v.PriceOverride != nil {
		return *v.PriceOverride
	}
	return t.Price
}

// 購入可能か（テンプレート・バリエーション両方）
func IsPurchasable(t Template, v *TemplateVariant) bool {
	if !t.IsActive || t.DeletedAt.Valid {
		return false
	}
	if v != nil && (!v.IsActive || v.TemplateID != t.ID) {
		return false
	}
	return true
}
