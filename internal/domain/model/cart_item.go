package model

import "time"

// カートの明細
// (cart, template, variant) で一意。variantなしは空文字
type CartItem struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID            int64     `gorm:"not null;uniqueIndex:idx_cart_line" json:"cart_id"`
	TemplateID        string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_cart_line" json:"template_id"`
	TemplateVariantID string    `gorm:"type:varchar(64);not null;default:'';uniqueIndex:idx_cart_line" json:"template_variant_id"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
