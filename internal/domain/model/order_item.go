package model

import "time"

// 注文明細。作成時の価格を固定して保存し、以後変更しない
type OrderItem struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID              int64     `gorm:"not null;index" json:"order_id"`
	TemplateID           string    `gorm:"type:varchar(64);not null;index" json:"template_id"`
	TemplateVariantID    string    `gorm:"type:varchar(64);not null;default:''" json:"template_variant_id"`
	TemplateNameSnapshot string    `gorm:"type:varchar(255);not null" json:"template_name_snapshot"`
	UnitPriceAtPurchase  int64     `gorm:"not null" json:"unit_price_at_purchase"`
	Quantity             int64     `gorm:"not null" json:"quantity"`
	CreatedAt            time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// キャッシュや出力用にまとめた形
type OrderWithItems struct {
	Order Order       `json:"order"`
	Items []OrderItem `json:"items"`
}
