package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// PaymentIntentIDで一意（同じ決済から注文は1件だけ）
type Order struct {
	ID              int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          string      `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Status          OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Total           int64       `gorm:"not null" json:"total"`
	LinesTotal      int64       `gorm:"not null" json:"lines_total"`
	Currency        string      `gorm:"type:varchar(8);not null" json:"currency"`
	PaymentIntentID string      `gorm:"type:varchar(128);not null;uniqueIndex" json:"payment_intent_id"`
	PaymentRef      string      `gorm:"type:varchar(128)" json:"payment_ref"`
	CreatedAt       time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusCompleted: true, OrderStatusCancelled: true},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

// 管理者だけ COMPLETED -> CANCELLED を許可
var adminOverrideNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusCompleted: true, OrderStatusCancelled: true},
	OrderStatusCompleted: {OrderStatusCancelled: true},
	OrderStatusCancelled: {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

func CanOverride(from, to OrderStatus) bool {
	return adminOverrideNext[from][to]
}

// to へ遷移できる元ステータス一覧（CAS更新の条件に使う）
func PredecessorsOf(to OrderStatus, admin bool) []OrderStatus {
	table := validNext
	if admin {
		table = adminOverrideNext
	}
	var out []OrderStatus
	for _, from := range []OrderStatus{OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled} {
		if table[from][to] {
			out = append(out, from)
		}
	}
	return out
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s OrderStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}
