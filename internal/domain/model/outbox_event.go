package model

import "time"

const (
	EventOrderCompleted = "order.completed"
	EventOrderCancelled = "order.cancelled"
)

// 状態変更と同じトランザクションで書くイベント
type OutboxEvent struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	AggregateID string     `gorm:"type:varchar(128);not null;index" json:"aggregate_id"`
	EventType   string     `gorm:"type:varchar(64);not null" json:"event_type"`
	Payload     string     `gorm:"type:text;not null" json:"payload"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	PublishedAt *time.Time `gorm:"index" json:"published_at,omitempty"`
}
