package events

import (
	"encoding/json"
	"fmt"
	"time"

	"templateshop/internal/domain/model"

	"github.com/google/uuid"
)

const (
	Version  = 1
	Producer = "templateshop-api"
)

// Kafkaに流すメッセージの外枠。outboxのpayload列にこのままJSONで入る
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // payment_intent_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderLine struct {
	TemplateID        string `json:"template_id"`
	TemplateVariantID string `json:"template_variant_id,omitempty"`
	Quantity          int64  `json:"quantity"`
	UnitPrice         int64  `json:"unit_price"`
}

type OrderCompletedPayload struct {
	OrderID         int64       `json:"order_id"`
	UserID          string      `json:"user_id"`
	PaymentIntentID string      `json:"payment_intent_id"`
	Total           int64       `json:"total"`
	LinesTotal      int64       `json:"lines_total"`
	Currency        string      `json:"currency"`
	Items           []OrderLine `json:"items"`
	// 値付けできずに注文から外したカート行
	DroppedLines    []OrderLine `json:"dropped_lines,omitempty"`
}

type OrderCancelledPayload struct {
	OrderID         int64             `json:"order_id"`
	UserID          string            `json:"user_id"`
	PaymentIntentID string            `json:"payment_intent_id"`
	From            model.OrderStatus `json:"from"`
	ByAdmin         bool              `json:"by_admin"`
}

// NewOutboxEvent は payload を包んで outbox 行にする。
func NewOutboxEvent(eventType string, order model.Order, payload any, now time.Time) (model.OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.OutboxEvent{}, fmt.Errorf("marshal payload: %w", err)
	}

	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  Version,
		OccurredAt:    now.UTC(),
		Producer:      Producer,
		CorrelationID: order.PaymentIntentID,
		Payload:       body,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return model.OutboxEvent{}, fmt.Errorf("marshal envelope: %w", err)
	}

	return model.OutboxEvent{
		ID:          env.EventID,
		AggregateID: fmt.Sprintf("%d", order.ID),
		EventType:   eventType,
		Payload:     string(raw),
		CreatedAt:   env.OccurredAt,
	}, nil
}

// OrderCompleted は注文確定イベントを作る
func OrderCompleted(o model.Order, items []model.OrderItem, dropped []model.CartItem, now time.Time) (model.OutboxEvent, error) {
	lines := make([]OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, OrderLine{
			TemplateID:        it.TemplateID,
			TemplateVariantID: it.TemplateVariantID,
			Quantity:          it.Quantity,
			UnitPrice:         it.UnitPriceAtPurchase,
		})
	}
	var droppedLines []OrderLine
	for _, it := range dropped {
		droppedLines = append(droppedLines, OrderLine{
			TemplateID:        it.TemplateID,
			TemplateVariantID: it.TemplateVariantID,
			Quantity:          it.Quantity,
		})
	}
	return NewOutboxEvent(model.EventOrderCompleted, o, OrderCompletedPayload{
		OrderID:         o.ID,
		UserID:          o.UserID,
		PaymentIntentID: o.PaymentIntentID,
		Total:           o.Total,
		LinesTotal:      o.LinesTotal,
		Currency:        o.Currency,
		Items:           lines,
		DroppedLines:    droppedLines,
	}, now)
}

func OrderCancelled(o model.Order, from model.OrderStatus, byAdmin bool, now time.Time) (model.OutboxEvent, error) {
	return NewOutboxEvent(model.EventOrderCancelled, o, OrderCancelledPayload{
		OrderID:         o.ID,
		UserID:          o.UserID,
		PaymentIntentID: o.PaymentIntentID,
		From:            from,
		ByAdmin:         byAdmin,
	}, now)
}
