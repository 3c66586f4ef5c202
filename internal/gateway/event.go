package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	EventIntentSucceeded = "intent.succeeded"
	EventIntentFailed    = "intent.failed"
)

var ErrMalformedEvent = errors.New("malformed payment event")

// ゲートウェイから届く通知本体
type Event struct {
	ID               string   `json:"id"`
	Type             string   `json:"type"`
	IntentID         string   `json:"intentId"`
	AmountMinorUnits int64    `json:"amountMinorUnits"`
	Currency         string   `json:"currency"`
	PaymentRef       string   `json:"paymentRef,omitempty"`
	FailureReason    string   `json:"failureReason,omitempty"`
	Metadata         Metadata `json:"metadata"`
}

// ParseEvent は署名検証済みのbodyを読む。intentIdとmetadata.userIdは必須
func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.IntentID == "" {
		return Event{}, fmt.Errorf("%w: intentId is required", ErrMalformedEvent)
	}
	if ev.Metadata.UserID == "" {
		return Event{}, fmt.Errorf("%w: metadata.userId is required", ErrMalformedEvent)
	}
	if ev.AmountMinorUnits < 0 {
		return Event{}, fmt.Errorf("%w: negative amount", ErrMalformedEvent)
	}
	return ev, nil
}
