package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownIntent = errors.New("unknown intent")

type fakeIntent struct {
	req    CreateIntentRequest
	result CreateIntentResult
}

// FakeGateway はローカル開発用のプロセス内ゲートウェイ。
// 作ったインテントに対して署名付き通知を組み立てられる
type FakeGateway struct {
	mu      sync.Mutex
	intents map[string]fakeIntent
	byKey   map[string]string

	secret string
	now    func() time.Time
}

func NewFakeGateway(webhookSecret string) *FakeGateway {
	return &FakeGateway{
		intents: map[string]fakeIntent{},
		byKey:   map[string]string{},
		secret:  webhookSecret,
		now:     time.Now,
	}
}

func (f *FakeGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (CreateIntentResult, error) {
	if err := ctx.Err(); err != nil {
		return CreateIntentResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if req.AmountMinorUnits <= 0 {
		return CreateIntentResult{}, fmt.Errorf("%w: amount must be positive", ErrRejected)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if req.IdempotencyKey != "" {
		if id, ok := f.byKey[req.IdempotencyKey]; ok {
			return f.intents[id].result, nil
		}
	}

	id := "pi_" + uuid.NewString()
	res := CreateIntentResult{IntentID: id, ClientSecret: id + "_secret_" + uuid.NewString()[:8]}
	f.intents[id] = fakeIntent{req: req, result: res}
	if req.IdempotencyKey != "" {
		f.byKey[req.IdempotencyKey] = id
	}
	return res, nil
}

// SignedEvent はインテントの通知bodyと署名ヘッダを返す
func (f *FakeGateway) SignedEvent(intentID, eventType, failureReason string) ([]byte, string, error) {
	f.mu.Lock()
	in, ok := f.intents[intentID]
	f.mu.Unlock()
	if !ok {
		return nil, "", ErrUnknownIntent
	}

	ev := Event{
		ID:               "evt_" + uuid.NewString(),
		Type:             eventType,
		IntentID:         intentID,
		AmountMinorUnits: in.req.AmountMinorUnits,
		Currency:         in.req.Currency,
		Metadata:         in.req.Metadata,
	}
	switch eventType {
	case EventIntentSucceeded:
		ev.PaymentRef = "ch_" + uuid.NewString()
	case EventIntentFailed:
		ev.FailureReason = failureReason
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return nil, "", err
	}
	return body, Sign(f.secret, body, f.now()), nil
}
