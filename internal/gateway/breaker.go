package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	// 連続でこの回数ErrUnavailableになったら開く
	ConsecutiveFailures uint32
	// 開いてから半開にするまで
	OpenTimeout time.Duration
}

// BreakerGateway は下位のGatewayをサーキットブレーカーで包む。
// 4xx（ErrRejected）は失敗として数えない
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[CreateIntentResult]
}

func NewBreakerGateway(next Gateway, s BreakerSettings, log *slog.Logger) *BreakerGateway {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[CreateIntentResult](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerGateway{next: next, cb: cb}
}

func (b *BreakerGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (CreateIntentResult, error) {
	res, err := b.cb.Execute(func() (CreateIntentResult, error) {
		return b.next.CreateIntent(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return CreateIntentResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, err
}

func (b *BreakerGateway) State() gobreaker.State {
	return b.cb.State()
}
