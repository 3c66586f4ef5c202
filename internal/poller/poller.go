package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNotYet は「注文がまだ作られていない」。失敗ではない
var ErrNotYet = errors.New("order not created yet")

// ErrTerminal は再試行しても変わらないエラー（認証切れなど）
var ErrTerminal = errors.New("terminal poll error")

type Status string

const (
	// 注文が確認できた
	StatusConfirmed Status = "confirmed"
	// 回数を使い切った。「処理中です。注文履歴を後で確認してください」
	StatusPending Status = "pending"
)

type OrderItem struct {
	TemplateID string `json:"template_id" yaml:"template_id"`
	Name       string `json:"name" yaml:"name"`
	UnitPrice  int64  `json:"unit_price" yaml:"unit_price"`
	Quantity   int64  `json:"quantity" yaml:"quantity"`
}

type Order struct {
	ID              int64       `json:"id" yaml:"id"`
	Status          string      `json:"status" yaml:"status"`
	Total           int64       `json:"total" yaml:"total"`
	Amount          string      `json:"amount" yaml:"amount"`
	Currency        string      `json:"currency" yaml:"currency"`
	PaymentIntentID string      `json:"payment_intent_id" yaml:"payment_intent_id"`
	Items           []OrderItem `json:"items" yaml:"items"`
}

type Result struct {
	Status   Status `json:"status" yaml:"status"`
	IntentID string `json:"intent_id" yaml:"intent_id"`
	Attempts int    `json:"attempts" yaml:"attempts"`
	Order    *Order `json:"order,omitempty" yaml:"order,omitempty"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Fetcher は注文を1回だけ問い合わせる。未作成なら ErrNotYet
type Fetcher interface {
	FetchOrder(ctx context.Context, intentID string) (Order, error)
}

type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 10, InitialDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
}

type Poller struct {
	fetch Fetcher
	cfg   Config
	log   *slog.Logger
}

func New(fetch Fetcher, cfg Config, log *slog.Logger) *Poller {
	def := DefaultConfig()
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	return &Poller{fetch: fetch, cfg: cfg, log: log}
}

const pendingMessage = "order still processing, check your orders page"

// Wait は注文が現れるまで指数バックオフで問い合わせる。
// 上限に達したら StatusPending を返す（エラーにはしない）
func (p *Poller) Wait(ctx context.Context, intentID string) (Result, error) {
	if intentID == "" {
		return Result{}, fmt.Errorf("%w: empty intent id", ErrTerminal)
	}

	res := Result{IntentID: intentID}
	delay := p.cfg.InitialDelay

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return res, ctx.Err()
			}
			delay *= 2
			if delay > p.cfg.MaxDelay {
				delay = p.cfg.MaxDelay
			}
		}
		res.Attempts = attempt

		o, err := p.fetch.FetchOrder(ctx, intentID)
		switch {
		case err == nil:
			res.Status = StatusConfirmed
			res.Order = &o
			return res, nil
		case errors.Is(err, ErrTerminal):
			return res, err
		case errors.Is(err, ErrNotYet):
			p.log.Debug("order not yet created", "intent_id", intentID, "attempt", attempt)
		default:
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			// 一時的な失敗も「まだ」と同じく待って再試行
			p.log.Warn("poll failed, retrying", "intent_id", intentID, "attempt", attempt, "err", err)
		}
	}

	res.Status = StatusPending
	res.Message = pendingMessage
	return res, nil
}
