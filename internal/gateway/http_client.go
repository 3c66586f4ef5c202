package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"templateshop/internal/domain/money"
)

// HTTPGateway は JSON API のゲートウェイを呼ぶ。
type HTTPGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewHTTPGateway(baseURL, secretKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

type createIntentBody struct {
	Amount   string   `json:"amount"`
	Currency string   `json:"currency"`
	Metadata Metadata `json:"metadata"`
}

type gatewayErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (CreateIntentResult, error) {
	payload, err := json.Marshal(createIntentBody{
		Amount:   money.Format(req.AmountMinorUnits, req.Currency),
		Currency: strings.ToLower(req.Currency),
		Metadata: req.Metadata,
	})
	if err != nil {
		return CreateIntentResult{}, fmt.Errorf("marshal create intent: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payment_intents", bytes.NewReader(payload))
	if err != nil {
		return CreateIntentResult{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.secretKey)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// タイムアウトもここ
		return CreateIntentResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return CreateIntentResult{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return CreateIntentResult{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var eb gatewayErrorBody
		_ = json.Unmarshal(body, &eb)
		return CreateIntentResult{}, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, eb.Error.Message)
	}

	var out CreateIntentResult
	if err := json.Unmarshal(body, &out); err != nil {
		return CreateIntentResult{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if out.IntentID == "" || out.ClientSecret == "" {
		return CreateIntentResult{}, fmt.Errorf("%w: incomplete response", ErrUnavailable)
	}
	return out, nil
}

// Retryable は呼び出し側が後で再試行してよいエラーか
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
