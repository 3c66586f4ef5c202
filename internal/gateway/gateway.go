// Package gateway は外部の決済ゲートウェイ（Payment Intent）との境界。
// インテント作成の呼び出しと、署名付き通知の検証・解析を扱う。
package gateway

import (
	"context"
	"errors"
)

var (
	// タイムアウト・通信失敗・5xx・ブレーカー開放。再試行してよい
	ErrUnavailable = errors.New("payment gateway unavailable")
	// 4xx。同じ内容で再試行しても通らない
	ErrRejected = errors.New("payment gateway rejected the request")
)

// インテントに付けるメタデータ。通知にそのまま戻ってくる
type Metadata struct {
	UserID    string `json:"userId"`
	ItemCount int64  `json:"itemCount"`
	CartHash  string `json:"cartHash"`
}

type CreateIntentRequest struct {
	AmountMinorUnits int64
	Currency         string
	Metadata         Metadata
	// 同じキーなら同じインテントを返してもらう
	IdempotencyKey string
}

type CreateIntentResult struct {
	IntentID     string `json:"intentId"`
	ClientSecret string `json:"clientSecret"`
}

type Gateway interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (CreateIntentResult, error)
}
