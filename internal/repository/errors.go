package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// 同じpayment_intent_idの注文が既にある（一意制約）
	ErrDuplicatePaymentIntent = errors.New("order for payment intent already exists")

	// CAS更新で遷移元ステータスが一致しなかった
	ErrStatusConflict = errors.New("order status changed concurrently or transition not allowed")
)
