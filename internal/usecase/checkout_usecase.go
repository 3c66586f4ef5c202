package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"templateshop/internal/domain/model"
	"templateshop/internal/domain/money"
	"templateshop/internal/gateway"
	repo "templateshop/internal/repository"

	"github.com/google/uuid"
)

// CheckoutUsecase は決済開始。カートも注文も変更しない
type CheckoutUsecase struct {
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	templates repo.TemplateRepository
	intents   repo.PaymentIntentRepository
	gw        gateway.Gateway

	gatewayTimeout time.Duration
	currency       string
	log            *slog.Logger
}

func NewCheckoutUsecase(
	carts repo.CartRepository,
	cartItems repo.CartItemRepository,
	templates repo.TemplateRepository,
	intents repo.PaymentIntentRepository,
	gw gateway.Gateway,
	gatewayTimeout time.Duration,
	currency string,
	log *slog.Logger,
) *CheckoutUsecase {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	return &CheckoutUsecase{
		carts:          carts,
		cartItems:      cartItems,
		templates:      templates,
		intents:        intents,
		gw:             gw,
		gatewayTimeout: gatewayTimeout,
		currency:       currency,
		log:            log,
	}
}

type CheckoutOutput struct {
	IntentID         string `json:"intent_id"`
	ClientSecret     string `json:"client_secret"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
}

type unavailableLines struct {
	LineIDs []int64 `json:"line_ids"`
}

// StartCheckout はカートの現在価格で決済インテントを作る。
// ゲートウェイ呼び出しが成功するまでローカルには何も書かない
func (u *CheckoutUsecase) StartCheckout(ctx context.Context, userID string) (CheckoutOutput, error) {
	if userID == "" {
		return CheckoutOutput{}, ErrUnauthorized
	}

	cart, err := u.carts.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CheckoutOutput{}, ErrCartEmpty
	}
	if err != nil {
		return CheckoutOutput{}, internal(err)
	}
	items, err := u.cartItems.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CheckoutOutput{}, internal(err)
	}
	if len(items) == 0 {
		return CheckoutOutput{}, ErrCartEmpty
	}

	priced, missing, err := priceLines(ctx, u.templates, items)
	if err != nil {
		return CheckoutOutput{}, internal(err)
	}
	bad := append([]int64{}, missing...)
	for _, l := range priced {
		if !l.Purchasable() {
			bad = append(bad, l.Item.ID)
		}
	}
	if len(bad) > 0 {
		he := withMessage(ErrTemplateUnavailable, "some cart lines reference unavailable templates", nil).(*HTTPError)
		he.Details = unavailableLines{LineIDs: bad}
		return CheckoutOutput{}, he
	}

	total, itemCount := sumLines(priced)
	if total <= 0 {
		return CheckoutOutput{}, withMessage(ErrValidation, "cart total must be positive", nil)
	}
	currency, ok := linesCurrency(priced, u.currency)
	if !ok {
		return CheckoutOutput{}, withMessage(ErrValidation, "cart mixes currencies", nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, u.gatewayTimeout)
	defer cancel()

	hash := cartHash(items)
	res, err := u.gw.CreateIntent(callCtx, gateway.CreateIntentRequest{
		AmountMinorUnits: total,
		Currency:         currency,
		Metadata: gateway.Metadata{
			UserID:    userID,
			ItemCount: itemCount,
			CartHash:  hash,
		},
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		if errors.Is(err, gateway.ErrRejected) {
			u.log.Error("payment gateway rejected intent", "user_id", userID, "amount", total, "err", err)
			return CheckoutOutput{}, withMessage(ErrGatewayRejected, "", err)
		}
		u.log.Warn("payment gateway unavailable", "user_id", userID, "err", err)
		return CheckoutOutput{}, withMessage(ErrGatewayUnavailable, "", err)
	}

	// ミラーが書けなくても通知側のupsertで作られるので、ここでは失敗にしない
	if err := u.intents.Create(ctx, model.PaymentIntent{
		IntentID:         res.IntentID,
		UserID:           userID,
		AmountMinorUnits: total,
		Currency:         currency,
		Status:           model.PaymentIntentCreated,
		ItemCount:        itemCount,
		CartHash:         hash,
	}); err != nil {
		u.log.Error("failed to record payment intent", "intent_id", res.IntentID, "err", err)
	}

	u.log.Info("checkout started", "user_id", userID, "intent_id", res.IntentID, "amount", total, "currency", currency)

	return CheckoutOutput{
		IntentID:         res.IntentID,
		ClientSecret:     res.ClientSecret,
		AmountMinorUnits: total,
		Amount:           money.Format(total, currency),
		Currency:         currency,
	}, nil
}
