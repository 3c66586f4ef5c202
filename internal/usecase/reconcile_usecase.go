package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"templateshop/internal/domain/model"
	"templateshop/internal/events"
	"templateshop/internal/gateway"
	repo "templateshop/internal/repository"
)

// 通知の署名検証
type SignatureVerifier interface {
	Verify(header string, body []byte) error
}

// 通知処理の結果。どれもHTTP 200
type NotificationOutcome string

const (
	OutcomeOrderCreated    NotificationOutcome = "order_created"
	OutcomeDuplicate       NotificationOutcome = "duplicate"
	OutcomeEmptyCart       NotificationOutcome = "empty_cart"
	OutcomeFailureRecorded NotificationOutcome = "failure_recorded"
	OutcomeIgnored         NotificationOutcome = "ignored"
)

type NotificationResult struct {
	Outcome  NotificationOutcome `json:"outcome"`
	IntentID string              `json:"intent_id,omitempty"`
	OrderID  *int64              `json:"order_id,omitempty"`
}

// ReconcileUsecase は決済通知から注文を確定する。
// 注文の作成経路はここだけ
type ReconcileUsecase struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository
	intents  repo.PaymentIntentRepository
	verifier SignatureVerifier

	currency string
	log      *slog.Logger
	now      func() time.Time
}

func NewReconcileUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	intents repo.PaymentIntentRepository,
	verifier SignatureVerifier,
	currency string,
	log *slog.Logger,
) *ReconcileUsecase {
	return &ReconcileUsecase{
		tx:       tx,
		orders:   orders,
		intents:  intents,
		verifier: verifier,
		currency: currency,
		log:      log,
		now:      time.Now,
	}
}

// HandlePaymentNotification は署名を検証してからイベントを処理する。
// 同じ通知が何度届いても注文は1件
func (u *ReconcileUsecase) HandlePaymentNotification(ctx context.Context, signatureHeader string, body []byte) (NotificationResult, error) {
	if err := u.verifier.Verify(signatureHeader, body); err != nil {
		u.log.Warn("security: rejected payment notification", "reason", err.Error(), "body_bytes", len(body))
		return NotificationResult{}, withMessage(ErrForgedNotification, "", err)
	}

	ev, err := gateway.ParseEvent(body)
	if err != nil {
		return NotificationResult{}, withMessage(ErrValidation, err.Error(), err)
	}

	switch ev.Type {
	case gateway.EventIntentSucceeded:
		return u.reconcileSucceeded(ctx, ev)
	case gateway.EventIntentFailed:
		return u.recordFailure(ctx, ev)
	default:
		u.log.Info("ignored payment notification", "type", ev.Type, "intent_id", ev.IntentID)
		return NotificationResult{Outcome: OutcomeIgnored, IntentID: ev.IntentID}, nil
	}
}

func (u *ReconcileUsecase) reconcileSucceeded(ctx context.Context, ev gateway.Event) (NotificationResult, error) {
	userID := ev.Metadata.UserID
	log := u.log.With("intent_id", ev.IntentID, "user_id", userID)

	// 再送ならここで終わり
	if o, err := u.orders.FindByPaymentIntentID(ctx, ev.IntentID); err == nil {
		log.Info("payment notification already reconciled", "order_id", o.ID)
		return duplicateResult(ev.IntentID, o.ID), nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return NotificationResult{}, internal(err)
	}

	var result NotificationResult
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var items []model.CartItem
		cart, err := r.Carts().LockByUserID(ctx, userID)
		switch {
		case err == nil:
			// ロック待ちの間に別の配送が確定させたかもしれない
			if o, err := r.Orders().FindByPaymentIntentID(ctx, ev.IntentID); err == nil {
				result = duplicateResult(ev.IntentID, o.ID)
				return nil
			} else if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
			items, err = r.CartItems().ListByCartID(ctx, cart.ID)
			if err != nil {
				return err
			}
		case errors.Is(err, repo.ErrNotFound):
		default:
			return err
		}

		if len(items) == 0 {
			log.Warn("payment succeeded but cart has no lines; no order created",
				"amount_minor_units", ev.AmountMinorUnits, "currency", ev.Currency)
			if err := r.PaymentIntents().UpsertStatus(ctx, u.intentMirror(ev, model.PaymentIntentSucceeded, nil)); err != nil {
				return err
			}
			result = NotificationResult{Outcome: OutcomeEmptyCart, IntentID: ev.IntentID}
			return nil
		}

		priced, missing, err := priceLines(ctx, r.Templates(), items)
		if err != nil {
			return err
		}
		var dropped []model.CartItem
		if len(missing) > 0 {
			// 物理削除されたテンプレートは値付けできないので注文から外す。
			// カートには残さず、order.completed の dropped_lines に記録する
			dropped = linesByID(items, missing)
			log.Warn("cart lines reference missing templates", "line_ids", missing)
		}
		linesTotal, itemCount := sumLines(priced)

		mirror, err := r.PaymentIntents().FindByID(ctx, ev.IntentID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		total := chargedAmount(ev, mirror, linesTotal)
		currency := u.orderCurrency(ev, mirror, priced)

		hash := cartHash(items)
		if total != linesTotal || (ev.Metadata.ItemCount != 0 && ev.Metadata.ItemCount != itemCount) ||
			(ev.Metadata.CartHash != "" && ev.Metadata.CartHash != hash) {
			log.Warn("cart changed between checkout and payment",
				"charged_total", total, "lines_total", linesTotal,
				"intent_item_count", ev.Metadata.ItemCount, "cart_item_count", itemCount,
				"intent_cart_hash", ev.Metadata.CartHash, "cart_hash", hash,
			)
		}

		order := model.Order{
			UserID:          userID,
			Status:          model.OrderStatusCompleted,
			Total:           total,
			LinesTotal:      linesTotal,
			Currency:        currency,
			PaymentIntentID: ev.IntentID,
			PaymentRef:      ev.PaymentRef,
		}
		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID

		orderItems := make([]model.OrderItem, 0, len(priced))
		for _, l := range priced {
			name := l.Template.Name
			if l.Variant != nil {
				name += " / " + l.Variant.Name
			}
			orderItems = append(orderItems, model.OrderItem{
				TemplateID:           l.Item.TemplateID,
				TemplateVariantID:    l.Item.TemplateVariantID,
				TemplateNameSnapshot: name,
				UnitPriceAtPurchase:  l.UnitPrice,
				Quantity:             l.Item.Quantity,
			})
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return err
		}

		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return err
		}

		if err := r.PaymentIntents().UpsertStatus(ctx, u.intentMirror(ev, model.PaymentIntentSucceeded, &orderID)); err != nil {
			return err
		}

		outboxEvent, err := events.OrderCompleted(order, orderItems, dropped, u.now())
		if err != nil {
			return err
		}
		if err := r.Outbox().Append(ctx, outboxEvent); err != nil {
			return err
		}

		result = NotificationResult{Outcome: OutcomeOrderCreated, IntentID: ev.IntentID, OrderID: &orderID}
		return nil
	})

	if errors.Is(err, repo.ErrDuplicatePaymentIntent) {
		// 同時配送で負けた側。勝った側の注文がある
		log.Info("concurrent delivery lost the race; order already exists")
		if o, ferr := u.orders.FindByPaymentIntentID(ctx, ev.IntentID); ferr == nil {
			return duplicateResult(ev.IntentID, o.ID), nil
		}
		return NotificationResult{Outcome: OutcomeDuplicate, IntentID: ev.IntentID}, nil
	}
	if err != nil {
		log.Error("failed to reconcile payment", "err", err)
		return NotificationResult{}, internal(err)
	}

	if result.Outcome == OutcomeOrderCreated {
		log.Info("order created from payment", "order_id", *result.OrderID)
	}
	return result, nil
}

// 失敗を記録するだけ。カートはそのまま（再チェックアウトできる）
func (u *ReconcileUsecase) recordFailure(ctx context.Context, ev gateway.Event) (NotificationResult, error) {
	if err := u.intents.UpsertStatus(ctx, u.intentMirror(ev, model.PaymentIntentFailed, nil)); err != nil {
		return NotificationResult{}, internal(err)
	}
	u.log.Info("payment failed", "intent_id", ev.IntentID, "user_id", ev.Metadata.UserID, "reason", ev.FailureReason)
	return NotificationResult{Outcome: OutcomeFailureRecorded, IntentID: ev.IntentID}, nil
}

func (u *ReconcileUsecase) intentMirror(ev gateway.Event, status model.PaymentIntentStatus, orderID *int64) model.PaymentIntent {
	currency := strings.ToUpper(ev.Currency)
	if currency == "" {
		currency = u.currency
	}
	return model.PaymentIntent{
		IntentID:         ev.IntentID,
		UserID:           ev.Metadata.UserID,
		AmountMinorUnits: ev.AmountMinorUnits,
		Currency:         currency,
		Status:           status,
		ItemCount:        ev.Metadata.ItemCount,
		CartHash:         ev.Metadata.CartHash,
		OrderID:          orderID,
		FailureReason:    ev.FailureReason,
	}
}

func (u *ReconcileUsecase) orderCurrency(ev gateway.Event, mirror model.PaymentIntent, lines []pricedLine) string {
	if ev.Currency != "" {
		return strings.ToUpper(ev.Currency)
	}
	if mirror.Currency != "" {
		return mirror.Currency
	}
	cur, _ := linesCurrency(lines, u.currency)
	return cur
}

// 注文の合計は実際に決済された額。通知に無ければ作成時の額、それも無ければ明細合計
func chargedAmount(ev gateway.Event, mirror model.PaymentIntent, linesTotal int64) int64 {
	if ev.AmountMinorUnits > 0 {
		return ev.AmountMinorUnits
	}
	if mirror.AmountMinorUnits > 0 {
		return mirror.AmountMinorUnits
	}
	return linesTotal
}

func duplicateResult(intentID string, orderID int64) NotificationResult {
	return NotificationResult{Outcome: OutcomeDuplicate, IntentID: intentID, OrderID: &orderID}
}
