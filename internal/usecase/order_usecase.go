package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"templateshop/internal/domain/model"
	"templateshop/internal/domain/money"
	"templateshop/internal/events"
	repo "templateshop/internal/repository"

	"golang.org/x/sync/singleflight"
)

type OrderUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	cache      repo.OrderCache

	// 同じintentへの同時ポーリングをまとめる
	sfg singleflight.Group
	log *slog.Logger
	now func() time.Time
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	cache repo.OrderCache,
	log *slog.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		tx:         tx,
		orders:     orders,
		orderItems: orderItems,
		cache:      cache,
		log:        log,
		now:        time.Now,
	}
}

type OrderItemOutput struct {
	TemplateID        string `json:"template_id"`
	TemplateVariantID string `json:"template_variant_id,omitempty"`
	Name              string `json:"name"`
	UnitPrice         int64  `json:"unit_price"`
	Quantity          int64  `json:"quantity"`
	LineTotal         int64  `json:"line_total"`
}

type OrderOutput struct {
	ID              int64             `json:"id"`
	UserID          string            `json:"user_id"`
	Status          string            `json:"status"`
	Total           int64             `json:"total"`
	LinesTotal      int64             `json:"lines_total"`
	Amount          string            `json:"amount"`
	Currency        string            `json:"currency"`
	PaymentIntentID string            `json:"payment_intent_id"`
	PaymentRef      string            `json:"payment_ref,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderItemOutput `json:"items"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int64         `json:"total"`
}

const pollLookupTimeout = 5 * time.Second

// PollOrderByIntent は読み取り専用。確定前（や他人の注文）は NotFound を返す。
// NotFound は失敗ではなく「まだ」の意味
func (u *OrderUsecase) PollOrderByIntent(ctx context.Context, userID string, intentID string) (OrderOutput, error) {
	if userID == "" {
		return OrderOutput{}, ErrUnauthorized
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" || len(intentID) > 128 {
		return OrderOutput{}, withMessage(ErrValidation, "invalid intent id", nil)
	}

	// 共有する検索は呼び出し元のキャンセルから切り離す。各呼び出し元は自分のctxだけ待つ
	ch := u.sfg.DoChan(intentID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pollLookupTimeout)
		defer cancel()

		if cached, ok, err := u.cache.Get(ctx, intentID); err != nil {
			u.log.Warn("order cache get failed", "intent_id", intentID, "err", err)
		} else if ok {
			return cached, nil
		}

		o, err := u.orders.FindByPaymentIntentID(ctx, intentID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, withMessage(ErrNotFound, "order not created yet", nil)
		}
		if err != nil {
			return nil, internal(err)
		}
		items, err := u.orderItems.ListByOrderID(ctx, o.ID)
		if err != nil {
			return nil, internal(err)
		}

		found := model.OrderWithItems{Order: o, Items: items}
		if err := u.cache.Set(ctx, found); err != nil {
			u.log.Warn("order cache set failed", "intent_id", intentID, "err", err)
		}
		return found, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return OrderOutput{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return OrderOutput{}, res.Err
	}

	found := res.Val.(model.OrderWithItems)
	// 他人の注文は存在しないのと同じ扱い
	if found.Order.UserID != userID {
		return OrderOutput{}, withMessage(ErrNotFound, "order not created yet", nil)
	}
	return toOrderOutput(found.Order, found.Items), nil
}

// CancelOrder はPENDINGの注文だけキャンセルできる
func (u *OrderUsecase) CancelOrder(ctx context.Context, userID string, orderID int64) (OrderOutput, error) {
	if userID == "" {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, withMessage(ErrValidation, "invalid id", nil)
	}

	var out OrderOutput
	var intentID string

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return internal(err)
		}
		if o.UserID != userID {
			return ErrForbidden
		}
		if !model.CanTransition(o.Status, model.OrderStatusCancelled) {
			return withMessage(ErrInvalidState, "order is "+string(o.Status)+"; only PENDING orders can be cancelled", nil)
		}

		// 読んでから書くまでに状態が変わっていれば負け
		if err := r.Orders().UpdateStatus(ctx, orderID, model.PredecessorsOf(model.OrderStatusCancelled, false), model.OrderStatusCancelled); err != nil {
			if errors.Is(err, repo.ErrStatusConflict) {
				return withMessage(ErrInvalidState, "order status changed concurrently", nil)
			}
			return internal(err)
		}
		from := o.Status
		o.Status = model.OrderStatusCancelled

		ev, err := events.OrderCancelled(o, from, false, u.now())
		if err != nil {
			return internal(err)
		}
		if err := r.Outbox().Append(ctx, ev); err != nil {
			return internal(err)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return internal(err)
		}
		out = toOrderOutput(o, items)
		intentID = o.PaymentIntentID
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if err := u.cache.Delete(ctx, intentID); err != nil {
		u.log.Warn("order cache delete failed", "intent_id", intentID, "err", err)
	}
	u.log.Info("order cancelled", "order_id", orderID, "user_id", userID)
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID string, page, limit int) (OrderListOutput, error) {
	if userID == "" {
		return OrderListOutput{}, ErrUnauthorized
	}
	if page < 1 {
		return OrderListOutput{}, withMessage(ErrValidation, "invalid page", nil)
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, withMessage(ErrValidation, "invalid limit", nil)
	}

	orders, total, err := u.orders.ListByUserID(ctx, userID, page, limit)
	if err != nil {
		return OrderListOutput{}, internal(err)
	}

	out := OrderListOutput{Items: make([]OrderOutput, 0, len(orders)), Page: page, Limit: limit, Total: total}
	for _, o := range orders {
		items, err := u.orderItems.ListByOrderID(ctx, o.ID)
		if err != nil {
			return OrderListOutput{}, internal(err)
		}
		out.Items = append(out.Items, toOrderOutput(o, items))
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrder(ctx context.Context, userID string, orderID int64) (OrderOutput, error) {
	if userID == "" {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, withMessage(ErrValidation, "invalid id", nil)
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, ErrNotFound
	}
	if err != nil {
		return OrderOutput{}, internal(err)
	}
	if o.UserID != userID {
		return OrderOutput{}, ErrForbidden
	}

	items, err := u.orderItems.ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, internal(err)
	}
	return toOrderOutput(o, items), nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			TemplateID:        it.TemplateID,
			TemplateVariantID: it.TemplateVariantID,
			Name:              it.TemplateNameSnapshot,
			UnitPrice:         it.UnitPriceAtPurchase,
			Quantity:          it.Quantity,
			LineTotal:         it.UnitPriceAtPurchase * it.Quantity,
		})
	}
	return OrderOutput{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		Total:           o.Total,
		LinesTotal:      o.LinesTotal,
		Amount:          money.Format(o.Total, o.Currency),
		Currency:        o.Currency,
		PaymentIntentID: o.PaymentIntentID,
		PaymentRef:      o.PaymentRef,
		CreatedAt:       o.CreatedAt,
		Items:           outItems,
	}
}
