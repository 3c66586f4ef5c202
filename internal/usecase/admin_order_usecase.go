package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"templateshop/internal/domain/model"
	"templateshop/internal/events"
	repo "templateshop/internal/repository"
)

type AdminOrderUsecase struct {
	tx      repo.TransactionManager
	orders  repo.OrderRepository
	items   repo.OrderItemRepository
	intents repo.PaymentIntentRepository
	audits  repo.AuditLogRepository
	cache   repo.OrderCache
	log     *slog.Logger
	now     func() time.Time
}

func NewAdminOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	items repo.OrderItemRepository,
	intents repo.PaymentIntentRepository,
	audits repo.AuditLogRepository,
	cache repo.OrderCache,
	log *slog.Logger,
) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, orders: orders, items: items, intents: intents, audits: audits, cache: cache, log: log, now: time.Now}
}

type AdminOverrideStatusInput struct {
	Status string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, withMessage(ErrValidation, "invalid page", nil)
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, withMessage(ErrValidation, "invalid limit", nil)
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return OrderListOutput{}, withMessage(ErrValidation, "invalid status", nil)
	}

	orders, total, err := u.orders.ListAdmin(ctx, f)
	if err != nil {
		return OrderListOutput{}, internal(err)
	}

	out := OrderListOutput{Items: make([]OrderOutput, 0, len(orders)), Page: f.Page, Limit: f.Limit, Total: total}
	for _, o := range orders {
		items, err := u.items.ListByOrderID(ctx, o.ID)
		if err != nil {
			return OrderListOutput{}, internal(err)
		}
		out.Items = append(out.Items, toOrderOutput(o, items))
	}
	return out, nil
}

// OverrideStatus は管理者によるステータス変更。COMPLETED -> CANCELLED も許可する。
// 変更は監査ログに残す
func (u *AdminOrderUsecase) OverrideStatus(ctx context.Context, actorAdminUserID string, orderID int64, in AdminOverrideStatusInput) (OrderOutput, error) {
	if actorAdminUserID == "" {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, withMessage(ErrValidation, "invalid id", nil)
	}
	to := model.OrderStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if !to.Valid() {
		return OrderOutput{}, withMessage(ErrValidation, "invalid status", nil)
	}

	var out OrderOutput
	var intentID string
	changed := false

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return internal(err)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return internal(err)
		}

		// すでに同じなら何もしない
		if o.Status == to {
			out = toOrderOutput(o, items)
			return nil
		}
		if !model.CanOverride(o.Status, to) {
			return withMessage(ErrInvalidState, "cannot change "+string(o.Status)+" order to "+string(to), nil)
		}

		from := o.Status
		if err := r.Orders().UpdateStatus(ctx, orderID, []model.OrderStatus{from}, to); err != nil {
			if errors.Is(err, repo.ErrStatusConflict) {
				return withMessage(ErrInvalidState, "order status changed concurrently", nil)
			}
			return internal(err)
		}
		o.Status = to

		before, _ := json.Marshal(map[string]string{"status": string(from)})
		after, _ := json.Marshal(map[string]string{"status": string(to)})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionOverrideOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   strconv.FormatInt(orderID, 10),
			BeforeJSON:   string(before),
			AfterJSON:    string(after),
			CreatedAt:    u.now(),
		}); err != nil {
			return internal(err)
		}

		if to == model.OrderStatusCancelled {
			ev, err := events.OrderCancelled(o, from, true, u.now())
			if err != nil {
				return internal(err)
			}
			if err := r.Outbox().Append(ctx, ev); err != nil {
				return internal(err)
			}
		}

		out = toOrderOutput(o, items)
		intentID = o.PaymentIntentID
		changed = true
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if changed {
		if err := u.cache.Delete(ctx, intentID); err != nil {
			u.log.Warn("order cache delete failed", "intent_id", intentID, "err", err)
		}
		u.log.Info("order status overridden", "order_id", orderID, "actor", actorAdminUserID, "status", string(to))
	}
	return out, nil
}

type AuditEntryOutput struct {
	ID          int64           `json:"id"`
	ActorUserID string          `json:"actor_user_id"`
	Action      string          `json:"action"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderHistory は注文に対する管理者操作の履歴
func (u *AdminOrderUsecase) OrderHistory(ctx context.Context, orderID int64) ([]AuditEntryOutput, error) {
	if orderID <= 0 {
		return nil, withMessage(ErrValidation, "invalid id", nil)
	}
	if _, err := u.orders.FindByID(ctx, orderID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, internal(err)
	}

	logs, err := u.audits.ListByResource(ctx, model.AuditResourceOrder, strconv.FormatInt(orderID, 10), 200)
	if err != nil {
		return nil, internal(err)
	}
	out := make([]AuditEntryOutput, 0, len(logs))
	for _, l := range logs {
		out = append(out, AuditEntryOutput{
			ID:          l.ID,
			ActorUserID: l.ActorUserID,
			Action:      string(l.Action),
			Before:      rawJSON(l.BeforeJSON),
			After:       rawJSON(l.AfterJSON),
			CreatedAt:   l.CreatedAt,
		})
	}
	return out, nil
}

func rawJSON(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}

type UnreconciledIntentOutput struct {
	IntentID         string    `json:"intent_id"`
	UserID           string    `json:"user_id"`
	AmountMinorUnits int64     `json:"amount_minor_units"`
	Currency         string    `json:"currency"`
	ItemCount        int64     `json:"item_count"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// 決済は成功したが注文が無いintent（返金などの手当てが必要）
func (u *AdminOrderUsecase) ListUnreconciledIntents(ctx context.Context, limit int) ([]UnreconciledIntentOutput, error) {
	if limit < 1 || limit > 200 {
		return nil, withMessage(ErrValidation, "invalid limit", nil)
	}
	list, err := u.intents.ListUnreconciled(ctx, limit)
	if err != nil {
		return nil, internal(err)
	}
	out := make([]UnreconciledIntentOutput, 0, len(list))
	for _, pi := range list {
		out = append(out, UnreconciledIntentOutput{
			IntentID:         pi.IntentID,
			UserID:           pi.UserID,
			AmountMinorUnits: pi.AmountMinorUnits,
			Currency:         pi.Currency,
			ItemCount:        pi.ItemCount,
			UpdatedAt:        pi.UpdatedAt,
		})
	}
	return out, nil
}

// 期間パラメータ（RFC3339）。空なら nil
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
