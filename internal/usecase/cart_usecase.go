package usecase

import (
	"context"
	"errors"
	"strings"

	"templateshop/internal/domain/model"
	"templateshop/internal/domain/money"
	repo "templateshop/internal/repository"
)

// CartUsecase は /cart の業務ロジック。
// 更新系はすべてカート行をロックしてから行う（注文確定と同じロック）
type CartUsecase struct {
	tx        repo.TransactionManager
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	templates repo.TemplateRepository

	maxLineQuantity int64
	currency        string
}

func NewCartUsecase(
	tx repo.TransactionManager,
	carts repo.CartRepository,
	cartItems repo.CartItemRepository,
	templates repo.TemplateRepository,
	maxLineQuantity int64,
	currency string,
) *CartUsecase {
	if maxLineQuantity < 1 {
		maxLineQuantity = 100
	}
	return &CartUsecase{
		tx:              tx,
		carts:           carts,
		cartItems:       cartItems,
		templates:       templates,
		maxLineQuantity: maxLineQuantity,
		currency:        currency,
	}
}

type CartLineOutput struct {
	ID                int64  `json:"id"`
	TemplateID        string `json:"template_id"`
	TemplateVariantID string `json:"template_variant_id,omitempty"`
	Name              string `json:"name"`
	UnitPrice         int64  `json:"unit_price"`
	Quantity          int64  `json:"quantity"`
	LineTotal         int64  `json:"line_total"`
	// falseなら決済前に削除が必要
	Purchasable bool `json:"purchasable"`
}

type CartOutput struct {
	Items     []CartLineOutput `json:"items"`
	Total     int64            `json:"total"`
	Amount    string           `json:"amount"`
	Currency  string           `json:"currency"`
	ItemCount int64            `json:"item_count"`
}

type AddCartLineInput struct {
	TemplateID string
	VariantID  string
	Quantity   int64
}

// AddOrIncrement は明細を追加する。同じテンプレート（とバリエーション）なら数量を加算
func (u *CartUsecase) AddOrIncrement(ctx context.Context, userID string, in AddCartLineInput) (CartOutput, error) {
	if userID == "" {
		return CartOutput{}, ErrUnauthorized
	}
	in.TemplateID = strings.TrimSpace(in.TemplateID)
	in.VariantID = strings.TrimSpace(in.VariantID)
	if in.TemplateID == "" {
		return CartOutput{}, withMessage(ErrValidation, "template_id is required", nil)
	}
	if in.Quantity < 1 {
		return CartOutput{}, ErrInvalidQuantity
	}
	if in.Quantity > u.maxLineQuantity {
		return CartOutput{}, u.limitError()
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().LockOrCreateByUserID(ctx, userID)
		if err != nil {
			return internal(err)
		}

		// 公開中のテンプレート（バリエーション）だけ追加できる
		t, err := r.Templates().FindByID(ctx, in.TemplateID)
		if errors.Is(err, repo.ErrNotFound) {
			return withMessage(ErrTemplateUnavailable, "template not found", nil)
		}
		if err != nil {
			return internal(err)
		}
		var v *model.TemplateVariant
		if in.VariantID != "" {
			found, err := r.Templates().FindVariant(ctx, in.VariantID)
			if errors.Is(err, repo.ErrNotFound) {
				return withMessage(ErrTemplateUnavailable, "variant not found", nil)
			}
			if err != nil {
				return internal(err)
			}
			v = &found
		}
		if !model.IsPurchasable(t, v) {
			return ErrTemplateUnavailable
		}

		existing, err := r.CartItems().FindByCartAndTemplate(ctx, cart.ID, in.TemplateID, in.VariantID)
		switch {
		case err == nil:
			newQty := existing.Quantity + in.Quantity
			if newQty > u.maxLineQuantity {
				return u.limitError()
			}
			if err := r.CartItems().UpdateQuantity(ctx, existing.ID, newQty); err != nil {
				return internal(err)
			}
		case errors.Is(err, repo.ErrNotFound):
			if _, err := r.CartItems().Create(ctx, model.CartItem{
				CartID:            cart.ID,
				TemplateID:        in.TemplateID,
				TemplateVariantID: in.VariantID,
				Quantity:          in.Quantity,
			}); err != nil {
				return internal(err)
			}
		default:
			return internal(err)
		}
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}
	return u.ReadAll(ctx, userID)
}

// SetQuantity は数量を上書きする。0以下は InvalidQuantity（削除はRemoveで）
func (u *CartUsecase) SetQuantity(ctx context.Context, userID string, lineID int64, qty int64) (CartOutput, error) {
	if userID == "" {
		return CartOutput{}, ErrUnauthorized
	}
	if lineID <= 0 {
		return CartOutput{}, withMessage(ErrValidation, "invalid id", nil)
	}
	if qty < 1 {
		return CartOutput{}, ErrInvalidQuantity
	}
	if qty > u.maxLineQuantity {
		return CartOutput{}, u.limitError()
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := u.lockOwnedLine(ctx, r, userID, lineID); err != nil {
			return err
		}
		if err := r.CartItems().UpdateQuantity(ctx, lineID, qty); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotFound
			}
			return internal(err)
		}
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}
	return u.ReadAll(ctx, userID)
}

// 明細削除
func (u *CartUsecase) Remove(ctx context.Context, userID string, lineID int64) (CartOutput, error) {
	if userID == "" {
		return CartOutput{}, ErrUnauthorized
	}
	if lineID <= 0 {
		return CartOutput{}, withMessage(ErrValidation, "invalid id", nil)
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := u.lockOwnedLine(ctx, r, userID, lineID); err != nil {
			return err
		}
		if err := r.CartItems().DeleteByID(ctx, lineID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotFound
			}
			return internal(err)
		}
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}
	return u.ReadAll(ctx, userID)
}

// ClearAll は全明細を削除する。カートが無くてもエラーにしない
func (u *CartUsecase) ClearAll(ctx context.Context, userID string) (CartOutput, error) {
	if userID == "" {
		return CartOutput{}, ErrUnauthorized
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().LockByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return internal(err)
		}
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return internal(err)
		}
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}
	return u.ReadAll(ctx, userID)
}

// ReadAll は明細をid順で返す。単価は現在価格
func (u *CartUsecase) ReadAll(ctx context.Context, userID string) (CartOutput, error) {
	if userID == "" {
		return CartOutput{}, ErrUnauthorized
	}

	empty := CartOutput{Items: []CartLineOutput{}, Amount: money.Format(0, u.currency), Currency: u.currency}

	cart, err := u.carts.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return empty, nil
	}
	if err != nil {
		return CartOutput{}, internal(err)
	}

	items, err := u.cartItems.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartOutput{}, internal(err)
	}
	if len(items) == 0 {
		return empty, nil
	}

	priced, _, err := priceLines(ctx, u.templates, items)
	if err != nil {
		return CartOutput{}, internal(err)
	}

	out := CartOutput{Items: make([]CartLineOutput, 0, len(items))}
	byID := make(map[int64]pricedLine, len(priced))
	for _, p := range priced {
		byID[p.Item.ID] = p
	}
	for _, it := range items {
		p, ok := byID[it.ID]
		if !ok {
			// テンプレートごと消えた行
			out.Items = append(out.Items, CartLineOutput{
				ID: it.ID, TemplateID: it.TemplateID, TemplateVariantID: it.TemplateVariantID, Quantity: it.Quantity,
			})
			continue
		}
		name := p.Template.Name
		if p.Variant != nil {
			name += " / " + p.Variant.Name
		}
		out.Items = append(out.Items, CartLineOutput{
			ID:                it.ID,
			TemplateID:        it.TemplateID,
			TemplateVariantID: it.TemplateVariantID,
			Name:              name,
			UnitPrice:         p.UnitPrice,
			Quantity:          it.Quantity,
			LineTotal:         p.LineTotal(),
			Purchasable:       p.Purchasable(),
		})
	}

	out.Total, out.ItemCount = sumLines(priced)
	cur, ok := linesCurrency(priced, u.currency)
	if !ok {
		cur = u.currency
	}
	out.Currency = cur
	out.Amount = money.Format(out.Total, cur)
	return out, nil
}

// 明細の持ち主を確認してから、そのユーザーのカート行をロックする
func (u *CartUsecase) lockOwnedLine(ctx context.Context, r repo.TxRepos, userID string, lineID int64) error {
	owner, err := r.CartItems().OwnerOf(ctx, lineID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return internal(err)
	}
	if owner != userID {
		return ErrForbidden
	}
	if _, err := r.Carts().LockByUserID(ctx, userID); err != nil {
		return internal(err)
	}
	return nil
}

func (u *CartUsecase) limitError() error {
	he := withMessage(ErrQuantityLimitExceeded, "", nil).(*HTTPError)
	he.Details = map[string]int64{"max_quantity": u.maxLineQuantity}
	return he
}
