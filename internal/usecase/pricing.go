package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"templateshop/internal/domain/model"
	repo "templateshop/internal/repository"
)

// 現在価格で値付けしたカート明細
type pricedLine struct {
	Item      model.CartItem
	Template  model.Template
	Variant   *model.TemplateVariant
	UnitPrice int64
}

func (l pricedLine) Purchasable() bool {
	return model.IsPurchasable(l.Template, l.Variant)
}

func (l pricedLine) LineTotal() int64 {
	return l.UnitPrice * l.Item.Quantity
}

// priceLines は明細ごとに現在の単価を付ける。
// 削除済みテンプレートも値付けする（決済後の確定で使うため）。見つからない行は missing に入る
func priceLines(ctx context.Context, templates repo.TemplateRepository, items []model.CartItem) (priced []pricedLine, missing []int64, err error) {
	priced = make([]pricedLine, 0, len(items))
	for _, it := range items {
		t, err := templates.FindForPricing(ctx, it.TemplateID)
		if errors.Is(err, repo.ErrNotFound) {
			missing = append(missing, it.ID)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("find template %s: %w", it.TemplateID, err)
		}

		var v *model.TemplateVariant
		if it.TemplateVariantID != "" {
			found, err := templates.FindVariant(ctx, it.TemplateVariantID)
			if errors.Is(err, repo.ErrNotFound) {
				missing = append(missing, it.ID)
				continue
			}
			if err != nil {
				return nil, nil, fmt.Errorf("find variant %s: %w", it.TemplateVariantID, err)
			}
			v = &found
		}

		priced = append(priced, pricedLine{Item: it, Template: t, Variant: v, UnitPrice: model.UnitPrice(t, v)})
	}
	return priced, missing, nil
}

func linesByID(items []model.CartItem, ids []int64) []model.CartItem {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]model.CartItem, 0, len(ids))
	for _, it := range items {
		if _, ok := want[it.ID]; ok {
			out = append(out, it)
		}
	}
	return out
}

func sumLines(lines []pricedLine) (total int64, itemCount int64) {
	for _, l := range lines {
		total += l.LineTotal()
		itemCount += l.Item.Quantity
	}
	return total, itemCount
}

// cartHash はカート内容（テンプレート・バリエーション・数量）の指紋。並び順に依存しない
func cartHash(items []model.CartItem) string {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, fmt.Sprintf("%s|%s|%d", it.TemplateID, it.TemplateVariantID, it.Quantity))
	}
	sort.Strings(keys)
	sum := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	return hex.EncodeToString(sum[:])
}

// linesCurrency は明細の通貨。混在していれば ok=false
func linesCurrency(lines []pricedLine, fallback string) (string, bool) {
	cur := ""
	for _, l := range lines {
		c := strings.ToUpper(l.Template.Currency)
		if c == "" {
			continue
		}
		if cur != "" && cur != c {
			return "", false
		}
		cur = c
	}
	if cur == "" {
		cur = strings.ToUpper(fallback)
	}
	return cur, true
}
