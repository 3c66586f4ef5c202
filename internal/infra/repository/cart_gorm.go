package repository

import (
	"context"
	"errors"

	"templateshop/internal/domain/model"
	repo "templateshop/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// カート行と明細の両方を扱う
type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーのカート行を取得し、無ければ作成。どちらもFOR UPDATEで返す
// トランザクション内で呼ぶこと
func (r *CartGormRepository) LockOrCreateByUserID(ctx context.Context, userID string) (model.Cart, error) {
	// 同時作成はON CONFLICTで片方を無視
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&model.Cart{UserID: userID}).Error; err != nil {
		return model.Cart{}, err
	}
	return r.LockByUserID(ctx, userID)
}

func (r *CartGormRepository) LockByUserID(ctx context.Context, userID string) (model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// ロックなしで取得
func (r *CartGormRepository) FindByUserID(ctx context.Context, userID string) (model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// 指定カートの明細を全削除（カート行は残す）
func (r *CartGormRepository) Clear(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&model.CartItem{}).Error
}

// カート明細を一覧取得
func (r *CartGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}
	return items, nil
}

func (r *CartGormRepository) FindByCartAndTemplate(ctx context.Context, cartID int64, templateID, variantID string) (model.CartItem, error) {
	var item model.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND template_id = ? AND template_variant_id = ?", cartID, templateID, variantID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

func (r *CartGormRepository) Create(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

// 明細の数量を更新
func (r *CartGormRepository) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", cartItemID).
		Update("quantity", qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除
func (r *CartGormRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.CartItem{}, cartItemID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を取得
func (r *CartGormRepository) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	var item model.CartItem
	err := r.db.WithContext(ctx).Where("id = ?", cartItemID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

// cartItemがどのユーザーのカートに属しているか
func (r *CartGormRepository) OwnerOf(ctx context.Context, cartItemID int64) (string, error) {
	var owner struct{ UserID string }
	err := r.db.WithContext(ctx).
		Table("cart_items").
		Select("carts.user_id AS user_id").
		Joins("join carts on carts.id = cart_items.cart_id").
		Where("cart_items.id = ?", cartItemID).
		Take(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", repo.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return owner.UserID, nil
}
