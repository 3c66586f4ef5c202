package repository

import (
	"context"
	"errors"

	"templateshop/internal/domain/model"
	repo "templateshop/internal/repository"

	"gorm.io/gorm"
)

type TemplateGormRepository struct {
	db *gorm.DB
}

func NewTemplateGormRepository(db *gorm.DB) *TemplateGormRepository {
	return &TemplateGormRepository{db: db}
}

// ソフト削除済みは見えない。公開状態の判定は呼び出し側
func (r *TemplateGormRepository) FindByID(ctx context.Context, id string) (model.Template, error) {
	return r.find(ctx, r.db, id)
}

// 決済済みカートの確定用。削除済みも含めて現在価格を返す
func (r *TemplateGormRepository) FindForPricing(ctx context.Context, id string) (model.Template, error) {
	return r.find(ctx, r.db.Unscoped(), id)
}

func (r *TemplateGormRepository) find(ctx context.Context, q *gorm.DB, id string) (model.Template, error) {
	var t model.Template
	err := q.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Template{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Template{}, err
	}
	return t, nil
}

func (r *TemplateGormRepository) FindVariant(ctx context.Context, variantID string) (model.TemplateVariant, error) {
	var v model.TemplateVariant
	err := r.db.WithContext(ctx).Where("id = ?", variantID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.TemplateVariant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.TemplateVariant{}, err
	}
	return v, nil
}

func (r *TemplateGormRepository) Create(ctx context.Context, t model.Template) error {
	// falseもそのまま書く（default:falseタグでゼロ値が落ちないように）
	return r.db.WithContext(ctx).Select("*").Create(&t).Error
}

func (r *TemplateGormRepository) CreateVariant(ctx context.Context, v model.TemplateVariant) error {
	return r.db.WithContext(ctx).Select("*").Create(&v).Error
}

func (r *TemplateGormRepository) UpdatePrice(ctx context.Context, id string, price int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Template{}).
		Where("id = ?", id).
		Update("price", price)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
