package repository

import (
	"context"

	"shipmgmt/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MarkupRuleRepository is the configuration repository for pricing rules.
// GetRule resolves the single rule for a (category, carrier) pair.
type MarkupRuleRepository interface {
	Create(ctx context.Context, rule *model.MarkupRule) error
	Update(ctx context.Context, rule *model.MarkupRule) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.MarkupRule, error)
	GetRule(ctx context.Context, category, carrier string) (*model.MarkupRule, error)
	List(ctx context.Context, page, limit int) ([]model.MarkupRule, int64, error)
}

type markupRuleRepository struct {
	db *gorm.DB
}

func NewMarkupRuleRepository(db *gorm.DB) MarkupRuleRepository {
	return &markupRuleRepository{db: db}
}

func (r *markupRuleRepository) Create(ctx context.Context, rule *model.MarkupRule) error {
	return GetDB(ctx, r.db).Create(rule).Error
}

func (r *markupRuleRepository) Update(ctx context.Context, rule *model.MarkupRule) error {
	return GetDB(ctx, r.db).Save(rule).Error
}

func (r *markupRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.MarkupRule{}).Error
}

func (r *markupRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.MarkupRule, error) {
	var rule model.MarkupRule
	if err := GetDB(ctx, r.db).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *markupRuleRepository) GetRule(ctx context.Context, category, carrier string) (*model.MarkupRule, error) {
	var rule model.MarkupRule
	if err := GetDB(ctx, r.db).
		Where("category = ? AND carrier = ?", category, carrier).
		First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *markupRuleRepository) List(ctx context.Context, page, limit int) ([]model.MarkupRule, int64, error) {
	var rules []model.MarkupRule
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.MarkupRule{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("category asc, carrier asc").Offset(offset).Limit(limit).Find(&rules).Error; err != nil {
		return nil, 0, err
	}

	return rules, total, nil
}
