package repository

import (
	"context"

	"shipmgmt/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PickupRepository interface {
	Create(ctx context.Context, pickup *model.Pickup) error
	Update(ctx context.Context, pickup *model.Pickup) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Pickup, error)
	List(ctx context.Context, page, limit int) ([]model.Pickup, int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Pickup, int64, error)
}

type pickupRepository struct {
	db *gorm.DB
}

func NewPickupRepository(db *gorm.DB) PickupRepository {
	return &pickupRepository{db: db}
}

func (r *pickupRepository) Create(ctx context.Context, pickup *model.Pickup) error {
	return GetDB(ctx, r.db).Create(pickup).Error
}

func (r *pickupRepository) Update(ctx context.Context, pickup *model.Pickup) error {
	return GetDB(ctx, r.db).Save(pickup).Error
}

func (r *pickupRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Pickup, error) {
	var pickup model.Pickup
	if err := GetDB(ctx, r.db).First(&pickup, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pickup, nil
}

func (r *pickupRepository) List(ctx context.Context, page, limit int) ([]model.Pickup, int64, error) {
	return r.list(GetDB(ctx, r.db), page, limit)
}

func (r *pickupRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Pickup, int64, error) {
	return r.list(GetDB(ctx, r.db).Where("user_id = ?", userID), page, limit)
}

func (r *pickupRepository) list(db *gorm.DB, page, limit int) ([]model.Pickup, int64, error) {
	var pickups []model.Pickup
	var total int64

	if err := db.Model(&model.Pickup{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("window_from asc").Offset(offset).Limit(limit).Find(&pickups).Error; err != nil {
		return nil, 0, err
	}

	return pickups, total, nil
}
