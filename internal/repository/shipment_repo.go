package repository

import (
	"context"

	"shipmgmt/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ShipmentRepository interface {
	Create(ctx context.Context, shipment *model.Shipment) error
	Update(ctx context.Context, shipment *model.Shipment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Shipment, error)
	FindByTrackingCode(ctx context.Context, code string) (*model.Shipment, error)
	List(ctx context.Context, page, limit int) ([]model.Shipment, int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Shipment, int64, error)
	AddTrackingEvent(ctx context.Context, event *model.TrackingEvent) error
	ListTrackingEvents(ctx context.Context, shipmentID uuid.UUID) ([]model.TrackingEvent, error)
}

type shipmentRepository struct {
	db *gorm.DB
}

func NewShipmentRepository(db *gorm.DB) ShipmentRepository {
	return &shipmentRepository{db: db}
}

func (r *shipmentRepository) Create(ctx context.Context, shipment *model.Shipment) error {
	return GetDB(ctx, r.db).Create(shipment).Error
}

func (r *shipmentRepository) Update(ctx context.Context, shipment *model.Shipment) error {
	return GetDB(ctx, r.db).Save(shipment).Error
}

func (r *shipmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Shipment, error) {
	var shipment model.Shipment
	if err := GetDB(ctx, r.db).First(&shipment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *shipmentRepository) FindByTrackingCode(ctx context.Context, code string) (*model.Shipment, error) {
	var shipment model.Shipment
	if err := GetDB(ctx, r.db).Where("tracking_code = ?", code).First(&shipment).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *shipmentRepository) List(ctx context.Context, page, limit int) ([]model.Shipment, int64, error) {
	return r.list(ctx, GetDB(ctx, r.db), page, limit)
}

func (r *shipmentRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Shipment, int64, error) {
	db := GetDB(ctx, r.db).Where("user_id = ?", userID)
	return r.list(ctx, db, page, limit)
}

func (r *shipmentRepository) list(_ context.Context, db *gorm.DB, page, limit int) ([]model.Shipment, int64, error) {
	var shipments []model.Shipment
	var total int64

	if err := db.Model(&model.Shipment{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&shipments).Error; err != nil {
		return nil, 0, err
	}

	return shipments, total, nil
}

func (r *shipmentRepository) AddTrackingEvent(ctx context.Context, event *model.TrackingEvent) error {
	return GetDB(ctx, r.db).Create(event).Error
}

func (r *shipmentRepository) ListTrackingEvents(ctx context.Context, shipmentID uuid.UUID) ([]model.TrackingEvent, error) {
	var events []model.TrackingEvent
	if err := GetDB(ctx, r.db).
		Where("shipment_id = ?", shipmentID).
		Order("created_at asc").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
