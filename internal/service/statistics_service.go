package service

import (
	"context"
	"time"

	"shipmgmt/internal/model"

	"gorm.io/gorm"
)

type CarrierRanking struct {
	Carrier       string `json:"carrier"`
	ShipmentCount int    `json:"shipment_count"`
	TotalFees     string `json:"total_fees"`
}

type StatisticsResponse struct {
	TimeRangeStartDate time.Time        `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time        `json:"time_range_end_date"`
	TotalShipments     int64            `json:"total_shipments"`
	ShipmentsByStatus  map[string]int64 `json:"shipments_by_status"`
	PendingPickups     int64            `json:"pending_pickups"`
	TotalRevenue       string           `json:"total_revenue"`
	TopCarriers        []CarrierRanking `json:"top_carriers"`
}

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (StatisticsResponse, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetStatistics aggregates shipment, pickup, and payment metrics for the
// given time bracket.
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (StatisticsResponse, error) {
	response := StatisticsResponse{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
		ShipmentsByStatus:  make(map[string]int64),
	}

	// Shipment volume, total and per status
	s.db.WithContext(ctx).Model(&model.Shipment{}).
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Count(&response.TotalShipments)

	var statusCounts []struct {
		Status string
		Count  int64
	}
	s.db.WithContext(ctx).Model(&model.Shipment{}).
		Select("status, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Group("status").
		Scan(&statusCounts)
	for _, sc := range statusCounts {
		response.ShipmentsByStatus[sc.Status] = sc.Count
	}

	// Pickups still waiting for carrier confirmation
	s.db.WithContext(ctx).Model(&model.Pickup{}).
		Where("status = ? AND created_at >= ? AND created_at <= ?", model.PickupStatusRequested, startDate, endDate).
		Count(&response.PendingPickups)

	// Revenue = settled charges in the bracket
	var revenue struct {
		Value string
	}
	s.db.WithContext(ctx).Model(&model.Payment{}).
		Select("COALESCE(CAST(SUM(amount) AS TEXT), '0') as value").
		Where("status = ? AND created_at >= ? AND created_at <= ?", model.PaymentStatusSucceeded, startDate, endDate).
		Scan(&revenue)
	response.TotalRevenue = revenue.Value

	// Top carriers by shipment volume
	var rankings []struct {
		Carrier   string
		Count     int
		TotalFees string
	}
	s.db.WithContext(ctx).Model(&model.Shipment{}).
		Select("carrier, COUNT(*) as count, COALESCE(CAST(SUM(total_fee) AS TEXT), '0') as total_fees").
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Group("carrier").
		Order("count DESC").
		Limit(5).
		Scan(&rankings)
	for _, r := range rankings {
		response.TopCarriers = append(response.TopCarriers, CarrierRanking{
			Carrier:       r.Carrier,
			ShipmentCount: r.Count,
			TotalFees:     r.TotalFees,
		})
	}

	return response, nil
}
