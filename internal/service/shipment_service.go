package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"shipmgmt/internal/model"
	"shipmgmt/internal/repository"
	ws "shipmgmt/internal/websocket"
	"shipmgmt/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// statusRank orders the forward-only shipment lifecycle. Cancelled sits
// outside the ranking and is reachable from any state before delivery.
var statusRank = map[string]int{
	model.ShipmentStatusCreated:        0,
	model.ShipmentStatusLabelPurchased: 1,
	model.ShipmentStatusInTransit:      2,
	model.ShipmentStatusDelivered:      3,
}

// --- DTOs ---

type CreateShipmentRequest struct {
	Carrier            string `json:"carrier" binding:"required"`
	ServiceLevel       string `json:"service_level"`
	OriginAddress      string `json:"origin_address" binding:"required"`
	DestinationAddress string `json:"destination_address" binding:"required"`
	BaseFee            string `json:"base_fee" binding:"required"`
	DeclaredValue      string `json:"declared_value"`
	PickupBaseFee      string `json:"pickup_base_fee"`
}

type UpdateShipmentStatusRequest struct {
	Status      string `json:"status" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

type ShipmentResponse struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	Carrier            string `json:"carrier"`
	ServiceLevel       string `json:"service_level,omitempty"`
	OriginAddress      string `json:"origin_address"`
	DestinationAddress string `json:"destination_address"`
	TrackingCode       string `json:"tracking_code"`
	DeclaredValue      string `json:"declared_value"`
	Currency           string `json:"currency"`
	CarrierFee         string `json:"carrier_fee"`
	InsuranceFee       string `json:"insurance_fee"`
	PickupFee          string `json:"pickup_fee"`
	TotalFee           string `json:"total_fee"`
	Status             string `json:"status"`
	CreatedAt          string `json:"created_at"`
}

type TrackingEventResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// --- Interface ---

type ShipmentService interface {
	CreateShipment(ctx context.Context, req CreateShipmentRequest, userID string) (*ShipmentResponse, error)
	GetShipment(ctx context.Context, id string) (*ShipmentResponse, error)
	TrackByCode(ctx context.Context, code string) (*ShipmentResponse, []TrackingEventResponse, error)
	ListShipments(ctx context.Context, page, limit int) ([]ShipmentResponse, int64, error)
	ListUserShipments(ctx context.Context, userID string, page, limit int) ([]ShipmentResponse, int64, error)
	UpdateStatus(ctx context.Context, id string, req UpdateShipmentStatusRequest, actorID string) (*ShipmentResponse, error)
	ListTrackingEvents(ctx context.Context, id string) ([]TrackingEventResponse, error)
}

type shipmentService struct {
	shipments repository.ShipmentRepository
	markup    MarkupService
	audit     repository.AuditRepository
	txMgr     repository.TransactionManager
	hub       *ws.Hub // optional, nil in tests
}

func NewShipmentService(
	shipments repository.ShipmentRepository,
	markup MarkupService,
	audit repository.AuditRepository,
	txMgr repository.TransactionManager,
	hub *ws.Hub,
) ShipmentService {
	return &shipmentService{
		shipments: shipments,
		markup:    markup,
		audit:     audit,
		txMgr:     txMgr,
		hub:       hub,
	}
}

// --- Implementation ---

func (s *shipmentService) CreateShipment(ctx context.Context, req CreateShipmentRequest, userID string) (*ShipmentResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Invalid("invalid user id '%s'", userID)
	}

	quote, err := s.markup.Quote(ctx, QuoteRequest{
		Carrier:       req.Carrier,
		BaseFee:       req.BaseFee,
		DeclaredValue: req.DeclaredValue,
		PickupBaseFee: req.PickupBaseFee,
	})
	if err != nil {
		return nil, err
	}

	declaredValue, err := parseOptionalAmount(req.DeclaredValue, "declared_value")
	if err != nil {
		return nil, err
	}

	shipment := model.Shipment{
		UserID:             uid,
		Carrier:            req.Carrier,
		ServiceLevel:       req.ServiceLevel,
		OriginAddress:      req.OriginAddress,
		DestinationAddress: req.DestinationAddress,
		TrackingCode:       newTrackingCode(),
		DeclaredValue:      declaredValue,
		Currency:           quote.Currency,
		CarrierFee:         mustDecimal(quote.CarrierFee),
		InsuranceFee:       mustDecimal(quote.InsuranceFee),
		PickupFee:          mustDecimal(quote.PickupFee),
		TotalFee:           mustDecimal(quote.TotalFee),
		Status:             model.ShipmentStatusCreated,
	}

	err = s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.shipments.Create(txCtx, &shipment); err != nil {
			return fmt.Errorf("failed to create shipment: %w", err)
		}
		return s.shipments.AddTrackingEvent(txCtx, &model.TrackingEvent{
			ShipmentID:  shipment.ID,
			Status:      model.ShipmentStatusCreated,
			Description: "Shipment created",
		})
	})
	if err != nil {
		return nil, err
	}

	writeAuditLog(ctx, s.audit, userID, model.ActionCreateShipment, shipment.ID.String(), shipment.TrackingCode, req)
	s.broadcastEvent("shipment_created", &shipment)

	resp := toShipmentResponse(shipment)
	return &resp, nil
}

func (s *shipmentService) GetShipment(ctx context.Context, id string) (*ShipmentResponse, error) {
	shipment, err := s.findShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toShipmentResponse(*shipment)
	return &resp, nil
}

func (s *shipmentService) TrackByCode(ctx context.Context, code string) (*ShipmentResponse, []TrackingEventResponse, error) {
	shipment, err := s.shipments.FindByTrackingCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("no shipment with tracking code '%s'", code)
		}
		return nil, nil, fmt.Errorf("failed to fetch shipment: %w", err)
	}

	events, err := s.listEvents(ctx, shipment.ID)
	if err != nil {
		return nil, nil, err
	}

	resp := toShipmentResponse(*shipment)
	return &resp, events, nil
}

func (s *shipmentService) ListShipments(ctx context.Context, page, limit int) ([]ShipmentResponse, int64, error) {
	shipments, total, err := s.shipments.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch shipments: %w", err)
	}
	return toShipmentResponses(shipments), total, nil
}

func (s *shipmentService) ListUserShipments(ctx context.Context, userID string, page, limit int) ([]ShipmentResponse, int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, 0, apperr.Invalid("invalid user id '%s'", userID)
	}

	shipments, total, err := s.shipments.ListByUser(ctx, uid, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch shipments: %w", err)
	}
	return toShipmentResponses(shipments), total, nil
}

func (s *shipmentService) UpdateStatus(ctx context.Context, id string, req UpdateShipmentStatusRequest, actorID string) (*ShipmentResponse, error) {
	shipment, err := s.findShipment(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := validateTransition(shipment.Status, req.Status); err != nil {
		return nil, err
	}

	shipment.Status = req.Status
	err = s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.shipments.Update(txCtx, shipment); err != nil {
			return fmt.Errorf("failed to update shipment: %w", err)
		}
		return s.shipments.AddTrackingEvent(txCtx, &model.TrackingEvent{
			ShipmentID:  shipment.ID,
			Status:      req.Status,
			Description: req.Description,
			Location:    req.Location,
		})
	})
	if err != nil {
		return nil, err
	}

	action := model.ActionUpdateShipment
	if req.Status == model.ShipmentStatusCancelled {
		action = model.ActionCancelShipment
	}
	writeAuditLog(ctx, s.audit, actorID, action, id, shipment.TrackingCode, req)
	s.broadcastEvent("shipment_status_changed", shipment)

	resp := toShipmentResponse(*shipment)
	return &resp, nil
}

func (s *shipmentService) ListTrackingEvents(ctx context.Context, id string) ([]TrackingEventResponse, error) {
	shipment, err := s.findShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.listEvents(ctx, shipment.ID)
}

// --- Helpers ---

// validateTransition enforces the forward-only lifecycle. Cancellation is
// allowed from any state before delivery; a cancelled shipment is frozen.
func validateTransition(current, next string) error {
	if current == model.ShipmentStatusCancelled {
		return apperr.Conflict("shipment is cancelled")
	}

	if next == model.ShipmentStatusCancelled {
		if current == model.ShipmentStatusDelivered {
			return apperr.Conflict("cannot cancel a delivered shipment")
		}
		return nil
	}

	nextRank, ok := statusRank[next]
	if !ok {
		return apperr.Invalid("unknown shipment status '%s'", next)
	}
	if nextRank <= statusRank[current] {
		return apperr.Invalid("cannot move shipment from '%s' back to '%s'", current, next)
	}
	return nil
}

func (s *shipmentService) findShipment(ctx context.Context, id string) (*model.Shipment, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalid("invalid shipment id '%s'", id)
	}

	shipment, err := s.shipments.FindByID(ctx, sid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("shipment '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to fetch shipment: %w", err)
	}
	return shipment, nil
}

func (s *shipmentService) listEvents(ctx context.Context, shipmentID uuid.UUID) ([]TrackingEventResponse, error) {
	events, err := s.shipments.ListTrackingEvents(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tracking events: %w", err)
	}

	res := make([]TrackingEventResponse, 0, len(events))
	for _, e := range events {
		res = append(res, TrackingEventResponse{
			ID:          e.ID.String(),
			Status:      e.Status,
			Description: e.Description,
			Location:    e.Location,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}
	return res, nil
}

// broadcastEvent pushes a tracking update to connected websocket clients.
// Non-blocking: a full hub drops the message rather than stalling the
// request.
func (s *shipmentService) broadcastEvent(event string, shipment *model.Shipment) {
	if s.hub == nil {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"event":         event,
		"shipment_id":   shipment.ID.String(),
		"tracking_code": shipment.TrackingCode,
		"status":        shipment.Status,
	})
	if err != nil {
		return
	}

	select {
	case s.hub.Broadcast <- payload:
	default:
	}
}

func newTrackingCode() string {
	raw := make([]byte, 6)
	_, _ = rand.Read(raw)
	return "SHP-" + strings.ToUpper(hex.EncodeToString(raw))
}

// mustDecimal parses amounts this service formatted itself
func mustDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

func toShipmentResponse(m model.Shipment) ShipmentResponse {
	return ShipmentResponse{
		ID:                 m.ID.String(),
		UserID:             m.UserID.String(),
		Carrier:            m.Carrier,
		ServiceLevel:       m.ServiceLevel,
		OriginAddress:      m.OriginAddress,
		DestinationAddress: m.DestinationAddress,
		TrackingCode:       m.TrackingCode,
		DeclaredValue:      m.DeclaredValue.StringFixed(2),
		Currency:           m.Currency,
		CarrierFee:         m.CarrierFee.StringFixed(2),
		InsuranceFee:       m.InsuranceFee.StringFixed(2),
		PickupFee:          m.PickupFee.StringFixed(2),
		TotalFee:           m.TotalFee.StringFixed(2),
		Status:             m.Status,
		CreatedAt:          m.CreatedAt.Format(time.RFC3339),
	}
}

func toShipmentResponses(shipments []model.Shipment) []ShipmentResponse {
	res := make([]ShipmentResponse, 0, len(shipments))
	for _, sh := range shipments {
		res = append(res, toShipmentResponse(sh))
	}
	return res
}
