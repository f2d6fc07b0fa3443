package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shipmgmt/internal/model"
	"shipmgmt/internal/pricing"
	"shipmgmt/internal/repository"
	"shipmgmt/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type RequestPickupRequest struct {
	Carrier    string `json:"carrier" binding:"required"`
	Address    string `json:"address" binding:"required"`
	WindowFrom string `json:"window_from" binding:"required"`
	WindowTo   string `json:"window_to" binding:"required"`
	BaseFee    string `json:"base_fee" binding:"required"`
}

type PickupResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Carrier    string `json:"carrier"`
	Address    string `json:"address"`
	WindowFrom string `json:"window_from"`
	WindowTo   string `json:"window_to"`
	BaseFee    string `json:"base_fee"`
	TotalFee   string `json:"total_fee"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

// --- Interface ---

type PickupService interface {
	RequestPickup(ctx context.Context, req RequestPickupRequest, userID string) (*PickupResponse, error)
	GetPickup(ctx context.Context, id string) (*PickupResponse, error)
	ListPickups(ctx context.Context, page, limit int) ([]PickupResponse, int64, error)
	ListUserPickups(ctx context.Context, userID string, page, limit int) ([]PickupResponse, int64, error)
	ConfirmPickup(ctx context.Context, id, actorID string) (*PickupResponse, error)
	CompletePickup(ctx context.Context, id, actorID string) (*PickupResponse, error)
	CancelPickup(ctx context.Context, id, actorID string) (*PickupResponse, error)
}

type pickupService struct {
	pickups repository.PickupRepository
	rules   repository.MarkupRuleRepository
	audit   repository.AuditRepository
}

func NewPickupService(
	pickups repository.PickupRepository,
	rules repository.MarkupRuleRepository,
	audit repository.AuditRepository,
) PickupService {
	return &pickupService{pickups: pickups, rules: rules, audit: audit}
}

// --- Implementation ---

func (s *pickupService) RequestPickup(ctx context.Context, req RequestPickupRequest, userID string) (*PickupResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Invalid("invalid user id '%s'", userID)
	}

	windowFrom, err := time.Parse(time.RFC3339, req.WindowFrom)
	if err != nil {
		return nil, apperr.Invalid("window_from must be an RFC3339 timestamp")
	}
	windowTo, err := time.Parse(time.RFC3339, req.WindowTo)
	if err != nil {
		return nil, apperr.Invalid("window_to must be an RFC3339 timestamp")
	}
	if !windowTo.After(windowFrom) {
		return nil, apperr.Invalid("pickup window must end after it starts")
	}

	baseFee, err := decimal.NewFromString(req.BaseFee)
	if err != nil {
		return nil, apperr.Invalid("base_fee must be a decimal amount")
	}

	totalFee, currency, err := s.pricePickup(ctx, req.Carrier, baseFee)
	if err != nil {
		return nil, err
	}

	pickup := model.Pickup{
		UserID:     uid,
		Carrier:    req.Carrier,
		Address:    req.Address,
		WindowFrom: windowFrom,
		WindowTo:   windowTo,
		BaseFee:    baseFee,
		TotalFee:   totalFee,
		Currency:   currency,
		Status:     model.PickupStatusRequested,
	}
	if err := s.pickups.Create(ctx, &pickup); err != nil {
		return nil, fmt.Errorf("failed to create pickup: %w", err)
	}

	writeAuditLog(ctx, s.audit, userID, model.ActionRequestPickup, pickup.ID.String(), req.Carrier, req)

	resp := toPickupResponse(pickup)
	return &resp, nil
}

func (s *pickupService) GetPickup(ctx context.Context, id string) (*PickupResponse, error) {
	pickup, err := s.findPickup(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toPickupResponse(*pickup)
	return &resp, nil
}

func (s *pickupService) ListPickups(ctx context.Context, page, limit int) ([]PickupResponse, int64, error) {
	pickups, total, err := s.pickups.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch pickups: %w", err)
	}
	return toPickupResponses(pickups), total, nil
}

func (s *pickupService) ListUserPickups(ctx context.Context, userID string, page, limit int) ([]PickupResponse, int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, 0, apperr.Invalid("invalid user id '%s'", userID)
	}

	pickups, total, err := s.pickups.ListByUser(ctx, uid, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch pickups: %w", err)
	}
	return toPickupResponses(pickups), total, nil
}

func (s *pickupService) ConfirmPickup(ctx context.Context, id, actorID string) (*PickupResponse, error) {
	return s.transition(ctx, id, actorID, model.PickupStatusConfirmed, model.PickupStatusRequested)
}

func (s *pickupService) CompletePickup(ctx context.Context, id, actorID string) (*PickupResponse, error) {
	return s.transition(ctx, id, actorID, model.PickupStatusCompleted, model.PickupStatusConfirmed)
}

func (s *pickupService) CancelPickup(ctx context.Context, id, actorID string) (*PickupResponse, error) {
	return s.transition(ctx, id, actorID, model.PickupStatusCancelled,
		model.PickupStatusRequested, model.PickupStatusConfirmed)
}

// --- Helpers ---

// transition moves a pickup to next if its current status is one of the
// allowed source states. Completed and cancelled pickups are terminal.
func (s *pickupService) transition(ctx context.Context, id, actorID, next string, from ...string) (*PickupResponse, error) {
	pickup, err := s.findPickup(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, f := range from {
		if pickup.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperr.Conflict("cannot move pickup from '%s' to '%s'", pickup.Status, next)
	}

	pickup.Status = next
	if err := s.pickups.Update(ctx, pickup); err != nil {
		return nil, fmt.Errorf("failed to update pickup: %w", err)
	}

	writeAuditLog(ctx, s.audit, actorID, model.ActionUpdatePickup, id, pickup.Carrier, map[string]string{"status": next})

	resp := toPickupResponse(*pickup)
	return &resp, nil
}

// pricePickup applies the carrier's pickup markup rule when one exists.
// Without a rule the base fee passes through unchanged in the settlement
// currency.
func (s *pickupService) pricePickup(ctx context.Context, carrier string, baseFee decimal.Decimal) (decimal.Decimal, string, error) {
	input := pricing.QuoteInput{
		ConversionRate: decimal.NewFromInt(1),
		CarrierMarkup:  pricing.Markup{Type: pricing.MarkupFlat, Value: decimal.Zero},
		PickupBaseFee:  baseFee,
	}

	rule, err := s.rules.GetRule(ctx, model.FeeCategoryPickup, carrier)
	switch {
	case err == nil:
		input.PickupMarkupPercent = rule.MarkupValue
	case errors.Is(err, gorm.ErrRecordNotFound):
		// no pickup rule configured for this carrier
	default:
		return decimal.Zero, "", fmt.Errorf("failed to fetch pickup rule: %w", err)
	}

	breakdown, err := pricing.ComputeTotalFee(input)
	if err != nil {
		return decimal.Zero, "", err
	}
	return breakdown.PickupFee, settlementCurrency(), nil
}

func (s *pickupService) findPickup(ctx context.Context, id string) (*model.Pickup, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalid("invalid pickup id '%s'", id)
	}

	pickup, err := s.pickups.FindByID(ctx, pid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("pickup '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to fetch pickup: %w", err)
	}
	return pickup, nil
}

func toPickupResponse(m model.Pickup) PickupResponse {
	return PickupResponse{
		ID:         m.ID.String(),
		UserID:     m.UserID.String(),
		Carrier:    m.Carrier,
		Address:    m.Address,
		WindowFrom: m.WindowFrom.Format(time.RFC3339),
		WindowTo:   m.WindowTo.Format(time.RFC3339),
		BaseFee:    m.BaseFee.StringFixed(2),
		TotalFee:   m.TotalFee.StringFixed(2),
		Currency:   m.Currency,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}
}

func toPickupResponses(pickups []model.Pickup) []PickupResponse {
	res := make([]PickupResponse, 0, len(pickups))
	for _, p := range pickups {
		res = append(res, toPickupResponse(p))
	}
	return res
}
