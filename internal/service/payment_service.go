package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"shipmgmt/internal/model"
	"shipmgmt/internal/repository"
	"shipmgmt/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ChargeProvider is the outbound port to the external payment gateway.
// Implementations create a charge and return the provider's reference id.
type ChargeProvider interface {
	CreateCharge(ctx context.Context, amount decimal.Decimal, currency, description string) (string, error)
}

// RecordingProvider accepts every charge and hands back a generated
// reference. It stands in for a real gateway in development and tests.
type RecordingProvider struct{}

func (RecordingProvider) CreateCharge(_ context.Context, _ decimal.Decimal, _ string, _ string) (string, error) {
	raw := make([]byte, 12)
	_, _ = rand.Read(raw)
	return "ch_" + hex.EncodeToString(raw), nil
}

// --- DTOs ---

type CreatePaymentRequest struct {
	ShipmentID  string `json:"shipment_id"`
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"required"`
	Description string `json:"description"`
}

type CreateSubscriptionRequest struct {
	PlanCode string `json:"plan_code" binding:"required"`
}

type PaymentResponse struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	ShipmentID       string `json:"shipment_id,omitempty"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	ProviderChargeID string `json:"provider_charge_id"`
	Status           string `json:"status"`
	Description      string `json:"description,omitempty"`
	CreatedAt        string `json:"created_at"`
}

type SubscriptionResponse struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	PlanCode         string `json:"plan_code"`
	Status           string `json:"status"`
	CurrentPeriodEnd string `json:"current_period_end"`
}

// --- Interface ---

type PaymentService interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest, userID string) (*PaymentResponse, error)
	GetPayment(ctx context.Context, id string) (*PaymentResponse, error)
	ListUserPayments(ctx context.Context, userID string, page, limit int) ([]PaymentResponse, int64, error)

	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest, userID string) (*SubscriptionResponse, error)
	GetActiveSubscription(ctx context.Context, userID string) (*SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, id, actorID string) (*SubscriptionResponse, error)
}

type paymentService struct {
	payments repository.PaymentRepository
	provider ChargeProvider
	audit    repository.AuditRepository
}

func NewPaymentService(
	payments repository.PaymentRepository,
	provider ChargeProvider,
	audit repository.AuditRepository,
) PaymentService {
	return &paymentService{payments: payments, provider: provider, audit: audit}
}

// --- Implementation ---

func (s *paymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest, userID string) (*PaymentResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Invalid("invalid user id '%s'", userID)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, apperr.Invalid("amount must be a decimal amount")
	}
	if !amount.IsPositive() {
		return nil, apperr.Invalid("amount must be positive")
	}
	if len(req.Currency) != 3 {
		return nil, apperr.Invalid("currency must be a 3-letter code")
	}

	var shipmentID *uuid.UUID
	if req.ShipmentID != "" {
		sid, err := uuid.Parse(req.ShipmentID)
		if err != nil {
			return nil, apperr.Invalid("invalid shipment id '%s'", req.ShipmentID)
		}
		shipmentID = &sid
	}

	payment := model.Payment{
		UserID:      uid,
		ShipmentID:  shipmentID,
		Amount:      amount,
		Currency:    req.Currency,
		Status:      model.PaymentStatusPending,
		Description: req.Description,
	}
	if err := s.payments.Create(ctx, &payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	// The charge runs outside the insert so a provider failure leaves a
	// visible failed payment row instead of nothing.
	chargeID, chargeErr := s.provider.CreateCharge(ctx, amount, req.Currency, req.Description)
	if chargeErr != nil {
		payment.Status = model.PaymentStatusFailed
	} else {
		payment.Status = model.PaymentStatusSucceeded
		payment.ProviderChargeID = chargeID
	}
	if err := s.payments.Update(ctx, &payment); err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	writeAuditLog(ctx, s.audit, userID, model.ActionCreatePayment, payment.ID.String(), payment.Status, req)

	if chargeErr != nil {
		return nil, fmt.Errorf("payment provider rejected charge: %w", chargeErr)
	}

	resp := toPaymentResponse(payment)
	return &resp, nil
}

func (s *paymentService) GetPayment(ctx context.Context, id string) (*PaymentResponse, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalid("invalid payment id '%s'", id)
	}

	payment, err := s.payments.FindByID(ctx, pid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("payment '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}

	resp := toPaymentResponse(*payment)
	return &resp, nil
}

func (s *paymentService) ListUserPayments(ctx context.Context, userID string, page, limit int) ([]PaymentResponse, int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, 0, apperr.Invalid("invalid user id '%s'", userID)
	}

	payments, total, err := s.payments.ListByUser(ctx, uid, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch payments: %w", err)
	}

	res := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		res = append(res, toPaymentResponse(p))
	}
	return res, total, nil
}

func (s *paymentService) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest, userID string) (*SubscriptionResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Invalid("invalid user id '%s'", userID)
	}

	if _, err := s.payments.FindActiveSubscription(ctx, uid); err == nil {
		return nil, apperr.Conflict("user already has an active subscription")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}

	sub := model.Subscription{
		UserID:           uid,
		PlanCode:         req.PlanCode,
		Status:           model.SubscriptionStatusActive,
		CurrentPeriodEnd: time.Now().AddDate(0, 1, 0),
	}
	if err := s.payments.CreateSubscription(ctx, &sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	writeAuditLog(ctx, s.audit, userID, model.ActionCreateSubscription, sub.ID.String(), req.PlanCode, req)

	resp := toSubscriptionResponse(sub)
	return &resp, nil
}

func (s *paymentService) GetActiveSubscription(ctx context.Context, userID string) (*SubscriptionResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Invalid("invalid user id '%s'", userID)
	}

	sub, err := s.payments.FindActiveSubscription(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no active subscription")
		}
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}

	resp := toSubscriptionResponse(*sub)
	return &resp, nil
}

func (s *paymentService) CancelSubscription(ctx context.Context, id, actorID string) (*SubscriptionResponse, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalid("invalid subscription id '%s'", id)
	}

	sub, err := s.payments.FindSubscriptionByID(ctx, sid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("subscription '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}

	if sub.Status == model.SubscriptionStatusCancelled {
		return nil, apperr.Conflict("subscription is already cancelled")
	}

	sub.Status = model.SubscriptionStatusCancelled
	if err := s.payments.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	writeAuditLog(ctx, s.audit, actorID, model.ActionCancelSubscription, id, sub.PlanCode, nil)

	resp := toSubscriptionResponse(*sub)
	return &resp, nil
}

// --- Helpers ---

func toPaymentResponse(m model.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:               m.ID.String(),
		UserID:           m.UserID.String(),
		Amount:           m.Amount.StringFixed(2),
		Currency:         m.Currency,
		ProviderChargeID: m.ProviderChargeID,
		Status:           m.Status,
		Description:      m.Description,
		CreatedAt:        m.CreatedAt.Format(time.RFC3339),
	}
	if m.ShipmentID != nil {
		resp.ShipmentID = m.ShipmentID.String()
	}
	return resp
}

func toSubscriptionResponse(m model.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:               m.ID.String(),
		UserID:           m.UserID.String(),
		PlanCode:         m.PlanCode,
		Status:           m.Status,
		CurrentPeriodEnd: m.CurrentPeriodEnd.Format(time.RFC3339),
	}
}
