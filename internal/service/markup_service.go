package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"shipmgmt/internal/model"
	"shipmgmt/internal/pricing"
	"shipmgmt/internal/repository"
	"shipmgmt/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateMarkupRuleRequest struct {
	Category       string `json:"category" binding:"required,oneof=carrier pickup insurance"`
	Carrier        string `json:"carrier" binding:"required"`
	BaseCurrency   string `json:"base_currency" binding:"required,len=3"`
	ConversionRate string `json:"conversion_rate" binding:"required"` // Decimal string, e.g. "1.35"
	MarkupType     string `json:"markup_type" binding:"required,oneof=flat percentage"`
	MarkupValue    string `json:"markup_value" binding:"required"`
}

type UpdateMarkupRuleRequest struct {
	BaseCurrency   *string `json:"base_currency" binding:"omitempty,len=3"`
	ConversionRate *string `json:"conversion_rate"`
	MarkupType     *string `json:"markup_type" binding:"omitempty,oneof=flat percentage"`
	MarkupValue    *string `json:"markup_value"`
}

type MarkupRuleResponse struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Carrier        string `json:"carrier"`
	BaseCurrency   string `json:"base_currency"`
	ConversionRate string `json:"conversion_rate"`
	MarkupType     string `json:"markup_type"`
	MarkupValue    string `json:"markup_value"`
	CreatedAt      string `json:"created_at"`
}

type QuoteRequest struct {
	Carrier       string `json:"carrier" binding:"required"`
	BaseFee       string `json:"base_fee" binding:"required"`
	DeclaredValue string `json:"declared_value"`
	PickupBaseFee string `json:"pickup_base_fee"`
}

type QuoteResponse struct {
	Carrier      string `json:"carrier"`
	Currency     string `json:"currency"`
	CarrierFee   string `json:"carrier_fee"`
	InsuranceFee string `json:"insurance_fee"`
	PickupFee    string `json:"pickup_fee"`
	TotalFee     string `json:"total_fee"`
}

// --- Interface ---

// MarkupService owns pricing configuration and turns carrier-quoted base
// fees into customer totals through the pricing calculator.
type MarkupService interface {
	ListRules(ctx context.Context, page, limit int) ([]MarkupRuleResponse, int64, error)
	CreateRule(ctx context.Context, req CreateMarkupRuleRequest, actorID string) (*MarkupRuleResponse, error)
	UpdateRule(ctx context.Context, id string, req UpdateMarkupRuleRequest, actorID string) (*MarkupRuleResponse, error)
	DeleteRule(ctx context.Context, id string, actorID string) error
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error)
}

type markupService struct {
	rules repository.MarkupRuleRepository
	audit repository.AuditRepository
}

func NewMarkupService(rules repository.MarkupRuleRepository, audit repository.AuditRepository) MarkupService {
	return &markupService{rules: rules, audit: audit}
}

// --- Implementation ---

func (s *markupService) ListRules(ctx context.Context, page, limit int) ([]MarkupRuleResponse, int64, error) {
	rules, total, err := s.rules.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch markup rules: %w", err)
	}

	res := make([]MarkupRuleResponse, 0, len(rules))
	for _, r := range rules {
		res = append(res, toMarkupRuleResponse(r))
	}
	return res, total, nil
}

func (s *markupService) CreateRule(ctx context.Context, req CreateMarkupRuleRequest, actorID string) (*MarkupRuleResponse, error) {
	rate, value, err := parseRuleAmounts(req.ConversionRate, req.MarkupValue)
	if err != nil {
		return nil, err
	}
	if err := validateRuleSemantics(req.Category, req.MarkupType, rate, value); err != nil {
		return nil, err
	}

	if _, err := s.rules.GetRule(ctx, req.Category, req.Carrier); err == nil {
		return nil, apperr.Conflict("a %s markup rule for carrier '%s' already exists", req.Category, req.Carrier)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing rule: %w", err)
	}

	rule := model.MarkupRule{
		Category:       req.Category,
		Carrier:        req.Carrier,
		BaseCurrency:   req.BaseCurrency,
		ConversionRate: rate,
		MarkupType:     req.MarkupType,
		MarkupValue:    value,
	}
	if err := s.rules.Create(ctx, &rule); err != nil {
		return nil, fmt.Errorf("failed to create markup rule: %w", err)
	}

	writeAuditLog(ctx, s.audit, actorID, model.ActionCreateMarkupRule, rule.ID.String(),
		rule.Category+"/"+rule.Carrier, req)

	resp := toMarkupRuleResponse(rule)
	return &resp, nil
}

func (s *markupService) UpdateRule(ctx context.Context, id string, req UpdateMarkupRuleRequest, actorID string) (*MarkupRuleResponse, error) {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalid("invalid markup rule id '%s'", id)
	}

	rule, err := s.rules.FindByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("markup rule '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to fetch markup rule: %w", err)
	}

	if req.BaseCurrency != nil {
		rule.BaseCurrency = *req.BaseCurrency
	}
	if req.ConversionRate != nil {
		rate, err := decimal.NewFromString(*req.ConversionRate)
		if err != nil {
			return nil, apperr.Invalid("invalid conversion rate '%s'", *req.ConversionRate)
		}
		rule.ConversionRate = rate
	}
	if req.MarkupType != nil {
		rule.MarkupType = *req.MarkupType
	}
	if req.MarkupValue != nil {
		value, err := decimal.NewFromString(*req.MarkupValue)
		if err != nil {
			return nil, apperr.Invalid("invalid markup value '%s'", *req.MarkupValue)
		}
		rule.MarkupValue = value
	}

	if err := validateRuleSemantics(rule.Category, rule.MarkupType, rule.ConversionRate, rule.MarkupValue); err != nil {
		return nil, err
	}

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update markup rule: %w", err)
	}

	writeAuditLog(ctx, s.audit, actorID, model.ActionUpdateMarkupRule, id,
		rule.Category+"/"+rule.Carrier, req)

	resp := toMarkupRuleResponse(*rule)
	return &resp, nil
}

func (s *markupService) DeleteRule(ctx context.Context, id string, actorID string) error {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Invalid("invalid markup rule id '%s'", id)
	}

	rule, err := s.rules.FindByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("markup rule '%s' not found", id)
		}
		return fmt.Errorf("failed to fetch markup rule: %w", err)
	}

	if err := s.rules.Delete(ctx, ruleID); err != nil {
		return fmt.Errorf("failed to delete markup rule: %w", err)
	}

	writeAuditLog(ctx, s.audit, actorID, model.ActionDeleteMarkupRule, id,
		rule.Category+"/"+rule.Carrier, map[string]string{"deleted_id": id})
	return nil
}

// Quote resolves the carrier's markup rules and prices the request. The
// carrier-category rule is required; insurance and pickup rules are
// optional and their categories contribute zero when absent.
func (s *markupService) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	baseFee, err := parseAmount(req.BaseFee, "base_fee")
	if err != nil {
		return nil, err
	}
	declaredValue, err := parseOptionalAmount(req.DeclaredValue, "declared_value")
	if err != nil {
		return nil, err
	}
	pickupBaseFee, err := parseOptionalAmount(req.PickupBaseFee, "pickup_base_fee")
	if err != nil {
		return nil, err
	}

	carrierRule, err := s.rules.GetRule(ctx, model.FeeCategoryCarrier, req.Carrier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no carrier markup rule for '%s'", req.Carrier)
		}
		return nil, fmt.Errorf("failed to fetch carrier rule: %w", err)
	}

	in := pricing.QuoteInput{
		BaseFee:        baseFee,
		ConversionRate: carrierRule.ConversionRate,
		CarrierMarkup: pricing.Markup{
			Type:  carrierRule.MarkupType,
			Value: carrierRule.MarkupValue,
		},
		DeclaredValue: declaredValue,
		PickupBaseFee: pickupBaseFee,
	}

	if insRule, err := s.rules.GetRule(ctx, model.FeeCategoryInsurance, req.Carrier); err == nil {
		in.InsuranceMarkupPercent = insRule.MarkupValue
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch insurance rule: %w", err)
	}

	if pickupRule, err := s.rules.GetRule(ctx, model.FeeCategoryPickup, req.Carrier); err == nil {
		in.PickupMarkupPercent = pickupRule.MarkupValue
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch pickup rule: %w", err)
	}

	breakdown, err := pricing.ComputeTotalFee(in)
	if err != nil {
		return nil, err
	}

	return &QuoteResponse{
		Carrier:      req.Carrier,
		Currency:     settlementCurrency(),
		CarrierFee:   breakdown.CarrierFee.StringFixed(2),
		InsuranceFee: breakdown.InsuranceFee.StringFixed(2),
		PickupFee:    breakdown.PickupFee.StringFixed(2),
		TotalFee:     breakdown.TotalFee.StringFixed(2),
	}, nil
}

// --- Helpers ---

// settlementCurrency is the currency customers are charged in
func settlementCurrency() string {
	if c := os.Getenv("SETTLEMENT_CURRENCY"); c != "" {
		return c
	}
	return "USD"
}

func parseRuleAmounts(rateStr, valueStr string) (decimal.Decimal, decimal.Decimal, error) {
	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, apperr.Invalid("invalid conversion rate '%s'", rateStr)
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, apperr.Invalid("invalid markup value '%s'", valueStr)
	}
	return rate, value, nil
}

// validateRuleSemantics enforces the rule invariants: positive conversion
// rate, non-negative markup value, and percentage-only markups for the
// insurance and pickup categories.
func validateRuleSemantics(category, markupType string, rate, value decimal.Decimal) error {
	if !rate.IsPositive() {
		return apperr.Invalid("conversion rate must be positive, got %s", rate)
	}
	if value.IsNegative() {
		return apperr.Invalid("markup value must be non-negative, got %s", value)
	}
	if markupType != model.MarkupTypeFlat && markupType != model.MarkupTypePercentage {
		return apperr.Invalid("unknown markup type '%s'", markupType)
	}
	if (category == model.FeeCategoryInsurance || category == model.FeeCategoryPickup) &&
		markupType != model.MarkupTypePercentage {
		return apperr.Invalid("%s markup rules must use the percentage type", category)
	}
	return nil
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperr.Invalid("invalid %s '%s'", field, raw)
	}
	return v, nil
}

func parseOptionalAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return parseAmount(raw, field)
}

func toMarkupRuleResponse(r model.MarkupRule) MarkupRuleResponse {
	return MarkupRuleResponse{
		ID:             r.ID.String(),
		Category:       r.Category,
		Carrier:        r.Carrier,
		BaseCurrency:   r.BaseCurrency,
		ConversionRate: r.ConversionRate.StringFixed(6),
		MarkupType:     r.MarkupType,
		MarkupValue:    r.MarkupValue.StringFixed(4),
		CreatedAt:      r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
