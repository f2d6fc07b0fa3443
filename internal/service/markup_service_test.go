package service

import (
	"context"
	"testing"

	"shipmgmt/pkg/apperr"
)

func createCarrierRule(t *testing.T, env *testEnv, carrier, rate, markupType, value string) *MarkupRuleResponse {
	t.Helper()
	rule, err := env.markup.CreateRule(context.Background(), CreateMarkupRuleRequest{
		Category:       "carrier",
		Carrier:        carrier,
		BaseCurrency:   "EUR",
		ConversionRate: rate,
		MarkupType:     markupType,
		MarkupValue:    value,
	}, "")
	if err != nil {
		t.Fatalf("failed to create carrier rule: %v", err)
	}
	return rule
}

func TestCreateRuleValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateMarkupRuleRequest
	}{
		{"zero conversion rate", CreateMarkupRuleRequest{
			Category: "carrier", Carrier: "dhl", BaseCurrency: "EUR",
			ConversionRate: "0", MarkupType: "flat", MarkupValue: "1",
		}},
		{"negative markup value", CreateMarkupRuleRequest{
			Category: "carrier", Carrier: "dhl", BaseCurrency: "EUR",
			ConversionRate: "1", MarkupType: "flat", MarkupValue: "-1",
		}},
		{"unknown markup type", CreateMarkupRuleRequest{
			Category: "carrier", Carrier: "dhl", BaseCurrency: "EUR",
			ConversionRate: "1", MarkupType: "tiered", MarkupValue: "1",
		}},
		{"insurance must be percentage", CreateMarkupRuleRequest{
			Category: "insurance", Carrier: "dhl", BaseCurrency: "EUR",
			ConversionRate: "1", MarkupType: "flat", MarkupValue: "1",
		}},
		{"pickup must be percentage", CreateMarkupRuleRequest{
			Category: "pickup", Carrier: "dhl", BaseCurrency: "EUR",
			ConversionRate: "1", MarkupType: "flat", MarkupValue: "1",
		}},
		{"garbage conversion rate", CreateMarkupRuleRequest{
			Category: "carrier", Carrier: "dhl", BaseCurrency: "EUR",
			ConversionRate: "abc", MarkupType: "flat", MarkupValue: "1",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.markup.CreateRule(ctx, tc.req, ""); !apperr.IsInvalid(err) {
				t.Fatalf("expected invalid error, got %v", err)
			}
		})
	}
}

func TestCreateRuleDuplicateCategoryCarrier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	createCarrierRule(t, env, "dhl", "1.0", "flat", "5")

	_, err := env.markup.CreateRule(ctx, CreateMarkupRuleRequest{
		Category: "carrier", Carrier: "dhl", BaseCurrency: "USD",
		ConversionRate: "1", MarkupType: "percentage", MarkupValue: "10",
	}, "")
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for duplicate (category, carrier), got %v", err)
	}
}

func TestQuoteFlatMarkup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 10.00 EUR base at 1.20 → 12.00, plus 5.00 flat markup.
	createCarrierRule(t, env, "dhl", "1.20", "flat", "5")

	quote, err := env.markup.Quote(ctx, QuoteRequest{Carrier: "dhl", BaseFee: "10.00"})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	if quote.CarrierFee != "17.00" {
		t.Errorf("carrier fee = %s, want 17.00", quote.CarrierFee)
	}
	if quote.InsuranceFee != "0.00" || quote.PickupFee != "0.00" {
		t.Errorf("expected zero insurance/pickup fees, got %s / %s", quote.InsuranceFee, quote.PickupFee)
	}
	if quote.TotalFee != "17.00" {
		t.Errorf("total fee = %s, want 17.00", quote.TotalFee)
	}
	if quote.Currency != "USD" {
		t.Errorf("currency = %s, want USD", quote.Currency)
	}
}

func TestQuoteFullBreakdown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	createCarrierRule(t, env, "ups", "1.00", "percentage", "10")

	mustRule := func(req CreateMarkupRuleRequest) {
		t.Helper()
		if _, err := env.markup.CreateRule(ctx, req, ""); err != nil {
			t.Fatalf("failed to create rule: %v", err)
		}
	}
	mustRule(CreateMarkupRuleRequest{
		Category: "insurance", Carrier: "ups", BaseCurrency: "USD",
		ConversionRate: "1", MarkupType: "percentage", MarkupValue: "1.25",
	})
	mustRule(CreateMarkupRuleRequest{
		Category: "pickup", Carrier: "ups", BaseCurrency: "USD",
		ConversionRate: "1", MarkupType: "percentage", MarkupValue: "5",
	})

	// carrier: 100 * 1.10 = 110.00
	// insurance: 500 * 1.25% = 6.25
	// pickup: 20 * 1.05 = 21.00
	quote, err := env.markup.Quote(ctx, QuoteRequest{
		Carrier:       "ups",
		BaseFee:       "100",
		DeclaredValue: "500",
		PickupBaseFee: "20",
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	if quote.CarrierFee != "110.00" {
		t.Errorf("carrier fee = %s, want 110.00", quote.CarrierFee)
	}
	if quote.InsuranceFee != "6.25" {
		t.Errorf("insurance fee = %s, want 6.25", quote.InsuranceFee)
	}
	if quote.PickupFee != "21.00" {
		t.Errorf("pickup fee = %s, want 21.00", quote.PickupFee)
	}
	if quote.TotalFee != "137.25" {
		t.Errorf("total fee = %s, want 137.25", quote.TotalFee)
	}
}

func TestQuoteMissingCarrierRule(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.markup.Quote(context.Background(), QuoteRequest{Carrier: "fedex", BaseFee: "10"})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found for unconfigured carrier, got %v", err)
	}
}

func TestUpdateRuleKeepsInvariants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rule := createCarrierRule(t, env, "dhl", "1.0", "flat", "5")

	badRate := "0"
	if _, err := env.markup.UpdateRule(ctx, rule.ID, UpdateMarkupRuleRequest{ConversionRate: &badRate}, ""); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid error for zero rate, got %v", err)
	}

	newValue := "7.5"
	updated, err := env.markup.UpdateRule(ctx, rule.ID, UpdateMarkupRuleRequest{MarkupValue: &newValue}, "")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.MarkupValue != "7.5000" {
		t.Errorf("markup value = %s, want 7.5000", updated.MarkupValue)
	}
}

func TestDeleteRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rule := createCarrierRule(t, env, "dhl", "1.0", "flat", "5")

	if err := env.markup.DeleteRule(ctx, rule.ID, ""); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := env.markup.DeleteRule(ctx, rule.ID, ""); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found for second delete, got %v", err)
	}

	// Quoting against the deleted rule fails too.
	if _, err := env.markup.Quote(ctx, QuoteRequest{Carrier: "dhl", BaseFee: "10"}); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
