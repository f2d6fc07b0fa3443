package pricing

import (
	"github.com/shopspring/decimal"

	"shipmgmt/pkg/apperr"
)

// Markup types accepted by the calculator. Kept as plain strings so the
// pricing package stays free of persistence concerns.
const (
	MarkupFlat       = "flat"
	MarkupPercentage = "percentage"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Markup is either a flat settlement-currency amount or percentage points
// applied on top of the converted base fee.
type Markup struct {
	Type  string
	Value decimal.Decimal
}

// QuoteInput carries everything needed to price one shipment quote.
// BaseFee and DeclaredValue are in the carrier's base currency;
// ConversionRate converts base currency to settlement currency.
// PickupBaseFee is already quoted in the settlement currency.
type QuoteInput struct {
	BaseFee                decimal.Decimal
	ConversionRate         decimal.Decimal
	CarrierMarkup          Markup
	DeclaredValue          decimal.Decimal
	InsuranceMarkupPercent decimal.Decimal
	PickupBaseFee          decimal.Decimal
	PickupMarkupPercent    decimal.Decimal
}

// FeeBreakdown is the priced result, per category and total, in the
// settlement currency. Every amount is rounded to 2 decimal places, half
// away from zero; the total is the sum of the rounded components.
type FeeBreakdown struct {
	CarrierFee   decimal.Decimal `json:"carrier_fee"`
	InsuranceFee decimal.Decimal `json:"insurance_fee"`
	PickupFee    decimal.Decimal `json:"pickup_fee"`
	TotalFee     decimal.Decimal `json:"total_fee"`
}

// ComputeTotalFee converts a carrier-quoted base fee into the customer
// total. Pure and deterministic: same input, same breakdown.
func ComputeTotalFee(in QuoteInput) (FeeBreakdown, error) {
	if err := validate(in); err != nil {
		return FeeBreakdown{}, err
	}

	baseSettlement := in.BaseFee.Mul(in.ConversionRate)

	var carrierFee decimal.Decimal
	switch in.CarrierMarkup.Type {
	case MarkupFlat:
		carrierFee = baseSettlement.Add(in.CarrierMarkup.Value)
	case MarkupPercentage:
		carrierFee = baseSettlement.Mul(one.Add(in.CarrierMarkup.Value.Div(hundred)))
	}

	insuranceFee := in.DeclaredValue.Mul(in.ConversionRate).Mul(in.InsuranceMarkupPercent).Div(hundred)
	pickupFee := in.PickupBaseFee.Mul(one.Add(in.PickupMarkupPercent.Div(hundred)))

	carrierFee = carrierFee.Round(2)
	insuranceFee = insuranceFee.Round(2)
	pickupFee = pickupFee.Round(2)

	return FeeBreakdown{
		CarrierFee:   carrierFee,
		InsuranceFee: insuranceFee,
		PickupFee:    pickupFee,
		TotalFee:     carrierFee.Add(insuranceFee).Add(pickupFee),
	}, nil
}

func validate(in QuoteInput) error {
	if !in.ConversionRate.IsPositive() {
		return apperr.Invalid("conversion rate must be positive, got %s", in.ConversionRate)
	}
	if in.CarrierMarkup.Type != MarkupFlat && in.CarrierMarkup.Type != MarkupPercentage {
		return apperr.Invalid("unknown markup type '%s'", in.CarrierMarkup.Type)
	}
	if in.CarrierMarkup.Value.IsNegative() {
		return apperr.Invalid("markup value must be non-negative, got %s", in.CarrierMarkup.Value)
	}
	if in.BaseFee.IsNegative() {
		return apperr.Invalid("base fee must be non-negative, got %s", in.BaseFee)
	}
	if in.DeclaredValue.IsNegative() {
		return apperr.Invalid("declared value must be non-negative, got %s", in.DeclaredValue)
	}
	if in.PickupBaseFee.IsNegative() {
		return apperr.Invalid("pickup base fee must be non-negative, got %s", in.PickupBaseFee)
	}
	if in.InsuranceMarkupPercent.IsNegative() {
		return apperr.Invalid("insurance markup percentage must be non-negative, got %s", in.InsuranceMarkupPercent)
	}
	if in.PickupMarkupPercent.IsNegative() {
		return apperr.Invalid("pickup markup percentage must be non-negative, got %s", in.PickupMarkupPercent)
	}
	return nil
}
