package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"shipmgmt/pkg/apperr"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestComputeTotalFee_FlatMarkup(t *testing.T) {
	in := QuoteInput{
		BaseFee:        d("10"),
		ConversionRate: d("1.35"),
		CarrierMarkup:  Markup{Type: MarkupFlat, Value: d("3.5")},
		// declared value, insurance and pickup all zero
	}

	out, err := ComputeTotalFee(in)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if got := out.CarrierFee.StringFixed(2); got != "17.00" {
		t.Fatalf("carrier fee = %s, want 17.00", got)
	}
	if got := out.TotalFee.StringFixed(2); got != "17.00" {
		t.Fatalf("total = %s, want 17.00", got)
	}
}

func TestComputeTotalFee_PercentageMarkupAllCategories(t *testing.T) {
	in := QuoteInput{
		BaseFee:                d("100"),
		ConversionRate:         d("1"),
		CarrierMarkup:          Markup{Type: MarkupPercentage, Value: d("10")},
		DeclaredValue:          d("500"),
		InsuranceMarkupPercent: d("1.25"),
		PickupBaseFee:          d("20"),
		PickupMarkupPercent:    d("5"),
	}

	out, err := ComputeTotalFee(in)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	cases := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"carrier", out.CarrierFee, "110.00"},
		{"insurance", out.InsuranceFee, "6.25"},
		{"pickup", out.PickupFee, "21.00"},
		{"total", out.TotalFee, "137.25"},
	}
	for _, tc := range cases {
		if tc.got.StringFixed(2) != tc.want {
			t.Fatalf("%s fee = %s, want %s", tc.name, tc.got.StringFixed(2), tc.want)
		}
	}
}

func TestComputeTotalFee_Deterministic(t *testing.T) {
	in := QuoteInput{
		BaseFee:                d("42.17"),
		ConversionRate:         d("0.91"),
		CarrierMarkup:          Markup{Type: MarkupPercentage, Value: d("12.5")},
		DeclaredValue:          d("1234.56"),
		InsuranceMarkupPercent: d("0.75"),
		PickupBaseFee:          d("7.40"),
		PickupMarkupPercent:    d("8"),
	}

	first, err := ComputeTotalFee(in)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ComputeTotalFee(in)
		if err != nil {
			t.Fatalf("compute (run %d): %v", i, err)
		}
		if !again.TotalFee.Equal(first.TotalFee) ||
			!again.CarrierFee.Equal(first.CarrierFee) ||
			!again.InsuranceFee.Equal(first.InsuranceFee) ||
			!again.PickupFee.Equal(first.PickupFee) {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestComputeTotalFee_RoundsHalfAwayFromZero(t *testing.T) {
	in := QuoteInput{
		BaseFee:        d("1"),
		ConversionRate: d("1"),
		// 1 * 1.005 = 1.005 → 1.01 when rounding half away from zero
		CarrierMarkup: Markup{Type: MarkupPercentage, Value: d("0.5")},
	}

	out, err := ComputeTotalFee(in)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := out.CarrierFee.StringFixed(2); got != "1.01" {
		t.Fatalf("carrier fee = %s, want 1.01", got)
	}
}

func TestComputeTotalFee_TotalIsSumOfRoundedComponents(t *testing.T) {
	in := QuoteInput{
		BaseFee:                d("9.999"),
		ConversionRate:         d("1.111"),
		CarrierMarkup:          Markup{Type: MarkupFlat, Value: d("0.004")},
		DeclaredValue:          d("33.33"),
		InsuranceMarkupPercent: d("1.111"),
		PickupBaseFee:          d("5.555"),
		PickupMarkupPercent:    d("3.333"),
	}

	out, err := ComputeTotalFee(in)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	sum := out.CarrierFee.Add(out.InsuranceFee).Add(out.PickupFee)
	if !out.TotalFee.Equal(sum) {
		t.Fatalf("total %s != component sum %s", out.TotalFee, sum)
	}
}

func TestComputeTotalFee_Validation(t *testing.T) {
	valid := QuoteInput{
		BaseFee:        d("10"),
		ConversionRate: d("1"),
		CarrierMarkup:  Markup{Type: MarkupFlat, Value: d("1")},
	}

	cases := []struct {
		name   string
		mutate func(*QuoteInput)
	}{
		{"zero conversion rate", func(in *QuoteInput) { in.ConversionRate = decimal.Zero }},
		{"negative conversion rate", func(in *QuoteInput) { in.ConversionRate = d("-1.2") }},
		{"unknown markup type", func(in *QuoteInput) { in.CarrierMarkup.Type = "surcharge" }},
		{"empty markup type", func(in *QuoteInput) { in.CarrierMarkup.Type = "" }},
		{"negative markup value", func(in *QuoteInput) { in.CarrierMarkup.Value = d("-3") }},
		{"negative base fee", func(in *QuoteInput) { in.BaseFee = d("-0.01") }},
		{"negative declared value", func(in *QuoteInput) { in.DeclaredValue = d("-100") }},
		{"negative pickup base fee", func(in *QuoteInput) { in.PickupBaseFee = d("-5") }},
		{"negative insurance pct", func(in *QuoteInput) { in.InsuranceMarkupPercent = d("-1") }},
		{"negative pickup pct", func(in *QuoteInput) { in.PickupMarkupPercent = d("-1") }},
	}

	for _, tc := range cases {
		in := valid
		tc.mutate(&in)
		_, err := ComputeTotalFee(in)
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !apperr.IsInvalid(err) {
			t.Fatalf("%s: expected invalid kind, got %v", tc.name, err)
		}
	}

	// Sanity: the unmutated input passes.
	if _, err := ComputeTotalFee(valid); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
}

func TestComputeTotalFee_ZeroBaseFeeIsAllowed(t *testing.T) {
	in := QuoteInput{
		BaseFee:        decimal.Zero,
		ConversionRate: d("1.5"),
		CarrierMarkup:  Markup{Type: MarkupFlat, Value: d("2")},
	}
	out, err := ComputeTotalFee(in)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := out.TotalFee.StringFixed(2); got != "2.00" {
		t.Fatalf("total = %s, want 2.00", got)
	}
}
