package service

import (
	"context"
	"errors"
	"testing"

	"shipmgmt/internal/model"
	"shipmgmt/internal/repository"
	"shipmgmt/pkg/apperr"

	"github.com/shopspring/decimal"
)

// failingProvider rejects every charge
type failingProvider struct{}

func (failingProvider) CreateCharge(context.Context, decimal.Decimal, string, string) (string, error) {
	return "", errors.New("card declined")
}

func TestCreatePaymentSucceeded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, _ := createTestUser(t, env, "a@example.com")

	payment, err := env.payment.CreatePayment(ctx, CreatePaymentRequest{
		Amount:      "42.50",
		Currency:    "USD",
		Description: "shipment charge",
	}, user.ID)
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	if payment.Status != model.PaymentStatusSucceeded {
		t.Errorf("status = %s, want succeeded", payment.Status)
	}
	if payment.ProviderChargeID == "" {
		t.Error("provider charge id missing")
	}
	if payment.Amount != "42.50" {
		t.Errorf("amount = %s, want 42.50", payment.Amount)
	}
}

func TestCreatePaymentProviderFailureLeavesFailedRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, _ := createTestUser(t, env, "a@example.com")

	paymentRepo := repository.NewPaymentRepository(env.db)
	auditRepo := repository.NewAuditRepository(env.db)
	svc := NewPaymentService(paymentRepo, failingProvider{}, auditRepo)

	_, err := svc.CreatePayment(ctx, CreatePaymentRequest{
		Amount:   "10.00",
		Currency: "USD",
	}, user.ID)
	if err == nil {
		t.Fatal("expected provider failure to surface")
	}

	// The attempt is still recorded as a failed payment.
	var stored model.Payment
	if err := env.db.First(&stored, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("failed to load payment row: %v", err)
	}
	if stored.Status != model.PaymentStatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, _ := createTestUser(t, env, "a@example.com")

	cases := []struct {
		name string
		req  CreatePaymentRequest
	}{
		{"garbage amount", CreatePaymentRequest{Amount: "ten", Currency: "USD"}},
		{"zero amount", CreatePaymentRequest{Amount: "0", Currency: "USD"}},
		{"negative amount", CreatePaymentRequest{Amount: "-5", Currency: "USD"}},
		{"bad currency", CreatePaymentRequest{Amount: "5", Currency: "DOLLARS"}},
		{"bad shipment id", CreatePaymentRequest{Amount: "5", Currency: "USD", ShipmentID: "not-a-uuid"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.payment.CreatePayment(ctx, tc.req, user.ID); !apperr.IsInvalid(err) {
				t.Fatalf("expected invalid error, got %v", err)
			}
		})
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, _ := createTestUser(t, env, "a@example.com")

	sub, err := env.payment.CreateSubscription(ctx, CreateSubscriptionRequest{PlanCode: "pro"}, user.ID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if sub.Status != model.SubscriptionStatusActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}

	// Only one active subscription per user.
	if _, err := env.payment.CreateSubscription(ctx, CreateSubscriptionRequest{PlanCode: "pro"}, user.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for second subscription, got %v", err)
	}

	active, err := env.payment.GetActiveSubscription(ctx, user.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if active.ID != sub.ID {
		t.Fatalf("active subscription mismatch")
	}

	cancelled, err := env.payment.CancelSubscription(ctx, sub.ID, user.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != model.SubscriptionStatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	// Cancelling twice conflicts; no active subscription remains.
	if _, err := env.payment.CancelSubscription(ctx, sub.ID, user.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for double cancel, got %v", err)
	}
	if _, err := env.payment.GetActiveSubscription(ctx, user.ID); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found after cancel, got %v", err)
	}

	// A cancelled subscription frees the user to subscribe again.
	if _, err := env.payment.CreateSubscription(ctx, CreateSubscriptionRequest{PlanCode: "starter"}, user.ID); err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}
}
