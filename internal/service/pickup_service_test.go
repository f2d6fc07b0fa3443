package service

import (
	"context"
	"testing"
	"time"

	"shipmgmt/internal/model"
	"shipmgmt/pkg/apperr"
)

func requestTestPickup(t *testing.T, env *testEnv, userID string) *PickupResponse {
	t.Helper()

	from := time.Now().Add(24 * time.Hour).Format(time.RFC3339)
	to := time.Now().Add(26 * time.Hour).Format(time.RFC3339)

	pickup, err := env.pickup.RequestPickup(context.Background(), RequestPickupRequest{
		Carrier:    "dhl",
		Address:    "1 Warehouse Rd",
		WindowFrom: from,
		WindowTo:   to,
		BaseFee:    "20.00",
	}, userID)
	if err != nil {
		t.Fatalf("failed to request pickup: %v", err)
	}
	return pickup
}

func TestRequestPickupAppliesMarkupRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, _ := createTestUser(t, env, "a@example.com")

	if _, err := env.markup.CreateRule(ctx, CreateMarkupRuleRequest{
		Category: "pickup", Carrier: "dhl", BaseCurrency: "USD",
		ConversionRate: "1", MarkupType: "percentage", MarkupValue: "5",
	}, ""); err != nil {
		t.Fatalf("failed to create pickup rule: %v", err)
	}

	pickup := requestTestPickup(t, env, user.ID)

	if pickup.Status != model.PickupStatusRequested {
		t.Errorf("status = %s, want requested", pickup.Status)
	}
	// 20.00 * 1.05 = 21.00
	if pickup.TotalFee != "21.00" {
		t.Errorf("total fee = %s, want 21.00", pickup.TotalFee)
	}
}

func TestRequestPickupWithoutRulePassesBaseFeeThrough(t *testing.T) {
	env := newTestEnv(t)

	user, _ := createTestUser(t, env, "a@example.com")
	pickup := requestTestPickup(t, env, user.ID)

	if pickup.TotalFee != "20.00" {
		t.Errorf("total fee = %s, want 20.00", pickup.TotalFee)
	}
}

func TestRequestPickupInvalidWindow(t *testing.T) {
	env := newTestEnv(t)

	user, _ := createTestUser(t, env, "a@example.com")

	from := time.Now().Add(26 * time.Hour).Format(time.RFC3339)
	to := time.Now().Add(24 * time.Hour).Format(time.RFC3339)

	_, err := env.pickup.RequestPickup(context.Background(), RequestPickupRequest{
		Carrier:    "dhl",
		Address:    "1 Warehouse Rd",
		WindowFrom: from,
		WindowTo:   to,
		BaseFee:    "20.00",
	}, user.ID)
	if !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid error for inverted window, got %v", err)
	}
}

func TestPickupLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, _ := createTestUser(t, env, "a@example.com")
	pickup := requestTestPickup(t, env, user.ID)

	// Completing before confirmation is rejected.
	if _, err := env.pickup.CompletePickup(ctx, pickup.ID, user.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict completing unconfirmed pickup, got %v", err)
	}

	confirmed, err := env.pickup.ConfirmPickup(ctx, pickup.ID, user.ID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.Status != model.PickupStatusConfirmed {
		t.Fatalf("status = %s, want confirmed", confirmed.Status)
	}

	completed, err := env.pickup.CompletePickup(ctx, pickup.ID, user.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != model.PickupStatusCompleted {
		t.Fatalf("status = %s, want completed", completed.Status)
	}

	// Completed pickups cannot be cancelled.
	if _, err := env.pickup.CancelPickup(ctx, pickup.ID, user.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict cancelling completed pickup, got %v", err)
	}
}

func TestCancelPickupBeforeCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, _ := createTestUser(t, env, "a@example.com")
	pickup := requestTestPickup(t, env, user.ID)

	cancelled, err := env.pickup.CancelPickup(ctx, pickup.ID, user.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != model.PickupStatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	// No transitions out of cancelled.
	if _, err := env.pickup.ConfirmPickup(ctx, pickup.ID, user.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict confirming cancelled pickup, got %v", err)
	}
}
