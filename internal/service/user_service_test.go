package service

import (
	"context"
	"testing"

	"shipmgmt/internal/model"
	"shipmgmt/pkg/apperr"

	"github.com/google/uuid"
)

func createTestUser(t *testing.T, env *testEnv, email string) (*UserResponse, *RoleResponse) {
	t.Helper()
	role := createTestRole(t, env, "role-"+email)
	user, err := env.users.CreateUser(context.Background(), CreateUserRequest{
		FullName: "Test User",
		Email:    email,
		Password: "password123",
		RoleID:   role.ID,
	}, "")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user, role
}

func TestCreateUserHashesPassword(t *testing.T) {
	env := newTestEnv(t)

	user, _ := createTestUser(t, env, "a@example.com")

	var stored model.User
	if err := env.db.First(&stored, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("failed to load user row: %v", err)
	}
	if stored.Password == "password123" {
		t.Fatal("password stored in plaintext")
	}
	if stored.Password == "" {
		t.Fatal("password hash missing")
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, role := createTestUser(t, env, "a@example.com")

	_, err := env.users.CreateUser(ctx, CreateUserRequest{
		FullName: "Other",
		Email:    "a@example.com",
		Password: "password123",
		RoleID:   role.ID,
	}, "")
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
}

func TestCreateUserUnknownRole(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.users.CreateUser(context.Background(), CreateUserRequest{
		FullName: "Test",
		Email:    "a@example.com",
		Password: "password123",
		RoleID:   uuid.NewString(),
	}, "")
	if !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid error for unknown role, got %v", err)
	}
}

func TestLoginAndRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	createTestUser(t, env, "a@example.com")

	tokens, err := env.users.Login(ctx, LoginRequest{Email: "a@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}

	rotated, err := env.users.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if rotated.RefreshToken == tokens.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The original refresh token is single-use.
	if _, err := env.users.Refresh(ctx, tokens.RefreshToken); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid error reusing rotated token, got %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, _ := createTestUser(t, env, "a@example.com")

	if _, err := env.users.Login(ctx, LoginRequest{Email: "a@example.com", Password: "wrong-password"}); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid error for bad password, got %v", err)
	}
	if _, err := env.users.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "password123"}); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid error for unknown email, got %v", err)
	}

	inactive := false
	if _, err := env.users.UpdateUser(ctx, user.ID, UpdateUserRequest{IsActive: &inactive}, ""); err != nil {
		t.Fatalf("failed to deactivate user: %v", err)
	}
	if _, err := env.users.Login(ctx, LoginRequest{Email: "a@example.com", Password: "password123"}); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid error for deactivated account, got %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	createTestUser(t, env, "a@example.com")

	tokens, err := env.users.Login(ctx, LoginRequest{Email: "a@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := env.users.Logout(ctx, tokens.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := env.users.Refresh(ctx, tokens.RefreshToken); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid error after logout, got %v", err)
	}

	// Logging out twice is fine.
	if err := env.users.Logout(ctx, tokens.RefreshToken); err != nil {
		t.Fatalf("second logout failed: %v", err)
	}
}

func TestUpdateUserEmailResetsVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, _ := createTestUser(t, env, "a@example.com")

	// Mark verified directly, then change the email.
	if err := env.db.Model(&model.User{}).Where("id = ?", user.ID).Update("email_verified", true).Error; err != nil {
		t.Fatalf("failed to mark verified: %v", err)
	}

	newEmail := "b@example.com"
	updated, err := env.users.UpdateUser(ctx, user.ID, UpdateUserRequest{Email: &newEmail}, "")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Email != "b@example.com" {
		t.Errorf("email = %s, want b@example.com", updated.Email)
	}
	if updated.EmailVerified {
		t.Error("email change must reset verification")
	}
}

func TestRegisterUsesMemberRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.rbac.SeedDefaults(ctx); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	user, err := env.users.Register(ctx, RegisterRequest{
		FullName: "Self Signup",
		Email:    "new@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.RoleName != "member" {
		t.Errorf("role = %s, want member", user.RoleName)
	}
}
