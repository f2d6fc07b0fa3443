package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"shipmgmt/internal/middleware"
	"shipmgmt/internal/model"
	"shipmgmt/internal/repository"
	"shipmgmt/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

// --- DTOs ---

type CreateUserRequest struct {
	FullName    string `json:"full_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	CompanyName string `json:"company_name"`
	RoleID      string `json:"role_id" binding:"required"`
}

// UpdateUserRequest has partial-patch semantics: nil fields stay unchanged.
// The password is re-hashed only when a new one is supplied.
type UpdateUserRequest struct {
	FullName    *string `json:"full_name"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Password    *string `json:"password" binding:"omitempty,min=8"`
	CompanyName *string `json:"company_name"`
	RoleID      *string `json:"role_id"`
	IsActive    *bool   `json:"is_active"`
}

// RegisterRequest is the public self-service signup payload. The role is
// always the default member role.
type RegisterRequest struct {
	FullName    string `json:"full_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	CompanyName string `json:"company_name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UserResponse never carries the password hash
type UserResponse struct {
	ID            string `json:"id"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	CompanyName   string `json:"company_name,omitempty"`
	RoleID        string `json:"role_id"`
	RoleName      string `json:"role_name,omitempty"`
	IsActive      bool   `json:"is_active"`
	EmailVerified bool   `json:"email_verified"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// --- Interface ---

type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest, actorID string) (*UserResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenPairResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPairResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest, actorID string) (*UserResponse, error)
	DeleteUser(ctx context.Context, id string, actorID string) error
}

type userService struct {
	users  repository.UserRepository
	roles  repository.RoleRepository
	tokens repository.RefreshTokenRepository
	audit  repository.AuditRepository
}

// NewUserService returns a new instance of UserService
func NewUserService(
	users repository.UserRepository,
	roles repository.RoleRepository,
	tokens repository.RefreshTokenRepository,
	audit repository.AuditRepository,
) UserService {
	return &userService{users: users, roles: roles, tokens: tokens, audit: audit}
}

// --- Implementation ---

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest, actorID string) (*UserResponse, error) {
	roleID, err := uuid.Parse(req.RoleID)
	if err != nil {
		return nil, apperr.Invalid("invalid role id '%s'", req.RoleID)
	}

	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Invalid("role '%s' does not exist", req.RoleID)
		}
		return nil, fmt.Errorf("failed to fetch role: %w", err)
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperr.Conflict("email '%s' already exists", req.Email)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	// Plaintext is hashed once here and never stored or logged.
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		FullName:    req.FullName,
		Email:       req.Email,
		Password:    string(hashed),
		CompanyName: req.CompanyName,
		RoleID:      roleID,
		IsActive:    true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	writeAuditLog(ctx, s.audit, actorID, model.ActionCreateUser, user.ID.String(), user.Email,
		map[string]string{"email": req.Email, "role_id": req.RoleID})

	resp := toUserResponse(user, role.Name)
	return &resp, nil
}

func (s *userService) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	role, err := s.roles.FindByName(ctx, "member")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("default member role is missing")
		}
		return nil, fmt.Errorf("failed to fetch role: %w", err)
	}

	return s.CreateUser(ctx, CreateUserRequest{
		FullName:    req.FullName,
		Email:       req.Email,
		Password:    req.Password,
		CompanyName: req.CompanyName,
		RoleID:      role.ID.String(),
	}, "")
}

func (s *userService) Login(ctx context.Context, req LoginRequest) (*TokenPairResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Invalid("invalid email or password")
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	if !user.IsActive {
		return nil, apperr.Invalid("account is deactivated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperr.Invalid("invalid email or password")
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (*TokenPairResponse, error) {
	stored, err := s.tokens.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Invalid("invalid refresh token")
		}
		return nil, fmt.Errorf("failed to fetch refresh token: %w", err)
	}

	if time.Now().After(stored.ExpiresAt) {
		_ = s.tokens.Delete(ctx, stored.Token)
		return nil, apperr.Invalid("refresh token expired")
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	// Rotate: the old refresh token is single-use.
	if err := s.tokens.Delete(ctx, stored.Token); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes the refresh token. Unknown tokens are treated as already
// revoked.
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.Delete(ctx, refreshToken); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *userService) issueTokens(ctx context.Context, user *model.User) (*TokenPairResponse, error) {
	role, err := s.users.LoadRoleForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user role: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     user.ID.String(),
		"role_id": role.ID.String(),
		"role":    role.Name,
		"iat":     now.Unix(),
		"exp":     now.Add(accessTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString(middleware.GetJWTSecret())
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	refreshToken := hex.EncodeToString(raw)

	if err := s.tokens.Create(ctx, &model.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: now.Add(refreshTokenTTL),
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPairResponse{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalid("invalid user id '%s'", id)
	}

	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	role, err := s.users.LoadRoleForUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user role: %w", err)
	}

	resp := toUserResponse(user, role.Name)
	return &resp, nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	users, total, err := s.users.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	res := make([]UserResponse, 0, len(users))
	for i := range users {
		res = append(res, toUserResponse(&users[i], ""))
	}
	return res, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest, actorID string) (*UserResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalid("invalid user id '%s'", id)
	}

	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	if req.Email != nil && *req.Email != user.Email {
		if _, err := s.users.GetByEmail(ctx, *req.Email); err == nil {
			return nil, apperr.Conflict("email '%s' already exists", *req.Email)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		user.Email = *req.Email
		user.EmailVerified = false
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.CompanyName != nil {
		user.CompanyName = *req.CompanyName
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.RoleID != nil {
		roleID, err := uuid.Parse(*req.RoleID)
		if err != nil {
			return nil, apperr.Invalid("invalid role id '%s'", *req.RoleID)
		}
		if _, err := s.roles.FindByID(ctx, roleID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Invalid("role '%s' does not exist", *req.RoleID)
			}
			return nil, fmt.Errorf("failed to fetch role: %w", err)
		}
		user.RoleID = roleID
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = string(hashed)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	writeAuditLog(ctx, s.audit, actorID, model.ActionUpdateUser, id, user.Email, map[string]string{"updated_id": id})

	return s.GetUserByID(ctx, id)
}

func (s *userService) DeleteUser(ctx context.Context, id string, actorID string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return apperr.Invalid("invalid user id '%s'", id)
	}

	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user '%s' not found", id)
		}
		return fmt.Errorf("failed to fetch user: %w", err)
	}

	if err := s.users.Delete(ctx, uid); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	writeAuditLog(ctx, s.audit, actorID, model.ActionDeleteUser, id, user.Email, map[string]string{"deleted_id": id})
	return nil
}

// --- Helpers ---

func toUserResponse(user *model.User, roleName string) UserResponse {
	return UserResponse{
		ID:            user.ID.String(),
		FullName:      user.FullName,
		Email:         user.Email,
		CompanyName:   user.CompanyName,
		RoleID:        user.RoleID.String(),
		RoleName:      roleName,
		IsActive:      user.IsActive,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     user.UpdatedAt.Format(time.RFC3339),
	}
}
