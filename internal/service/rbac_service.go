package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shipmgmt/internal/model"
	"shipmgmt/internal/repository"
	"shipmgmt/pkg/apperr"
	"shipmgmt/pkg/cache"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const permCacheTTL = 5 * time.Minute

func permCacheKey(roleID uuid.UUID) string {
	return "perms:role:" + roleID.String()
}

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

// UpdateRoleRequest has partial-patch semantics: nil fields stay unchanged.
type UpdateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type PermissionIDsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

type CreatePermissionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Resource    string `json:"resource" binding:"required"`
	Action      string `json:"action" binding:"required"`
	Scope       string `json:"scope"`
}

// UpdatePermissionRequest only touches the mutable fields; a permission's
// identity (name/resource/action/scope) is immutable once created.
type UpdatePermissionRequest struct {
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsActive    bool                 `json:"is_active"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Scope       string `json:"scope,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// --- Interface ---

// RBACService is the central authority for role/permission lifecycle and
// for answering "can user U perform action A on resource R" queries.
type RBACService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, req CreateRoleRequest, actorID string) (*RoleResponse, error)
	UpdateRole(ctx context.Context, id string, req UpdateRoleRequest, actorID string) (*RoleResponse, error)
	DeleteRole(ctx context.Context, id string, actorID string) error
	AssignPermissions(ctx context.Context, roleID string, req PermissionIDsRequest, actorID string) (*RoleResponse, error)
	RemovePermissions(ctx context.Context, roleID string, req PermissionIDsRequest, actorID string) (*RoleResponse, error)

	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	CreatePermission(ctx context.Context, req CreatePermissionRequest, actorID string) (*PermissionResponse, error)
	UpdatePermission(ctx context.Context, id string, req UpdatePermissionRequest, actorID string) (*PermissionResponse, error)

	GetEffectivePermissions(ctx context.Context, userID string) ([]PermissionResponse, error)
	PermissionNamesForRole(ctx context.Context, roleID string) ([]string, error)

	SeedDefaults(ctx context.Context) error
}

type rbacService struct {
	roles repository.RoleRepository
	perms repository.PermissionRepository
	users repository.UserRepository
	audit repository.AuditRepository
	txMgr repository.TransactionManager
	cache cache.Cache
}

func NewRBACService(
	roles repository.RoleRepository,
	perms repository.PermissionRepository,
	users repository.UserRepository,
	audit repository.AuditRepository,
	txMgr repository.TransactionManager,
	permCache cache.Cache,
) RBACService {
	return &rbacService{
		roles: roles,
		perms: perms,
		users: users,
		audit: audit,
		txMgr: txMgr,
		cache: permCache,
	}
}

// --- Pure permission checks ---

// HasPermission reports whether a permission with the exact name is present.
func HasPermission(perms []model.Permission, name string) bool {
	for _, p := range perms {
		if p.Name == name {
			return true
		}
	}
	return false
}

// HasResourcePermission matches resource and action exactly. When scope is
// non-empty the permission's scope must match it exactly; an unscoped
// permission does not satisfy a scoped query. Empty scope in the query
// ignores permission scopes entirely.
func HasResourcePermission(perms []model.Permission, resource, action, scope string) bool {
	for _, p := range perms {
		if p.Resource != resource || p.Action != action {
			continue
		}
		if scope == "" || p.Scope == scope {
			return true
		}
	}
	return false
}

// --- Role lifecycle ---

func (s *rbacService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roles.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		perms, err := s.roles.LoadPermissionsForRole(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch permissions for role '%s': %w", r.Name, err)
		}
		res = append(res, toRoleResponse(r, perms))
	}
	return res, nil
}

func (s *rbacService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalid("invalid role id '%s'", id)
	}

	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("role '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to fetch role: %w", err)
	}

	perms, err := s.roles.LoadPermissionsForRole(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch role permissions: %w", err)
	}

	resp := toRoleResponse(*role, perms)
	return &resp, nil
}

func (s *rbacService) CreateRole(ctx context.Context, req CreateRoleRequest, actorID string) (*RoleResponse, error) {
	// Case-sensitive exact-match uniqueness on the name.
	if _, err := s.roles.FindByName(ctx, req.Name); err == nil {
		return nil, apperr.Conflict("role '%s' already exists", req.Name)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check role name: %w", err)
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	role := model.Role{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    isActive,
	}
	if err := s.roles.Create(ctx, &role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	s.writeAuditLog(ctx, actorID, model.ActionCreateRole, role.ID.String(), role.Name, req)

	resp := toRoleResponse(role, nil)
	return &resp, nil
}

func (s *rbacService) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest, actorID string) (*RoleResponse, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalid("invalid role id '%s'", id)
	}

	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("role '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to fetch role: %w", err)
	}

	if req.Name != nil && *req.Name != role.Name {
		if other, err := s.roles.FindByName(ctx, *req.Name); err == nil && other.ID != role.ID {
			return nil, apperr.Conflict("role '%s' already exists", *req.Name)
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check role name: %w", err)
		}
		role.Name = *req.Name
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	if req.IsActive != nil {
		role.IsActive = *req.IsActive
	}

	if err := s.roles.Update(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	s.writeAuditLog(ctx, actorID, model.ActionUpdateRole, role.ID.String(), role.Name, req)

	return s.GetRole(ctx, id)
}

func (s *rbacService) DeleteRole(ctx context.Context, id string, actorID string) error {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Invalid("invalid role id '%s'", id)
	}

	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("role '%s' not found", id)
		}
		return fmt.Errorf("failed to fetch role: %w", err)
	}

	if role.IsSystem {
		return apperr.Conflict("cannot delete system role '%s'", role.Name)
	}

	// Referential guard: the delete must fail, not cascade, while users
	// still reference the role.
	count, err := s.roles.CountUsers(ctx, roleID)
	if err != nil {
		return fmt.Errorf("failed to count role users: %w", err)
	}
	if count > 0 {
		return apperr.Conflict("role '%s' has %d assigned users", role.Name, count)
	}

	err = s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roles.ClearPermissions(txCtx, roleID); err != nil {
			return fmt.Errorf("failed to clear role permissions: %w", err)
		}
		if err := s.roles.Delete(txCtx, roleID); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidatePermCache(ctx, roleID)
	s.writeAuditLog(ctx, actorID, model.ActionDeleteRole, id, role.Name, map[string]string{"deleted_id": id})

	return nil
}

// --- Permission assignment ---

func (s *rbacService) AssignPermissions(ctx context.Context, roleID string, req PermissionIDsRequest, actorID string) (*RoleResponse, error) {
	rid, permIDs, err := s.resolveRoleAndPermissionIDs(ctx, roleID, req.PermissionIDs)
	if err != nil {
		return nil, err
	}

	// All-or-nothing: every id must resolve to an existing permission or
	// the whole call fails inside one transaction.
	err = s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.perms.FindByIDs(txCtx, permIDs)
		if err != nil {
			return fmt.Errorf("failed to fetch permissions: %w", err)
		}
		if len(found) != len(permIDs) {
			return apperr.Invalid("permission list contains %d unknown id(s)", len(permIDs)-len(found))
		}
		return s.roles.AssignPermissions(txCtx, rid, permIDs)
	})
	if err != nil {
		return nil, err
	}

	s.invalidatePermCache(ctx, rid)
	s.writeAuditLog(ctx, actorID, model.ActionAssignPermissions, roleID, "", req)

	return s.GetRole(ctx, roleID)
}

func (s *rbacService) RemovePermissions(ctx context.Context, roleID string, req PermissionIDsRequest, actorID string) (*RoleResponse, error) {
	rid, permIDs, err := s.resolveRoleAndPermissionIDs(ctx, roleID, req.PermissionIDs)
	if err != nil {
		return nil, err
	}

	// Removing a pair that is not assigned is a no-op, so no existence
	// check on the permission ids here.
	err = s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		return s.roles.RemovePermissions(txCtx, rid, permIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remove permissions: %w", err)
	}

	s.invalidatePermCache(ctx, rid)
	s.writeAuditLog(ctx, actorID, model.ActionRemovePermissions, roleID, "", req)

	return s.GetRole(ctx, roleID)
}

// resolveRoleAndPermissionIDs checks the role exists and parses the id list.
func (s *rbacService) resolveRoleAndPermissionIDs(ctx context.Context, roleID string, ids []string) (uuid.UUID, []uuid.UUID, error) {
	rid, err := uuid.Parse(roleID)
	if err != nil {
		return uuid.Nil, nil, apperr.Invalid("invalid role id '%s'", roleID)
	}

	if _, err := s.roles.FindByID(ctx, rid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, nil, apperr.NotFound("role '%s' not found", roleID)
		}
		return uuid.Nil, nil, fmt.Errorf("failed to fetch role: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	permIDs := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		pid, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, nil, apperr.Invalid("invalid permission id '%s'", raw)
		}
		if !seen[pid] {
			seen[pid] = true
			permIDs = append(permIDs, pid)
		}
	}
	return rid, permIDs, nil
}

// --- Permission lifecycle ---

func (s *rbacService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.perms.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

func (s *rbacService) CreatePermission(ctx context.Context, req CreatePermissionRequest, actorID string) (*PermissionResponse, error) {
	if _, err := s.perms.FindByName(ctx, req.Name); err == nil {
		return nil, apperr.Conflict("permission '%s' already exists", req.Name)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check permission name: %w", err)
	}

	perm := model.Permission{
		Name:        req.Name,
		Description: req.Description,
		Resource:    req.Resource,
		Action:      req.Action,
		Scope:       req.Scope,
		IsActive:    true,
	}
	if err := s.perms.Create(ctx, &perm); err != nil {
		return nil, fmt.Errorf("failed to create permission: %w", err)
	}

	s.writeAuditLog(ctx, actorID, model.ActionCreatePermission, perm.ID.String(), perm.Name, req)

	resp := toPermissionResponse(perm)
	return &resp, nil
}

func (s *rbacService) UpdatePermission(ctx context.Context, id string, req UpdatePermissionRequest, actorID string) (*PermissionResponse, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalid("invalid permission id '%s'", id)
	}

	perm, err := s.perms.FindByID(ctx, pid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("permission '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to fetch permission: %w", err)
	}

	if req.Description != nil {
		perm.Description = *req.Description
	}
	if req.IsActive != nil {
		perm.IsActive = *req.IsActive
	}

	if err := s.perms.Update(ctx, perm); err != nil {
		return nil, fmt.Errorf("failed to update permission: %w", err)
	}

	s.writeAuditLog(ctx, actorID, model.ActionUpdatePermission, id, perm.Name, req)

	resp := toPermissionResponse(*perm)
	return &resp, nil
}

// --- Effective permissions ---

func (s *rbacService) GetEffectivePermissions(ctx context.Context, userID string) ([]PermissionResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Invalid("invalid user id '%s'", userID)
	}

	role, err := s.users.LoadRoleForUser(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user '%s' not found", userID)
		}
		return nil, fmt.Errorf("failed to resolve user role: %w", err)
	}

	perms, err := s.roles.LoadPermissionsForRole(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch role permissions: %w", err)
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

// PermissionNamesForRole answers the middleware's "which permission names
// does this role hold" query through the shared cache.
func (s *rbacService) PermissionNamesForRole(ctx context.Context, roleID string) ([]string, error) {
	rid, err := uuid.Parse(roleID)
	if err != nil {
		return nil, apperr.Invalid("invalid role id '%s'", roleID)
	}

	if data, err := s.cache.Get(ctx, permCacheKey(rid)); err == nil {
		var names []string
		if err := json.Unmarshal(data, &names); err == nil {
			return names, nil
		}
		// Corrupt entry; fall through to the database.
	}

	perms, err := s.roles.LoadPermissionsForRole(ctx, rid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch role permissions: %w", err)
	}

	names := make([]string, 0, len(perms))
	for _, p := range perms {
		if p.IsActive {
			names = append(names, p.Name)
		}
	}

	if data, err := json.Marshal(names); err == nil {
		_ = s.cache.Set(ctx, permCacheKey(rid), data, permCacheTTL)
	}
	return names, nil
}

func (s *rbacService) invalidatePermCache(ctx context.Context, roleID uuid.UUID) {
	_ = s.cache.Delete(ctx, permCacheKey(roleID))
}

// --- Seeding ---

// SeedDefaults creates the default permission catalog and system roles.
// Safe to run on every startup.
func (s *rbacService) SeedDefaults(ctx context.Context) error {
	defaults := []model.Permission{
		{Name: "user_read", Description: "View users", Resource: "user", Action: "read"},
		{Name: "user_read_own", Description: "View own profile", Resource: "user", Action: "read", Scope: "own"},
		{Name: "user_write", Description: "Manage users", Resource: "user", Action: "write"},
		{Name: "user_delete", Description: "Delete users", Resource: "user", Action: "delete"},
		{Name: "role_manage", Description: "Manage roles and permissions", Resource: "role", Action: "manage"},
		{Name: "shipment_read", Description: "View all shipments", Resource: "shipment", Action: "read"},
		{Name: "shipment_read_own", Description: "View own shipments", Resource: "shipment", Action: "read", Scope: "own"},
		{Name: "shipment_write", Description: "Create and update shipments", Resource: "shipment", Action: "write"},
		{Name: "pickup_read", Description: "View pickups", Resource: "pickup", Action: "read"},
		{Name: "pickup_write", Description: "Schedule pickups", Resource: "pickup", Action: "write"},
		{Name: "markup_read", Description: "View markup rules", Resource: "markup", Action: "read"},
		{Name: "markup_write", Description: "Manage markup rules", Resource: "markup", Action: "write"},
		{Name: "payment_read", Description: "View payments", Resource: "payment", Action: "read"},
		{Name: "payment_write", Description: "Create charges and subscriptions", Resource: "payment", Action: "write"},
		{Name: "audit_read", Description: "View audit logs", Resource: "audit", Action: "read"},
		{Name: "dashboard_read", Description: "View dashboard statistics", Resource: "dashboard", Action: "read"},
	}

	for i := range defaults {
		p := &defaults[i]
		p.IsActive = true
		if err := s.perms.FindOrCreate(ctx, p); err != nil {
			return fmt.Errorf("failed to seed permission '%s': %w", p.Name, err)
		}
	}

	permByName := make(map[string]model.Permission, len(defaults))
	for _, p := range defaults {
		permByName[p.Name] = p
	}

	roleDefinitions := []struct {
		Name        string
		Description string
		PermNames   []string
	}{
		{
			Name:        "admin",
			Description: "Full system access",
			PermNames: []string{
				"user_read", "user_write", "user_delete", "role_manage",
				"shipment_read", "shipment_write", "pickup_read", "pickup_write",
				"markup_read", "markup_write", "payment_read", "payment_write",
				"audit_read", "dashboard_read",
			},
		},
		{
			Name:        "manager",
			Description: "Operations management without user administration",
			PermNames: []string{
				"user_read",
				"shipment_read", "shipment_write", "pickup_read", "pickup_write",
				"markup_read", "payment_read", "audit_read", "dashboard_read",
			},
		},
		{
			Name:        "member",
			Description: "Ship, schedule pickups, and pay for own account",
			PermNames: []string{
				"user_read_own", "shipment_read_own", "shipment_write",
				"pickup_read", "pickup_write", "payment_write",
			},
		},
	}

	for _, def := range roleDefinitions {
		role, err := s.roles.FindByName(ctx, def.Name)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to look up role '%s': %w", def.Name, err)
			}
			role = &model.Role{
				Name:        def.Name,
				Description: def.Description,
				IsActive:    true,
				IsSystem:    true,
			}
			if err := s.roles.Create(ctx, role); err != nil {
				return fmt.Errorf("failed to seed role '%s': %w", def.Name, err)
			}
		}

		permIDs := make([]uuid.UUID, 0, len(def.PermNames))
		for _, name := range def.PermNames {
			if p, ok := permByName[name]; ok {
				permIDs = append(permIDs, p.ID)
			}
		}
		if err := s.roles.AssignPermissions(ctx, role.ID, permIDs); err != nil {
			return fmt.Errorf("failed to assign permissions to role '%s': %w", def.Name, err)
		}
		s.invalidatePermCache(ctx, role.ID)
	}

	return nil
}

// --- Helpers ---

func toRoleResponse(r model.Role, perms []model.Permission) RoleResponse {
	permResponses := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		permResponses = append(permResponses, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive,
		IsSystem:    r.IsSystem,
		Permissions: permResponses,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Resource:    p.Resource,
		Action:      p.Action,
		Scope:       p.Scope,
		IsActive:    p.IsActive,
	}
}

func (s *rbacService) writeAuditLog(ctx context.Context, actorID, action, entityID, entityName string, details interface{}) {
	writeAuditLog(ctx, s.audit, actorID, action, entityID, entityName, details)
}
