package service

import (
	"context"
	"testing"

	"shipmgmt/internal/model"
	"shipmgmt/pkg/apperr"

	"github.com/google/uuid"
)

func createTestRole(t *testing.T, env *testEnv, name string) *RoleResponse {
	t.Helper()
	role, err := env.rbac.CreateRole(context.Background(), CreateRoleRequest{Name: name}, "")
	if err != nil {
		t.Fatalf("failed to create role %q: %v", name, err)
	}
	return role
}

func createTestPermission(t *testing.T, env *testEnv, name, resource, action, scope string) *PermissionResponse {
	t.Helper()
	perm, err := env.rbac.CreatePermission(context.Background(), CreatePermissionRequest{
		Name:     name,
		Resource: resource,
		Action:   action,
		Scope:    scope,
	}, "")
	if err != nil {
		t.Fatalf("failed to create permission %q: %v", name, err)
	}
	return perm
}

func TestCreateRoleDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	createTestRole(t, env, "ops")

	_, err := env.rbac.CreateRole(ctx, CreateRoleRequest{Name: "ops"}, "")
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for duplicate role name, got %v", err)
	}
}

func TestAssignPermissionsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	role := createTestRole(t, env, "ops")
	p1 := createTestPermission(t, env, "shipment_read", "shipment", "read", "")
	p2 := createTestPermission(t, env, "shipment_write", "shipment", "write", "")

	req := PermissionIDsRequest{PermissionIDs: []string{p1.ID, p2.ID}}
	if _, err := env.rbac.AssignPermissions(ctx, role.ID, req, ""); err != nil {
		t.Fatalf("first assign failed: %v", err)
	}

	// Re-assigning the same pairs must not fail or duplicate rows.
	got, err := env.rbac.AssignPermissions(ctx, role.ID, req, "")
	if err != nil {
		t.Fatalf("second assign failed: %v", err)
	}
	if len(got.Permissions) != 2 {
		t.Fatalf("expected 2 permissions after repeated assign, got %d", len(got.Permissions))
	}

	var rows int64
	env.db.Model(&model.RolePermission{}).Count(&rows)
	if rows != 2 {
		t.Fatalf("expected 2 join rows, got %d", rows)
	}
}

func TestAssignPermissionsUnknownIDIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	role := createTestRole(t, env, "ops")
	p1 := createTestPermission(t, env, "shipment_read", "shipment", "read", "")

	req := PermissionIDsRequest{PermissionIDs: []string{p1.ID, uuid.NewString()}}
	if _, err := env.rbac.AssignPermissions(ctx, role.ID, req, ""); !apperr.IsInvalid(err) {
		t.Fatalf("expected invalid error for unknown permission id, got %v", err)
	}

	// The valid half of the batch must not have been written.
	got, err := env.rbac.GetRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("failed to fetch role: %v", err)
	}
	if len(got.Permissions) != 0 {
		t.Fatalf("expected no permissions after failed assign, got %d", len(got.Permissions))
	}
}

func TestAssignPermissionsRoleNotFound(t *testing.T) {
	env := newTestEnv(t)

	p := createTestPermission(t, env, "shipment_read", "shipment", "read", "")
	req := PermissionIDsRequest{PermissionIDs: []string{p.ID}}

	_, err := env.rbac.AssignPermissions(context.Background(), uuid.NewString(), req, "")
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found for missing role, got %v", err)
	}
}

func TestRemovePermissionsUnassignedIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	role := createTestRole(t, env, "ops")
	p1 := createTestPermission(t, env, "shipment_read", "shipment", "read", "")
	p2 := createTestPermission(t, env, "shipment_write", "shipment", "write", "")

	if _, err := env.rbac.AssignPermissions(ctx, role.ID, PermissionIDsRequest{PermissionIDs: []string{p1.ID}}, ""); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	// p2 was never assigned; removing both must succeed and leave nothing.
	got, err := env.rbac.RemovePermissions(ctx, role.ID, PermissionIDsRequest{PermissionIDs: []string{p1.ID, p2.ID}}, "")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(got.Permissions) != 0 {
		t.Fatalf("expected no permissions after remove, got %d", len(got.Permissions))
	}
}

func TestDeleteRoleGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.rbac.SeedDefaults(ctx); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	// System roles cannot be deleted.
	roles, err := env.rbac.ListRoles(ctx)
	if err != nil {
		t.Fatalf("failed to list roles: %v", err)
	}
	var adminID string
	for _, r := range roles {
		if r.Name == "admin" {
			adminID = r.ID
		}
	}
	if adminID == "" {
		t.Fatal("seed did not create an admin role")
	}
	if err := env.rbac.DeleteRole(ctx, adminID, ""); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict deleting system role, got %v", err)
	}

	// Roles with users attached cannot be deleted.
	role := createTestRole(t, env, "ops")
	if _, err := env.users.CreateUser(ctx, CreateUserRequest{
		FullName: "Test User",
		Email:    "ops@example.com",
		Password: "password123",
		RoleID:   role.ID,
	}, ""); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := env.rbac.DeleteRole(ctx, role.ID, ""); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict deleting role with users, got %v", err)
	}

	// An unused custom role deletes cleanly.
	empty := createTestRole(t, env, "unused")
	if err := env.rbac.DeleteRole(ctx, empty.ID, ""); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	if _, err := env.rbac.GetRole(ctx, empty.ID); !apperr.IsNotFound(err) {
		t.Fatalf("expected role to be gone, got %v", err)
	}
}

func TestGetEffectivePermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	role := createTestRole(t, env, "ops")
	p1 := createTestPermission(t, env, "shipment_read", "shipment", "read", "")
	p2 := createTestPermission(t, env, "shipment_write", "shipment", "write", "")

	user, err := env.users.CreateUser(ctx, CreateUserRequest{
		FullName: "Test User",
		Email:    "ops@example.com",
		Password: "password123",
		RoleID:   role.ID,
	}, "")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	perms, err := env.rbac.GetEffectivePermissions(ctx, user.ID)
	if err != nil {
		t.Fatalf("effective permissions failed: %v", err)
	}
	if len(perms) != 0 {
		t.Fatalf("expected no permissions before assign, got %d", len(perms))
	}

	if _, err := env.rbac.AssignPermissions(ctx, role.ID, PermissionIDsRequest{PermissionIDs: []string{p1.ID, p2.ID}}, ""); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	perms, err = env.rbac.GetEffectivePermissions(ctx, user.ID)
	if err != nil {
		t.Fatalf("effective permissions failed: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("expected 2 permissions after assign, got %d", len(perms))
	}

	if _, err := env.rbac.RemovePermissions(ctx, role.ID, PermissionIDsRequest{PermissionIDs: []string{p2.ID}}, ""); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	perms, err = env.rbac.GetEffectivePermissions(ctx, user.ID)
	if err != nil {
		t.Fatalf("effective permissions failed: %v", err)
	}
	if len(perms) != 1 || perms[0].Name != "shipment_read" {
		t.Fatalf("expected only shipment_read to remain, got %+v", perms)
	}
}

func TestPermissionNamesForRoleReflectsChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	role := createTestRole(t, env, "ops")
	p := createTestPermission(t, env, "shipment_read", "shipment", "read", "")

	names, err := env.rbac.PermissionNamesForRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("names lookup failed: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no names before assign, got %v", names)
	}

	// The assign must invalidate the cached empty list.
	if _, err := env.rbac.AssignPermissions(ctx, role.ID, PermissionIDsRequest{PermissionIDs: []string{p.ID}}, ""); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	names, err = env.rbac.PermissionNamesForRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("names lookup failed: %v", err)
	}
	if len(names) != 1 || names[0] != "shipment_read" {
		t.Fatalf("expected [shipment_read], got %v", names)
	}
}

func TestPermissionNamesSkipInactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	role := createTestRole(t, env, "ops")
	p := createTestPermission(t, env, "shipment_read", "shipment", "read", "")

	if _, err := env.rbac.AssignPermissions(ctx, role.ID, PermissionIDsRequest{PermissionIDs: []string{p.ID}}, ""); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	inactive := false
	if _, err := env.rbac.UpdatePermission(ctx, p.ID, UpdatePermissionRequest{IsActive: &inactive}, ""); err != nil {
		t.Fatalf("update permission failed: %v", err)
	}

	// Deactivating doesn't touch the role cache, so force a fresh role to
	// dodge the TTL window.
	fresh := createTestRole(t, env, "ops2")
	if _, err := env.rbac.AssignPermissions(ctx, fresh.ID, PermissionIDsRequest{PermissionIDs: []string{p.ID}}, ""); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	names, err := env.rbac.PermissionNamesForRole(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("names lookup failed: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected inactive permission to be excluded, got %v", names)
	}
}

func TestHasPermission(t *testing.T) {
	perms := []model.Permission{
		{Name: "shipment_read", Resource: "shipment", Action: "read"},
		{Name: "user_read_own", Resource: "user", Action: "read", Scope: "own"},
	}

	if !HasPermission(perms, "shipment_read") {
		t.Fatal("expected shipment_read to be present")
	}
	if HasPermission(perms, "shipment_write") {
		t.Fatal("did not expect shipment_write")
	}
	if HasPermission(perms, "SHIPMENT_READ") {
		t.Fatal("name matching must be case sensitive")
	}
}

func TestHasResourcePermission(t *testing.T) {
	perms := []model.Permission{
		{Name: "shipment_read", Resource: "shipment", Action: "read"},
		{Name: "user_read_own", Resource: "user", Action: "read", Scope: "own"},
	}

	cases := []struct {
		name     string
		resource string
		action   string
		scope    string
		want     bool
	}{
		{"exact match unscoped", "shipment", "read", "", true},
		{"wrong action", "shipment", "write", "", false},
		{"wrong resource", "pickup", "read", "", false},
		{"scoped query matches scoped perm", "user", "read", "own", true},
		{"scoped query against unscoped perm", "shipment", "read", "own", false},
		{"empty scope ignores perm scope", "user", "read", "", true},
		{"wrong scope", "user", "read", "team", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasResourcePermission(perms, tc.resource, tc.action, tc.scope); got != tc.want {
				t.Fatalf("HasResourcePermission(%s,%s,%s) = %v, want %v", tc.resource, tc.action, tc.scope, got, tc.want)
			}
		})
	}
}
