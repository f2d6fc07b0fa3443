package service

import (
	"testing"

	"shipmgmt/internal/database"
	"shipmgmt/internal/repository"
	"shipmgmt/pkg/cache"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

type testEnv struct {
	db       *gorm.DB
	rbac     RBACService
	users    UserService
	markup   MarkupService
	shipment ShipmentService
	pickup   PickupService
	payment  PaymentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	txMgr := repository.NewTransactionManager(db)
	roleRepo := repository.NewRoleRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	markupRepo := repository.NewMarkupRuleRepository(db)
	shipmentRepo := repository.NewShipmentRepository(db)
	pickupRepo := repository.NewPickupRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	markupService := NewMarkupService(markupRepo, auditRepo)
	return &testEnv{
		db:       db,
		rbac:     NewRBACService(roleRepo, permRepo, userRepo, auditRepo, txMgr, cache.NewMemoryCache()),
		users:    NewUserService(userRepo, roleRepo, tokenRepo, auditRepo),
		markup:   markupService,
		shipment: NewShipmentService(shipmentRepo, markupService, auditRepo, txMgr, nil),
		pickup:   NewPickupService(pickupRepo, markupRepo, auditRepo),
		payment:  NewPaymentService(paymentRepo, RecordingProvider{}, auditRepo),
	}
}
