package main

import (
	"context"
	"os"

	_ "shipmgmt/api/swagger" // swagger docs
	"shipmgmt/internal/database"
	"shipmgmt/internal/handler"
	"shipmgmt/internal/middleware"
	"shipmgmt/internal/repository"
	"shipmgmt/internal/service"
	"shipmgmt/internal/websocket"
	"shipmgmt/pkg/cache"
	"shipmgmt/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Shipping Management API
// @version         1.0
// @description     Multi-tenant shipping backend: RBAC, markup pricing, shipments, pickups, and payments.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		// optional in containerized deployments
	}

	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	dbHost := getenv("DB_HOST", "localhost")
	dbPort := getenv("DB_PORT", "5432")
	dbUser := getenv("DB_USER", "postgres")
	dbPassword := getenv("DB_PASSWORD", "postgres")
	dbName := getenv("DB_NAME", "postgres")
	dbSslMode := getenv("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	log.Info("connected to postgres")

	// Permission lookups go through Redis when configured, in-process
	// memory otherwise.
	var permCache cache.Cache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		permCache, err = cache.NewRedisCache(addr, os.Getenv("REDIS_PASSWORD"), 0, "shipmgmt")
		if err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		log.Info("connected to redis", zap.String("addr", addr))
	} else {
		permCache = cache.NewMemoryCache()
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
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

	rbacService := service.NewRBACService(roleRepo, permRepo, userRepo, auditRepo, txMgr, permCache)
	userService := service.NewUserService(userRepo, roleRepo, tokenRepo, auditRepo)
	markupService := service.NewMarkupService(markupRepo, auditRepo)
	shipmentService := service.NewShipmentService(shipmentRepo, markupService, auditRepo, txMgr, wsHub)
	pickupService := service.NewPickupService(pickupRepo, markupRepo, auditRepo)
	paymentService := service.NewPaymentService(paymentRepo, service.RecordingProvider{}, auditRepo)
	auditService := service.NewAuditService(auditRepo)
	statisticsService := service.NewStatisticsService(db)

	if err := rbacService.SeedDefaults(context.Background()); err != nil {
		log.Fatal("failed to seed roles and permissions", zap.Error(err))
	}

	middleware.InitPermissionMiddleware(rbacService)

	// Initialize Handlers
	roleHandler := handler.NewRoleHandler(rbacService)
	userHandler := handler.NewUserHandler(userService, rbacService)
	markupHandler := handler.NewMarkupHandler(markupService)
	shipmentHandler := handler.NewShipmentHandler(shipmentService)
	pickupHandler := handler.NewPickupHandler(pickupService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	auditHandler := handler.NewAuditHandler(auditService)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsConfig.AllowOrigins = []string{origins}
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint for live tracking updates
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	roleHandler.RegisterRoutes(router.Group(""))
	userHandler.RegisterRoutes(router.Group(""))
	markupHandler.RegisterRoutes(router.Group(""))
	shipmentHandler.RegisterRoutes(router.Group(""))
	pickupHandler.RegisterRoutes(router.Group(""))
	paymentHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))
	statisticsHandler.RegisterRoutes(router.Group(""))

	port := getenv("PORT", "8080")
	log.Info("server listening", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
