package router

import (
	"time"

	"github.com/Bushels/PipeVault-sub014/internal/config"
	"github.com/Bushels/PipeVault-sub014/internal/handler"
	"github.com/Bushels/PipeVault-sub014/internal/infra"
	"github.com/Bushels/PipeVault-sub014/internal/middleware"
	"github.com/Bushels/PipeVault-sub014/internal/repository"
	"github.com/Bushels/PipeVault-sub014/internal/service"
	"github.com/Bushels/PipeVault-sub014/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, notifyCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	lotRepo := repository.NewLotRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	eventRepo := repository.NewLotEventRepository(db)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	reconciler := service.NewReconciler(cfg.ReconcileThreshold)
	lotSvc := service.NewLotService(lotRepo, locationRepo, eventRepo, reconciler, dispatcher)
	locationSvc := service.NewLocationService(locationRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	lotsH := handler.NewLotsHandler(lotSvc)
	locationsH := handler.NewLocationsHandler(locationSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, notifyCB))

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Roles: operator, supervisor, admin — declared per-endpoint
		lots := v1.Group("/lots")
		{
			lots.POST("", middleware.RequireRole("operator", "supervisor", "admin"), lotsH.Create)
			lots.GET("", middleware.RequireRole("operator", "supervisor", "admin"), lotsH.List)
			lots.GET("/:id", middleware.RequireRole("operator", "supervisor", "admin"), lotsH.Get)
			lots.GET("/:id/events", middleware.RequireRole("operator", "supervisor", "admin"), lotsH.ListEvents)

			// Yard-floor operations
			lots.POST("/:id/arrival", middleware.RequireRole("operator", "supervisor", "admin"), lotsH.ConfirmArrival)
			lots.POST("/:id/pickup", middleware.RequireRole("operator", "supervisor", "admin"), lotsH.SchedulePickup)
			lots.POST("/:id/departure", middleware.RequireRole("operator", "supervisor", "admin"), lotsH.ConfirmDeparture)
			lots.POST("/:id/delivery", middleware.RequireRole("operator", "supervisor", "admin"), lotsH.ConfirmDelivery)

			// Supervisor-gated corrections
			lots.POST("/:id/reject", middleware.RequireRole("supervisor", "admin"), lotsH.Reject)
			lots.PATCH("/:id/attributes", middleware.RequireRole("supervisor", "admin"), lotsH.CorrectAttributes)
		}

		locations := v1.Group("/locations", middleware.RequireRole("operator", "supervisor", "admin"))
		{
			locations.GET("", locationsH.List)
			locations.GET("/:id/occupancy", locationsH.GetOccupancy)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
