package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/campusdesk/circular-api/internal/handler"
	"github.com/campusdesk/circular-api/internal/middleware"
	"github.com/campusdesk/circular-api/internal/models"
	"github.com/campusdesk/circular-api/internal/service"
	"github.com/campusdesk/circular-api/pkg/config"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Circulars   *handler.CircularHandler
	Events      *handler.EventHandler
	Users       *handler.UserHandler
	Stats       *handler.StatsHandler
	Attachments *handler.AttachmentHandler
	Metrics     *handler.MetricsHandler
}

// Register mounts all API routes on the engine. Authentication and RBAC run
// per route group; the circular write surface is admin-only except faculty
// submissions.
func Register(r *gin.Engine, cfg *config.Config, authService *service.AuthService, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.GET("/me", middleware.JWT(authService), h.Auth.Me)
	}

	// The signed token in the query string carries its own authorization.
	api.GET("/attachments/download", h.Attachments.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	circulars := authed.Group("/circulars")
	{
		admin := middleware.RequireRoles(models.RoleAdmin)
		faculty := middleware.RequireRoles(models.RoleFaculty)
		staff := middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty)

		circulars.POST("", admin, h.Circulars.Create)
		circulars.POST("/submissions", faculty, h.Circulars.Submit)
		circulars.GET("", staff, h.Circulars.List)
		circulars.GET("/search", staff, h.Circulars.Search)
		circulars.GET("/mine", faculty, h.Circulars.ListMine)
		circulars.GET("/status", faculty, h.Circulars.TrackStatus)
		circulars.GET("/student", middleware.RequireRoles(models.RoleStudent), h.Circulars.ListForStudents)
		circulars.GET("/export", admin, h.Circulars.Export)
		circulars.GET("/:id", staff, h.Circulars.Get)
		circulars.PUT("/:id/decision", admin, h.Circulars.Decide)
		circulars.PUT("/:id/status", admin, h.Circulars.ForceSetStatus)
		circulars.PUT("/:id", admin, h.Circulars.Update)
		circulars.DELETE("/:id", admin, h.Circulars.Delete)
	}

	events := authed.Group("/events")
	{
		staff := middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty)

		events.POST("", staff, h.Events.Create)
		events.GET("", h.Events.List)
		events.GET("/mine", staff, h.Events.ListMine)
		events.GET("/:id", h.Events.Get)
		events.PUT("/:id", staff, h.Events.Update)
		events.DELETE("/:id", staff, h.Events.Delete)
	}

	users := authed.Group("/users")
	users.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		users.GET("", h.Users.List)
		users.POST("", h.Users.Create)
		users.GET("/:id", h.Users.Get)
		users.PUT("/:id", h.Users.Update)
		users.DELETE("/:id", h.Users.Delete)
	}

	dashboard := authed.Group("/dashboard")
	dashboard.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		dashboard.GET("/counts", h.Stats.Dashboard)
	}

	attachments := authed.Group("/attachments")
	attachments.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty))
	{
		attachments.POST("", h.Attachments.Upload)
		attachments.POST("/resign", h.Attachments.Resign)
	}
}
