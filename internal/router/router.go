package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yukikurage/task-lifecycle-api/internal/auth"
	"github.com/yukikurage/task-lifecycle-api/internal/config"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
	"github.com/yukikurage/task-lifecycle-api/internal/handlers"
	"github.com/yukikurage/task-lifecycle-api/internal/middleware"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Logger      *zap.Logger
	JWT         *auth.JWTer
	Limits      config.Limits
	Auth        *handlers.AuthHandler
	Tasks       *handlers.TaskHandler
	Annotations *handlers.AnnotationHandler
	Roles       *handlers.RoleHandler

	// Files serves stored attachments under FilesURL when set.
	Files    http.FileSystem
	FilesURL string
}

// New builds the gin engine with middleware and every route mounted.
func New(d Deps) *gin.Engine {
	l := d.Logger
	if l == nil {
		l = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(ginzap.Ginzap(l, time.RFC3339, true))
	r.Use(ginzap.CustomRecoveryWithZap(l, true, func(c *gin.Context, _ any) {
		apierrors.InternalError(c, "")
	}))
	r.Use(cors.Default())
	r.Use(middleware.Metrics())
	if d.Limits.RPS > 0 {
		r.Use(middleware.RateLimit(rate.Limit(d.Limits.RPS), d.Limits.Burst))
	}
	if d.Limits.Concurrency > 0 {
		r.Use(middleware.ConcurrencyLimit(d.Limits.Concurrency))
	}
	if d.Limits.MaxBodyBytes > 0 {
		r.Use(middleware.MaxBodyBytes(d.Limits.MaxBodyBytes))
	}
	if d.Limits.TimeoutSec > 0 {
		r.Use(middleware.Timeout(time.Duration(d.Limits.TimeoutSec) * time.Second))
	}

	r.NoRoute(func(c *gin.Context) {
		apierrors.NotFound(c, "Route not found")
	})

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Task Lifecycle API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if d.Files != nil && d.FilesURL != "" {
		r.StaticFS(d.FilesURL, d.Files)
	}

	requireAuth := middleware.RequireAuth(d.JWT)

	api := r.Group("/api/v1")
	{
		// Auth routes
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/users", d.Auth.Register)
			authGroup.POST("/login", d.Auth.Login)

			protected := authGroup.Group("", requireAuth)
			protected.GET("/user/profile", d.Auth.Profile)
			protected.POST("/logout", d.Auth.Logout)
			protected.DELETE("/user/delete", d.Auth.DeleteSelf)
			protected.GET("/users/deleted-users", d.Auth.ListDeleted)
			protected.POST("/user/restore", d.Auth.Restore)
			protected.POST("/user/permanently-delete", d.Auth.ForceDelete)
			protected.PUT("/users/:id", d.Auth.UpdateProfile)
			protected.POST("/users/:id/comments", d.Annotations.AddUserComment)
			protected.POST("/users/:id/attachments", d.Annotations.AddUserAttachment)
		}

		authed := api.Group("", requireAuth)

		authed.GET("/users", d.Auth.ListUsers)
		authed.GET("/user/my-tasks", d.Tasks.MyTasks)

		// Task routes
		tasks := authed.Group("/tasks")
		{
			tasks.GET("", d.Tasks.ListTasks)
			tasks.POST("", d.Tasks.CreateTask)
			tasks.GET("/deleted-tasks", d.Tasks.DeletedTasks)
			tasks.GET("/:id", d.Tasks.GetTask)
			tasks.PUT("/:id", d.Tasks.UpdateTask)
			tasks.DELETE("/:id", d.Tasks.DeleteTask)
			tasks.POST("/:id/assign", d.Tasks.AssignTask)
			tasks.POST("/:id/status", d.Tasks.ChangeStatus)
			tasks.GET("/:id/status-updates", d.Tasks.StatusUpdates)
			tasks.POST("/:id/comments", d.Annotations.AddTaskComment)
			tasks.POST("/:id/attachments", d.Annotations.AddTaskAttachment)
		}
		authed.POST("/task/:id/restore", d.Tasks.RestoreTask)
		authed.POST("/task/:id/permanently-delete", d.Tasks.ForceDeleteTask)

		// Admin routes
		comments := authed.Group("/comments")
		{
			comments.GET("", d.Annotations.ListComments)
			comments.GET("/:id", d.Annotations.GetComment)
			comments.DELETE("/:id", d.Annotations.DeleteComment)
		}
		attachments := authed.Group("/attachments")
		{
			attachments.GET("", d.Annotations.ListAttachments)
			attachments.GET("/:id", d.Annotations.GetAttachment)
			attachments.DELETE("/:id", d.Annotations.DeleteAttachment)
		}
		roles := authed.Group("/roles")
		{
			roles.GET("", d.Roles.ListRoles)
			roles.GET("/:id", d.Roles.GetRole)
			roles.DELETE("/:id", d.Roles.DeleteRole)
		}
	}

	return r
}
