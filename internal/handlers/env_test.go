package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yukikurage/task-lifecycle-api/internal/auth"
	"github.com/yukikurage/task-lifecycle-api/internal/cache"
	"github.com/yukikurage/task-lifecycle-api/internal/constants"
	"github.com/yukikurage/task-lifecycle-api/internal/dto"
	"github.com/yukikurage/task-lifecycle-api/internal/middleware"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
	"github.com/yukikurage/task-lifecycle-api/internal/repository"
	"github.com/yukikurage/task-lifecycle-api/internal/services"
	"github.com/yukikurage/task-lifecycle-api/internal/storage"
	"github.com/yukikurage/task-lifecycle-api/internal/testutil"
)

type testEnv struct {
	db     *gorm.DB
	router *gin.Engine
	jwt    *auth.JWTer
	blobs  *storage.FSBlobStore

	admin   *models.User
	manager *models.User
	user    *models.User
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dto.RegisterValidation()

	db := testutil.NewDB(t)
	store := cache.NewMemoryStore(64, time.Hour)
	c := cache.New(store, time.Hour, zap.NewNop())
	jwter := auth.NewJWTer("test-secret", "test", time.Hour, store)
	blobs := storage.NewMemBlobStore("/storage/attachments")

	repos := repository.NewSet(db)
	authz := services.NewAuthorizer(repos.Users, repos.Roles)
	opts := services.Options{Location: time.UTC, CacheTTL: time.Hour, Logger: zap.NewNop()}

	authHandler := NewAuthHandler(services.NewUserService(db, repos, authz, c, blobs, jwter, opts))
	taskHandler := NewTaskHandler(services.NewTaskService(db, repos, authz, c, blobs, opts), time.UTC)
	annotationHandler := NewAnnotationHandler(services.NewAnnotationService(repos, authz, c, blobs, opts), 1<<20)
	roleHandler := NewRoleHandler(services.NewRoleService(repos.Roles, authz, c, opts))

	r := gin.New()
	requireAuth := middleware.RequireAuth(jwter)
	api := r.Group("/api/v1")

	api.POST("/auth/users", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	protected := api.Group("", requireAuth)
	protected.GET("/auth/user/profile", authHandler.Profile)
	protected.POST("/auth/logout", authHandler.Logout)
	protected.PUT("/auth/users/:id", authHandler.UpdateProfile)
	protected.DELETE("/auth/user/delete", authHandler.DeleteSelf)
	protected.POST("/auth/user/restore", authHandler.Restore)
	protected.GET("/users", authHandler.ListUsers)

	protected.GET("/tasks", taskHandler.ListTasks)
	protected.POST("/tasks", taskHandler.CreateTask)
	protected.GET("/tasks/:id", taskHandler.GetTask)
	protected.PUT("/tasks/:id", taskHandler.UpdateTask)
	protected.DELETE("/tasks/:id", taskHandler.DeleteTask)
	protected.POST("/tasks/:id/assign", taskHandler.AssignTask)
	protected.POST("/tasks/:id/status", taskHandler.ChangeStatus)
	protected.GET("/tasks/:id/status-updates", taskHandler.StatusUpdates)
	protected.POST("/task/:id/restore", taskHandler.RestoreTask)
	protected.GET("/user/my-tasks", taskHandler.MyTasks)

	protected.POST("/tasks/:id/comments", annotationHandler.AddTaskComment)
	protected.POST("/tasks/:id/attachments", annotationHandler.AddTaskAttachment)
	protected.GET("/attachments", annotationHandler.ListAttachments)
	protected.GET("/roles", roleHandler.ListRoles)

	return &testEnv{
		db:      db,
		router:  r,
		jwt:     jwter,
		blobs:   blobs,
		admin:   testutil.CreateUser(t, db, "Alice", "alice@admin.example.com", models.RoleAdmin),
		manager: testutil.CreateUser(t, db, "Bob", "bob@manager.example.com", models.RoleManager),
		user:    testutil.CreateUser(t, db, "Carol", "carol@example.com", models.RoleUser),
	}
}

func (e *testEnv) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, _, err := e.jwt.Issue(user.ID)
	require.NoError(t, err)
	return token
}

// request sends body as JSON when it is not nil.
func (e *testEnv) request(t *testing.T, method, url, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details"`
}
