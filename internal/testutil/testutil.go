// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yukikurage/task-lifecycle-api/internal/database"
	"github.com/yukikurage/task-lifecycle-api/internal/models"
)

// Password is the plain-text password of every user CreateUser inserts.
const Password = "password123"

// NewDB opens a migrated in-memory SQLite database that is closed when the
// test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db, zap.NewNop()))
	return db
}

// CreateUser inserts a user with Password and, unless role is empty, its
// role record.
func CreateUser(t testing.TB, db *gorm.DB, name, email string, role models.RoleName) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{Name: name, Email: email, PasswordHash: string(hash)}
	require.NoError(t, db.Create(user).Error)
	if role != "" {
		r := &models.Role{UserID: user.ID, Name: role}
		require.NoError(t, db.Create(r).Error)
		user.Role = r
	}
	return user
}

// CreateTask inserts an open, unassigned task.
func CreateTask(t testing.TB, db *gorm.DB, title string) *models.Task {
	t.Helper()

	task := &models.Task{
		Title:       title,
		Description: "Test Description",
		Type:        models.TaskTypeFeature,
		Priority:    models.TaskPriorityMedium,
		Status:      models.TaskStatusOpen,
		Version:     1,
	}
	require.NoError(t, db.Create(task).Error)
	return task
}
