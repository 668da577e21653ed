package services

import (
	"fmt"
	"testing"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"projectpilot/models"
)

// testDB opens an isolated in-memory database with the full schema.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// A single connection keeps every session on the same in-memory DB.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.JoinRequest{},
		&models.Task{},
		&models.TaskDependency{},
		&models.TaskAssignee{},
		&models.Comment{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testLogger() *log.Logger {
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return l
}

func seedUser(t *testing.T, db *gorm.DB, maxID string) *models.User {
	t.Helper()
	user := models.User{MaxID: maxID, FullName: "User " + maxID, IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func seedProject(t *testing.T, db *gorm.DB, owner *models.User, requiresApproval bool) *models.Project {
	t.Helper()
	project := models.Project{
		Hash:             fmt.Sprintf("test%08d", owner.ID),
		Title:            "Test Project",
		IsPrivate:        true,
		RequiresApproval: requiresApproval,
		CreatedBy:        owner.ID,
	}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	member := models.ProjectMember{
		ProjectID:            project.ID,
		UserID:               owner.ID,
		Role:                 models.RoleOwner,
		NotificationsEnabled: true,
	}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("seed owner member: %v", err)
	}
	return &project
}

func seedMember(t *testing.T, db *gorm.DB, project *models.Project, user *models.User, role string) *models.ProjectMember {
	t.Helper()
	member := models.ProjectMember{
		ProjectID:            project.ID,
		UserID:               user.ID,
		Role:                 role,
		NotificationsEnabled: true,
	}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return &member
}

func seedTask(t *testing.T, db *gorm.DB, project *models.Project, creator *models.User, title string) *models.Task {
	t.Helper()
	task := models.Task{
		Title:     title,
		Status:    models.TaskStatusTodo,
		Priority:  models.TaskPriorityMedium,
		ProjectID: project.ID,
		CreatedBy: creator.ID,
		IsActive:  true,
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return &task
}
