package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"projectpilot/models"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

// GetDashboardStats returns the caller's cross-project overview: project
// count, assigned task counts by status, overdue tasks and unread
// notifications.
func (dc *DashboardController) GetDashboardStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var projectCount int64
	dc.DB.Model(&models.ProjectMember{}).Where("user_id = ?", user.ID).Count(&projectCount)

	assigned := dc.DB.Model(&models.Task{}).
		Joins("JOIN task_assignees ON task_assignees.task_id = tasks.id").
		Where("task_assignees.user_id = ? AND tasks.is_active = ?", user.ID, true)

	var totalAssigned int64
	assigned.Count(&totalAssigned)

	byStatus := fiber.Map{}
	for _, status := range []string{models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusDone} {
		var count int64
		dc.DB.Model(&models.Task{}).
			Joins("JOIN task_assignees ON task_assignees.task_id = tasks.id").
			Where("task_assignees.user_id = ? AND tasks.is_active = ? AND tasks.status = ?", user.ID, true, status).
			Count(&count)
		byStatus[status] = count
	}

	var overdue int64
	dc.DB.Model(&models.Task{}).
		Joins("JOIN task_assignees ON task_assignees.task_id = tasks.id").
		Where("task_assignees.user_id = ? AND tasks.is_active = ?", user.ID, true).
		Where("tasks.status <> ? AND tasks.due_date IS NOT NULL AND tasks.due_date < ?", models.TaskStatusDone, time.Now()).
		Count(&overdue)

	var unread int64
	dc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Count(&unread)

	return c.JSON(fiber.Map{
		"projects":             projectCount,
		"assigned_tasks":       totalAssigned,
		"tasks_by_status":      byStatus,
		"overdue_tasks":        overdue,
		"unread_notifications": unread,
	})
}

// GetRecentTasks returns the latest tasks created in the caller's projects.
func (dc *DashboardController) GetRecentTasks(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	limit := c.QueryInt("limit", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}

	var projectIDs []uint
	if err := dc.DB.Model(&models.ProjectMember{}).
		Where("user_id = ?", user.ID).
		Pluck("project_id", &projectIDs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch projects",
		})
	}
	if len(projectIDs) == 0 {
		return c.JSON(fiber.Map{"tasks": []models.Task{}})
	}

	var tasks []models.Task
	if err := dc.DB.Where("project_id IN ? AND is_active = ?", projectIDs, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch tasks",
		})
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}
