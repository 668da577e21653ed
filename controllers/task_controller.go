package controller

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"projectpilot/models"
	"projectpilot/services"
	"projectpilot/utils"
)

type TaskController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Graph    *services.DependencyGraph
	Notifier *services.Notifier
}

func NewTaskController(db *gorm.DB, logger *log.Logger) *TaskController {
	return &TaskController{
		DB:       db,
		Logger:   logger,
		Graph:    services.NewDependencyGraph(db, logger),
		Notifier: services.NewNotifier(db, logger),
	}
}

type CreateTaskRequest struct {
	Title        string     `json:"title" validate:"required,max=200"`
	Description  string     `json:"description" validate:"omitempty,max=5000"`
	Priority     string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	ParentTaskID *uint      `json:"parent_task_id"`
	DueDate      *time.Time `json:"due_date"`
	AssigneeIDs  []uint     `json:"assignee_ids"`
	DependsOnIDs []uint     `json:"depends_on_ids"`
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time `json:"due_date"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=todo in_progress done"`
}

type AddDependencyRequest struct {
	DependsOnID uint `json:"depends_on_id" validate:"required"`
}

type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// membership loads the caller's membership row, or nil when not a member.
func (tc *TaskController) membership(projectID, userID uint) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := tc.DB.Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &member, nil
}

// loadTask fetches a task and verifies the caller is a member of its project.
func (tc *TaskController) loadTask(c *fiber.Ctx, taskID, userID uint) (*models.Task, error) {
	var task models.Task
	if err := tc.DB.First(&task, taskID).Error; err != nil {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	member, err := tc.membership(task.ProjectID, userID)
	if err != nil {
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not a member of this project",
		})
	}
	return &task, nil
}

// GetMyTasks lists active tasks assigned to the caller across all projects.
func (tc *TaskController) GetMyTasks(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var tasks []models.Task
	err := tc.DB.
		Joins("JOIN task_assignees ON task_assignees.task_id = tasks.id").
		Where("task_assignees.user_id = ? AND tasks.is_active = ?", user.ID, true).
		Order("tasks.created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch tasks",
		})
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

// GetProjectTasks lists a project's active tasks, optionally filtered by
// status. Members only.
func (tc *TaskController) GetProjectTasks(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	member, err := tc.membership(projectID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not a member of this project",
		})
	}

	query := tc.DB.Preload("Assignees.User").
		Where("project_id = ? AND is_active = ?", projectID, true)

	if status := c.Query("status"); status != "" {
		if !models.ValidTaskStatus(status) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown task status",
			})
		}
		query = query.Where("status = ?", status)
	}

	var tasks []models.Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch tasks",
		})
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

// CreateTask creates a task in a project with optional assignees and
// dependencies. Members only.
func (tc *TaskController) CreateTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	member, err := tc.membership(projectID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not a member of this project",
		})
	}

	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	priority := req.Priority
	if priority == "" {
		priority = models.TaskPriorityMedium
	}

	if req.ParentTaskID != nil {
		var parent models.Task
		if err := tc.DB.First(&parent, *req.ParentTaskID).Error; err != nil || parent.ProjectID != projectID {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Parent task not found in this project",
			})
		}
	}

	task := models.Task{
		Title:        req.Title,
		Description:  req.Description,
		Status:       models.TaskStatusTodo,
		Priority:     priority,
		ProjectID:    projectID,
		CreatedBy:    user.ID,
		ParentTaskID: req.ParentTaskID,
		DueDate:      req.DueDate,
		IsActive:     true,
	}

	err = tc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		for _, assigneeID := range req.AssigneeIDs {
			var count int64
			if err := tx.Model(&models.ProjectMember{}).
				Where("project_id = ? AND user_id = ?", projectID, assigneeID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return services.ErrNotProjectMember
			}
			assignee := models.TaskAssignee{TaskID: task.ID, UserID: assigneeID}
			if err := tx.Create(&assignee).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, services.ErrNotProjectMember) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Assignees must be project members",
			})
		}
		utils.LogError("task_create_failed", err, map[string]interface{}{
			"project_id": projectID,
			"user_id":    user.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create task",
		})
	}

	// Dependencies go through the graph service so cycle and project checks
	// apply; a bad edge rejects, already-created edges stay.
	for _, dependsOnID := range req.DependsOnIDs {
		if _, err := tc.Graph.AddDependency(task.ID, dependsOnID, user.ID); err != nil {
			return c.Status(dependencyStatus(err)).JSON(fiber.Map{
				"error":   err.Error(),
				"task_id": task.ID,
			})
		}
	}

	tc.Notifier.TaskAssigned(&task, req.AssigneeIDs, user.ID)

	return c.Status(fiber.StatusCreated).JSON(task)
}

// GetTask returns a task with assignees, comments and dependencies.
func (tc *TaskController) GetTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskID"))

	task, errResp := tc.loadTask(c, taskID, user.ID)
	if task == nil {
		return errResp
	}

	if err := tc.DB.Preload("Assignees.User").Preload("Comments.User").First(task, taskID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch task",
		})
	}

	dependencies, err := tc.Graph.Dependencies(taskID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch dependencies",
		})
	}
	dependents, err := tc.Graph.Dependents(taskID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch dependents",
		})
	}

	return c.JSON(fiber.Map{
		"task":         task,
		"dependencies": dependencies,
		"dependents":   dependents,
	})
}

// UpdateTask edits task fields other than status.
func (tc *TaskController) UpdateTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskID"))

	task, errResp := tc.loadTask(c, taskID, user.ID)
	if task == nil {
		return errResp
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Nothing to update",
		})
	}

	if err := tc.DB.Model(task).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update task",
		})
	}

	return c.JSON(task)
}

// UpdateTaskStatus transitions a task. Moving to done requires every direct
// dependency to be done already; moving out of done clears CompletedAt.
func (tc *TaskController) UpdateTaskStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskID"))

	task, errResp := tc.loadTask(c, taskID, user.ID)
	if task == nil {
		return errResp
	}

	var req UpdateTaskStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if req.Status == task.Status {
		return c.JSON(task)
	}

	if req.Status == models.TaskStatusDone {
		if err := tc.Graph.CheckCompletable(taskID); err != nil {
			var notSatisfied *services.DependencyNotSatisfiedError
			if errors.As(err, &notSatisfied) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error":         "Task has incomplete dependencies",
					"blocking_task": notSatisfied.Title,
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to check dependencies",
			})
		}
	}

	updates := map[string]interface{}{"status": req.Status}
	if req.Status == models.TaskStatusDone {
		updates["completed_at"] = time.Now()
	} else {
		updates["completed_at"] = nil
	}

	if err := tc.DB.Model(task).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update status",
		})
	}

	if req.Status == models.TaskStatusDone {
		tc.Notifier.TaskCompleted(task, user.ID)
	}

	return c.JSON(task)
}

// DeleteTask removes a task together with its edges, assignees and comments.
func (tc *TaskController) DeleteTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskID"))

	task, errResp := tc.loadTask(c, taskID, user.ID)
	if task == nil {
		return errResp
	}

	err := tc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tc.Graph.DeleteTaskEdges(tx, taskID); err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskAssignee{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Task{}, taskID).Error
	})
	if err != nil {
		utils.LogError("task_delete_failed", err, map[string]interface{}{
			"task_id": taskID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete task",
		})
	}

	return c.JSON(fiber.Map{"message": "Task deleted"})
}

// dependencyStatus maps dependency graph errors to HTTP statuses.
func dependencyStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrSelfDependency),
		errors.Is(err, services.ErrCrossProjectDependency):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrCircularDependency),
		errors.Is(err, services.ErrDuplicateDependency):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrDependencyNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrNotProjectMember):
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// AddDependency adds a "depends on" edge to the task.
func (tc *TaskController) AddDependency(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskID"))

	var req AddDependencyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	dep, err := tc.Graph.AddDependency(taskID, req.DependsOnID, user.ID)
	if err != nil {
		status := dependencyStatus(err)
		if status == fiber.StatusInternalServerError {
			utils.LogError("dependency_add_failed", err, map[string]interface{}{
				"task_id":       taskID,
				"depends_on_id": req.DependsOnID,
			})
			return c.Status(status).JSON(fiber.Map{"error": "Failed to add dependency"})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(dep)
}

// GetDependencies lists the tasks this task depends on and the tasks that
// depend on it.
func (tc *TaskController) GetDependencies(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskID"))

	task, errResp := tc.loadTask(c, taskID, user.ID)
	if task == nil {
		return errResp
	}

	dependencies, err := tc.Graph.Dependencies(taskID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch dependencies",
		})
	}
	dependents, err := tc.Graph.Dependents(taskID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch dependents",
		})
	}

	return c.JSON(fiber.Map{
		"dependencies": dependencies,
		"dependents":   dependents,
	})
}

// RemoveDependency removes a single edge from the task.
func (tc *TaskController) RemoveDependency(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskID"))
	dependsOnID := utils.ParseUint(c.Params("dependsOnID"))

	task, errResp := tc.loadTask(c, taskID, user.ID)
	if task == nil {
		return errResp
	}

	if err := tc.Graph.RemoveDependency(taskID, dependsOnID); err != nil {
		status := dependencyStatus(err)
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"message": "Dependency removed"})
}

// GetComments lists a task's comments, oldest first.
func (tc *TaskController) GetComments(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskID"))

	task, errResp := tc.loadTask(c, taskID, user.ID)
	if task == nil {
		return errResp
	}

	var comments []models.Comment
	if err := tc.DB.Preload("User").Where("task_id = ?", taskID).Order("created_at ASC").Find(&comments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch comments",
		})
	}

	return c.JSON(fiber.Map{"comments": comments})
}

// CreateComment adds a comment to a task.
func (tc *TaskController) CreateComment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskID"))

	task, errResp := tc.loadTask(c, taskID, user.ID)
	if task == nil {
		return errResp
	}

	var req CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	comment := models.Comment{
		TaskID:  taskID,
		UserID:  user.ID,
		Content: req.Content,
	}
	if err := tc.DB.Create(&comment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create comment",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}
