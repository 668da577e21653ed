package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"projectpilot/models"
	"projectpilot/services"
	"projectpilot/utils"
)

type ProjectController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Notifier *services.Notifier
}

func NewProjectController(db *gorm.DB, logger *log.Logger) *ProjectController {
	return &ProjectController{
		DB:       db,
		Logger:   logger,
		Notifier: services.NewNotifier(db, logger),
	}
}

type CreateProjectRequest struct {
	Title            string `json:"title" validate:"required,max=200"`
	Description      string `json:"description" validate:"omitempty,max=2000"`
	IsPrivate        *bool  `json:"is_private"`
	RequiresApproval bool   `json:"requires_approval"`
}

type UpdateProjectRequest struct {
	Title            *string `json:"title" validate:"omitempty,max=200"`
	Description      *string `json:"description" validate:"omitempty,max=2000"`
	IsPrivate        *bool   `json:"is_private"`
	RequiresApproval *bool   `json:"requires_approval"`
}

// membership loads the caller's membership row, or nil when not a member.
func (pc *ProjectController) membership(projectID, userID uint) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := pc.DB.Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &member, nil
}

// CreateProject creates a project and materializes the creator as its owner
// member in the same transaction.
func (pc *ProjectController) CreateProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateProjectRequest
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

	hash, err := utils.GenerateInviteHash()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate invite code",
		})
	}

	isPrivate := true
	if req.IsPrivate != nil {
		isPrivate = *req.IsPrivate
	}

	project := models.Project{
		Hash:             hash,
		Title:            req.Title,
		Description:      req.Description,
		IsPrivate:        isPrivate,
		RequiresApproval: req.RequiresApproval,
		CreatedBy:        user.ID,
	}

	err = pc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		owner := models.ProjectMember{
			ProjectID:            project.ID,
			UserID:               user.ID,
			Role:                 models.RoleOwner,
			NotificationsEnabled: true,
		}
		return tx.Create(&owner).Error
	})
	if err != nil {
		utils.LogError("project_create_failed", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create project",
		})
	}

	pc.Logger.WithFields(log.Fields{
		"project_id": project.ID,
		"user_id":    user.ID,
	}).Info("Project created")

	return c.Status(fiber.StatusCreated).JSON(project)
}

// GetMyProjects lists the caller's projects with task counts and their role.
func (pc *ProjectController) GetMyProjects(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var memberships []models.ProjectMember
	if err := pc.DB.Preload("Project").Where("user_id = ?", user.ID).Find(&memberships).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch projects",
		})
	}

	type projectEntry struct {
		models.Project
		Role        string `json:"role"`
		MemberCount int64  `json:"member_count"`
		TaskCount   int64  `json:"task_count"`
		DoneCount   int64  `json:"done_count"`
	}

	entries := make([]projectEntry, 0, len(memberships))
	for _, m := range memberships {
		entry := projectEntry{Project: m.Project, Role: m.Role}
		pc.DB.Model(&models.ProjectMember{}).Where("project_id = ?", m.ProjectID).Count(&entry.MemberCount)
		pc.DB.Model(&models.Task{}).Where("project_id = ? AND is_active = ?", m.ProjectID, true).Count(&entry.TaskCount)
		pc.DB.Model(&models.Task{}).Where("project_id = ? AND is_active = ? AND status = ?", m.ProjectID, true, models.TaskStatusDone).Count(&entry.DoneCount)
		entries = append(entries, entry)
	}

	return c.JSON(fiber.Map{"projects": entries})
}

// GetProject returns a project with its members. Members only.
func (pc *ProjectController) GetProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	member, err := pc.membership(projectID, user.ID)
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

	var project models.Project
	if err := pc.DB.Preload("Members.User").First(&project, projectID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Project not found",
		})
	}

	return c.JSON(fiber.Map{
		"project": project,
		"role":    member.Role,
	})
}

// UpdateProject changes project settings. Owner/admin only.
func (pc *ProjectController) UpdateProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	member, err := pc.membership(projectID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil || !member.IsAdmin() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only project admins can update the project",
		})
	}

	var req UpdateProjectRequest
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
	if req.IsPrivate != nil {
		updates["is_private"] = *req.IsPrivate
	}
	if req.RequiresApproval != nil {
		updates["requires_approval"] = *req.RequiresApproval
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Nothing to update",
		})
	}

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Project not found",
		})
	}
	if err := pc.DB.Model(&project).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update project",
		})
	}

	return c.JSON(project)
}

// DeleteProject removes a project and everything under it. Owner only.
func (pc *ProjectController) DeleteProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	member, err := pc.membership(projectID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil || member.Role != models.RoleOwner {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only the project owner can delete the project",
		})
	}

	err = pc.DB.Transaction(func(tx *gorm.DB) error {
		var taskIDs []uint
		if err := tx.Model(&models.Task{}).Where("project_id = ?", projectID).Pluck("id", &taskIDs).Error; err != nil {
			return err
		}
		if len(taskIDs) > 0 {
			if err := tx.Where("task_id IN ? OR depends_on_id IN ?", taskIDs, taskIDs).Delete(&models.TaskDependency{}).Error; err != nil {
				return err
			}
			if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.TaskAssignee{}).Error; err != nil {
				return err
			}
			if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.JoinRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, projectID).Error
	})
	if err != nil {
		utils.LogError("project_delete_failed", err, map[string]interface{}{
			"project_id": projectID,
			"user_id":    user.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete project",
		})
	}

	return c.JSON(fiber.Map{"message": "Project deleted"})
}

// RegenerateInvite replaces the project's invite code. Owner/admin only.
// Existing links stop working immediately.
func (pc *ProjectController) RegenerateInvite(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	member, err := pc.membership(projectID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil || !member.IsAdmin() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only project admins can regenerate the invite",
		})
	}

	hash, err := utils.GenerateInviteHash()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate invite code",
		})
	}

	if err := pc.DB.Model(&models.Project{}).Where("id = ?", projectID).Update("hash", hash).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update invite code",
		})
	}

	return c.JSON(fiber.Map{"hash": hash})
}

// GetSummary returns task counts by status plus member count. Members only.
func (pc *ProjectController) GetSummary(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	member, err := pc.membership(projectID, user.ID)
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

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Project not found",
		})
	}

	summary := fiber.Map{}
	for _, status := range []string{models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusDone} {
		var count int64
		pc.DB.Model(&models.Task{}).Where("project_id = ? AND is_active = ? AND status = ?", projectID, true, status).Count(&count)
		summary[status] = count
	}

	var memberCount, pendingRequests int64
	pc.DB.Model(&models.ProjectMember{}).Where("project_id = ?", projectID).Count(&memberCount)
	pc.DB.Model(&models.JoinRequest{}).Where("project_id = ? AND status = ?", projectID, models.JoinStatusPending).Count(&pendingRequests)

	return c.JSON(fiber.Map{
		"project":          project,
		"tasks":            summary,
		"member_count":     memberCount,
		"pending_requests": pendingRequests,
	})
}

// GetMembers lists project members with their users. Members only.
func (pc *ProjectController) GetMembers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	member, err := pc.membership(projectID, user.ID)
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

	var members []models.ProjectMember
	if err := pc.DB.Preload("User").Where("project_id = ?", projectID).Find(&members).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch members",
		})
	}

	return c.JSON(fiber.Map{"members": members})
}

// ToggleNotifications flips per-project notification delivery for the caller.
func (pc *ProjectController) ToggleNotifications(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	member, err := pc.membership(projectID, user.ID)
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

	member.NotificationsEnabled = !member.NotificationsEnabled
	if err := pc.DB.Save(member).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update settings",
		})
	}

	return c.JSON(fiber.Map{"notifications_enabled": member.NotificationsEnabled})
}
