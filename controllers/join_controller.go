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

type JoinController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Flow     *services.JoinFlow
	Notifier *services.Notifier
}

func NewJoinController(db *gorm.DB, logger *log.Logger) *JoinController {
	return &JoinController{
		DB:       db,
		Logger:   logger,
		Flow:     services.NewJoinFlow(db, logger),
		Notifier: services.NewNotifier(db, logger),
	}
}

// joinFlowStatus maps join workflow errors to HTTP statuses.
func joinFlowStatus(err error) int {
	var processed *services.RequestProcessedError
	switch {
	case errors.Is(err, services.ErrAlreadyMember):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrRequestAlreadyPending):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrRequestNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrNotProjectMember), errors.Is(err, services.ErrNotProjectAdmin):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrCannotDeletePending):
		return fiber.StatusBadRequest
	case errors.As(err, &processed):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// JoinProject joins the caller to the project behind an invite hash, or
// queues a join request when the project requires approval.
func (jc *JoinController) JoinProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	hash := c.Params("hash")

	if !utils.ValidInviteHash(hash) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid invite code",
		})
	}

	var project models.Project
	if err := jc.DB.Where("hash = ?", hash).First(&project).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Project not found",
		})
	}

	outcome, _, err := jc.Flow.RequestJoin(&project, user.ID)
	if err != nil {
		status := joinFlowStatus(err)
		if status == fiber.StatusInternalServerError {
			utils.LogError("join_failed", err, map[string]interface{}{
				"project_id": project.ID,
				"user_id":    user.ID,
			})
			return c.Status(status).JSON(fiber.Map{"error": "Failed to join project"})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	switch outcome {
	case services.OutcomeJoined:
		jc.Notifier.UserJoined(&project, user)
		return c.JSON(fiber.Map{
			"status":  string(outcome),
			"project": project,
		})
	default:
		jc.Notifier.JoinRequested(&project, user)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":  string(outcome),
			"message": "Your request is waiting for approval",
		})
	}
}

// GetJoinRequests lists pending requests for a project. Owner/admin only.
func (jc *JoinController) GetJoinRequests(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	requests, err := jc.Flow.PendingRequests(projectID, user.ID)
	if err != nil {
		status := joinFlowStatus(err)
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"requests": requests})
}

// ApproveJoinRequest approves a pending request and admits the requester.
func (jc *JoinController) ApproveJoinRequest(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))
	requestID := utils.ParseUint(c.Params("requestID"))

	outcome, request, err := jc.Flow.Approve(projectID, requestID, user.ID)
	if err != nil {
		status := joinFlowStatus(err)
		if status == fiber.StatusInternalServerError {
			utils.LogError("join_approve_failed", err, map[string]interface{}{
				"project_id": projectID,
				"request_id": requestID,
			})
			return c.Status(status).JSON(fiber.Map{"error": "Failed to approve request"})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	if outcome == services.OutcomeApproved {
		var project models.Project
		if err := jc.DB.First(&project, projectID).Error; err == nil {
			jc.Notifier.JoinDecision(&project, request.UserID, true)

			var requester models.User
			if err := jc.DB.First(&requester, request.UserID).Error; err == nil {
				jc.Notifier.UserJoined(&project, &requester)
			}
		}
	}

	return c.JSON(fiber.Map{
		"status":  string(outcome),
		"request": request,
	})
}

// RejectJoinRequest declines a pending request.
func (jc *JoinController) RejectJoinRequest(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))
	requestID := utils.ParseUint(c.Params("requestID"))

	request, err := jc.Flow.Reject(projectID, requestID, user.ID)
	if err != nil {
		status := joinFlowStatus(err)
		if status == fiber.StatusInternalServerError {
			utils.LogError("join_reject_failed", err, map[string]interface{}{
				"project_id": projectID,
				"request_id": requestID,
			})
			return c.Status(status).JSON(fiber.Map{"error": "Failed to reject request"})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	var project models.Project
	if err := jc.DB.First(&project, projectID).Error; err == nil {
		jc.Notifier.JoinDecision(&project, request.UserID, false)
	}

	return c.JSON(fiber.Map{"request": request})
}

// DeleteJoinRequest removes an already processed request from the list.
func (jc *JoinController) DeleteJoinRequest(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))
	requestID := utils.ParseUint(c.Params("requestID"))

	if err := jc.Flow.DeleteProcessed(projectID, requestID, user.ID); err != nil {
		status := joinFlowStatus(err)
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"message": "Request deleted"})
}
