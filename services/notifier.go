package services

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"projectpilot/models"
)

// Notifier fans application events out as per-user notifications. Rows are
// read by the web client and pushed to MAX chats by the notification worker.
type Notifier struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewNotifier(db *gorm.DB, logger *log.Logger) *Notifier {
	return &Notifier{DB: db, Logger: logger}
}

// Create persists a single notification. Data is marshalled to JSON when
// non-nil.
func (n *Notifier) Create(userID uint, projectID *uint, notifyType, title, message string, data map[string]interface{}) error {
	notification := models.Notification{
		UserID:    userID,
		ProjectID: projectID,
		Type:      notifyType,
		Title:     title,
		Message:   message,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		notification.Data = string(raw)
	}
	if err := n.DB.Create(&notification).Error; err != nil {
		n.Logger.WithFields(log.Fields{
			"user_id": userID,
			"type":    notifyType,
			"error":   err,
		}).Error("Failed to create notification")
		return err
	}
	return nil
}

// projectAudience returns the project member user IDs with notifications
// enabled, excluding the actor who triggered the event.
func (n *Notifier) projectAudience(projectID, actorID uint) ([]uint, error) {
	var userIDs []uint
	err := n.DB.Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id <> ? AND notifications_enabled = ?", projectID, actorID, true).
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

// adminAudience returns the owner/admin user IDs for a project.
func (n *Notifier) adminAudience(projectID uint) ([]uint, error) {
	var userIDs []uint
	err := n.DB.Model(&models.ProjectMember{}).
		Where("project_id = ? AND role IN ?", projectID, []string{models.RoleOwner, models.RoleAdmin}).
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

// TaskAssigned notifies each assignee about a task assigned to them.
func (n *Notifier) TaskAssigned(task *models.Task, assigneeIDs []uint, actorID uint) {
	for _, userID := range assigneeIDs {
		if userID == actorID {
			continue
		}
		_ = n.Create(userID, &task.ProjectID, models.NotifyTaskAssigned,
			"New task assigned",
			fmt.Sprintf("You were assigned to task \"%s\"", task.Title),
			map[string]interface{}{"task_id": task.ID, "project_id": task.ProjectID})
	}
}

// TaskCompleted notifies project members that a task was finished.
func (n *Notifier) TaskCompleted(task *models.Task, actorID uint) {
	audience, err := n.projectAudience(task.ProjectID, actorID)
	if err != nil {
		n.Logger.WithField("error", err).Error("Failed to load notification audience")
		return
	}
	for _, userID := range audience {
		_ = n.Create(userID, &task.ProjectID, models.NotifyTaskCompleted,
			"Task completed",
			fmt.Sprintf("Task \"%s\" was marked as done ✅", task.Title),
			map[string]interface{}{"task_id": task.ID, "project_id": task.ProjectID})
	}
}

// UserJoined notifies project members that a new member arrived.
func (n *Notifier) UserJoined(project *models.Project, user *models.User) {
	audience, err := n.projectAudience(project.ID, user.ID)
	if err != nil {
		n.Logger.WithField("error", err).Error("Failed to load notification audience")
		return
	}
	for _, userID := range audience {
		_ = n.Create(userID, &project.ID, models.NotifyUserJoined,
			"New member",
			fmt.Sprintf("%s joined project \"%s\"", user.FullName, project.Title),
			map[string]interface{}{"project_id": project.ID, "user_id": user.ID})
	}
}

// JoinRequested notifies project owners/admins about a pending join request.
func (n *Notifier) JoinRequested(project *models.Project, requester *models.User) {
	admins, err := n.adminAudience(project.ID)
	if err != nil {
		n.Logger.WithField("error", err).Error("Failed to load admin audience")
		return
	}
	for _, userID := range admins {
		_ = n.Create(userID, &project.ID, models.NotifyJoinRequest,
			"Join request",
			fmt.Sprintf("%s wants to join project \"%s\"", requester.FullName, project.Title),
			map[string]interface{}{"project_id": project.ID, "user_id": requester.ID})
	}
}

// JoinDecision notifies the requester about the outcome of their request.
func (n *Notifier) JoinDecision(project *models.Project, requesterID uint, approved bool) {
	notifyType := models.NotifyJoinApproved
	title := "Request approved"
	message := fmt.Sprintf("You were accepted into project \"%s\" 🎉", project.Title)
	if !approved {
		notifyType = models.NotifyJoinRejected
		title = "Request declined"
		message = fmt.Sprintf("Your request to join project \"%s\" was declined", project.Title)
	}
	_ = n.Create(requesterID, &project.ID, notifyType, title, message,
		map[string]interface{}{"project_id": project.ID})
}
