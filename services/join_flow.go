package services

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"projectpilot/models"
)

// JoinOutcome describes the result of a join attempt or decision.
type JoinOutcome string

const (
	OutcomeJoined            JoinOutcome = "joined"
	OutcomePendingApproval   JoinOutcome = "pending_approval"
	OutcomeApproved          JoinOutcome = "approved"
	OutcomeRejectedDuplicate JoinOutcome = "rejected_duplicate"
)

// JoinFlow implements the project join workflow: open projects admit users
// immediately, projects requiring approval queue a request for an admin
// decision.
type JoinFlow struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewJoinFlow(db *gorm.DB, logger *log.Logger) *JoinFlow {
	return &JoinFlow{DB: db, Logger: logger}
}

// Membership returns the user's membership row in the project, or
// ErrNotProjectMember.
func (f *JoinFlow) Membership(projectID, userID uint) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := f.DB.Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotProjectMember
	} else if err != nil {
		return nil, err
	}
	return &member, nil
}

func (f *JoinFlow) requireAdmin(projectID, userID uint) (*models.ProjectMember, error) {
	member, err := f.Membership(projectID, userID)
	if err != nil {
		return nil, err
	}
	if !member.IsAdmin() {
		return nil, ErrNotProjectAdmin
	}
	return member, nil
}

// RequestJoin handles a user joining a project by invite hash. For open
// projects the user becomes a member immediately; otherwise a pending join
// request is created. Repeated attempts while a request is pending return
// ErrRequestAlreadyPending.
func (f *JoinFlow) RequestJoin(project *models.Project, userID uint) (JoinOutcome, *models.JoinRequest, error) {
	var outcome JoinOutcome
	var request *models.JoinRequest

	err := f.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ProjectMember{}).
			Where("project_id = ? AND user_id = ?", project.ID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyMember
		}

		if !project.RequiresApproval {
			member := models.ProjectMember{
				ProjectID:            project.ID,
				UserID:               userID,
				Role:                 models.RoleMember,
				NotificationsEnabled: true,
			}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
			outcome = OutcomeJoined
			return nil
		}

		if err := tx.Model(&models.JoinRequest{}).
			Where("project_id = ? AND user_id = ? AND status = ?", project.ID, userID, models.JoinStatusPending).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrRequestAlreadyPending
		}

		request = &models.JoinRequest{
			ProjectID:   project.ID,
			UserID:      userID,
			Status:      models.JoinStatusPending,
			RequestedAt: time.Now(),
		}
		if err := tx.Create(request).Error; err != nil {
			return err
		}
		outcome = OutcomePendingApproval
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	f.Logger.WithFields(log.Fields{
		"project_id": project.ID,
		"user_id":    userID,
		"outcome":    outcome,
	}).Info("Join attempt processed")
	return outcome, request, nil
}

// Approve marks a pending request approved and adds the requester as a
// member, atomically. The actor must be an owner or admin. If the requester
// turned out to be a member already (joined via another path in the
// meantime), the request is marked rejected and OutcomeRejectedDuplicate is
// returned.
func (f *JoinFlow) Approve(projectID, requestID, actorID uint) (JoinOutcome, *models.JoinRequest, error) {
	if _, err := f.requireAdmin(projectID, actorID); err != nil {
		return "", nil, err
	}

	var outcome JoinOutcome
	var request models.JoinRequest

	err := f.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND project_id = ?", requestID, projectID).First(&request).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		} else if err != nil {
			return err
		}
		if request.Status != models.JoinStatusPending {
			return &RequestProcessedError{Status: request.Status}
		}

		now := time.Now()
		var count int64
		if err := tx.Model(&models.ProjectMember{}).
			Where("project_id = ? AND user_id = ?", projectID, request.UserID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			request.Status = models.JoinStatusRejected
			request.ProcessedByID = &actorID
			request.ProcessedAt = &now
			if err := tx.Save(&request).Error; err != nil {
				return err
			}
			outcome = OutcomeRejectedDuplicate
			return nil
		}

		member := models.ProjectMember{
			ProjectID:            projectID,
			UserID:               request.UserID,
			Role:                 models.RoleMember,
			NotificationsEnabled: true,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}

		request.Status = models.JoinStatusApproved
		request.ProcessedByID = &actorID
		request.ProcessedAt = &now
		if err := tx.Save(&request).Error; err != nil {
			return err
		}
		outcome = OutcomeApproved
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	f.Logger.WithFields(log.Fields{
		"project_id": projectID,
		"request_id": requestID,
		"outcome":    outcome,
	}).Info("Join request decided")
	return outcome, &request, nil
}

// Reject marks a pending request rejected. The actor must be an owner or
// admin; terminal requests cannot be re-processed.
func (f *JoinFlow) Reject(projectID, requestID, actorID uint) (*models.JoinRequest, error) {
	if _, err := f.requireAdmin(projectID, actorID); err != nil {
		return nil, err
	}

	var request models.JoinRequest
	err := f.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND project_id = ?", requestID, projectID).First(&request).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		} else if err != nil {
			return err
		}
		if request.Status != models.JoinStatusPending {
			return &RequestProcessedError{Status: request.Status}
		}

		now := time.Now()
		request.Status = models.JoinStatusRejected
		request.ProcessedByID = &actorID
		request.ProcessedAt = &now
		return tx.Save(&request).Error
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// DeleteProcessed removes a request that already reached a terminal status.
// Pending requests must be decided first.
func (f *JoinFlow) DeleteProcessed(projectID, requestID, actorID uint) error {
	if _, err := f.requireAdmin(projectID, actorID); err != nil {
		return err
	}

	var request models.JoinRequest
	err := f.DB.Where("id = ? AND project_id = ?", requestID, projectID).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRequestNotFound
	} else if err != nil {
		return err
	}
	if request.Status == models.JoinStatusPending {
		return ErrCannotDeletePending
	}
	return f.DB.Delete(&request).Error
}

// PendingRequests lists the pending requests for a project, oldest first,
// with the requesting users preloaded. The actor must be an owner or admin.
func (f *JoinFlow) PendingRequests(projectID, actorID uint) ([]models.JoinRequest, error) {
	if _, err := f.requireAdmin(projectID, actorID); err != nil {
		return nil, err
	}

	var requests []models.JoinRequest
	err := f.DB.Preload("User").
		Where("project_id = ? AND status = ?", projectID, models.JoinStatusPending).
		Order("requested_at ASC").
		Find(&requests).Error
	return requests, err
}
