package services

import (
	"testing"

	"projectpilot/models"
)

func TestTaskCompletedNotifiesMembersExceptActor(t *testing.T) {
	db := testDB(t)
	notifier := NewNotifier(db, testLogger())

	owner := seedUser(t, db, "100")
	member := seedUser(t, db, "200")
	muted := seedUser(t, db, "300")
	project := seedProject(t, db, owner, false)
	seedMember(t, db, project, member, models.RoleMember)

	m := seedMember(t, db, project, muted, models.RoleMember)
	m.NotificationsEnabled = false
	if err := db.Save(m).Error; err != nil {
		t.Fatalf("mute member: %v", err)
	}

	task := seedTask(t, db, project, owner, "Ship it")
	notifier.TaskCompleted(task, owner.ID)

	var notifications []models.Notification
	if err := db.Find(&notifications).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	n := notifications[0]
	if n.UserID != member.ID {
		t.Errorf("expected notification for member, got user %d", n.UserID)
	}
	if n.Type != models.NotifyTaskCompleted {
		t.Errorf("expected type %s, got %s", models.NotifyTaskCompleted, n.Type)
	}
	if n.Delivered {
		t.Errorf("new notifications must start undelivered")
	}
}

func TestJoinRequestedNotifiesAdminsOnly(t *testing.T) {
	db := testDB(t)
	notifier := NewNotifier(db, testLogger())

	owner := seedUser(t, db, "100")
	admin := seedUser(t, db, "200")
	member := seedUser(t, db, "300")
	requester := seedUser(t, db, "400")
	project := seedProject(t, db, owner, true)
	seedMember(t, db, project, admin, models.RoleAdmin)
	seedMember(t, db, project, member, models.RoleMember)

	notifier.JoinRequested(project, requester)

	var userIDs []uint
	db.Model(&models.Notification{}).Order("user_id").Pluck("user_id", &userIDs)
	if len(userIDs) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(userIDs))
	}
	if userIDs[0] != owner.ID || userIDs[1] != admin.ID {
		t.Errorf("expected owner and admin notified, got %v", userIDs)
	}
}

func TestJoinDecisionNotification(t *testing.T) {
	db := testDB(t)
	notifier := NewNotifier(db, testLogger())

	owner := seedUser(t, db, "100")
	requester := seedUser(t, db, "200")
	project := seedProject(t, db, owner, true)

	notifier.JoinDecision(project, requester.ID, false)

	var n models.Notification
	if err := db.First(&n).Error; err != nil {
		t.Fatalf("load notification: %v", err)
	}
	if n.UserID != requester.ID {
		t.Errorf("expected requester notified")
	}
	if n.Type != models.NotifyJoinRejected {
		t.Errorf("expected type %s, got %s", models.NotifyJoinRejected, n.Type)
	}
}
