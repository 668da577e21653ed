package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"projectpilot/models"
	"projectpilot/services"
	"projectpilot/utils"
)

var roleEmoji = map[string]string{
	models.RoleOwner:  "👑",
	models.RoleAdmin:  "⚡",
	models.RoleMember: "👤",
	models.RoleGuest:  "👤",
}

// ensureUser finds or creates the application user behind a MAX identity.
func (b *Bot) ensureUser(sender *BotUser) (*models.User, error) {
	maxID := strconv.FormatInt(sender.UserID, 10)

	var user models.User
	err := b.DB.Where("max_id = ?", maxID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fullName := sender.Name
		if fullName == "" {
			fullName = "Anonymous"
		}
		user = models.User{
			MaxID:    maxID,
			FullName: fullName,
			Username: sender.Username,
			IsActive: true,
		}
		if err := b.DB.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	} else if err != nil {
		return nil, err
	}
	return &user, nil
}

func (b *Bot) webAppURL(user *models.User, fragment string) string {
	url := fmt.Sprintf("%s/?user_id=%s", b.SiteURL, user.MaxID)
	if fragment != "" {
		url += "#" + fragment
	}
	return url
}

func (b *Bot) handleMessage(msg *Message) {
	text := strings.TrimSpace(msg.Body.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	command := text
	args := ""
	if idx := strings.Index(text, " "); idx > 0 {
		command = text[:idx]
		args = strings.TrimSpace(text[idx+1:])
	}

	switch command {
	case "/start", "/help":
		b.sendStart(&msg.Sender)
	case "/create_project":
		b.cmdCreateProject(msg)
	case "/join":
		b.cmdJoin(msg, args)
	default:
		_, _ = b.Client.SendMessage(msg.Sender.UserID,
			"Unknown command. Use /help to see what I can do.", nil)
	}
}

func (b *Bot) sendStart(sender *BotUser) {
	user, err := b.ensureUser(sender)
	if err != nil {
		b.Logger.WithField("error", err).Error("Failed to ensure user")
		return
	}

	keyboard := NewKeyboard().
		Row(LinkButton("🌐 Open web app", b.webAppURL(user, ""))).
		Row(CallbackButton("📋 My projects", "projects")).
		Row(CallbackButton("🔔 Notifications", "notifications"))

	text := fmt.Sprintf("👋 Hi, %s!\n"+
		"🚀 Project Pilot\n"+
		"Manage your projects in the web app, or get updates right here.\n\n"+
		"💡 Commands:\n"+
		"• /create_project — create a new project\n"+
		"• /join <code> — join a project by invite code\n"+
		"• /help — this message", user.FullName)

	if _, err := b.Client.SendMessage(sender.UserID, text, keyboard.AsAttachments()); err != nil {
		b.Logger.WithField("error", err).Error("Failed to send start message")
	}
}

func (b *Bot) cmdCreateProject(msg *Message) {
	keyboard := NewKeyboard().
		Row(CallbackButton("📁 Start creating", "create_project_start"))

	if _, err := b.Client.SendMessage(msg.Sender.UserID,
		"Press the button to start creating a project.",
		keyboard.AsAttachments()); err != nil {
		b.Logger.WithField("error", err).Error("Failed to send message")
	}
}

func (b *Bot) cmdJoin(msg *Message, arg string) {
	if arg == "" {
		_, _ = b.Client.SendMessage(msg.Sender.UserID,
			"Please provide a project invite code. Example: /join abc123def456", nil)
		return
	}
	if !utils.ValidInviteHash(arg) {
		_, _ = b.Client.SendMessage(msg.Sender.UserID,
			"Invalid invite code format. It must be 12 characters (a-z, 0-9).", nil)
		return
	}

	user, err := b.ensureUser(&msg.Sender)
	if err != nil {
		b.Logger.WithField("error", err).Error("Failed to ensure user")
		return
	}

	var project models.Project
	if err := b.DB.Where("hash = ?", arg).First(&project).Error; err != nil {
		_, _ = b.Client.SendMessage(msg.Sender.UserID, "❌ Project not found.", nil)
		return
	}

	outcome, _, err := b.flow.RequestJoin(&project, user.ID)
	switch {
	case errors.Is(err, services.ErrAlreadyMember):
		_, _ = b.Client.SendMessage(msg.Sender.UserID,
			"❌ You are already a member of this project.", nil)
	case errors.Is(err, services.ErrRequestAlreadyPending):
		_, _ = b.Client.SendMessage(msg.Sender.UserID,
			"⏳ Your join request is already waiting for approval.", nil)
	case err != nil:
		b.Logger.WithField("error", err).Error("Join via bot failed")
		_, _ = b.Client.SendMessage(msg.Sender.UserID,
			"❌ Something went wrong, please try again later.", nil)
	case outcome == services.OutcomeJoined:
		b.notifier.UserJoined(&project, user)
		_, _ = b.Client.SendMessage(msg.Sender.UserID,
			"✅ You joined the project!", nil)
	default:
		b.notifier.JoinRequested(&project, user)
		_, _ = b.Client.SendMessage(msg.Sender.UserID,
			"📥 Join request sent for approval!", nil)
	}
}

func (b *Bot) handleCallback(cb *Callback, msg *Message) {
	user, err := b.ensureUser(&cb.User)
	if err != nil {
		b.Logger.WithField("error", err).Error("Failed to ensure user")
		return
	}

	payload := cb.Payload
	switch {
	case payload == "projects":
		b.callbackProjects(cb, msg, user)
	case strings.HasPrefix(payload, "project_summary:"):
		b.callbackProjectSummary(cb, msg, user, strings.TrimPrefix(payload, "project_summary:"))
	case strings.HasPrefix(payload, "project_invite:"):
		b.callbackProjectInvite(cb, msg, strings.TrimPrefix(payload, "project_invite:"))
	case strings.HasPrefix(payload, "project_requests:"):
		b.callbackProjectRequests(cb, msg, user, strings.TrimPrefix(payload, "project_requests:"))
	case payload == "notifications":
		b.callbackNotifications(cb, msg, user)
	case payload == "create_project_start":
		b.callbackCreateProjectStart(cb, user)
	default:
		_ = b.Client.AnswerCallback(cb.CallbackID, "❌ Unknown action")
	}
}

// respond edits the originating message when possible, otherwise sends a new
// one, and acknowledges the callback either way.
func (b *Bot) respond(cb *Callback, msg *Message, text string, keyboard *KeyboardBuilder) {
	var attachments []Attachment
	if keyboard != nil {
		attachments = keyboard.AsAttachments()
	}

	var err error
	if msg != nil && msg.Body.Mid != "" {
		err = b.Client.EditMessage(msg.Body.Mid, text, attachments)
	} else {
		_, err = b.Client.SendMessage(cb.User.UserID, text, attachments)
	}
	if err != nil {
		b.Logger.WithField("error", err).Error("Failed to respond to callback")
	}
	_ = b.Client.AnswerCallback(cb.CallbackID, "")
}

func (b *Bot) callbackProjects(cb *Callback, msg *Message, user *models.User) {
	var memberships []models.ProjectMember
	if err := b.DB.Preload("Project").Where("user_id = ?", user.ID).
		Limit(5).Find(&memberships).Error; err != nil {
		b.Logger.WithField("error", err).Error("Failed to load projects")
		_ = b.Client.AnswerCallback(cb.CallbackID, "❌ Failed to load projects")
		return
	}

	keyboard := NewKeyboard()
	var text string
	if len(memberships) == 0 {
		text = "📂 You have no projects yet. Use the web app to create one!"
	} else {
		var sb strings.Builder
		sb.WriteString("📂 Your projects:\n")
		for i, m := range memberships {
			var taskCount, memberCount int64
			b.DB.Model(&models.Task{}).Where("project_id = ? AND is_active = ?", m.ProjectID, true).Count(&taskCount)
			b.DB.Model(&models.ProjectMember{}).Where("project_id = ?", m.ProjectID).Count(&memberCount)

			emoji := roleEmoji[m.Role]
			if emoji == "" {
				emoji = "👤"
			}
			fmt.Fprintf(&sb, "%d. %s %s\n", i+1, emoji, m.Project.Title)
			fmt.Fprintf(&sb, "📋 %d tasks | 👥 %d members\n", taskCount, memberCount)
			fmt.Fprintf(&sb, "🔗 Code: %s\n\n", m.Project.Hash)

			if m.IsAdmin() {
				keyboard.Row(
					CallbackButton(fmt.Sprintf("🔍 %d — Details", i+1), "project_summary:"+m.Project.Hash),
					CallbackButton(fmt.Sprintf("🔗 %d — Invite", i+1), "project_invite:"+m.Project.Hash),
				)
			}
		}
		text = sb.String()
	}

	keyboard.Row(LinkButton("🌐 Open web app", b.webAppURL(user, "")))
	keyboard.Row(CallbackButton("🔄 Refresh", "projects"))

	b.respond(cb, msg, text, keyboard)
}

func (b *Bot) callbackProjectSummary(cb *Callback, msg *Message, user *models.User, hash string) {
	var project models.Project
	if err := b.DB.Where("hash = ?", hash).First(&project).Error; err != nil {
		_ = b.Client.AnswerCallback(cb.CallbackID, "❌ Project not found")
		return
	}

	member, err := b.flow.Membership(project.ID, user.ID)
	if err != nil {
		_ = b.Client.AnswerCallback(cb.CallbackID, "❌ You are not a member of this project")
		return
	}

	var todo, inProgress, done, memberCount int64
	b.DB.Model(&models.Task{}).Where("project_id = ? AND is_active = ? AND status = ?", project.ID, true, models.TaskStatusTodo).Count(&todo)
	b.DB.Model(&models.Task{}).Where("project_id = ? AND is_active = ? AND status = ?", project.ID, true, models.TaskStatusInProgress).Count(&inProgress)
	b.DB.Model(&models.Task{}).Where("project_id = ? AND is_active = ? AND status = ?", project.ID, true, models.TaskStatusDone).Count(&done)
	b.DB.Model(&models.ProjectMember{}).Where("project_id = ?", project.ID).Count(&memberCount)

	description := project.Description
	if description == "" {
		description = "📝 No description"
	}
	visibility := "🌐 Public"
	if project.IsPrivate {
		visibility = "🔒 Private"
	}
	approval := "✅ No approval needed"
	if project.RequiresApproval {
		approval = "⏳ Approval required"
	}

	text := fmt.Sprintf("🚀 %s\n%s\n\n"+
		"📊 Stats:\n"+
		"• 👥 Members: %d\n"+
		"• 📋 Total tasks: %d\n"+
		"• ⏳ To do: %d\n"+
		"• 🔧 In progress: %d\n"+
		"• ✅ Done: %d\n\n"+
		"%s\n%s\n"+
		"👤 Your role: %s",
		project.Title, description,
		memberCount, todo+inProgress+done, todo, inProgress, done,
		visibility, approval, member.Role)

	keyboard := NewKeyboard().
		Row(LinkButton("🌐 Open web app", b.webAppURL(user, "project="+hash)))
	if member.IsAdmin() {
		keyboard.Row(CallbackButton("🔗 Invite", "project_invite:"+hash))
		keyboard.Row(CallbackButton("📋 Join requests", "project_requests:"+hash))
	}
	keyboard.Row(CallbackButton("📋 My projects", "projects"))

	b.respond(cb, msg, text, keyboard)
}

func (b *Bot) callbackProjectInvite(cb *Callback, msg *Message, hash string) {
	inviteLink := fmt.Sprintf("%s/join/%s", b.SiteURL, hash)
	text := fmt.Sprintf("🔗 Project invite\n\n"+
		"Share this link:\n%s\n\n"+
		"Or share the invite code:\n%s", inviteLink, hash)

	keyboard := NewKeyboard().
		Row(CallbackButton("📋 My projects", "projects"))

	b.respond(cb, msg, text, keyboard)
}

func (b *Bot) callbackProjectRequests(cb *Callback, msg *Message, user *models.User, hash string) {
	var project models.Project
	if err := b.DB.Where("hash = ?", hash).First(&project).Error; err != nil {
		_ = b.Client.AnswerCallback(cb.CallbackID, "❌ Project not found")
		return
	}

	requests, err := b.flow.PendingRequests(project.ID, user.ID)
	if err != nil {
		_ = b.Client.AnswerCallback(cb.CallbackID, "❌ Only project admins can view requests")
		return
	}

	var text string
	if len(requests) == 0 {
		text = "📋 Join requests\n\nNo pending requests."
	} else {
		var sb strings.Builder
		sb.WriteString("📋 Join requests\n\n")
		for i, req := range requests {
			fmt.Fprintf(&sb, "%d. %s (ID: %s)\n", i+1, req.User.FullName, req.User.MaxID)
			fmt.Fprintf(&sb, "Status: %s\n", req.Status)
			fmt.Fprintf(&sb, "Date: %s\n---\n", req.RequestedAt.Format("2006-01-02 15:04"))
		}
		text = sb.String()
	}

	keyboard := NewKeyboard().
		Row(CallbackButton("📋 My projects", "projects"))

	b.respond(cb, msg, text, keyboard)
}

func (b *Bot) callbackNotifications(cb *Callback, msg *Message, user *models.User) {
	var notifications []models.Notification
	if err := b.DB.Where("user_id = ?", user.ID).
		Order("created_at DESC").Limit(5).
		Find(&notifications).Error; err != nil {
		_ = b.Client.AnswerCallback(cb.CallbackID, "❌ Failed to load notifications")
		return
	}

	var text string
	if len(notifications) == 0 {
		text = "📭 No notifications yet.\nNew ones will show up here when something happens in your projects!"
	} else {
		var sb strings.Builder
		sb.WriteString("🔔 Latest notifications:\n")
		for _, n := range notifications {
			emoji := "🔵"
			if n.IsRead {
				emoji = "⚪"
			}
			fmt.Fprintf(&sb, "%s %s\n%s\n\n", emoji, n.Title, n.Message)
		}
		text = sb.String()
	}

	keyboard := NewKeyboard().
		Row(LinkButton("🌐 Open web app", b.webAppURL(user, "notifications"))).
		Row(CallbackButton("🔄 Refresh", "notifications"))

	b.respond(cb, msg, text, keyboard)
}

func (b *Bot) callbackCreateProjectStart(cb *Callback, user *models.User) {
	text := fmt.Sprintf("To create a project, open the web app: %s",
		b.webAppURL(user, "projects"))
	if _, err := b.Client.SendMessage(cb.User.UserID, text, nil); err != nil {
		b.Logger.WithField("error", err).Error("Failed to send message")
	}
	_ = b.Client.AnswerCallback(cb.CallbackID, "")
}
