package worker

import (
	"context"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"projectpilot/bot"
	"projectpilot/models"
)

// NotificationWorker pushes undelivered notifications to users' MAX chats
// and prunes old read ones. It is optional: without a bot client the web
// API remains the only delivery channel.
type NotificationWorker struct {
	db     *gorm.DB
	client *bot.Client
	logger *log.Logger
}

func NewNotificationWorker(db *gorm.DB, client *bot.Client, logger *log.Logger) *NotificationWorker {
	return &NotificationWorker{
		db:     db,
		client: client,
		logger: logger,
	}
}

func (nw *NotificationWorker) Start(ctx context.Context) {
	nw.logger.Info("Starting notification worker...")
	deliverTicker := time.NewTicker(15 * time.Second)
	pruneTicker := time.NewTicker(12 * time.Hour)

	for {
		select {
		case <-deliverTicker.C:
			nw.deliverPending()
		case <-pruneTicker.C:
			nw.pruneRead()
		case <-ctx.Done():
			nw.logger.Info("Stopping notification worker...")
			deliverTicker.Stop()
			pruneTicker.Stop()
			return
		}
	}
}

// deliverPending sends each undelivered notification to its user's MAX chat
// and marks it delivered. Send failures leave the row untouched for the
// next pass.
func (nw *NotificationWorker) deliverPending() {
	var notifications []models.Notification
	err := nw.db.Preload("User").
		Where("delivered = ?", false).
		Order("id ASC").
		Limit(100).
		Find(&notifications).Error
	if err != nil {
		nw.logger.WithField("error", err).Error("Failed to fetch undelivered notifications")
		return
	}

	for _, n := range notifications {
		userID, err := strconv.ParseInt(n.User.MaxID, 10, 64)
		if err != nil {
			// Not a MAX numeric id; nothing to push, mark as handled.
			nw.db.Model(&models.Notification{}).Where("id = ?", n.ID).Update("delivered", true)
			continue
		}

		text := n.Title + "\n" + n.Message
		if _, err := nw.client.SendMessage(userID, text, nil); err != nil {
			nw.logger.WithFields(log.Fields{
				"notification_id": n.ID,
				"error":           err,
			}).Warn("Failed to deliver notification")
			continue
		}

		if err := nw.db.Model(&models.Notification{}).Where("id = ?", n.ID).Update("delivered", true).Error; err != nil {
			nw.logger.WithField("error", err).Error("Failed to mark notification delivered")
		}
	}
}

// pruneRead deletes read notifications older than 30 days.
func (nw *NotificationWorker) pruneRead() {
	cutoff := time.Now().AddDate(0, 0, -30)
	result := nw.db.Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		nw.logger.WithField("error", result.Error).Error("Failed to prune notifications")
		return
	}
	if result.RowsAffected > 0 {
		nw.logger.WithField("pruned", result.RowsAffected).Info("Pruned old notifications")
	}
}
