package bot

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"projectpilot/services"
)

// Bot runs the MAX messenger side of the application: it long-polls the
// Bot API for updates and dispatches commands and button callbacks. It
// shares the database and services with the HTTP API.
type Bot struct {
	Client  *Client
	DB      *gorm.DB
	Logger  *log.Logger
	SiteURL string

	flow     *services.JoinFlow
	notifier *services.Notifier
}

func New(client *Client, db *gorm.DB, siteURL string, logger *log.Logger) *Bot {
	return &Bot{
		Client:   client,
		DB:       db,
		Logger:   logger,
		SiteURL:  siteURL,
		flow:     services.NewJoinFlow(db, logger),
		notifier: services.NewNotifier(db, logger),
	}
}

// Start long-polls for updates until the context is cancelled. Poll errors
// are logged and retried with a short backoff.
func (b *Bot) Start(ctx context.Context) {
	b.Logger.Info("🤖 Bot update loop started")

	var marker *int64
	for {
		select {
		case <-ctx.Done():
			b.Logger.Info("Bot update loop stopped")
			return
		default:
		}

		resp, err := b.Client.GetUpdates(marker)
		if err != nil {
			b.Logger.WithField("error", err).Error("Failed to fetch updates")
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for i := range resp.Updates {
			b.dispatch(&resp.Updates[i])
		}
		if resp.Marker != nil {
			marker = resp.Marker
		}
	}
}

func (b *Bot) dispatch(update *Update) {
	defer func() {
		if r := recover(); r != nil {
			b.Logger.WithField("panic", r).Error("Update handler panicked")
		}
	}()

	switch update.UpdateType {
	case UpdateMessageCreated:
		if update.Message != nil {
			b.handleMessage(update.Message)
		}
	case UpdateMessageCallback:
		if update.Callback != nil {
			b.handleCallback(update.Callback, update.Message)
		}
	case UpdateBotStarted:
		if update.User != nil {
			b.sendStart(update.User)
		}
	}
}
