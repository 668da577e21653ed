package main

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"projectpilot/bot"
	"projectpilot/config"
	"projectpilot/middleware"
	"projectpilot/routes"
	"projectpilot/worker"
)

func main() {
	logger := log.StandardLogger()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Sentry when a DSN is configured
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Fatalf("Failed to initialize Sentry: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   []string{config.AppConfig.SiteURL, "http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           3600,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the MAX bot and the notification worker when a token is set
	if config.AppConfig.Bot.Token != "" {
		botClient := bot.NewClient(
			config.AppConfig.Bot.Token,
			config.AppConfig.Bot.APIURL,
			config.AppConfig.Bot.PollTimeout,
			logger,
		)

		maxBot := bot.New(botClient, config.DB, config.AppConfig.SiteURL, logger)
		go maxBot.Start(ctx)

		notificationWorker := worker.NewNotificationWorker(config.DB, botClient, logger)
		go notificationWorker.Start(ctx)
	} else {
		logger.Warn("BOT_TOKEN not set, running without the MAX bot")
	}

	// Setup routes
	routes.SetupRoutes(app, config.DB)

	// Start server
	logger.Infof("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
