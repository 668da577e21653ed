package routes

import (
	controller "projectpilot/controllers"
	"projectpilot/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/token", controller.IssueToken)
	auth.Post("/refresh", controller.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", controller.GetCurrentUser)

	log.Info("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB) {
	appLogger := log.StandardLogger()

	projectController := controller.NewProjectController(db, appLogger)
	joinController := controller.NewJoinController(db, appLogger)
	taskController := controller.NewTaskController(db, appLogger)
	notificationController := controller.NewNotificationController(db, appLogger)
	dashboardController := controller.NewDashboardController(db, appLogger)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Dashboard routes
	dashboard := api.Group("/dashboard")
	dashboard.Get("/stats", dashboardController.GetDashboardStats)
	dashboard.Get("/recent-tasks", dashboardController.GetRecentTasks)

	// Project routes
	project := api.Group("/projects")
	project.Post("/", projectController.CreateProject)
	project.Get("/", projectController.GetMyProjects)
	project.Post("/join/:hash", middleware.JoinRateLimiter(), joinController.JoinProject)
	project.Get("/:id", projectController.GetProject)
	project.Put("/:id", projectController.UpdateProject)
	project.Delete("/:id", projectController.DeleteProject)
	project.Post("/:id/invite", projectController.RegenerateInvite)
	project.Get("/:id/summary", projectController.GetSummary)
	project.Get("/:id/members", projectController.GetMembers)
	project.Put("/:id/notifications", projectController.ToggleNotifications)

	// Join request routes
	project.Get("/:id/join-requests", joinController.GetJoinRequests)
	project.Post("/:id/join-requests/:requestID/approve", joinController.ApproveJoinRequest)
	project.Post("/:id/join-requests/:requestID/reject", joinController.RejectJoinRequest)
	project.Delete("/:id/join-requests/:requestID", joinController.DeleteJoinRequest)

	// Task routes
	project.Get("/:id/tasks", taskController.GetProjectTasks)
	project.Post("/:id/tasks", taskController.CreateTask)

	task := api.Group("/tasks")
	task.Get("/my", taskController.GetMyTasks)
	task.Get("/:taskID", taskController.GetTask)
	task.Put("/:taskID", taskController.UpdateTask)
	task.Put("/:taskID/status", taskController.UpdateTaskStatus)
	task.Delete("/:taskID", taskController.DeleteTask)
	task.Post("/:taskID/dependencies", taskController.AddDependency)
	task.Get("/:taskID/dependencies", taskController.GetDependencies)
	task.Delete("/:taskID/dependencies/:dependsOnID", taskController.RemoveDependency)
	task.Get("/:taskID/comments", taskController.GetComments)
	task.Post("/:taskID/comments", taskController.CreateComment)

	// Notification routes
	notification := api.Group("/notifications")
	notification.Get("/", notificationController.GetNotifications)
	notification.Get("/unread-count", notificationController.GetUnreadCount)
	notification.Put("/:id/read", notificationController.MarkRead)
	notification.Put("/read-all", notificationController.MarkAllRead)

	// WebSocket route for the live notification feed
	app.Get("/api/v1/notifications/feed", middleware.Protected(), websocket.New(func(c *websocket.Conn) {
		notificationController.HandleNotificationFeed(c)
	}))

	log.Info("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Setup auth routes
	SetupAuthRoutes(app, db)

	// Setup API routes
	SetupAPIRoutes(app, db)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
