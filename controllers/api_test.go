package controller_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"projectpilot/config"
	"projectpilot/routes"
)

// setupTestApp wires the full HTTP surface against an in-memory database.
func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	config.DB = db
	config.AppConfig.JWTSecret = "test-secret"
	config.AppConfig.SiteURL = "http://localhost:3000"
	config.AppConfig.RateLimitJoin = 1000
	config.AppConfig.Redis.Enabled = false

	app := fiber.New()
	routes.SetupRoutes(app, db)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	var decoded map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode body %q: %v", raw, err)
		}
	}
	return resp.StatusCode, decoded
}

// authToken registers (or logs in) a MAX identity and returns its JWT.
func authToken(t *testing.T, app *fiber.App, maxID, fullName string) string {
	t.Helper()

	status, body := doJSON(t, app, "POST", "/auth/token", "", map[string]interface{}{
		"max_id":    maxID,
		"full_name": fullName,
	})
	if status != fiber.StatusOK {
		t.Fatalf("auth token: status %d, body %v", status, body)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("no access token in %v", body)
	}
	return token
}

func TestAuthTokenFindOrCreate(t *testing.T) {
	app := setupTestApp(t)

	status, body := doJSON(t, app, "POST", "/auth/token", "", map[string]interface{}{
		"max_id":    "111",
		"full_name": "Alice",
	})
	if status != fiber.StatusOK {
		t.Fatalf("first login: status %d, body %v", status, body)
	}
	user := body["user"].(map[string]interface{})
	firstID := user["ID"]

	// Same MAX id logs into the same account.
	status, body = doJSON(t, app, "POST", "/auth/token", "", map[string]interface{}{
		"max_id":    "111",
		"full_name": "Alice Updated",
	})
	if status != fiber.StatusOK {
		t.Fatalf("second login: status %d", status)
	}
	user = body["user"].(map[string]interface{})
	if user["ID"] != firstID {
		t.Errorf("expected same user id, got %v and %v", firstID, user["ID"])
	}
	if user["full_name"] != "Alice Updated" {
		t.Errorf("expected refreshed full name, got %v", user["full_name"])
	}

	// Missing max_id is rejected.
	status, _ = doJSON(t, app, "POST", "/auth/token", "", map[string]interface{}{
		"full_name": "Nobody",
	})
	if status != fiber.StatusBadRequest {
		t.Errorf("expected 400 for missing max_id, got %d", status)
	}
}

func TestAuthMeRequiresToken(t *testing.T) {
	app := setupTestApp(t)

	status, _ := doJSON(t, app, "GET", "/auth/me", "", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	token := authToken(t, app, "222", "Bob")
	status, body := doJSON(t, app, "GET", "/auth/me", token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 with token, got %d", status)
	}
	if body["max_id"] != "222" {
		t.Errorf("expected max_id 222, got %v", body["max_id"])
	}
}

func TestProjectAndTaskLifecycle(t *testing.T) {
	app := setupTestApp(t)
	owner := authToken(t, app, "100", "Owner")

	// Create a project.
	status, project := doJSON(t, app, "POST", "/api/v1/projects/", owner, map[string]interface{}{
		"title": "Launch",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create project: status %d, body %v", status, project)
	}
	projectID := uint(project["ID"].(float64))
	hash := project["hash"].(string)
	if len(hash) != 12 {
		t.Fatalf("expected 12-char invite hash, got %q", hash)
	}

	// Create two tasks.
	status, taskA := doJSON(t, app, "POST", fmt.Sprintf("/api/v1/projects/%d/tasks", projectID), owner, map[string]interface{}{
		"title": "Design",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create task A: status %d, body %v", status, taskA)
	}
	status, taskB := doJSON(t, app, "POST", fmt.Sprintf("/api/v1/projects/%d/tasks", projectID), owner, map[string]interface{}{
		"title": "Build",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create task B: status %d, body %v", status, taskB)
	}
	idA := uint(taskA["ID"].(float64))
	idB := uint(taskB["ID"].(float64))

	// Build depends on Design.
	status, body := doJSON(t, app, "POST", fmt.Sprintf("/api/v1/tasks/%d/dependencies", idB), owner, map[string]interface{}{
		"depends_on_id": idA,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("add dependency: status %d, body %v", status, body)
	}

	// The reverse edge would be a cycle.
	status, body = doJSON(t, app, "POST", fmt.Sprintf("/api/v1/tasks/%d/dependencies", idA), owner, map[string]interface{}{
		"depends_on_id": idB,
	})
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409 for cycle, got %d: %v", status, body)
	}

	// Build cannot be done while Design is open.
	status, body = doJSON(t, app, "PUT", fmt.Sprintf("/api/v1/tasks/%d/status", idB), owner, map[string]interface{}{
		"status": "done",
	})
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409 for blocked completion, got %d: %v", status, body)
	}
	if body["blocking_task"] != "Design" {
		t.Errorf("expected blocking task Design, got %v", body["blocking_task"])
	}

	// Complete Design, then Build.
	status, _ = doJSON(t, app, "PUT", fmt.Sprintf("/api/v1/tasks/%d/status", idA), owner, map[string]interface{}{
		"status": "done",
	})
	if status != fiber.StatusOK {
		t.Fatalf("complete Design: status %d", status)
	}
	status, body = doJSON(t, app, "PUT", fmt.Sprintf("/api/v1/tasks/%d/status", idB), owner, map[string]interface{}{
		"status": "done",
	})
	if status != fiber.StatusOK {
		t.Fatalf("complete Build: status %d, body %v", status, body)
	}
	if body["completed_at"] == nil {
		t.Errorf("expected completed_at to be set")
	}
}

func TestJoinWorkflowOverHTTP(t *testing.T) {
	app := setupTestApp(t)
	owner := authToken(t, app, "100", "Owner")
	joiner := authToken(t, app, "200", "Joiner")

	status, project := doJSON(t, app, "POST", "/api/v1/projects/", owner, map[string]interface{}{
		"title":             "Private",
		"requires_approval": true,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create project: status %d", status)
	}
	projectID := uint(project["ID"].(float64))
	hash := project["hash"].(string)

	// Joining an approval-gated project queues a request.
	status, body := doJSON(t, app, "POST", "/api/v1/projects/join/"+hash, joiner, nil)
	if status != fiber.StatusAccepted {
		t.Fatalf("join: status %d, body %v", status, body)
	}
	if body["status"] != "pending_approval" {
		t.Errorf("expected pending_approval, got %v", body["status"])
	}

	// A second attempt conflicts while pending.
	status, _ = doJSON(t, app, "POST", "/api/v1/projects/join/"+hash, joiner, nil)
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409 for duplicate join, got %d", status)
	}

	// Joiner cannot see the request list.
	status, _ = doJSON(t, app, "GET", fmt.Sprintf("/api/v1/projects/%d/join-requests", projectID), joiner, nil)
	if status != fiber.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", status)
	}

	// Owner approves.
	status, body = doJSON(t, app, "GET", fmt.Sprintf("/api/v1/projects/%d/join-requests", projectID), owner, nil)
	if status != fiber.StatusOK {
		t.Fatalf("list requests: status %d", status)
	}
	requests := body["requests"].([]interface{})
	if len(requests) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(requests))
	}
	requestID := uint(requests[0].(map[string]interface{})["ID"].(float64))

	status, body = doJSON(t, app, "POST",
		fmt.Sprintf("/api/v1/projects/%d/join-requests/%d/approve", projectID, requestID), owner, nil)
	if status != fiber.StatusOK {
		t.Fatalf("approve: status %d, body %v", status, body)
	}
	if body["status"] != "approved" {
		t.Errorf("expected approved, got %v", body["status"])
	}

	// The new member can now read the project.
	status, _ = doJSON(t, app, "GET", fmt.Sprintf("/api/v1/projects/%d", projectID), joiner, nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected member access, got %d", status)
	}

	// The joiner got an approval notification.
	status, body = doJSON(t, app, "GET", "/api/v1/notifications/?unread=true", joiner, nil)
	if status != fiber.StatusOK {
		t.Fatalf("notifications: status %d", status)
	}
	if body["total"].(float64) < 1 {
		t.Errorf("expected at least one notification, got %v", body["total"])
	}
}

func TestInvalidInviteHashRejected(t *testing.T) {
	app := setupTestApp(t)
	user := authToken(t, app, "100", "User")

	status, _ := doJSON(t, app, "POST", "/api/v1/projects/join/NOT-A-HASH!!", user, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for malformed hash, got %d", status)
	}

	status, _ = doJSON(t, app, "POST", "/api/v1/projects/join/aaaaaaaaaaaa", user, nil)
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown hash, got %d", status)
	}
}
