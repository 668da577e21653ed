package utils

import (
	"testing"

	"gorm.io/gorm"

	"projectpilot/config"
	"projectpilot/models"
)

func TestJWTRoundTrip(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	user := &models.User{
		Model:    gorm.Model{ID: 42},
		MaxID:    "123456789",
		FullName: "Test User",
		IsActive: true,
	}

	access, refresh, err := GenerateJWTToken(user)
	if err != nil {
		t.Fatalf("GenerateJWTToken: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected non-empty tokens")
	}
	if access == refresh {
		t.Error("access and refresh tokens must differ")
	}

	claims, err := ParseJWTToken(access)
	if err != nil {
		t.Fatalf("ParseJWTToken: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("expected UserID 42, got %d", claims.UserID)
	}
	if claims.MaxID != "123456789" {
		t.Errorf("expected MaxID 123456789, got %s", claims.MaxID)
	}
}

func TestParseJWTTokenRejectsWrongSecret(t *testing.T) {
	config.AppConfig.JWTSecret = "secret-one"
	user := &models.User{Model: gorm.Model{ID: 1}, MaxID: "1", FullName: "U", IsActive: true}

	access, _, err := GenerateJWTToken(user)
	if err != nil {
		t.Fatalf("GenerateJWTToken: %v", err)
	}

	config.AppConfig.JWTSecret = "secret-two"
	if _, err := ParseJWTToken(access); err == nil {
		t.Fatal("expected parse failure with a different secret")
	}
}

func TestParseJWTTokenRejectsGarbage(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	if _, err := ParseJWTToken("not-a-token"); err == nil {
		t.Fatal("expected parse failure for malformed token")
	}
}
