package utils

import (
	"strings"
	"testing"
)

func TestValidateStruct(t *testing.T) {
	type request struct {
		Title  string `validate:"required,max=10"`
		Status string `validate:"omitempty,oneof=todo in_progress done"`
	}

	if err := ValidateStruct(request{Title: "ok", Status: "done"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	err := ValidateStruct(request{})
	if err == nil {
		t.Fatal("expected error for missing title")
	}
	if !strings.Contains(err.Error(), "title is required") {
		t.Errorf("unexpected message: %v", err)
	}

	err = ValidateStruct(request{Title: "ok", Status: "archived"})
	if err == nil {
		t.Fatal("expected error for unknown status")
	}
	if !strings.Contains(err.Error(), "status must be one of") {
		t.Errorf("unexpected message: %v", err)
	}
}
