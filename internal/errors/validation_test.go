package errors

import (
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("tips_quota", "must be between 0 and 20", 42)

	if err.Field != "tips_quota" {
		t.Errorf("Expected field to be 'tips_quota', got '%s'", err.Field)
	}

	if err.Message != "must be between 0 and 20" {
		t.Errorf("Expected message to be 'must be between 0 and 20', got '%s'", err.Message)
	}

	if err.Value != 42 {
		t.Errorf("Expected value to be 42, got '%v'", err.Value)
	}

	expected := "validation error on field 'tips_quota': must be between 0 and 20"
	if err.Error() != expected {
		t.Errorf("Expected error message to be '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Expected 'validation failed' for empty errors, got '%s'", errs.Error())
	}

	errs = append(errs, *NewValidationError("title", "is required", nil))
	expected := "validation failed: title is required"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for single error, got '%s'", expected, errs.Error())
	}

	errs = append(errs, *NewValidationError("duration", "must be at least 5", nil))
	expected = "validation failed: 2 field errors"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for multiple errors, got '%s'", expected, errs.Error())
	}
}

func TestNewValidationErrorWithRule(t *testing.T) {
	err := NewValidationErrorWithRule("phase", "must be hint or explanation", "assist_phase", "review")

	if err.Rule != "assist_phase" {
		t.Errorf("Expected rule to be 'assist_phase', got '%s'", err.Rule)
	}

	if err.Field != "phase" {
		t.Errorf("Expected field to be 'phase', got '%s'", err.Field)
	}
}
