package utils

import (
	apperrors "github.com/SAP-F-2025/quiz-engine/internal/errors"
	"github.com/go-playground/validator/v10"
)

// Validator wraps the struct validator with the engine's custom rules
// registered.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	RegisterCustomValidators(v)
	return &Validator{validate: v}
}

// Validate runs struct-tag validation and converts failures into the
// API-friendly error collection.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if ve := apperrors.ToValidationErrors(err); len(ve) > 0 {
			return ve
		}
		return err
	}
	return nil
}
