package utils

import (
	"reflect"
	"strings"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/go-playground/validator/v10"
)

// Custom validation functions

func ValidateQuestionType(fl validator.FieldLevel) bool {
	validTypes := []models.QuestionType{
		models.SingleChoice,
		models.ReadingPassage,
		models.DragDropSingle,
		models.DragDropDual,
		models.FillBlanksSeparate,
		models.FillBlanksShared,
		models.MatchingList,
		models.LongResponse,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func ValidateUserRole(fl validator.FieldLevel) bool {
	validRoles := []models.UserRole{
		models.RoleStudent,
		models.RoleTeacher,
		models.RoleProctor,
		models.RoleAdmin,
	}

	value := fl.Field().String()
	for _, validRole := range validRoles {
		if string(validRole) == value {
			return true
		}
	}
	return false
}

func ValidateAssistPhase(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == string(models.PhaseHint) || value == string(models.PhaseExplanation)
}

func ValidateIntegrityEventType(fl validator.FieldLevel) bool {
	validTypes := []models.IntegrityEventType{
		models.EventFocusLoss,
		models.EventTabSwitch,
		models.EventWindowBlur,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

// RegisterCustomValidators registers all custom validators
func RegisterCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", ValidateQuestionType)
	validate.RegisterValidation("user_role", ValidateUserRole)
	validate.RegisterValidation("assist_phase", ValidateAssistPhase)
	validate.RegisterValidation("integrity_event_type", ValidateIntegrityEventType)

	// Register custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
