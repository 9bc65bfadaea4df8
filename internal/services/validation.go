package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"jimeng-image-generator/internal/models"
)

// ValidationError is a request that was rejected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks req against the parameter ranges the provider accepts.
func Validate(req models.GenerationRequest) error {
	req.Prompt = strings.TrimSpace(req.Prompt)

	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("failed to validate request: %w", err)
	}
	return validationMessage(fieldErrs[0])
}

func validationMessage(fe validator.FieldError) *ValidationError {
	field := strings.ToLower(fe.Field())
	switch field {
	case "prompt":
		if fe.Tag() == "required" {
			return &ValidationError{Field: field, Message: "prompt must not be empty"}
		}
		return &ValidationError{Field: field, Message: "prompt must be at most 500 characters"}
	case "size":
		return &ValidationError{Field: field, Message: "size must be one of " + strings.Join(models.ValidSizes, ", ")}
	case "count":
		return &ValidationError{Field: field, Message: "count must be between 1 and 10"}
	case "seed":
		return &ValidationError{Field: field, Message: "seed must be -1 or a non-negative integer"}
	case "scale":
		return &ValidationError{Field: field, Message: "scale must be between 0 and 1"}
	}
	return &ValidationError{Field: field, Message: fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())}
}
