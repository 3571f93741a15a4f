package textures

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError holds messages per Upload field name
type ValidationError struct {
	Errors map[string][]string
}

func (e *ValidationError) Error() string {
	return "The texture is invalid and cannot be persisted"
}

func mapValidationErrorsToCommonError(err validator.ValidationErrors) *ValidationError {
	resultErr := &ValidationError{make(map[string][]string)}
	for _, e := range err {
		resultErr.Errors[e.Field()] = []string{formatValidationErr(e)}
	}

	return resultErr
}

// Only a handful of tags is used, so the translations of the validator lib aren't worth it
func formatValidationErr(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is a required field", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be a maximum of %s in length", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", err.Field(), err.Param())
	default:
		return fmt.Sprintf(`Field validation for "%s" failed on the "%s" tag`, err.Field(), err.Tag())
	}
}
