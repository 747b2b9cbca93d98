package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// formatValidationError converts validator errors into a readable message.
func formatValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}
	messages := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		messages = append(messages, fmt.Sprintf("field '%s' failed validation: %s (value: '%v')",
			e.Field(), e.Tag(), e.Value()))
	}
	return strings.Join(messages, "; ")
}
