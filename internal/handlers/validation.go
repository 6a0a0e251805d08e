package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// bindingErrorMessage turns gin binding failures into a client-friendly
// message, unpacking field-level validation errors where available.
func bindingErrorMessage(err error) string {
	if err == nil {
		return "invalid payload"
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		parts := make([]string, 0, len(fieldErrors))
		for _, fe := range fieldErrors {
			switch fe.Tag() {
			case "required":
				parts = append(parts, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
			case "gt":
				parts = append(parts, fmt.Sprintf("%s must be greater than %s", strings.ToLower(fe.Field()), fe.Param()))
			default:
				parts = append(parts, fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field())))
			}
		}
		return strings.Join(parts, "; ")
	}

	return "invalid payload"
}
