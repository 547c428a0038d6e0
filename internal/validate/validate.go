// Package validate wraps go-playground/validator with JSON field naming and
// flattens its errors into path/message issues suitable for API responses.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Issue describes one failed constraint on a single field.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// New returns a validator that reports fields by their JSON names.
func New() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		if name == "" {
			return field.Name
		}

		return name
	})

	return validate
}

// Issues converts a validation error into field issues. Errors that are not
// validator.ValidationErrors become a single issue with an empty path.
func Issues(err error) []Issue {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []Issue{{Path: "", Message: err.Error()}}
	}

	issues := make([]Issue, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		issues = append(issues, Issue{
			Path:    fieldErr.Field(),
			Message: describe(fieldErr),
		})
	}

	return issues
}

// Summary joins issues the way they are logged: 'path': message; ...
func Summary(issues []Issue) string {
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		if issue.Path == "" {
			parts = append(parts, issue.Message)

			continue
		}

		parts = append(parts, "'"+issue.Path+"': "+issue.Message)
	}

	return strings.Join(parts, "; ")
}

func describe(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fieldErr.Param()), ", ")
	case "gt":
		return "must be greater than " + fieldErr.Param()
	case "datetime":
		return "must be an ISO-8601 datetime"
	case "url":
		return "must be a valid URL"
	default:
		return "invalid value"
	}
}
