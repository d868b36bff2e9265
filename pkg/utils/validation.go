package utils

import (
	"fmt"
	"reflect"
	"strings"

	"assessment-backend/domain/config"
	"assessment-backend/domain/core/valueobjects"
	"assessment-backend/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// subcomponent accepts "<block>-<index>" with index 1..6
	_ = v.RegisterValidation("subcomponent", func(fl validator.FieldLevel) bool {
		_, err := valueobjects.ParseSubcomponentID(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidateStruct validates a struct based on its validation tags and
// returns a validation AppError listing every failed field.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.NewValidationError(err.Error())
	}

	messages := make([]string, 0, len(validationErrors))
	fields := make(map[string]interface{}, len(validationErrors))
	for _, e := range validationErrors {
		msg := formatFieldError(e)
		messages = append(messages, msg)
		fields[fieldPath(e)] = msg
	}
	return errors.NewValidationError(strings.Join(messages, "; ")).WithDetails(fields)
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := fieldPath(e)

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if e.Kind() == reflect.Int {
			return fmt.Sprintf("%s must be at least %s", field, e.Param())
		}
		return fmt.Sprintf("%s must have at least %s items", field, e.Param())
	case "max":
		switch e.Kind() {
		case reflect.Int:
			return fmt.Sprintf("%s must be at most %s", field, e.Param())
		case reflect.String:
			return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
		default:
			return fmt.Sprintf("%s must have at most %s items", field, e.Param())
		}
	case "subcomponent":
		return fmt.Sprintf("%s must look like <block>-<index> with index 1-%d", field, config.SubcomponentsPerBlock)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
