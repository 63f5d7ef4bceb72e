// Package validation checks request structs against their validate tags
// and reports the first failure as a validation error.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"habitSocialAPI/internal/apperr"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		// report fields by their wire name
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return instance
}

// Struct validates v. Failures come back as apperr validation errors whose
// message names the offending field.
func Struct(v any) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return apperr.Wrap(apperr.KindValidation, apperr.CodeValidation, "invalid request", err)
	}
	return apperr.Validation(message(fields[0]))
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.Join(strings.Fields(fe.Param()), ", "))
	default:
		return field + " is invalid"
	}
}
