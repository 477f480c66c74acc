// Package validation checks request DTOs declared with `validate:"..."` tags.
//
// Failures come back as apperror validation errors naming the first offending
// field by its JSON name, so responses read "email: must be a valid e-mail
// address" rather than Go struct paths.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
)

// Validator wraps a configured validator.Validate. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the marketplace's custom rules registered:
//
//	entityid  the string is a well-formed record id
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("entityid", func(fl validator.FieldLevel) bool {
		_, err := xid.FromString(fl.Field().String())
		return err == nil
	})
	return &Validator{v: v}
}

// Struct validates s and reports the first failure.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validation: %w", err)
	}
	fe := verrs[0]
	return apperror.ValidationFailed(fe.Field(), message(fe))
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s: must be a valid e-mail address", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s: must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s: must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s: must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s: must be at most %s", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s: must be %s %s", field, map[string]string{"gte": "≥", "lte": "≤"}[fe.Tag()], fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s]", field, fe.Param())
	case "entityid":
		return fmt.Sprintf("This %v id is not valid.", fe.Value())
	case "url":
		return fmt.Sprintf("%s: must be a valid URL", field)
	default:
		return fmt.Sprintf("%s: failed %s validation", field, fe.Tag())
	}
}
