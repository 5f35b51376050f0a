package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// New returns a validator that reports fields by their JSON/form names and
// knows the "username" tag.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return field.Name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Struct validates payload and converts failures into a 400 carrying one
// FieldError per invalid field.
func Struct(v *validator.Validate, payload interface{}, message string) error {
	err := v.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	return appErrors.Validation(message, Fields(verrs))
}

// Fields maps validator errors to field errors.
func Fields(verrs validator.ValidationErrors) []appErrors.FieldError {
	out := make([]appErrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, appErrors.FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "must be a valid email address"
	case "username":
		return "must be 3-30 characters of lowercase letters, digits or underscore"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "nefield":
		return fmt.Sprintf("must differ from %s", strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
