package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"quill/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names so field errors line up with the request body
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "username", IsUsername)
	mustRegister(v, "password", IsPassword)
	mustRegister(v, "notblank", func(s string) bool { return !IsBlank(s) })
	return v
}

func mustRegister(v *validator.Validate, tag string, rule func(string) bool) {
	fn := func(fl validator.FieldLevel) bool { return rule(fl.Field().String()) }
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %q validation: %v", tag, err))
	}
}

// Struct validates s by its `validate` tags. Failures are returned as a
// VALIDATION_ERROR carrying one message per offending json field.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.NewValidationError(err.Error())
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fieldPath(fe)
		if _, seen := fields[name]; !seen {
			fields[name] = message(fe)
		}
	}
	return models.NewFieldValidationError(fields)
}

// fieldPath drops the top-level struct name from the namespace, so
// "CreatePostRequest.tags[2]" becomes "tags[2]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min":
		if isList {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if isList {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "username":
		return fmt.Sprintf("must be %d-%d letters, numbers, underscores or dashes", MinUsernameLength, MaxUsernameLength)
	case "password":
		return fmt.Sprintf("must be at least %d characters with a letter and a digit", MinPasswordLength)
	default:
		return "is invalid"
	}
}
