package api

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their json names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

func (v *Validator) FormatValidationErrors(err error) map[string]string {
	errs := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errs
	}

	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			errs[field] = field + " is required"
		case "uuid":
			errs[field] = field + " must be a valid UUID"
		case "min":
			errs[field] = field + " must contain at least " + e.Param() + " item(s)"
		case "max":
			errs[field] = field + " must be at most " + e.Param() + " characters"
		default:
			errs[field] = field + " is invalid"
		}
	}

	return errs
}
