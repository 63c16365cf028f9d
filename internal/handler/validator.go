package handler

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	mobilePattern = regexp.MustCompile(`^01[016789][0-9]{7,8}$`)
	pinPattern    = regexp.MustCompile(`^[0-9]{4}$`)
)

// Validator adapts go-playground/validator to echo.Validator.  Field names
// in errors are the json names.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the custom tags:
//
//	mobile – Korean mobile number, 01X followed by 7 or 8 digits.
//	pin    – exactly four digits.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("pin", func(fl validator.FieldLevel) bool {
		return pinPattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i any) error {
	return cv.v.Struct(i)
}

// validationDetails flattens validator errors into {field: tag}.  Anything
// else yields nil.
func validationDetails(err error) map[string]any {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]any, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
