// Package schema validates decoded request bodies against their struct tags.
package schema

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "clinical-notes-service/internal/errors"
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator checks structs tagged with `validate:"..."`.
type Validator struct {
	once     sync.Once
	validate *validator.Validate
}

// New creates a validator.
func New() *Validator {
	return &Validator{}
}

func (v *Validator) engine() *validator.Validate {
	v.once.Do(func() {
		v.validate = validator.New(validator.WithRequiredStructEnabled())
		// Report json names so errors match the wire format.
		v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return v.validate
}

// Validate returns nil or a client input error listing every invalid field.
func (v *Validator) Validate(s any) error {
	err := v.engine().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.ClientInput(apperrors.CodeInvalidInput, "validation failed")
	}

	fields := make([]FieldError, 0, len(verrs))
	messages := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg := describe(e)
		fields = append(fields, FieldError{Field: e.Field(), Message: msg})
		messages = append(messages, e.Field()+": "+msg)
	}

	return apperrors.ClientInput(apperrors.CodeInvalidInput, strings.Join(messages, "; ")).
		WithDetail("fields", fields)
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.String {
			return "must be at least " + e.Param() + " characters"
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "must be at most " + e.Param() + " characters"
		}
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}
