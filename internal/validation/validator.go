package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"scholarhub/internal/models"
	"scholarhub/internal/workflow"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return ValidatePassword(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return workflow.Role(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("theme", func(fl validator.FieldLevel) bool {
			t := fl.Field().String()
			return t == models.ThemeLight || t == models.ThemeDark
		})
		validate = v
	})
	return validate
}

// FieldErrors maps a JSON field name to the rule it failed.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return strings.Join(parts, "; ")
}

// Struct checks v against its `validate` tags. Failures come back as a
// VALIDATION_ERROR AppError whose details list each failing field.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return models.NewValidationError("Invalid input")
	}

	fields := make(FieldErrors, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	appErr := models.NewValidationError("Validation failed")
	appErr.Err = fields
	return appErr
}

// Fields extracts the per-field failures from an error returned by Struct.
func Fields(err error) FieldErrors {
	var fields FieldErrors
	if errors.As(err, &fields) {
		return fields
	}
	return nil
}
