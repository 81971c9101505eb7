// Package validator wraps go-playground/validator behind a single Validate
// function with standardized error formatting, so callers can validate tagged
// structs declaratively and detect failures with errors.Is.
package validator

import (
	"errors"
	"fmt"

	gvalidator "github.com/go-playground/validator/v10"
)

// ErrValidationFailed is the root of every multi-error chain returned when a
// struct fails validation.
var ErrValidationFailed = errors.New("struct validation failed")

// validate is the singleton validator instance, created on package load.
var validate *gvalidator.Validate

// errStringFormat renders one field failure, e.g.
// "'Collection': value '' does not meet the requirements for the 'required' validation".
const errStringFormat = "'%s': value '%v' does not meet the requirements for the '%s' validation"

func init() {
	validate = gvalidator.New(gvalidator.WithRequiredStructEnabled())
}

// formatError converts raw validator errors into a joined error chain rooted
// at ErrValidationFailed. Non-validation errors pass through unchanged.
func formatError(err error) error {
	var validationErrors gvalidator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := []error{ErrValidationFailed}
	for _, validationErr := range validationErrors {
		errs = append(errs, fmt.Errorf(errStringFormat,
			validationErr.Field(),
			validationErr.Value(),
			validationErr.Tag(),
		))
	}

	return errors.Join(errs...)
}

// Validate checks the given struct against its `validate` tags. It returns
// nil on success, or a combined error including ErrValidationFailed and one
// formatted message per failing field.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatError(err)
	}

	return nil
}
