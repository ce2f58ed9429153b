package validation

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct validates the tags of a struct with the shared validator.
func Struct(v any) error {
	return validate.Struct(v)
}
