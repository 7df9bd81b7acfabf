package models

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// ErrUnknownStepType is returned when a workflow step carries a type outside
// the closed StepType set.
var ErrUnknownStepType = errors.New("unknown workflow step type")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct-tag validation on any model.
func Validate(v any) error {
	return validate.Struct(v)
}
