package services

import (
	"github.com/go-playground/validator/v10"

	apperrors "propstake/internal/errors"
)

// validate checks the struct tags on service input structs.
var validate = validator.New()

// checkInput runs struct validation and maps violations onto the
// VALIDATION_ERROR category.
func checkInput(input any) error {
	if err := validate.Struct(input); err != nil {
		return apperrors.WithMessage(apperrors.ErrValidation, err.Error())
	}
	return nil
}
