package validation

import (
	"github.com/go-playground/validator/v10"

	"github.com/imtaco/rtms-bridge/internal/errors"
)

// Error describes one failed field rule in a response body.
type Error struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// FormatValidationError flattens the validator.ValidationErrors found in
// err's chain. Other errors yield nil.
func FormatValidationError(err error) []Error {
	fieldErrs, ok := errors.As[validator.ValidationErrors](err)
	if !ok {
		return nil
	}
	out := make([]Error, 0, len(*fieldErrs))
	for _, fe := range *fieldErrs {
		out = append(out, Error{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fe.Error(),
		})
	}
	return out
}
