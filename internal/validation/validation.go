package validation

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var errEngine = errors.New("gin validator engine is not *validator.Validate")

func Register(v *validator.Validate, tag string, fn validator.Func) error {
	return v.RegisterValidation(tag, fn)
}

func RegisterAlias(v *validator.Validate, tag string, alias string) {
	v.RegisterAlias(tag, alias)
}

// ginEngine is the validator behind gin's `binding` struct tags.
func ginEngine() (*validator.Validate, error) {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil, errEngine
	}
	return v, nil
}

// MustRegisterGin adds the custom tags to gin binding or panics.
func MustRegisterGin() {
	v, err := ginEngine()
	if err != nil {
		panic(err)
	}
	if err := registerCustomTags(v); err != nil {
		panic(err)
	}
}
