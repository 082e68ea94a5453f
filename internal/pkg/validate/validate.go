package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation wraps every failure returned by Struct so handlers can map it to 400.
var ErrValidation = errors.New("validation failed")

// v is the package-level singleton validator. Custom tags must be
// registered before the first call to Struct.
var v = validator.New()

// RegisterPhone binds the `phone` tag to isValid.
func RegisterPhone(isValid func(string) bool) error {
	return v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return isValid(fl.Field().String())
	})
}

// Struct validates the given struct using its validate tags.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
	}
	return nil
}
