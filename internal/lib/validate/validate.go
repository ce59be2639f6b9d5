package validate

import (
	"unicode"

	"github.com/go-playground/validator/v10"

	"auth_gateway/internal/lib/password"
)

const minPasswordLength = 8

// New returns a validator with the project's custom tags registered:
//
//	password: 8..72 bytes, at least one letter and one digit.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails on an empty tag name.
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})

	return v
}

func StrongPassword(pass string) bool {
	if len(pass) < minPasswordLength || len(pass) > password.MaxLength {
		return false
	}

	var letter, digit bool
	for _, r := range pass {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	return letter && digit
}
