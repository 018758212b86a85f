package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/garnizeh/qaforum/pkg/models"
)

// ErrInvalid wraps every failure reported by this package.
var ErrInvalid = errors.New("invalid input")

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return CheckUsername(fl.Field().String()) == ""
	})
	_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.IsKnownRole(fl.Field().String())
	})
}

// CheckEmail accepts an empty string, which means no address on file.
func CheckEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if err := validate.Var(s, "email,max=254"); err != nil {
		return fmt.Errorf("%w: %q is not a valid email address", ErrInvalid, s)
	}
	return nil
}

// User checks the tagged fields of u and reports the first failing field.
func User(u models.User) error {
	err := validate.Struct(u)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "username":
			return fmt.Errorf("%w: %s", ErrInvalid, CheckUsername(u.Username))
		case "role":
			return fmt.Errorf("%w: unknown role %q", ErrInvalid, fe.Value())
		default:
			return fmt.Errorf("%w: %s failed %s", ErrInvalid, strings.ToLower(fe.Field()), fe.Tag())
		}
	}
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}
