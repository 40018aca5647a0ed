package users

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"carelink/backend/internal/apperr"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// passwordRules also bounds the length bcrypt accepts. Multi-byte passwords can
// still exceed 72 bytes, see hashError.
const passwordRules = "required,min=6,max=72"

// validate reads the same `binding` tags gin checks, so a SignupInput bound by
// the handler and one built in code go through identical rules.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validationError turns the first validator failure into a client-facing message.
// field names the value when err comes from validate.Var.
func validationError(field string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Wrap(apperr.KindInternal, "validate input", err)
	}
	fe := verrs[0]
	if fe.Field() != "" {
		field = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return apperr.Validation(field + " is required")
	case "email":
		return apperr.Validation("invalid email")
	case "min":
		return apperr.Validation(fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
	case "max":
		return apperr.Validation(fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	case "oneof":
		return apperr.Validation(fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
	default:
		return apperr.Validation(field + " is invalid")
	}
}

func hashError(err error) error {
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return apperr.Validation("password must be at most 72 bytes")
	}
	return apperr.Wrap(apperr.KindInternal, "hash password", err)
}
