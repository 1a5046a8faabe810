// Package validator wraps go-playground/validator with the form rules used
// across the app and turns field errors into user-facing messages.
package validator

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	upperRegex   = regexp.MustCompile(`[A-Z]`)
	digitRegex   = regexp.MustCompile(`[0-9]`)
	specialRegex = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// Validator validates structs and reports every failure as a message.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("role", validateRole)
	_ = v.RegisterValidation("amount", validateAmount)
	return &Validator{validate: v}
}

// Struct validates s and returns one message per failed field. messages maps
// "Field" or "Field.tag" to the text shown; unknown failures get a generic
// message naming the field.
func (v *Validator) Struct(s any, messages map[string]string) []string {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{"Invalid input"}
	}

	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if msg, ok := messages[fe.StructField()+"."+fe.Tag()]; ok {
			out = append(out, msg)
			continue
		}
		if msg, ok := messages[fe.StructField()]; ok {
			out = append(out, msg)
			continue
		}
		out = append(out, "Invalid value for "+strings.ToLower(fe.StructField()))
	}
	return out
}

// Var reports whether a single value passes tag.
func (v *Validator) Var(field any, tag string) bool {
	return v.validate.Var(field, tag) == nil
}

// PasswordStrength returns every rule the password breaks.
func PasswordStrength(password string) []string {
	var errs []string
	if len(password) < 8 {
		errs = append(errs, "Password must be at least 8 characters long")
	}
	if !upperRegex.MatchString(password) {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !digitRegex.MatchString(password) {
		errs = append(errs, "Password must contain at least one number")
	}
	if !specialRegex.MatchString(password) {
		errs = append(errs, "Password must contain at least one special character")
	}
	return errs
}

// validateAmount accepts a decimal string inside [0, param], e.g. amount=10000.
func validateAmount(fl validator.FieldLevel) bool {
	limit, err := strconv.ParseFloat(fl.Param(), 64)
	if err != nil {
		return false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
	if err != nil {
		return false
	}
	return n >= 0 && n <= limit
}

func validateRole(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "admin", "policeman":
		return true
	}
	return false
}
