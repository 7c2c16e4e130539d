package binder

import (
	"context"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/mold/v4"
	"github.com/go-playground/validator/v10"
)

var (
	sortOrderRE = regexp.MustCompile(`^[a-z_]+(:(asc|desc))?$`)

	isbnSeparators = strings.NewReplacer("-", "", " ", "")
)

// NormalizeISBN strips the separators people type into ISBNs and upper-cases
// the ISBN-10 check digit.
func NormalizeISBN(s string) string {
	return strings.ToUpper(isbnSeparators.Replace(strings.TrimSpace(s)))
}

// ISBNModifier is a mold modifier applying NormalizeISBN, registered as `mod:"isbn"`.
func ISBNModifier(_ context.Context, fl mold.FieldLevel) error {
	field := fl.Field()
	if field.Kind() != reflect.String || !field.CanSet() {
		return nil
	}
	field.SetString(NormalizeISBN(field.String()))
	return nil
}

// sortOrderValidator accepts list sort params such as "due_date:desc".
func sortOrderValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return sortOrderRE.MatchString(value)
}

// isbnOrEmptyValidator accepts a valid ISBN-10/13 or the empty string. Pointer
// fields use it so that an explicit "" can clear a stored ISBN, since
// `omitempty` only skips nil pointers.
func isbnOrEmptyValidator(validate *validator.Validate) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		return validate.Var(value, "isbn") == nil
	}
}
