package binder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/segmentio/encoding/json"
)

const (
	email       = "email"
	isbn        = "isbn"
	isbnOrEmpty = "isbn_or_empty"
	mx          = "max"
	mn          = "min"
	oneof       = "oneof"
	required    = "required"
	sortorder   = "sortorder"
)

func formatUnmarshalTypeError(err *json.UnmarshalTypeError) string {
	// Nested fields come through as "a.b."; only the dots need trimming.
	return fmt.Sprintf("%q should be of type %s", strings.Trim(err.Field, "."), err.Type)
}

func formatSchemaConversionError(err schema.ConversionError) string {
	return fmt.Sprintf("%q should be of type %s", err.Key, err.Type)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()

	switch err.Tag() {
	case email:
		return fmt.Sprintf("%q is not a valid email", field)
	case isbn, isbnOrEmpty:
		return fmt.Sprintf("%q is not a valid ISBN-10 or ISBN-13", field)
	case mx:
		return formatBound(field, err, "less")
	case mn:
		return formatBound(field, err, "greater")
	case oneof:
		valids := []string{}
		for _, p := range strings.Fields(err.Param()) {
			valids = append(valids, fmt.Sprintf("%q", p))
		}
		return fmt.Sprintf("%q must be one of the following: %s", field, strings.Join(valids, ", "))
	case required:
		return fmt.Sprintf("%q is required", field)
	case sortorder:
		return fmt.Sprintf("%q must be a field name optionally followed by :asc or :desc", field)
	default:
		return fmt.Sprintf("%q failed the %q check", field, err.Tag())
	}
}

// formatBound renders min/max failures. Numbers are compared by value, while
// strings and slices are compared by length.
func formatBound(field string, err validator.FieldError, direction string) string {
	//exhaustive:ignore
	switch err.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%q must be %s than or equal to %s", field, direction, err.Param())
	}

	unit := "character"
	if err.Kind() == reflect.Slice {
		unit = "element"
	}
	if err.Param() != "1" {
		unit += "s"
	}
	return fmt.Sprintf("%q length must be %s than or equal to %s %s", field, direction, err.Param(), unit)
}
