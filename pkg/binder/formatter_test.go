package binder

import (
	"reflect"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/stretchr/testify/assert"
)

type mockFieldError struct {
	tag   string
	field string
	param string
	kind  reflect.Kind
}

func (e *mockFieldError) Error() string           { return "Mock Field Error" }
func (e *mockFieldError) Tag() string             { return e.tag }
func (e *mockFieldError) ActualTag() string       { return e.tag }
func (e *mockFieldError) Namespace() string       { return "" }
func (e *mockFieldError) StructNamespace() string { return "" }
func (e *mockFieldError) Field() string           { return e.field }
func (e *mockFieldError) StructField() string     { return "" }
func (e *mockFieldError) Value() interface{}      { return "" }
func (e *mockFieldError) Param() string           { return e.param }
func (e *mockFieldError) Kind() reflect.Kind {
	if e.kind == 0 {
		return reflect.String
	}
	return e.kind
}
func (e *mockFieldError) Type() reflect.Type               { return reflect.TypeOf("") }
func (e *mockFieldError) Translate(_ ut.Translator) string { return "" }

func TestFormatValidationError(t *testing.T) {
	cases := []struct {
		name  string
		field string
		tag   string
		param string
		kind  reflect.Kind
		msg   string
	}{
		{"email", "email", email, "", 0, `"email" is not a valid email`},
		{"isbn", "isbn", isbn, "", 0, `"isbn" is not a valid ISBN-10 or ISBN-13`},
		{"string max", "title", mx, "300", reflect.String, `"title" length must be less than or equal to 300 characters`},
		{"string max singular", "check", mx, "1", reflect.String, `"check" length must be less than or equal to 1 character`},
		{"string min", "password", mn, "8", reflect.String, `"password" length must be greater than or equal to 8 characters`},
		{"int min", "book_id", mn, "1", reflect.Int, `"book_id" must be greater than or equal to 1`},
		{"int64 min", "member_id", mn, "1", reflect.Int64, `"member_id" must be greater than or equal to 1`},
		{"int max", "limit", mx, "100", reflect.Int, `"limit" must be less than or equal to 100`},
		{"uint max", "page", mx, "9", reflect.Uint, `"page" must be less than or equal to 9`},
		{"float min", "fine", mn, "0", reflect.Float64, `"fine" must be greater than or equal to 0`},
		{"slice max", "category_ids", mx, "50", reflect.Slice, `"category_ids" length must be less than or equal to 50 elements`},
		{"slice min singular", "category_ids", mn, "1", reflect.Slice, `"category_ids" length must be greater than or equal to 1 element`},
		{"oneof", "status", oneof, "active overdue returned", 0, `"status" must be one of the following: "active", "overdue", "returned"`},
		{"required", "book_id", required, "", 0, `"book_id" is required`},
		{"sortorder", "sort", sortorder, "", 0, `"sort" must be a field name optionally followed by :asc or :desc`},
		{"unknown tag", "title", "alphanum", "", 0, `"title" failed the "alphanum" check`},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			err := mockFieldError{tag: tt.tag, field: tt.field, param: tt.param, kind: tt.kind}
			assert.Equal(t, tt.msg, formatValidationError(&err))
		})
	}
}
