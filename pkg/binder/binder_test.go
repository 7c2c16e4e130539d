package binder

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type params struct {
	Hello string `json:"hello" mod:"trim" validate:"max=9"`
	Omit  string `json:"-"`
}

var (
	goodJSON             = `{"hello":" world "}`
	unknownFieldsErrJSON = `{"hello":"world","foo":"bar"}`
	typeErrJSON          = `{"hello":123}`
	validationErrJSON    = `{"hello":"0123456789"}`
)

func TestNew(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)
	assert.NotNil(t, b)

	t.Run("only allows application/json and application/x-www-form-urlencoded", func(tt *testing.T) {
		c := newContext(goodJSON, echo.MIMEApplicationXML)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "Unsupported Media Type")
	})

	t.Run("disallows unknown fields", func(tt *testing.T) {
		c := newContext(unknownFieldsErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `Unknown Parameter "foo"`)
	})

	t.Run("returns a good message for type errors", func(tt *testing.T) {
		c := newContext(typeErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `"hello" should be of type string`)
	})

	t.Run("use mod tag to modify params", func(tt *testing.T) {
		c := newContext(goodJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		require.NoError(tt, err)
		assert.Equal(tt, "world", p.Hello)
	})

	t.Run("use validate tag to validate params", func(tt *testing.T) {
		c := newContext(validationErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "length must be less than or equal to 9 characters")
	})
}

type bookParams struct {
	Title string  `json:"title" validate:"required"`
	ISBN  *string `json:"isbn" mod:"isbn" validate:"omitempty,isbn_or_empty"`
}

type listParams struct {
	Limit int    `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=50"`
	Sort  string `query:"sort" json:"sort,omitempty" validate:"sortorder"`
}

func TestBind_ISBN(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	t.Run("accepts ISBN-13", func(tt *testing.T) {
		p := bookParams{}
		err := b.Bind(&p, newContext(`{"title":"Dune","isbn":"9780441172719"}`, echo.MIMEApplicationJSON))
		require.NoError(tt, err)
		require.NotNil(tt, p.ISBN)
	})

	t.Run("strips separators before validating", func(tt *testing.T) {
		p := bookParams{}
		err := b.Bind(&p, newContext(`{"title":"Dune","isbn":"0-441-17271-7"}`, echo.MIMEApplicationJSON))
		require.NoError(tt, err)
		require.NotNil(tt, p.ISBN)
		assert.Equal(tt, "0441172717", *p.ISBN)
	})

	t.Run("accepts a missing ISBN", func(tt *testing.T) {
		p := bookParams{}
		err := b.Bind(&p, newContext(`{"title":"Dune"}`, echo.MIMEApplicationJSON))
		require.NoError(tt, err)
		assert.Nil(tt, p.ISBN)
	})

	t.Run("accepts an explicit empty ISBN", func(tt *testing.T) {
		p := bookParams{}
		err := b.Bind(&p, newContext(`{"title":"Dune","isbn":""}`, echo.MIMEApplicationJSON))
		require.NoError(tt, err)
		require.NotNil(tt, p.ISBN)
		assert.Empty(tt, *p.ISBN)
	})

	t.Run("rejects garbage", func(tt *testing.T) {
		p := bookParams{}
		err := b.Bind(&p, newContext(`{"title":"Dune","isbn":"12345"}`, echo.MIMEApplicationJSON))
		require.Error(tt, err)
		assert.Contains(tt, err.Error(), "not a valid ISBN")
	})
}

func TestBind_Query(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	t.Run("applies defaults", func(tt *testing.T) {
		p := listParams{}
		err := b.Bind(&p, newQueryContext("/"))
		require.NoError(tt, err)
		assert.Equal(tt, 24, p.Limit)
	})

	t.Run("validates sort order", func(tt *testing.T) {
		p := listParams{}
		err := b.Bind(&p, newQueryContext("/?sort=title:sideways"))
		require.Error(tt, err)
		assert.Contains(tt, err.Error(), `"sort"`)
	})

	t.Run("rejects non-numeric limit", func(tt *testing.T) {
		p := listParams{}
		err := b.Bind(&p, newQueryContext("/?limit=abc"))
		require.Error(tt, err)
		assert.Contains(tt, err.Error(), `"limit" should be of type int`)
	})
}

func newQueryContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(echo.GET, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func newContext(payload, mime string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(echo.POST, "/", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, mime)
	rr := httptest.NewRecorder()
	return e.NewContext(req, rr)
}

func TestNormalizeISBN(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "9780441172719", NormalizeISBN(" 978-0-441-17271-9 "))
	assert.Equal(t, "080442957X", NormalizeISBN("0 8044 2957 x"))
}
