package errcodes

import (
	"fmt"
	"net/http"
)

type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.HTTPCode = err.HTTPCode
	te.Message = err.Message
	te.Code = err.Code
	return true
}

// Is matches on Code alone so callers can compare against a constructor's
// result without caring about the resource named in the message.
func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Code == err.Code
}

// Unauthorized returns a 401 error.
func Unauthorized(msg string) error {
	return &Error{
		http.StatusUnauthorized,
		msg,
		"unauthorized",
	}
}

// Forbidden returns a 403 error with a message indicating the action is
// forbidden.
func Forbidden(action string) error {
	return &Error{
		http.StatusForbidden,
		action + " is not allowed.",
		"forbidden",
	}
}

// PasswordResetRequired is returned to users who must change their password
// before doing anything else.
func PasswordResetRequired() error {
	return &Error{
		http.StatusForbidden,
		"Password reset required.",
		"password_reset_required",
	}
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		http.StatusNotFound,
		resource + " not found.",
		"not_found",
	}
}

// Conflict returns a 409 error for writes that collide with existing data.
func Conflict(msg string) error {
	return &Error{
		http.StatusConflict,
		msg,
		"conflict",
	}
}

// BookUnavailable is returned when borrowing a book that already has an open
// loan.
func BookUnavailable(bookID int) error {
	return &Error{
		http.StatusConflict,
		fmt.Sprintf("Book %d is not available.", bookID),
		"book_unavailable",
	}
}

// AlreadyReturned is returned when returning a loan a second time.
func AlreadyReturned(loanID int) error {
	return &Error{
		http.StatusConflict,
		fmt.Sprintf("Loan %d has already been returned.", loanID),
		"already_returned",
	}
}

func TooManyRequests() error {
	return &Error{
		http.StatusTooManyRequests,
		"Too many requests. Try again later.",
		"too_many_requests",
	}
}

func UnsupportedMediaType() error {
	return &Error{
		http.StatusUnsupportedMediaType,
		"Unsupported Media Type",
		"unsupported_media_type",
	}
}

func UnknownParameter(param string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("Unknown Parameter %q", param),
		"unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_type_error",
	}
}

func ValidationError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_error",
	}
}

func MalformedPayload() error {
	return &Error{
		http.StatusBadRequest,
		"Malformed Payload",
		"malformed_payload",
	}
}

func EmptyRequestBody() error {
	return &Error{
		http.StatusBadRequest,
		"Request body can't be empty.",
		"empty_request_body",
	}
}
