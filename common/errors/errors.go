package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error independently of its HTTP code,
// so callers can tell a state conflict apart from a resource shortfall
// even when both map to the same status.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInsufficient Kind = "insufficient_resources"
	KindPersistence  Kind = "persistence"
	KindInternal     Kind = "internal"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewValidation reports malformed or missing input, caught before any
// state mutation.
func NewValidation(message string) *Error {
	return New(http.StatusBadRequest, KindValidation, message, nil)
}

// NewNotFound reports a referenced prediction, request, or agency that
// does not exist.
func NewNotFound(message string) *Error {
	return New(http.StatusNotFound, KindNotFound, message, nil)
}

// NewConflict reports a request that is not in the expected state for
// the attempted transition.
func NewConflict(message string) *Error {
	return New(http.StatusConflict, KindConflict, message, nil)
}

// NewInsufficientResources reports a failed allocation attempt. The
// message carries the shortfall reason, including the lock it caused.
func NewInsufficientResources(reason string) *Error {
	return New(http.StatusConflict, KindInsufficient, reason, nil)
}

// NewPersistence reports an unavailable or failing store. Never
// reported to clients as a resource shortfall.
func NewPersistence(message string, err error) *Error {
	return New(http.StatusServiceUnavailable, KindPersistence, message, err)
}

// Common error types
var (
	ErrBadRequest     = New(http.StatusBadRequest, KindValidation, "Bad request", nil)
	ErrUnauthorized   = New(http.StatusUnauthorized, KindValidation, "Unauthorized", nil)
	ErrForbidden      = New(http.StatusForbidden, KindValidation, "Forbidden", nil)
	ErrNotFound       = New(http.StatusNotFound, KindNotFound, "Not found", nil)
	ErrInternalServer = New(http.StatusInternalServerError, KindInternal, "Internal server error", nil)
)

// IsKind reports whether err is an application Error of the given kind.
func IsKind(err error, kind Kind) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == kind
	}
	return false
}

func IsNotFound(err error) bool     { return IsKind(err, KindNotFound) }
func IsConflict(err error) bool     { return IsKind(err, KindConflict) }
func IsInsufficient(err error) bool { return IsKind(err, KindInsufficient) }

// Respond writes err to the client. Application errors keep their code
// and message; anything else becomes a generic 500 without leaking
// internals.
func Respond(c *gin.Context, err error) {
	if e, ok := err.(*Error); ok {
		c.JSON(e.Code, e)
		return
	}
	c.JSON(http.StatusInternalServerError, ErrInternalServer)
}

// ErrorMiddleware maps errors attached to the gin context.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			Respond(c, c.Errors.Last().Err)
			c.Abort()
		}
	}
}
