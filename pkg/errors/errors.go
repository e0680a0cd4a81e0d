// Package errors carries the API error taxonomy: every failure a handler can
// surface has a Code, and each Code knows its HTTP status and how much of the
// error may be shown to clients.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	// checkout
	CodeEmptyCart         Code = "EMPTY_CART"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeOrderItemsFailed  Code = "ORDER_ITEMS_FAILED"
	CodeStockSyncFailed   Code = "STOCK_SYNC_FAILED"
)

type exposure uint8

const (
	// exposeMessage sends the error's own message instead of the generic one.
	exposeMessage exposure = 1 << iota
	exposeDetails
	retryable
)

// Metadata describes how a Code is presented over HTTP.
type Metadata struct {
	HTTPStatus    int
	PublicMessage string
	flags         exposure
}

func (m Metadata) Retryable() bool      { return m.flags&retryable != 0 }
func (m Metadata) DetailsAllowed() bool { return m.flags&exposeDetails != 0 }
func (m Metadata) MessageAllowed() bool { return m.flags&exposeMessage != 0 }

var catalog = map[Code]Metadata{
	CodeValidation:        {http.StatusBadRequest, "validation failed", exposeMessage | exposeDetails},
	CodeUnauthorized:      {http.StatusUnauthorized, "authentication required", exposeMessage},
	CodeForbidden:         {http.StatusForbidden, "access denied", exposeMessage},
	CodeNotFound:          {http.StatusNotFound, "resource not found", exposeMessage},
	CodeConflict:          {http.StatusConflict, "conflict detected", exposeMessage},
	CodeIdempotency:       {http.StatusConflict, "idempotency key reused", exposeMessage | exposeDetails},
	CodeRateLimit:         {http.StatusTooManyRequests, "rate limit exceeded", exposeMessage},
	CodeEmptyCart:         {http.StatusBadRequest, "cart is empty", exposeMessage},
	CodeInsufficientStock: {http.StatusBadRequest, "insufficient stock", exposeMessage | exposeDetails},
	CodeOrderItemsFailed:  {http.StatusInternalServerError, "failed to create order items", retryable},
	CodeStockSyncFailed:   {http.StatusInternalServerError, "failed to update product stock", 0},
	CodeInternal:          {http.StatusInternalServerError, "internal server error", retryable},
	CodeDependency:        {http.StatusServiceUnavailable, "dependency unavailable", retryable | exposeDetails},
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if meta, ok := catalog[code]; ok {
		return meta
	}
	return catalog[CodeInternal]
}

// Error is a coded error. Message is written for clients when the code allows
// it; the wrapped cause is only ever logged.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code to err. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// PublicMessage is what a client may read about e.
func (e *Error) PublicMessage() string {
	meta := MetadataFor(e.Code())
	if meta.MessageAllowed() && e.Message() != "" {
		return e.message
	}
	return meta.PublicMessage
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether err carries a typed error with the given code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// As finds the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
