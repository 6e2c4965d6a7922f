package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInsufficientStock   Code = "INSUFFICIENT_STOCK"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeCouponIneligible    Code = "COUPON_INELIGIBLE"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeIdempotency         Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit           Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal            Code = "INTERNAL_ERROR"
	CodeDependency          Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "authentication required",
	},
	CodeForbidden: {
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "access denied",
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		PublicMessage:  "resource not found",
		DetailsAllowed: true,
	},
	CodeInsufficientStock: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "insufficient stock",
		DetailsAllowed: true,
	},
	CodeInvalidTransition: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "status transition not allowed",
		DetailsAllowed: true,
	},
	CodeCouponIneligible: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "coupon not applicable",
		DetailsAllowed: true,
	},
	CodeConcurrencyConflict: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      true,
		PublicMessage:  "resource changed concurrently, retry",
		DetailsAllowed: true,
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeRateLimit: {
		HTTPStatus:    http.StatusTooManyRequests,
		PublicMessage: "rate limit exceeded",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
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
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether err carries a typed error with the given code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
