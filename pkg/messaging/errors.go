package messaging

import (
	"errors"
	"fmt"
	"net/http"

	"glimpse/pkg/store"
)

// Kind is a stable, language-neutral error identifier. The API boundary
// maps kinds to HTTP statuses and localized messages; the core only emits
// kinds.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindValidation Kind = "validation"
	KindPolicy     Kind = "policy_violation"
	KindServer     Kind = "server_error"
)

// Error is a domain error with a kind and optional field list (validation).
type Error struct {
	K      Kind
	Msg    string
	Fields []string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.K)
	}
	return e.Msg
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...any) error {
	return &Error{K: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Forbiddenf builds a forbidden error.
func Forbiddenf(format string, args ...any) error {
	return &Error{K: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

// Policyf builds a policy-violation error (edit window, bad transition).
func Policyf(format string, args ...any) error {
	return &Error{K: KindPolicy, Msg: fmt.Sprintf(format, args...)}
}

// Validationf builds a validation error carrying offending field names.
func Validationf(fields []string, format string, args ...any) error {
	return &Error{K: KindValidation, Msg: fmt.Sprintf(format, args...), Fields: fields}
}

// KindOf classifies any error into a Kind. Store misses surface as
// NotFound; everything unrecognized is a server error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.K
	}
	if errors.Is(err, store.ErrNotFound) {
		return KindNotFound
	}
	return KindServer
}

// FieldsOf returns validation field names attached to err, if any.
func FieldsOf(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}

// HTTPStatus maps a kind to its HTTP status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation, KindPolicy:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
