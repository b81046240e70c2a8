// Package apperr defines the error taxonomy shared by the interviewer components.
//
// Every error carries a Kind used for control flow (HTTP status, whether the
// agent keeps running) and a machine-readable Code used in logs and API
// responses.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

// Kind classifies an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindValidation
	KindService
	KindAgent
	KindDelivery
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindService:
		return "service"
	case KindAgent:
		return "agent"
	case KindDelivery:
		return "delivery"
	default:
		return "unknown"
	}
}

// Error is the application error type.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against another *Error of the same kind with either an
// empty or an equal code, so callers can write errors.Is(err, apperr.ErrConfiguration).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Sentinels for errors.Is checks by kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrService       = &Error{Kind: KindService}
	ErrAgent         = &Error{Kind: KindAgent}
	ErrDelivery      = &Error{Kind: KindDelivery}
)

// Configuration reports a missing or invalid setting.
func Configuration(message string) *Error {
	return &Error{Kind: KindConfiguration, Code: "CONFIGURATION_ERROR", Message: message}
}

// Validation reports bad input. field may be empty.
func Validation(message, field string) *Error {
	code := "VALIDATION_ERROR"
	if field != "" {
		code += "_" + strings.ToUpper(field)
	}
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Service wraps a failure of an external service.
func Service(service string, err error) *Error {
	return &Error{
		Kind:    KindService,
		Code:    "SERVICE_ERROR_" + strings.ToUpper(service),
		Message: service + " failed",
		Err:     err,
	}
}

// Agent wraps a failure of a running agent session.
func Agent(name string, err error) *Error {
	return &Error{
		Kind:    KindAgent,
		Code:    "AGENT_ERROR_" + strings.ToUpper(name),
		Message: "agent " + name + " failed",
		Err:     err,
	}
}

// Delivery wraps a side-channel publish failure.
func Delivery(err error) *Error {
	return &Error{Kind: KindDelivery, Code: "DELIVERY_ERROR", Message: "delivery failed", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in err's chain, or "INTERNAL_ERROR".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return "INTERNAL_ERROR"
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindService, KindAgent:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
