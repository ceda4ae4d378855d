// Package apperrors provides the orchestrator's unified error taxonomy.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one member of the error code taxonomy a client may receive (spec §6).
type Code string

const (
	CodePolicyDeny          Code = "POLICY_DENY"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeCircuitOpen         Code = "CIRCUIT_OPEN"
	CodeToolTimeout         Code = "TOOL_TIMEOUT"
	CodeToolBadRequest      Code = "TOOL_BAD_REQUEST"
	CodeToolNotFound        Code = "TOOL_NOT_FOUND"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeInternalError       Code = "INTERNAL_ERROR"
	CodePlanInvalid         Code = "PLAN_INVALID"
	CodePlanTimeout         Code = "PLAN_TIMEOUT"
	CodeExecuteTimeout      Code = "EXECUTE_TIMEOUT"
	CodeComposeTimeout      Code = "COMPOSE_TIMEOUT"
	CodeSQLBlocked          Code = "SQL_BLOCKED"
	CodeTenantMismatch      Code = "TENANT_MISMATCH"
	CodeAuthFailed          Code = "AUTH_FAILED"
	CodePermissionDenied    Code = "PERMISSION_DENIED"
	CodeDataNotFound        Code = "DATA_NOT_FOUND"
	CodeInvalidParams       Code = "INVALID_PARAMS"
	CodeMaxRowsExceeded     Code = "MAX_ROWS_EXCEEDED"
	CodeConnectionError     Code = "CONNECTION_ERROR"
	CodeValidationError     Code = "VALIDATION_ERROR"
	CodeConfigurationError  Code = "CONFIGURATION_ERROR"
	CodeConflict            Code = "CONFLICT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeQueryNotFound       Code = "QUERY_NOT_FOUND"
	CodePlanningError       Code = "PLANNING_ERROR"
)

// retryable classifies which codes the Stage Pipeline may trigger a replan for
// (spec §7: "Replan trigger" bucket). Everything else is either locally
// recovered or surfaced verbatim.
var retryable = map[Code]bool{
	CodeToolTimeout:         true,
	CodeUpstreamUnavailable: true,
	CodeExecuteTimeout:      true,
}

// locallyRecovered classifies codes the executor absorbs without bubbling to
// the caller (spec §7: "Local recovery" bucket).
var locallyRecovered = map[Code]bool{
	CodeCircuitOpen:  true,
	CodeDataNotFound: true,
	CodeRateLimited:  true,
}

// Error is the orchestrator's structured error type: a code, a message, an
// HTTP status for the transport edge, optional details, and an optional
// wrapped cause.
type Error struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails attaches a key/value pair and returns the same error for chaining.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Retryable reports whether the Control Loop is allowed to consider replanning.
func (e *Error) Retryable() bool {
	return retryable[e.Code]
}

// LocallyRecoverable reports whether a failing step can be absorbed in place
// (e.g. substituted with an empty result) instead of escalating.
func (e *Error) LocallyRecoverable() bool {
	return locallyRecovered[e.Code]
}

// New builds an *Error with no wrapped cause.
func New(code Code, message string, status int) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: status}
}

// Wrap builds an *Error wrapping an underlying cause.
func Wrap(code Code, message string, status int, err error) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// codeStatus maps each taxonomy code to its default HTTP status.
var codeStatus = map[Code]int{
	CodePolicyDeny:          http.StatusForbidden,
	CodeRateLimited:         http.StatusTooManyRequests,
	CodeCircuitOpen:         http.StatusServiceUnavailable,
	CodeToolTimeout:         http.StatusGatewayTimeout,
	CodeToolBadRequest:      http.StatusBadRequest,
	CodeToolNotFound:        http.StatusNotFound,
	CodeUpstreamUnavailable: http.StatusBadGateway,
	CodeInternalError:       http.StatusInternalServerError,
	CodePlanInvalid:         http.StatusUnprocessableEntity,
	CodePlanTimeout:         http.StatusGatewayTimeout,
	CodeExecuteTimeout:      http.StatusGatewayTimeout,
	CodeComposeTimeout:      http.StatusGatewayTimeout,
	CodeSQLBlocked:          http.StatusForbidden,
	CodeTenantMismatch:      http.StatusForbidden,
	CodeAuthFailed:          http.StatusUnauthorized,
	CodePermissionDenied:    http.StatusForbidden,
	CodeDataNotFound:        http.StatusOK, // handled locally; still a 200 envelope per spec §7
	CodeInvalidParams:       http.StatusBadRequest,
	CodeMaxRowsExceeded:     http.StatusBadRequest,
	CodeConnectionError:     http.StatusServiceUnavailable,
	CodeValidationError:     http.StatusBadRequest,
	CodeConfigurationError:  http.StatusInternalServerError,
	CodeConflict:            http.StatusConflict,
	CodeNotFound:            http.StatusNotFound,
	CodeQueryNotFound:       http.StatusNotFound,
	CodePlanningError:       http.StatusUnprocessableEntity,
}

// Of builds an *Error using the taxonomy's default HTTP status for code.
func Of(code Code, message string) *Error {
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return New(code, message, status)
}

// Ofw is Of plus a wrapped cause.
func Ofw(code Code, message string, err error) *Error {
	e := Of(code, message)
	e.Err = err
	return e
}

// Is reports whether err is an *Error (any code).
func Is(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// As extracts the *Error from err's chain, if any.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// HTTPStatus returns the HTTP status to use for err at the transport edge.
func HTTPStatus(err error) int {
	if e := As(err); e != nil {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// CodeOf returns the taxonomy code for err, or CodeInternalError if err is
// not an *Error.
func CodeOf(err error) Code {
	if e := As(err); e != nil {
		return e.Code
	}
	return CodeInternalError
}
