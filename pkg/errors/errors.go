package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies an AppError
type Code string

const (
	CodeDataAccess         Code = "DATA_ACCESS"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInternal           Code = "INTERNAL"
)

type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches another AppError by code and message so sentinel errors work with errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Constructors
func Validation(msg string) *AppError         { return New(CodeValidation, msg) }
func Forbidden(msg string) *AppError          { return New(CodeForbidden, msg) }
func NotFound(msg string) *AppError           { return New(CodeNotFound, msg) }
func AlreadyExists(msg string) *AppError      { return New(CodeAlreadyExists, msg) }
func FailedPrecondition(msg string) *AppError { return New(CodeFailedPrecondition, msg) }
func Unauthorized(msg string) *AppError       { return New(CodeUnauthorized, msg) }

// DataAccess wraps a store or feed failure; callers render it as "fetch failed"
func DataAccess(err error, msg string) *AppError {
	return Wrap(err, CodeDataAccess, msg)
}

// CodeOf returns the code of the first AppError in err's chain, or CodeInternal
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
