// Package errs carries the service-wide error taxonomy. Components wrap
// underlying failures in a coded Error so callers (and the HTTP boundary)
// can branch on the kind of failure without string matching.
package errs

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeNotFound        Code = "not_found"
	CodeValidation      Code = "validation"
	CodeStorage         Code = "storage"
	CodeGeneration      Code = "generation"
	CodeParse           Code = "parse"
	CodeUnsupportedType Code = "unsupported_type"
)

type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "unknown error"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NotFound(msg string, cause error) *Error {
	return &Error{Code: CodeNotFound, Message: msg, Cause: cause}
}

func Validation(msg string, cause error) *Error {
	return &Error{Code: CodeValidation, Message: msg, Cause: cause}
}

func Storage(msg string, cause error) *Error {
	return &Error{Code: CodeStorage, Message: msg, Cause: cause}
}

func Generation(msg string, cause error) *Error {
	return &Error{Code: CodeGeneration, Message: msg, Cause: cause}
}

func Parse(msg string, cause error) *Error {
	return &Error{Code: CodeParse, Message: msg, Cause: cause}
}

func UnsupportedType(msg string, cause error) *Error {
	return &Error{Code: CodeUnsupportedType, Message: msg, Cause: cause}
}

func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsNotFound(err error) bool        { return CodeOf(err) == CodeNotFound }
func IsValidation(err error) bool      { return CodeOf(err) == CodeValidation }
func IsStorage(err error) bool         { return CodeOf(err) == CodeStorage }
func IsGeneration(err error) bool      { return CodeOf(err) == CodeGeneration }
func IsParse(err error) bool           { return CodeOf(err) == CodeParse }
func IsUnsupportedType(err error) bool { return CodeOf(err) == CodeUnsupportedType }
