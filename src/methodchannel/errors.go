package methodchannel

import (
	"errors"
	"fmt"
)

// Code classifies a failed call for the UI layer.
type Code string

const (
	CodeInvalidArguments Code = "INVALID_ARGUMENTS"
	CodeCapture          Code = "CAPTURE_ERROR"
	CodeEnum             Code = "ENUM_ERROR"
	CodeOverlay          Code = "OVERLAY_ERROR"
	CodeClipboard        Code = "CLIPBOARD_ERROR"
	CodeNotImplemented   Code = "NOT_IMPLEMENTED"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// Error is the error payload of a Response.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgs reports a malformed or missing argument.
func InvalidArgs(format string, args ...any) *Error {
	return Errorf(CodeInvalidArguments, format, args...)
}

// asError returns err as an *Error, classifying unknown errors under code.
func asError(err error, code Code) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: code, Message: err.Error()}
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
