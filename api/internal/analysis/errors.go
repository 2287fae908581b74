package analysis

import (
	"errors"
	"fmt"
)

// Kind categorizes failures a user can see.
type Kind string

const (
	// KindInvalidFileType: the selected file is not an image.
	KindInvalidFileType Kind = "invalid_file_type"
	// KindValidation: the input is unusable for another reason (empty, too large).
	KindValidation Kind = "validation"
	// KindReadFailure: the image could not be read or encoded.
	KindReadFailure Kind = "read_failure"
	// KindRemoteFailure: network or service error, including malformed responses.
	KindRemoteFailure Kind = "remote_failure"
)

// UnexpectedErrorText is shown when a failure carries no message of its own.
const UnexpectedErrorText = "An unexpected error occurred during analysis."

// Error is the single error type crossing the analysis boundary.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error returns the message verbatim so it can be surfaced to the user as is.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return UnexpectedErrorText
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func InvalidFileType(contentType string) *Error {
	return &Error{
		Kind:    KindInvalidFileType,
		Message: fmt.Sprintf("Please upload an image file (got %q).", contentType),
	}
}

func ReadFailure(cause error) *Error {
	return &Error{Kind: KindReadFailure, Message: "could not read image: " + causeText(cause), Cause: cause}
}

// RemoteFailure keeps the remote message verbatim.
func RemoteFailure(cause error) *Error {
	return &Error{Kind: KindRemoteFailure, Message: causeText(cause), Cause: cause}
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// KindOf extracts the Kind of err, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// UserMessage is the text shown for a failed analysis.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnexpectedErrorText
}
