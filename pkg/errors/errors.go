package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeOutOfStock         Code = "OUT_OF_STOCK"
	CodeNoLongerAvailable  Code = "NO_LONGER_AVAILABLE"
	CodeOverdueBlocked     Code = "OVERDUE_BLOCKED"
	CodeUnverified         Code = "UNVERIFIED"
	CodeStateConflict      Code = "STATE_CONFLICT"
	CodeNotificationFailed Code = "NOTIFICATION_FAILED"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeDependency         Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a failure is surfaced to the person chatting with
// the bot: whether the flow re-prompts for new input, whether the whole
// action is worth retrying, and the generic message shown when no more
// specific text exists.
type Metadata struct {
	Reprompt      bool
	Retryable     bool
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeInvalidInput: {
		Reprompt:      true,
		Retryable:     false,
		PublicMessage: "that input is not valid",
	},
	CodeNotFound: {
		Reprompt:      true,
		Retryable:     false,
		PublicMessage: "item not found in inventory",
	},
	CodeOutOfStock: {
		Reprompt:      true,
		Retryable:     false,
		PublicMessage: "item is currently out of stock",
	},
	CodeNoLongerAvailable: {
		Reprompt:      false,
		Retryable:     false,
		PublicMessage: "item is no longer available, please start over",
	},
	CodeOverdueBlocked: {
		Reprompt:      false,
		Retryable:     false,
		PublicMessage: "an overdue item must be returned first",
	},
	CodeUnverified: {
		Reprompt:      true,
		Retryable:     false,
		PublicMessage: "verification required",
	},
	CodeStateConflict: {
		Reprompt:      false,
		Retryable:     false,
		PublicMessage: "that action is not possible right now",
	},
	CodeNotificationFailed: {
		Reprompt:      false,
		Retryable:     false,
		PublicMessage: "notification could not be delivered",
	},
	CodeInternal: {
		Reprompt:      false,
		Retryable:     true,
		PublicMessage: "something went wrong, please try again or contact an admin",
	},
	CodeDependency: {
		Reprompt:      false,
		Retryable:     true,
		PublicMessage: "the equipment database is unreachable, please try again later",
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

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
