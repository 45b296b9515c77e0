package errors

import (
	"fmt"
	"time"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigInvalid = &AppError{Code: "CONFIG_001", Message: "invalid configuration"}

	ErrSlotConflict = &AppError{Code: "APPT_001", Message: "appointment slot conflict"}
	ErrTitleEmpty   = &AppError{Code: "APPT_002", Message: "appointment title is required"}

	ErrBadClockTime = &AppError{Code: "MED_001", Message: "medication time must be HH:MM"}
	ErrNameEmpty    = &AppError{Code: "MED_002", Message: "medication name is required"}

	ErrStoreUnavailable = &AppError{Code: "STORE_001", Message: "record store unavailable"}

	ErrUnauthorized = &AppError{Code: "AUTH_001", Message: "unauthorized"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

// SlotConflict is the collision rejection. It carries the suggested
// alternative start time so callers can surface it to the user.
type SlotConflict struct {
	AppError
	Suggested time.Time
}

func NewSlotConflict(suggested time.Time) *SlotConflict {
	return &SlotConflict{
		AppError:  *ErrSlotConflict,
		Suggested: suggested,
	}
}

// AsSlotConflict unwraps err as a SlotConflict if it is one.
func AsSlotConflict(err error) (*SlotConflict, bool) {
	sc, ok := err.(*SlotConflict)
	return sc, ok
}

func IsAppError(err error) bool {
	if _, ok := err.(*AppError); ok {
		return true
	}
	_, ok := err.(*SlotConflict)
	return ok
}

func GetCode(err error) string {
	switch e := err.(type) {
	case *AppError:
		return e.Code
	case *SlotConflict:
		return e.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
