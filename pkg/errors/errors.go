// Package errors provides the engine's taxonomized error type, adapted from
// the structured-error pattern tradSys uses across its services, narrowed to
// the four outcome categories spec.md §7 requires: Structural, Semantic,
// Resource and Arithmetic.
package errors

import (
	"fmt"
	"runtime"
)

// Category is one of the four observable failure outcomes from spec.md §7.
type Category string

const (
	// Structural errors are programming errors (corrupt tree, allocator
	// inconsistency, bad discriminant): fatal, abort without mutation.
	Structural Category = "structural"
	// Semantic errors are reported to the caller with no state change.
	Semantic Category = "semantic"
	// Resource errors mean the caller should Expand and retry.
	Resource Category = "resource"
	// Arithmetic errors (checked overflow) are fatal for the instruction.
	Arithmetic Category = "arithmetic"
)

// Code enumerates every distinct error condition the engine can surface.
type Code string

const (
	// Structural
	ErrInvalidDiscriminant   Code = "INVALID_DISCRIMINANT"
	ErrCorruptTree           Code = "CORRUPT_TREE"
	ErrAllocatorInconsistent Code = "ALLOCATOR_INCONSISTENT"
	ErrIncompatibleFormat    Code = "INCOMPATIBLE_FORMAT"

	// Semantic
	ErrInvalidOrder      Code = "INVALID_ORDER"
	ErrInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	ErrPostOnlyCrossed   Code = "POST_ONLY_CROSSED"
	ErrOrderNotFound     Code = "ORDER_NOT_FOUND"
	ErrOrderExpired      Code = "ORDER_EXPIRED"
	ErrSeatNotFound      Code = "SEAT_NOT_FOUND"
	ErrSeatNotEmpty      Code = "SEAT_NOT_EMPTY"
	ErrSymbolNotFound    Code = "SYMBOL_NOT_FOUND"
	ErrGlobalAtCapacity  Code = "GLOBAL_AT_CAPACITY"
	ErrGlobalNotFound    Code = "GLOBAL_NOT_FOUND"
	ErrGlobalStillBacked Code = "GLOBAL_STILL_BACKED"
	ErrInvalidPrice      Code = "INVALID_PRICE"
	ErrInvalidInput      Code = "INVALID_INPUT"
	ErrRateLimited       Code = "RATE_LIMITED"

	// Resource
	ErrOutOfSpace Code = "OUT_OF_SPACE"

	// Arithmetic
	ErrOverflow Code = "OVERFLOW"
)

var categoryByCode = map[Code]Category{
	ErrInvalidDiscriminant:   Structural,
	ErrCorruptTree:           Structural,
	ErrAllocatorInconsistent: Structural,
	ErrIncompatibleFormat:    Structural,

	ErrInvalidOrder:      Semantic,
	ErrInsufficientFunds: Semantic,
	ErrPostOnlyCrossed:   Semantic,
	ErrOrderNotFound:     Semantic,
	ErrOrderExpired:      Semantic,
	ErrSeatNotFound:      Semantic,
	ErrSeatNotEmpty:      Semantic,
	ErrSymbolNotFound:    Semantic,
	ErrGlobalAtCapacity:  Semantic,
	ErrGlobalNotFound:    Semantic,
	ErrGlobalStillBacked: Semantic,
	ErrInvalidPrice:      Semantic,
	ErrInvalidInput:      Semantic,
	ErrRateLimited:       Semantic,

	ErrOutOfSpace: Resource,

	ErrOverflow: Arithmetic,
}

// ClobError is the engine's structured error.
type ClobError struct {
	Code     Code
	Category Category
	Message  string
	Cause    error
	File     string
	Line     int
}

func (e *ClobError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Code, e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

func (e *ClobError) Unwrap() error { return e.Cause }

// New constructs a ClobError, inferring its category from the code.
func New(code Code, message string) *ClobError {
	_, file, line, _ := runtime.Caller(1)
	return &ClobError{
		Code:     code,
		Category: categoryByCode[code],
		Message:  message,
		File:     file,
		Line:     line,
	}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...interface{}) *ClobError {
	_, file, line, _ := runtime.Caller(1)
	return &ClobError{
		Code:     code,
		Category: categoryByCode[code],
		Message:  fmt.Sprintf(format, args...),
		File:     file,
		Line:     line,
	}
}

// Wrap wraps cause under a new code/message.
func Wrap(cause error, code Code, message string) *ClobError {
	if cause == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &ClobError{
		Code:     code,
		Category: categoryByCode[code],
		Message:  message,
		Cause:    cause,
		File:     file,
		Line:     line,
	}
}

// CodeOf extracts the Code from err, if it is (or wraps) a ClobError.
func CodeOf(err error) (Code, bool) {
	var ce *ClobError
	for err != nil {
		if c, ok := err.(*ClobError); ok {
			ce = c
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ce == nil {
		return "", false
	}
	return ce.Code, true
}

// IsFatal reports whether err must abort the instruction with zero partial
// mutation (Structural or Arithmetic).
func IsFatal(err error) bool {
	var ce *ClobError
	if !As(err, &ce) {
		return false
	}
	return ce.Category == Structural || ce.Category == Arithmetic
}

// IsRetryable reports whether the caller is expected to Expand and retry
// (Resource).
func IsRetryable(err error) bool {
	var ce *ClobError
	if !As(err, &ce) {
		return false
	}
	return ce.Category == Resource
}

// As finds the first *ClobError in err's chain.
func As(err error, target **ClobError) bool {
	for err != nil {
		if ce, ok := err.(*ClobError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
