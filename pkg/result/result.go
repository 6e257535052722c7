// Package result defines the two-case outcome returned by handlers and
// received by callers.
//
// A Result is classified by an explicit discriminant, never by identity: the
// receiving side of a transport always rebuilds a fresh Result from the
// envelope it decoded.
package result

import "fmt"

type kind uint8

const (
	kindSuccess kind = iota
	kindFailure
)

// Result is either a Success with an optional payload or a Failure with a
// message. The zero value is a Success without payload.
type Result struct {
	kind    kind
	data    any
	hasData bool
	message string
}

// Success returns a Success without payload.
func Success() Result {
	return Result{}
}

// SuccessOf returns a Success carrying data. A nil data is the same as Success().
func SuccessOf(data any) Result {
	if data == nil {
		return Result{}
	}
	return Result{data: data, hasData: true}
}

// Failure returns a Failure carrying message.
func Failure(message string) Result {
	return Result{kind: kindFailure, message: message}
}

// FailureOf returns a Failure whose message is err's text. A nil err yields an
// empty message.
func FailureOf(err error) Result {
	if err == nil {
		return Failure("")
	}
	return Failure(err.Error())
}

// IsFailure reports whether r is a Failure.
func (r Result) IsFailure() bool { return r.kind == kindFailure }

// IsSuccess reports whether r is a Success.
func (r Result) IsSuccess() bool { return r.kind != kindFailure }

// Data returns the Success payload, or nil.
func (r Result) Data() any { return r.data }

// HasData reports whether a Success carries a payload.
func (r Result) HasData() bool { return r.hasData }

// Message returns the Failure message; empty for a Success.
func (r Result) Message() string { return r.message }

func (r Result) String() string {
	if r.IsFailure() {
		return fmt.Sprintf("Failure(%q)", r.message)
	}
	if !r.hasData {
		return "Success()"
	}
	return fmt.Sprintf("Success(%v)", r.data)
}

// IsFailure reports whether v is a Failure built by this package.
// Any other value, including errors, is not a Failure.
func IsFailure(v any) bool {
	switch r := v.(type) {
	case Result:
		return r.IsFailure()
	case *Result:
		return r != nil && r.IsFailure()
	default:
		return false
	}
}

// IsSuccess is the complement of IsFailure.
func IsSuccess(v any) bool {
	return !IsFailure(v)
}

// Classify turns an arbitrary handler return value into a Result.
func Classify(v any) Result {
	switch r := v.(type) {
	case nil:
		return Success()
	case Result:
		return r
	case *Result:
		if r == nil {
			return Success()
		}
		return *r
	default:
		return SuccessOf(v)
	}
}
