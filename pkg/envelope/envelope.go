// Package envelope defines the wire containers exchanged by callers and
// dispatchers, and the pure functions that build and read them.
package envelope

import (
	"fmt"

	"github.com/morezero/scoped-messaging/pkg/msgerr"
	"github.com/morezero/scoped-messaging/pkg/result"
)

// Request is the wire envelope of a call. Req is omitted when nil.
type Request struct {
	Scope string `json:"scope"`
	Name  string `json:"name"`
	Req   any    `json:"req,omitempty"`
}

// Response is the wire envelope of a reply. Exactly one shape is valid:
//
//	{success: true}            Success without payload
//	{success: true, data}      Success with payload
//	{success: false, message}  business Failure
//	{error}                    dispatch-level failure
type Response struct {
	Success *bool   `json:"success,omitempty"`
	Data    any     `json:"data,omitempty"`
	Message any     `json:"message,omitempty"`
	Error   *string `json:"error,omitempty"`
}

// EncodeRequest builds the request envelope for (scope, name, req).
func EncodeRequest(scope, name string, req any) *Request {
	return &Request{Scope: scope, Name: name, Req: req}
}

// EncodeResult flattens a handler outcome into a response envelope.
func EncodeResult(v any) *Response {
	r := result.Classify(v)
	if r.IsFailure() {
		return &Response{Success: boolPtr(false), Message: r.Message()}
	}
	if !r.HasData() {
		return &Response{Success: boolPtr(true)}
	}
	return &Response{Success: boolPtr(true), Data: r.Data()}
}

// ErrorResponse builds a dispatch-level failure envelope.
func ErrorResponse(message string) *Response {
	return &Response{Error: &message}
}

// IsError reports whether the envelope carries a dispatch-level error.
func (r *Response) IsError() bool {
	return r != nil && r.Error != nil
}

// ErrorMessage returns the dispatch-level error text, or "".
func (r *Response) ErrorMessage() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return *r.Error
}

// Validate reports a protocol violation: a response must carry either the
// error or the success discriminant. The error field is checked first.
func (r *Response) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: empty response", msgerr.ErrProtocol)
	}
	if r.Error != nil {
		return nil
	}
	if r.Success == nil {
		return fmt.Errorf("%w: missing success/error discriminant", msgerr.ErrProtocol)
	}
	return nil
}

// DecodeResponse rebuilds a fresh Result from a validated, non-error envelope.
// It never fails; a missing failure message decodes as "".
func DecodeResponse(r *Response) result.Result {
	if r != nil && r.Success != nil && *r.Success {
		return result.SuccessOf(r.Data)
	}
	if r == nil {
		return result.Failure("")
	}
	return result.Failure(messageText(r.Message))
}

func messageText(v any) string {
	switch m := v.(type) {
	case nil:
		return ""
	case string:
		return m
	default:
		return fmt.Sprint(m)
	}
}

func boolPtr(b bool) *bool { return &b }
