// Package msgerr holds the error taxonomy of the messaging layer.
package msgerr

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateHandler is wrapped by ConfigurationError.
	ErrDuplicateHandler = errors.New("messaging: handler already registered")
	// ErrHandlerMissing marks a dispatch that found no handler for its name.
	ErrHandlerMissing = errors.New("messaging: no handler")
	// ErrRemote marks a dispatch-level failure reported by the receiver, typically a handler that raised.
	ErrRemote = errors.New("messaging: remote dispatch failed")
	// ErrTransport marks a delivery failure of the underlying channel.
	ErrTransport = errors.New("messaging: transport failure")
	// ErrProtocol marks a response envelope that carries neither discriminant.
	ErrProtocol = errors.New("messaging: malformed response envelope")
)

// NoHandlerMessage builds the dispatch error text for an unregistered name.
func NoHandlerMessage(name string) string {
	return "no handler for " + name
}

// ConfigurationError reports a second registration under an existing (scope, name).
type ConfigurationError struct {
	Scope string
	Name  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("messaging: handler for %s/%s is already registered", e.Scope, e.Name)
}

func (e *ConfigurationError) Unwrap() error { return ErrDuplicateHandler }

// MessagingError is a transport- or dispatch-level failure of a call. It is
// never a business Failure.
type MessagingError struct {
	Scope   string
	Name    string
	Message string
	// Kind is one of ErrTransport, ErrHandlerMissing, ErrRemote or ErrProtocol.
	Kind error
	// Cause is the underlying transport error, if any.
	Cause error
}

func (e *MessagingError) Error() string {
	return fmt.Sprintf("messaging %s/%s: %s", e.Scope, e.Name, e.Message)
}

// Unwrap exposes both the kind sentinel and the transport cause to errors.Is/As.
func (e *MessagingError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// NewTransportError classifies a delivery failure.
func NewTransportError(scope, name string, cause error) *MessagingError {
	msg := "transport failure"
	if cause != nil {
		msg = cause.Error()
	}
	return &MessagingError{Scope: scope, Name: name, Message: msg, Kind: ErrTransport, Cause: cause}
}

// NewDispatchError classifies an {error} response envelope. Only the exact
// NoHandlerMessage for the called name counts as a missing handler.
func NewDispatchError(scope, name, message string) *MessagingError {
	kind := ErrRemote
	if message == NoHandlerMessage(name) {
		kind = ErrHandlerMissing
	}
	return &MessagingError{Scope: scope, Name: name, Message: message, Kind: kind}
}

// NewProtocolError classifies a response envelope that could not be interpreted.
func NewProtocolError(scope, name string, cause error) *MessagingError {
	msg := ErrProtocol.Error()
	if cause != nil && !errors.Is(cause, ErrProtocol) {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &MessagingError{Scope: scope, Name: name, Message: msg, Kind: ErrProtocol, Cause: cause}
}

// AsMessagingError unwraps err into a *MessagingError.
func AsMessagingError(err error) (*MessagingError, bool) {
	var me *MessagingError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
