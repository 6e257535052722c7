// Package transport specifies the host message channel the messaging layer
// rides on: a deliver-once request/reply transport carrying envelopes.
package transport

import (
	"context"
	"errors"

	"github.com/morezero/scoped-messaging/pkg/envelope"
)

var (
	// ErrNoReceiver is returned when no listener is installed on the receiving side.
	ErrNoReceiver = errors.New("could not establish connection: receiving end does not exist")
	// ErrPortClosed is returned when listeners exist but none claimed the message.
	ErrPortClosed = errors.New("the message port closed before a response was received")
	// ErrClosed is returned once the transport has been torn down.
	ErrClosed = errors.New("transport closed")
)

// Sender is opaque metadata about the origin of an inbound call. The
// messaging layer passes it to handlers untouched.
type Sender struct {
	ID     string
	Origin string
	Meta   map[string]string
}

// ReplyFunc delivers the response of one call. Only the first call has effect.
type ReplyFunc func(resp *envelope.Response)

// Listener receives inbound request envelopes. It returns true when it will
// call reply, possibly after returning.
type Listener func(req *envelope.Request, sender Sender, reply ReplyFunc) bool

// Outbound sends one request and waits for its single response. A non-nil
// error is a delivery failure.
type Outbound interface {
	SendMessage(ctx context.Context, req *envelope.Request) (*envelope.Response, error)
}

// Inbound installs listeners for requests arriving on this side.
type Inbound interface {
	AddMessageListener(l Listener) error
}
