// Package caller is the sending side of a scope: it turns calls into request
// envelopes and classifies what comes back.
package caller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/morezero/scoped-messaging/pkg/envelope"
	"github.com/morezero/scoped-messaging/pkg/hooks"
	"github.com/morezero/scoped-messaging/pkg/msgerr"
	"github.com/morezero/scoped-messaging/pkg/result"
	"github.com/morezero/scoped-messaging/pkg/transport"
)

const logPrefix = "caller:caller"

// Method calls one message name of a scope.
type Method func(ctx context.Context, req any) (result.Result, error)

// Caller sends messages for one scope through an Outbound transport.
type Caller struct {
	scope  string
	out    transport.Outbound
	hooks  hooks.Hooks
	logger *slog.Logger
}

// Option configures a Caller.
type Option func(*Caller)

// WithHooks sets the hooks consulted on messaging errors.
func WithHooks(h hooks.Hooks) Option {
	return func(c *Caller) { c.hooks = h }
}

// WithLogger sets the logger used for isolated hook panics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Caller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Caller for scope.
func New(scope string, out transport.Outbound, opts ...Option) *Caller {
	c := &Caller{scope: scope, out: out, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scope returns the scope messages are addressed to.
func (c *Caller) Scope() string { return c.scope }

// Method returns a callable bound to name. Any name is accepted.
func (c *Caller) Method(name string) Method {
	return func(ctx context.Context, req any) (result.Result, error) {
		return c.Call(ctx, name, req)
	}
}

// Call sends req to name and waits for the outcome.
//
// A delivered Success or Failure is returned with a nil error. Delivery and
// dispatch failures are returned as *msgerr.MessagingError unless OnError
// replaces them with a Failure.
func (c *Caller) Call(ctx context.Context, name string, req any) (result.Result, error) {
	c.logger.Debug(fmt.Sprintf("%s - scope=%s name=%s", logPrefix, c.scope, name))

	resp, err := c.out.SendMessage(ctx, envelope.EncodeRequest(c.scope, name, req))
	if err != nil {
		if errors.Is(err, msgerr.ErrProtocol) {
			return c.fail(msgerr.NewProtocolError(c.scope, name, err))
		}
		return c.fail(msgerr.NewTransportError(c.scope, name, err))
	}
	if resp.IsError() {
		return c.fail(msgerr.NewDispatchError(c.scope, name, resp.ErrorMessage()))
	}
	if err := resp.Validate(); err != nil {
		return c.fail(msgerr.NewProtocolError(c.scope, name, err))
	}
	return envelope.DecodeResponse(resp), nil
}

func (c *Caller) fail(merr *msgerr.MessagingError) (result.Result, error) {
	if res, ok := c.hooks.FireError(c.logger, merr); ok {
		c.logger.Debug(fmt.Sprintf("%s - %s/%s resolved by onError: %s", logPrefix, merr.Scope, merr.Name, merr.Message))
		return res, nil
	}
	return result.Result{}, merr
}
