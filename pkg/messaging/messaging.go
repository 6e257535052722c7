// Package messaging wires registries, dispatchers and callers onto a
// transport. It is the entry point application code uses.
package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/scoped-messaging/pkg/caller"
	"github.com/morezero/scoped-messaging/pkg/dispatcher"
	"github.com/morezero/scoped-messaging/pkg/hooks"
	"github.com/morezero/scoped-messaging/pkg/registry"
	"github.com/morezero/scoped-messaging/pkg/transport"
)

const logPrefix = "messaging:messaging"

// Receiver serves one scope on an Inbound transport.
type Receiver struct {
	scope      string
	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
}

type receiverOptions struct {
	registry *registry.Registry
	logger   *slog.Logger
	ctx      context.Context
}

// ReceiverOption configures CreateReceiver.
type ReceiverOption func(*receiverOptions)

// WithRegistry makes the receiver share reg instead of owning a fresh one.
func WithRegistry(reg *registry.Registry) ReceiverOption {
	return func(o *receiverOptions) { o.registry = reg }
}

// WithReceiverLogger sets the dispatcher logger.
func WithReceiverLogger(l *slog.Logger) ReceiverOption {
	return func(o *receiverOptions) { o.logger = l }
}

// WithHandlerContext sets the parent context of handler invocations.
func WithHandlerContext(ctx context.Context) ReceiverOption {
	return func(o *receiverOptions) { o.ctx = ctx }
}

// CreateReceiver binds a Dispatcher for scope to in. Handlers are added with On.
func CreateReceiver(scope string, in transport.Inbound, h hooks.Hooks, opts ...ReceiverOption) (*Receiver, error) {
	if scope == "" {
		return nil, fmt.Errorf("%s - scope is required", logPrefix)
	}
	if in == nil {
		return nil, fmt.Errorf("%s - inbound transport is required", logPrefix)
	}

	o := receiverOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = registry.New()
	}

	d := dispatcher.New(scope, o.registry,
		dispatcher.WithHooks(h),
		dispatcher.WithLogger(o.logger),
		dispatcher.WithContext(o.ctx),
	)
	if err := in.AddMessageListener(d.Listen); err != nil {
		return nil, fmt.Errorf("%s - failed to listen on scope %s: %w", logPrefix, scope, err)
	}

	slog.Info(fmt.Sprintf("%s - receiver ready for scope %s", logPrefix, scope))
	return &Receiver{scope: scope, registry: o.registry, dispatcher: d}, nil
}

// On registers h for name in the receiver's scope. A duplicate name fails
// with *msgerr.ConfigurationError.
func (r *Receiver) On(name string, h registry.Handler) error {
	return r.registry.Register(r.scope, name, h)
}

// Scope returns the scope served.
func (r *Receiver) Scope() string { return r.scope }

// Registry returns the handler table the receiver dispatches from.
func (r *Receiver) Registry() *registry.Registry { return r.registry }

// Names returns the handler names registered in the receiver's scope.
func (r *Receiver) Names() []string { return r.registry.Names(r.scope) }

// CreateSender returns a Caller for scope bound to out.
func CreateSender(scope string, out transport.Outbound, h hooks.Hooks, opts ...caller.Option) *caller.Caller {
	opts = append([]caller.Option{caller.WithHooks(h)}, opts...)
	return caller.New(scope, out, opts...)
}

// RegisterHandler stores h under (scope, name) in reg.
func RegisterHandler(reg *registry.Registry, scope, name string, h registry.Handler) error {
	return reg.Register(scope, name, h)
}
