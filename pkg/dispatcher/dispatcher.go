// Package dispatcher serves inbound request envelopes for one scope.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/scoped-messaging/pkg/envelope"
	"github.com/morezero/scoped-messaging/pkg/hooks"
	"github.com/morezero/scoped-messaging/pkg/msgerr"
	"github.com/morezero/scoped-messaging/pkg/registry"
	"github.com/morezero/scoped-messaging/pkg/transport"
)

const logPrefix = "dispatcher:dispatch"

// Dispatcher routes requests addressed to its scope to the handlers in a
// registry and answers them with a response envelope.
type Dispatcher struct {
	scope    string
	registry *registry.Registry
	hooks    hooks.Hooks
	logger   *slog.Logger
	baseCtx  context.Context
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHooks sets the hooks fired around each handler.
func WithHooks(h hooks.Hooks) Option {
	return func(d *Dispatcher) { d.hooks = h }
}

// WithLogger sets the logger used for hook and handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithContext sets the parent context handlers are invoked with.
func WithContext(ctx context.Context) Option {
	return func(d *Dispatcher) {
		if ctx != nil {
			d.baseCtx = ctx
		}
	}
}

// New creates a Dispatcher for scope backed by reg.
func New(scope string, reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		scope:    scope,
		registry: reg,
		logger:   slog.Default(),
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Scope returns the scope this dispatcher answers for.
func (d *Dispatcher) Scope() string { return d.scope }

// Listen is a transport.Listener. Requests for other scopes are left to
// other listeners; everything else is claimed and served asynchronously.
func (d *Dispatcher) Listen(req *envelope.Request, sender transport.Sender, reply transport.ReplyFunc) bool {
	if req == nil || req.Scope != d.scope {
		return false
	}
	go func() {
		reply(d.Dispatch(d.baseCtx, req, sender))
	}()
	return true
}

// Dispatch is Serve with the reply captured and returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req *envelope.Request, sender transport.Sender) *envelope.Response {
	var resp *envelope.Response
	d.Serve(ctx, req, sender, func(r *envelope.Response) { resp = r })
	return resp
}

// Serve runs the handler registered for req.Name and delivers exactly one
// response through reply. Hooks are skipped when no handler exists, and
// OnResponse is skipped when the handler fails.
func (d *Dispatcher) Serve(ctx context.Context, req *envelope.Request, sender transport.Sender, reply transport.ReplyFunc) {
	d.logger.Debug(fmt.Sprintf("%s - scope=%s name=%s", logPrefix, req.Scope, req.Name))

	handler, ok := d.registry.Lookup(d.scope, req.Name)
	if !ok {
		d.logger.Debug(fmt.Sprintf("%s - no handler for %s/%s", logPrefix, d.scope, req.Name))
		reply(envelope.ErrorResponse(msgerr.NoHandlerMessage(req.Name)))
		return
	}

	d.hooks.FireRequest(d.logger, hooks.RequestContext{Scope: d.scope, Name: req.Name, Req: req.Req})

	res, err := invoke(ctx, handler, req.Req, sender)
	if err != nil {
		d.logger.Warn(fmt.Sprintf("%s - handler %s/%s failed: %v", logPrefix, d.scope, req.Name, err))
		reply(envelope.ErrorResponse(err.Error()))
		return
	}

	reply(envelope.EncodeResult(res))

	d.hooks.FireResponse(d.logger, hooks.ResponseContext{Scope: d.scope, Name: req.Name, Req: req.Req, Res: res})
}

// invoke calls h, turning a panic into an error.
func invoke(ctx context.Context, h registry.Handler, req any, sender transport.Sender) (res any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			if e, ok := rec.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", rec)
		}
	}()
	res, err = h(ctx, req, sender)
	if err != nil {
		return nil, err
	}
	return res, nil
}
