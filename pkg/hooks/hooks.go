// Package hooks provides the optional observation points threaded through
// the dispatcher and the caller.
package hooks

import (
	"fmt"
	"log/slog"

	"github.com/morezero/scoped-messaging/pkg/msgerr"
	"github.com/morezero/scoped-messaging/pkg/result"
)

const logPrefix = "hooks:hooks"

// RequestContext is passed to OnRequest before a handler runs.
type RequestContext struct {
	Scope string
	Name  string
	Req   any
}

// ResponseContext is passed to OnResponse after the reply was sent. Res is
// the value the handler returned, before encoding.
type ResponseContext struct {
	Scope string
	Name  string
	Req   any
	Res   any
}

// Hooks defines callbacks around a call. All hooks are optional - nil hooks
// are simply not called.
type Hooks struct {
	// OnError is called by the caller for every MessagingError. Returning a
	// Failure with ok set resolves the call with that Failure instead of
	// returning the error.
	OnError func(err *msgerr.MessagingError) (result.Result, bool)

	// OnRequest is called by the dispatcher right before the handler runs.
	OnRequest func(ctx RequestContext)

	// OnResponse is called by the dispatcher after a successful handler
	// completion, once the reply has been sent.
	OnResponse func(ctx ResponseContext)
}

// Merge combines two Hooks. The hooks from 'other' are called after the
// hooks from 'h'; for OnError the first Failure wins.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnError:    chainErrorHooks(h.OnError, other.OnError),
		OnRequest:  chainRequestHooks(h.OnRequest, other.OnRequest),
		OnResponse: chainResponseHooks(h.OnResponse, other.OnResponse),
	}
}

func chainRequestHooks(a, b func(RequestContext)) func(RequestContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx RequestContext) {
		a(ctx)
		b(ctx)
	}
}

func chainResponseHooks(a, b func(ResponseContext)) func(ResponseContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx ResponseContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(*msgerr.MessagingError) (result.Result, bool)) func(*msgerr.MessagingError) (result.Result, bool) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(err *msgerr.MessagingError) (result.Result, bool) {
		if r, ok := a(err); ok && r.IsFailure() {
			return r, true
		}
		return b(err)
	}
}

// FireRequest runs OnRequest, logging and swallowing any panic.
func (h Hooks) FireRequest(logger *slog.Logger, ctx RequestContext) {
	if h.OnRequest == nil {
		return
	}
	defer isolate(logger, "onRequest", ctx.Scope, ctx.Name)
	h.OnRequest(ctx)
}

// FireResponse runs OnResponse, logging and swallowing any panic.
func (h Hooks) FireResponse(logger *slog.Logger, ctx ResponseContext) {
	if h.OnResponse == nil {
		return
	}
	defer isolate(logger, "onResponse", ctx.Scope, ctx.Name)
	h.OnResponse(ctx)
}

// FireError runs OnError and reports whether the call should resolve with
// the returned Failure. A panic counts as no replacement.
func (h Hooks) FireError(logger *slog.Logger, err *msgerr.MessagingError) (res result.Result, ok bool) {
	if h.OnError == nil || err == nil {
		return result.Result{}, false
	}
	defer func() {
		if rec := recover(); rec != nil {
			loggerOrDefault(logger).Error(fmt.Sprintf("%s - onError hook panicked for %s/%s: %v", logPrefix, err.Scope, err.Name, rec))
			res, ok = result.Result{}, false
		}
	}()
	res, ok = h.OnError(err)
	if !ok || !res.IsFailure() {
		return result.Result{}, false
	}
	return res, true
}

func isolate(logger *slog.Logger, hook, scope, name string) {
	if rec := recover(); rec != nil {
		loggerOrDefault(logger).Error(fmt.Sprintf("%s - %s hook panicked for %s/%s: %v", logPrefix, hook, scope, name, rec))
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// LoggingHooks returns pre-built hooks that log every call.
func LoggingHooks(logger *slog.Logger) Hooks {
	logger = loggerOrDefault(logger)
	return Hooks{
		OnRequest: func(ctx RequestContext) {
			logger.Debug(fmt.Sprintf("%s - request %s/%s", logPrefix, ctx.Scope, ctx.Name))
		},
		OnResponse: func(ctx ResponseContext) {
			outcome := "success"
			if result.IsFailure(ctx.Res) {
				outcome = "failure"
			}
			logger.Debug(fmt.Sprintf("%s - response %s/%s outcome=%s", logPrefix, ctx.Scope, ctx.Name, outcome))
		},
		OnError: func(err *msgerr.MessagingError) (result.Result, bool) {
			logger.Warn(fmt.Sprintf("%s - call %s/%s failed: %s", logPrefix, err.Scope, err.Name, err.Message))
			return result.Result{}, false
		},
	}
}

// FallbackHooks returns an OnError hook that resolves every MessagingError
// with a Failure built by fallback.
func FallbackHooks(fallback func(err *msgerr.MessagingError) result.Result) Hooks {
	return Hooks{
		OnError: func(err *msgerr.MessagingError) (result.Result, bool) {
			return fallback(err), true
		},
	}
}
