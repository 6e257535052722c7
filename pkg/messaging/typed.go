package messaging

import (
	"context"
	"fmt"

	"github.com/morezero/scoped-messaging/pkg/caller"
	"github.com/morezero/scoped-messaging/pkg/jsoncodec"
	"github.com/morezero/scoped-messaging/pkg/result"
	"github.com/morezero/scoped-messaging/pkg/transport"
)

const typedLogPrefix = "messaging:typed"

// Message binds a name to its request and response payload types.
type Message[Req, Res any] struct {
	Name string
}

// Define declares a message.
func Define[Req, Res any](name string) Message[Req, Res] {
	return Message[Req, Res]{Name: name}
}

// TypedHandler answers a Message. Use Reply to build a Success carrying Res.
type TypedHandler[Req any] func(ctx context.Context, req Req, sender transport.Sender) (result.Result, error)

// Reply wraps a response payload in a Success.
func Reply[Res any](v Res) result.Result {
	return result.SuccessOf(v)
}

// Invoke calls msg through c. On Success the payload is converted into Res;
// a Failure is returned as is with a zero Res.
func Invoke[Req, Res any](ctx context.Context, c *caller.Caller, msg Message[Req, Res], req Req) (Res, result.Result, error) {
	var out Res
	res, err := c.Call(ctx, msg.Name, req)
	if err != nil {
		return out, result.Result{}, err
	}
	if res.IsFailure() || !res.HasData() {
		return out, res, nil
	}
	if err := jsoncodec.Convert(res.Data(), &out); err != nil {
		return out, res, fmt.Errorf("%s - failed to decode %s/%s response: %w", typedLogPrefix, c.Scope(), msg.Name, err)
	}
	return out, res, nil
}

// Handle registers fn for msg on r. A request that does not convert into Req
// is answered with a dispatch error.
func Handle[Req, Res any](r *Receiver, msg Message[Req, Res], fn TypedHandler[Req]) error {
	return r.On(msg.Name, func(ctx context.Context, raw any, sender transport.Sender) (any, error) {
		var req Req
		if raw != nil {
			if err := jsoncodec.Convert(raw, &req); err != nil {
				return nil, fmt.Errorf("%s - invalid %s request: %w", typedLogPrefix, msg.Name, err)
			}
		}
		return fn(ctx, req, sender)
	})
}
