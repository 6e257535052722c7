package server

import (
	"context"

	"github.com/morezero/scoped-messaging/pkg/messaging"
	"github.com/morezero/scoped-messaging/pkg/result"
	"github.com/morezero/scoped-messaging/pkg/transport"
)

type PingRequest struct{}

type PingResponse struct {
	Pong    bool   `json:"pong"`
	Service string `json:"service"`
}

type HandlersRequest struct {
	Scope string `json:"scope"`
}

type HandlersResponse struct {
	Scope string   `json:"scope"`
	Names []string `json:"names"`
}

// Messages served on the system scope.
var (
	Ping         = messaging.Define[PingRequest, PingResponse]("ping")
	ListHandlers = messaging.Define[HandlersRequest, HandlersResponse]("handlers")
)

// RegisterSystem installs ping and handlers on r. handlers lists names from
// r's registry, so it sees every scope sharing that registry.
func RegisterSystem(r *messaging.Receiver, service string) error {
	err := messaging.Handle(r, Ping, func(context.Context, PingRequest, transport.Sender) (result.Result, error) {
		return messaging.Reply(PingResponse{Pong: true, Service: service}), nil
	})
	if err != nil {
		return err
	}
	return messaging.Handle(r, ListHandlers, func(_ context.Context, req HandlersRequest, _ transport.Sender) (result.Result, error) {
		if req.Scope == "" {
			return result.Failure("scope is required"), nil
		}
		return messaging.Reply(HandlersResponse{Scope: req.Scope, Names: r.Registry().Names(req.Scope)}), nil
	})
}
