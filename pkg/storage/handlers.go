package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/scoped-messaging/pkg/events"
	"github.com/morezero/scoped-messaging/pkg/messaging"
	"github.com/morezero/scoped-messaging/pkg/result"
	"github.com/morezero/scoped-messaging/pkg/transport"
)

const handlersLogPrefix = "storage:handlers"

// Scope is the messaging scope the storage handlers are served on.
const Scope = "storage"

type GetRequest struct {
	Key string `json:"key"`
}

type SetRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type RemoveRequest struct {
	Key string `json:"key"`
}

type KeysRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

type KeysResponse struct {
	Keys []string `json:"keys"`
}

// Messages served by Register.
var (
	Get    = messaging.Define[GetRequest, Entry]("get")
	Set    = messaging.Define[SetRequest, Entry]("set")
	Remove = messaging.Define[RemoveRequest, Entry]("remove")
	Keys   = messaging.Define[KeysRequest, KeysResponse]("keys")
)

// NotFoundMessage is the Failure message for a missing key.
func NotFoundMessage(key string) string {
	return "key not found: " + key
}

// Register installs the storage handlers on r. A nil publisher disables
// change events.
func Register(r *messaging.Receiver, store Store, publisher events.EventPublisher) error {
	if publisher == nil {
		publisher = &events.NoOpPublisher{}
	}
	h := &handlers{store: store, publisher: publisher}

	if err := messaging.Handle(r, Get, h.get); err != nil {
		return err
	}
	if err := messaging.Handle(r, Set, h.set); err != nil {
		return err
	}
	if err := messaging.Handle(r, Remove, h.remove); err != nil {
		return err
	}
	return messaging.Handle(r, Keys, h.keys)
}

type handlers struct {
	store     Store
	publisher events.EventPublisher
}

func (h *handlers) get(ctx context.Context, req GetRequest, _ transport.Sender) (result.Result, error) {
	if req.Key == "" {
		return result.Failure("key is required"), nil
	}
	e, err := h.store.Get(ctx, req.Key)
	if errors.Is(err, ErrNotFound) {
		return result.Failure(NotFoundMessage(req.Key)), nil
	}
	if err != nil {
		return result.Result{}, err
	}
	return messaging.Reply(*e), nil
}

func (h *handlers) set(ctx context.Context, req SetRequest, sender transport.Sender) (result.Result, error) {
	if req.Key == "" {
		return result.Failure("key is required"), nil
	}
	e, err := h.store.Set(ctx, req.Key, req.Value, sender.Origin)
	if err != nil {
		return result.Result{}, err
	}
	h.publish(ctx, e, events.OperationSet, sender)
	return messaging.Reply(*e), nil
}

func (h *handlers) remove(ctx context.Context, req RemoveRequest, sender transport.Sender) (result.Result, error) {
	if req.Key == "" {
		return result.Failure("key is required"), nil
	}
	e, err := h.store.Remove(ctx, req.Key)
	if errors.Is(err, ErrNotFound) {
		return result.Failure(NotFoundMessage(req.Key)), nil
	}
	if err != nil {
		return result.Result{}, err
	}
	h.publish(ctx, e, events.OperationRemove, sender)
	return messaging.Reply(*e), nil
}

func (h *handlers) keys(ctx context.Context, req KeysRequest, _ transport.Sender) (result.Result, error) {
	keys, err := h.store.Keys(ctx, req.Prefix)
	if err != nil {
		return result.Result{}, err
	}
	if keys == nil {
		keys = []string{}
	}
	return messaging.Reply(KeysResponse{Keys: keys}), nil
}

// publish announces a change. A publish failure does not fail the call.
func (h *handlers) publish(ctx context.Context, e *Entry, op string, sender transport.Sender) {
	event := &events.StorageChangedEvent{
		Key:       e.Key,
		Operation: op,
		Revision:  e.Revision,
		Origin:    sender.Origin,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.publisher.PublishChanged(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish %s event for %s: %v", handlersLogPrefix, op, e.Key, err))
	}
}
