// Package memory is an in-process transport with host-like semantics: every
// envelope is cloned through the wire codec, listeners run in registration
// order and the first reply wins.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/scoped-messaging/pkg/envelope"
	"github.com/morezero/scoped-messaging/pkg/transport"
)

const logPrefix = "memory:bus"

// Bus is both the Outbound and the Inbound side of an in-process channel.
type Bus struct {
	mu        sync.RWMutex
	listeners []transport.Listener
	sender    transport.Sender

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Bus.
type Option func(*Bus)

// WithSender sets the sender metadata handed to listeners.
func WithSender(s transport.Sender) Option {
	return func(b *Bus) { b.sender = s }
}

// NewBus creates an open Bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		sender: transport.Sender{Origin: "memory"},
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddMessageListener installs l. Listeners cannot be removed.
func (b *Bus) AddMessageListener(l transport.Listener) error {
	if l == nil {
		return fmt.Errorf("%s - listener is required", logPrefix)
	}
	select {
	case <-b.done:
		return transport.ErrClosed
	default:
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
	return nil
}

// SendMessage delivers req to every listener and waits for the first reply.
func (b *Bus) SendMessage(ctx context.Context, req *envelope.Request) (*envelope.Response, error) {
	select {
	case <-b.done:
		return nil, transport.ErrClosed
	default:
	}

	b.mu.RLock()
	listeners := append([]transport.Listener(nil), b.listeners...)
	b.mu.RUnlock()
	if len(listeners) == 0 {
		return nil, transport.ErrNoReceiver
	}

	replies := make(chan *envelope.Response, 1)
	var once sync.Once
	reply := func(resp *envelope.Response) {
		once.Do(func() {
			cloned, err := envelope.CloneResponse(resp)
			if err != nil {
				slog.Error(fmt.Sprintf("%s - dropping unserializable reply for %s/%s: %v", logPrefix, req.Scope, req.Name, err))
				cloned = envelope.ErrorResponse(err.Error())
			}
			replies <- cloned
		})
	}

	claimed := false
	for _, l := range listeners {
		cloned, err := envelope.CloneRequest(req)
		if err != nil {
			return nil, err
		}
		if l(cloned, b.sender, reply) {
			claimed = true
		}
	}

	if !claimed {
		select {
		case resp := <-replies:
			return resp, nil
		default:
			return nil, transport.ErrPortClosed
		}
	}

	select {
	case resp := <-replies:
		return resp, nil
	case <-b.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears the bus down. Pending and future sends fail with ErrClosed.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}
