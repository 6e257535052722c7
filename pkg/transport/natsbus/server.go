package natsbus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/scoped-messaging/pkg/commsutil"
	"github.com/morezero/scoped-messaging/pkg/envelope"
	"github.com/morezero/scoped-messaging/pkg/ids"
	"github.com/morezero/scoped-messaging/pkg/transport"
)

const serverLogPrefix = "natsbus:server"

// ServerOptions configures a Server.
type ServerOptions struct {
	// SubjectPrefix defaults to commsutil.DefaultSubjectPrefix.
	SubjectPrefix string
	// QueueGroup load-balances a scope across server instances when set.
	QueueGroup string
	// ProtocolConstraint is a semver constraint checked against Msg-Protocol.
	// Requests without the header are accepted.
	ProtocolConstraint string
}

// Server is the Inbound side of the COMMS transport for one scope. It
// subscribes once the first listener is added, so a scope nobody listens on
// produces no-responders at the caller.
type Server struct {
	nc         *comms.Conn
	scope      string
	subject    string
	queue      string
	constraint *semver.Constraints

	mu        sync.RWMutex
	listeners []transport.Listener
	sub       *comms.Subscription
	closed    bool
}

// NewServer creates a Server for scope on nc.
func NewServer(nc *comms.Conn, scope string, opts *ServerOptions) (*Server, error) {
	o := ServerOptions{}
	if opts != nil {
		o = *opts
	}
	s := &Server{
		nc:      nc,
		scope:   scope,
		subject: commsutil.BuildScopeSubject(o.SubjectPrefix, scope),
		queue:   o.QueueGroup,
	}
	if o.ProtocolConstraint != "" {
		c, err := semver.NewConstraint(o.ProtocolConstraint)
		if err != nil {
			return nil, fmt.Errorf("%s - invalid protocol constraint %q: %w", serverLogPrefix, o.ProtocolConstraint, err)
		}
		s.constraint = c
	}
	return s, nil
}

// Subject returns the subject the server listens on.
func (s *Server) Subject() string { return s.subject }

// AddMessageListener installs l, subscribing on first use.
func (s *Server) AddMessageListener(l transport.Listener) error {
	if l == nil {
		return fmt.Errorf("%s - listener is required", serverLogPrefix)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return transport.ErrClosed
	}
	if s.sub == nil {
		var (
			sub *comms.Subscription
			err error
		)
		if s.queue != "" {
			sub, err = s.nc.QueueSubscribe(s.subject, s.queue, s.handle)
		} else {
			sub, err = s.nc.Subscribe(s.subject, s.handle)
		}
		if err != nil {
			return fmt.Errorf("%s - failed to subscribe to %s: %w", serverLogPrefix, s.subject, err)
		}
		s.sub = sub
		slog.Info(fmt.Sprintf("%s - Subscribed to %s", serverLogPrefix, s.subject))
	}
	s.listeners = append(s.listeners, l)
	return nil
}

// Close drains the subscription. In-flight handlers may still reply.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.sub == nil {
		return nil
	}
	if err := s.sub.Drain(); err != nil {
		return fmt.Errorf("%s - failed to drain %s: %w", serverLogPrefix, s.subject, err)
	}
	return nil
}

func (s *Server) handle(msg *comms.Msg) {
	if msg.Reply == "" {
		slog.Warn(fmt.Sprintf("%s - dropping request on %s without reply subject", serverLogPrefix, s.subject))
		return
	}

	if err := s.checkProtocol(msg.Header.Get(HeaderProtocol)); err != nil {
		s.respond(msg, envelope.ErrorResponse(err.Error()))
		return
	}

	req, err := envelope.UnmarshalRequest(msg.Data)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", serverLogPrefix, err))
		s.respond(msg, envelope.ErrorResponse("invalid request envelope"))
		return
	}

	// Scopes that sanitize to the same subject share it; the server owning
	// req.Scope answers.
	if req.Scope != s.scope {
		slog.Debug(fmt.Sprintf("%s - ignoring scope %s on %s (serving %s)", serverLogPrefix, req.Scope, s.subject, s.scope))
		return
	}

	var once sync.Once
	reply := func(resp *envelope.Response) {
		once.Do(func() { s.respond(msg, resp) })
	}

	s.mu.RLock()
	listeners := append([]transport.Listener(nil), s.listeners...)
	s.mu.RUnlock()

	sender := senderFromHeader(msg.Header)
	if sentAt, ok := ids.SentAt(sender.ID); ok {
		slog.Debug(fmt.Sprintf("%s - %s/%s id=%s in flight %s", serverLogPrefix, req.Scope, req.Name, sender.ID, time.Since(sentAt)))
	}
	claimed := false
	for _, l := range listeners {
		if l(req, sender, reply) {
			claimed = true
		}
	}
	if !claimed {
		once.Do(func() { s.respondUnclaimed(msg) })
	}
}

func (s *Server) checkProtocol(version string) error {
	if s.constraint == nil || version == "" {
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil || !s.constraint.Check(v) {
		return fmt.Errorf("unsupported protocol version %s", version)
	}
	return nil
}

func (s *Server) respond(msg *comms.Msg, resp *envelope.Response) {
	data, err := envelope.MarshalResponse(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", serverLogPrefix, err))
		data, _ = envelope.MarshalResponse(envelope.ErrorResponse(err.Error()))
	}
	if err := msg.Respond(data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to respond on %s: %v", serverLogPrefix, msg.Reply, err))
	}
}

func (s *Server) respondUnclaimed(msg *comms.Msg) {
	out := comms.NewMsg(msg.Reply)
	out.Header.Set(HeaderStatus, StatusUnclaimed)
	if err := msg.RespondMsg(out); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to respond on %s: %v", serverLogPrefix, msg.Reply, err))
	}
}
