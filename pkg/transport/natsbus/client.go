package natsbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/scoped-messaging/pkg/commsutil"
	"github.com/morezero/scoped-messaging/pkg/envelope"
	"github.com/morezero/scoped-messaging/pkg/ids"
	"github.com/morezero/scoped-messaging/pkg/msgerr"
	"github.com/morezero/scoped-messaging/pkg/transport"
)

const clientLogPrefix = "natsbus:client"

// ClientOptions configures a Client.
type ClientOptions struct {
	// SubjectPrefix defaults to commsutil.DefaultSubjectPrefix.
	SubjectPrefix string
	// Origin is sent as Msg-Origin and surfaces as Sender.Origin on the receiving side.
	Origin string
	// ProtocolVersion is sent as Msg-Protocol. Defaults to DefaultProtocolVersion.
	ProtocolVersion string
	// RequestTimeout bounds a request whose context has no deadline. Zero means 25s.
	RequestTimeout time.Duration
}

// Client is the Outbound side of the COMMS transport. One Client serves
// every scope; the subject is derived from the request's scope.
type Client struct {
	nc   *comms.Conn
	opts ClientOptions
}

// NewClient creates a Client on nc.
func NewClient(nc *comms.Conn, opts *ClientOptions) *Client {
	o := ClientOptions{}
	if opts != nil {
		o = *opts
	}
	if o.SubjectPrefix == "" {
		o.SubjectPrefix = commsutil.DefaultSubjectPrefix
	}
	if o.ProtocolVersion == "" {
		o.ProtocolVersion = DefaultProtocolVersion
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 25 * time.Second
	}
	return &Client{nc: nc, opts: o}
}

// SendMessage publishes req on its scope subject and waits for the reply.
func (c *Client) SendMessage(ctx context.Context, req *envelope.Request) (*envelope.Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}

	data, err := envelope.MarshalRequest(req)
	if err != nil {
		return nil, err
	}

	subject := commsutil.BuildScopeSubject(c.opts.SubjectPrefix, req.Scope)
	msg := comms.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(HeaderMsgID, ids.NewMessageID())
	msg.Header.Set(HeaderProtocol, c.opts.ProtocolVersion)
	if c.opts.Origin != "" {
		msg.Header.Set(HeaderOrigin, c.opts.Origin)
	}

	slog.Debug(fmt.Sprintf("%s - request %s on %s id=%s", clientLogPrefix, req.Name, subject, msg.Header.Get(HeaderMsgID)))

	reply, err := c.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, translateRequestError(err)
	}
	if reply.Header.Get(HeaderStatus) == StatusUnclaimed {
		return nil, transport.ErrPortClosed
	}

	resp, err := envelope.UnmarshalResponse(reply.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", msgerr.ErrProtocol, err)
	}
	return resp, nil
}

func translateRequestError(err error) error {
	switch {
	case errors.Is(err, comms.ErrNoResponders):
		return fmt.Errorf("%w: %v", transport.ErrNoReceiver, err)
	case errors.Is(err, comms.ErrConnectionClosed), errors.Is(err, comms.ErrConnectionDraining):
		return fmt.Errorf("%w: %v", transport.ErrClosed, err)
	default:
		return err
	}
}
