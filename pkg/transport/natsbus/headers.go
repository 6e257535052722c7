// Package natsbus carries request and response envelopes over COMMS
// request/reply, one subject per scope.
package natsbus

import (
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/scoped-messaging/pkg/transport"
)

// Message headers.
const (
	HeaderMsgID    = "Msg-Id"
	HeaderProtocol = "Msg-Protocol"
	HeaderOrigin   = "Msg-Origin"
	HeaderStatus   = "Msg-Status"

	// StatusUnclaimed marks a reply sent when no listener claimed the request.
	StatusUnclaimed = "unclaimed"
)

// DefaultProtocolVersion is stamped on outbound requests when none is configured.
const DefaultProtocolVersion = "1.0.0"

func senderFromHeader(h comms.Header) transport.Sender {
	s := transport.Sender{
		ID:     h.Get(HeaderMsgID),
		Origin: h.Get(HeaderOrigin),
	}
	for key, values := range h {
		if key == HeaderMsgID || key == HeaderOrigin || len(values) == 0 {
			continue
		}
		if s.Meta == nil {
			s.Meta = make(map[string]string)
		}
		s.Meta[key] = values[0]
	}
	return s
}
