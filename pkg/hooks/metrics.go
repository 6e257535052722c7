package hooks

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/morezero/scoped-messaging/pkg/msgerr"
	"github.com/morezero/scoped-messaging/pkg/result"
)

// Metrics counts calls observed through hooks.
type Metrics struct {
	requests  *prometheus.CounterVec
	responses *prometheus.CounterVec
	errors    *prometheus.CounterVec
}

// NewMetrics registers the messaging counters on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_requests_total",
			Help:      "Inbound messages accepted for dispatch.",
		}, []string{"scope", "name"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_responses_total",
			Help:      "Handler completions by outcome.",
		}, []string{"scope", "name", "outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_errors_total",
			Help:      "Messaging errors observed by callers.",
		}, []string{"scope", "name", "kind"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.responses, m.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns hooks feeding the counters. OnError never replaces the error.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnRequest: func(ctx RequestContext) {
			m.requests.WithLabelValues(ctx.Scope, ctx.Name).Inc()
		},
		OnResponse: func(ctx ResponseContext) {
			outcome := "success"
			if result.IsFailure(ctx.Res) {
				outcome = "failure"
			}
			m.responses.WithLabelValues(ctx.Scope, ctx.Name, outcome).Inc()
		},
		OnError: func(err *msgerr.MessagingError) (result.Result, bool) {
			m.errors.WithLabelValues(err.Scope, err.Name, errorKind(err)).Inc()
			return result.Result{}, false
		},
	}
}

func errorKind(err *msgerr.MessagingError) string {
	switch {
	case errors.Is(err, msgerr.ErrHandlerMissing):
		return "handler_missing"
	case errors.Is(err, msgerr.ErrRemote):
		return "remote"
	case errors.Is(err, msgerr.ErrProtocol):
		return "protocol"
	default:
		return "transport"
	}
}
