package server

import (
	"context"
	"errors"
	"testing"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/scoped-messaging/internal/config"
	"github.com/morezero/scoped-messaging/pkg/caller"
	"github.com/morezero/scoped-messaging/pkg/commsutil"
	"github.com/morezero/scoped-messaging/pkg/events"
	"github.com/morezero/scoped-messaging/pkg/hooks"
	"github.com/morezero/scoped-messaging/pkg/messaging"
	"github.com/morezero/scoped-messaging/pkg/msgerr"
	"github.com/morezero/scoped-messaging/pkg/registry"
	"github.com/morezero/scoped-messaging/pkg/storage"
	"github.com/morezero/scoped-messaging/pkg/transport"
	"github.com/morezero/scoped-messaging/pkg/transport/natsbus"
)

const e2eTestPrefix = "server:e2e_test"

type e2eEnv struct {
	srv *Server
	nc  *comms.Conn
}

// setupE2E starts an embedded NATS server and the daemon against it with
// in-memory storage.
func setupE2E(t *testing.T) *e2eEnv {
	t.Helper()
	ns := startBroker(t)

	cfg := &config.Config{
		COMMSURL:           ns.ClientURL(),
		COMMSName:          "scoped-messaging-e2e",
		SubjectPrefix:      "msg",
		RequestTimeout:     5 * time.Second,
		ProtocolVersion:    "1.0.0",
		ProtocolConstraint: "^1.0.0",
		Scopes:             []string{config.ScopeStorage, config.ScopeSystem},
		HTTPPort:           0,
		HealthCheckTimeout: 2 * time.Second,
		MetricsEnabled:     true,
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Fatalf("%s - invalid config: %v", e2eTestPrefix, err)
	}

	s := &Server{cfg: cfg, registry: registry.New()}
	if err := s.start(context.Background()); err != nil {
		s.shutdown(context.Background())
		t.Fatalf("%s - start failed: %v", e2eTestPrefix, err)
	}
	t.Cleanup(func() { s.shutdown(context.Background()) })

	nc, err := commsutil.Connect(ns.ClientURL(), "e2e-client")
	if err != nil {
		t.Fatalf("%s - client connect failed: %v", e2eTestPrefix, err)
	}
	t.Cleanup(nc.Close)
	return &e2eEnv{srv: s, nc: nc}
}

func (e *e2eEnv) sender(scope, version string) *caller.Caller {
	client := natsbus.NewClient(e.nc, &natsbus.ClientOptions{Origin: "options-page", ProtocolVersion: version})
	return messaging.CreateSender(scope, client, hooks.Hooks{})
}

func TestE2E_Ready(t *testing.T) {
	env := setupE2E(t)
	if !env.srv.ready.Load() {
		t.Errorf("%s - server not ready after start", e2eTestPrefix)
	}
	h := env.srv.Health(context.Background())
	if h.Status != "healthy" || h.Checks.Store != "memory" {
		t.Errorf("%s - health = %+v", e2eTestPrefix, h)
	}
	if len(h.Scopes) != 2 {
		t.Errorf("%s - Scopes = %v, want storage and system", e2eTestPrefix, h.Scopes)
	}
}

func TestE2E_StorageRoundTrip(t *testing.T) {
	env := setupE2E(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	changes := make(chan *events.StorageChangedEvent, 4)
	sub, err := env.nc.Subscribe(commsutil.SubjectStorageChanged, func(msg *comms.Msg) {
		var e events.StorageChangedEvent
		if err := commsutil.DecodePayload(msg.Data, &e); err == nil {
			changes <- &e
		}
	})
	if err != nil {
		t.Fatalf("%s - subscribe failed: %v", e2eTestPrefix, err)
	}
	defer sub.Unsubscribe()
	if err := env.nc.Flush(); err != nil {
		t.Fatal(err)
	}

	c := env.sender(storage.Scope, "")

	set, res, err := messaging.Invoke(ctx, c, storage.Set, storage.SetRequest{Key: "theme", Value: "dark"})
	if err != nil || res.IsFailure() {
		t.Fatalf("%s - set failed: %v %v", e2eTestPrefix, err, res)
	}
	if set.Key != "theme" || set.Value != "dark" || set.Revision != 1 {
		t.Errorf("%s - set = %+v", e2eTestPrefix, set)
	}

	select {
	case e := <-changes:
		if e.Key != "theme" || e.Operation != events.OperationSet || e.Origin != "options-page" {
			t.Errorf("%s - change event = %+v", e2eTestPrefix, e)
		}
	case <-time.After(5 * time.Second):
		t.Errorf("%s - no change event published", e2eTestPrefix)
	}

	got, _, err := messaging.Invoke(ctx, c, storage.Get, storage.GetRequest{Key: "theme"})
	if err != nil || got.Value != "dark" {
		t.Errorf("%s - get = %+v, %v", e2eTestPrefix, got, err)
	}

	keys, _, err := messaging.Invoke(ctx, c, storage.Keys, storage.KeysRequest{})
	if err != nil || len(keys.Keys) != 1 || keys.Keys[0] != "theme" {
		t.Errorf("%s - keys = %+v, %v", e2eTestPrefix, keys, err)
	}

	if _, res, err := messaging.Invoke(ctx, c, storage.Remove, storage.RemoveRequest{Key: "theme"}); err != nil || res.IsFailure() {
		t.Errorf("%s - remove failed: %v %v", e2eTestPrefix, err, res)
	}

	_, res, err = messaging.Invoke(ctx, c, storage.Get, storage.GetRequest{Key: "theme"})
	if err != nil {
		t.Fatalf("%s - get after remove: %v", e2eTestPrefix, err)
	}
	if !res.IsFailure() || res.Message() != storage.NotFoundMessage("theme") {
		t.Errorf("%s - get after remove = %v, want not-found failure", e2eTestPrefix, res)
	}
}

func TestE2E_SystemScope(t *testing.T) {
	env := setupE2E(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := env.sender(config.ScopeSystem, "1.2.0")
	pong, _, err := messaging.Invoke(ctx, c, Ping, PingRequest{})
	if err != nil || !pong.Pong || pong.Service != "scoped-messaging-e2e" {
		t.Errorf("%s - ping = %+v, %v", e2eTestPrefix, pong, err)
	}

	out, _, err := messaging.Invoke(ctx, c, ListHandlers, HandlersRequest{Scope: storage.Scope})
	if err != nil || len(out.Names) != 4 {
		t.Errorf("%s - handlers(storage) = %+v, %v", e2eTestPrefix, out, err)
	}
}

func TestE2E_MessagingErrors(t *testing.T) {
	env := setupE2E(t)

	tests := []struct {
		name     string
		scope    string
		msg      string
		version  string
		wantKind error
		wantErr  error
	}{
		{name: "missing handler", scope: storage.Scope, msg: "truncate", wantKind: msgerr.ErrHandlerMissing},
		{name: "unserved scope", scope: "tabs", msg: "query", wantKind: msgerr.ErrTransport, wantErr: transport.ErrNoReceiver},
		{name: "unsupported protocol", scope: config.ScopeSystem, msg: "ping", version: "2.0.0", wantKind: msgerr.ErrRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			_, err := env.sender(tt.scope, tt.version).Call(ctx, tt.msg, nil)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("%s - err = %v, want kind %v", e2eTestPrefix, err, tt.wantKind)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("%s - err = %v, want cause %v", e2eTestPrefix, err, tt.wantErr)
			}
			merr, ok := msgerr.AsMessagingError(err)
			if !ok || merr.Scope != tt.scope || merr.Name != tt.msg {
				t.Errorf("%s - MessagingError = %+v", e2eTestPrefix, merr)
			}
		})
	}
}
