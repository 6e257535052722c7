// Package server orchestrates all components: NATS client, storage, scoped receivers, HTTP health.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/morezero/scoped-messaging/internal/config"
	"github.com/morezero/scoped-messaging/pkg/commsutil"
	"github.com/morezero/scoped-messaging/pkg/db"
	"github.com/morezero/scoped-messaging/pkg/events"
	"github.com/morezero/scoped-messaging/pkg/hooks"
	"github.com/morezero/scoped-messaging/pkg/messaging"
	"github.com/morezero/scoped-messaging/pkg/registry"
	"github.com/morezero/scoped-messaging/pkg/storage"
	"github.com/morezero/scoped-messaging/pkg/transport/natsbus"
)

const logPrefix = "server:server"

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "scoped_messaging"

// Server is the scoped-messaging daemon.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	httpServer *http.Server

	registry *registry.Registry
	inbound  []*natsbus.Server
	metrics  *prometheus.Registry
	ready    atomic.Bool

	// Health checks; nil means the component is not in use.
	commsConnected func() bool
	pingDatabase   func(ctx context.Context) error
}

// ParseLogLevel maps LOG_LEVEL to a slog level. Unknown values select info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLogLevel(cfg.LogLevel)})))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting scoped-messaging (scopes=%v)", logPrefix, cfg.Scopes))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{cfg: cfg, registry: registry.New()}
	if err := s.start(ctx); err != nil {
		s.shutdown(context.Background())
		return err
	}

	slog.Info(fmt.Sprintf("%s - scoped-messaging is ready", logPrefix))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HealthCheckTimeout)
	defer shutdownCancel()
	s.shutdown(shutdownCtx)

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// start connects every component. Partially started state is released by shutdown.
func (s *Server) start(ctx context.Context) error {
	cfg := s.cfg

	// Step 1: Connect to NATS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	s.nc = nc
	s.commsConnected = nc.IsConnected
	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))

	// Step 2: Storage backend, only when the storage scope is served
	var store storage.Store
	if cfg.Serves(config.ScopeStorage) {
		if store, err = s.openStore(ctx); err != nil {
			return err
		}
	}

	// Step 3: Hooks (logging, optionally metrics)
	h, err := s.buildHooks()
	if err != nil {
		return err
	}

	// Step 4: One receiver per configured scope, sharing one registry
	publisher := events.NewCommsPublisher(nc, &events.CommsPublisherOpts{GlobalChangeSubject: cfg.ChangeEventSubject})
	for _, scope := range cfg.Scopes {
		rcv, err := s.listen(ctx, scope, h)
		if err != nil {
			return err
		}
		switch scope {
		case config.ScopeStorage:
			err = storage.Register(rcv, store, publisher)
		case config.ScopeSystem:
			err = RegisterSystem(rcv, cfg.COMMSName)
		}
		if err != nil {
			return fmt.Errorf("%s - failed to register %s handlers: %w", logPrefix, scope, err)
		}
		slog.Info(fmt.Sprintf("%s - Serving scope %s on %s: %v", logPrefix, scope, commsutil.BuildScopeSubject(cfg.SubjectPrefix, scope), rcv.Names()))
	}

	// Step 5: HTTP health server
	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.routes(), ReadHeaderTimeout: cfg.HealthCheckTimeout}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	s.ready.Store(true)
	return nil
}

// openStore selects the Postgres store when DATABASE_URL is set, the in-memory store otherwise.
func (s *Server) openStore(ctx context.Context) (storage.Store, error) {
	cfg := s.cfg
	if cfg.DatabaseURL == "" {
		slog.Info(fmt.Sprintf("%s - DATABASE_URL not set, using in-memory storage", logPrefix))
		return storage.NewMemoryStore(), nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	s.pool = pool
	s.pingDatabase = pool.Ping

	if cfg.RunMigrations {
		migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			return nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}
	return storage.NewPostgresStore(db.NewRepository(pool)), nil
}

func (s *Server) buildHooks() (hooks.Hooks, error) {
	h := hooks.LoggingHooks(slog.Default())
	if !s.cfg.MetricsEnabled {
		return h, nil
	}

	s.metrics = prometheus.NewRegistry()
	s.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := hooks.NewMetrics(s.metrics, metricsNamespace)
	if err != nil {
		return hooks.Hooks{}, fmt.Errorf("%s - failed to register metrics: %w", logPrefix, err)
	}
	return h.Merge(m.Hooks()), nil
}

// listen creates the NATS inbound for scope and a receiver bound to the
// shared registry. Handlers run under ctx.
func (s *Server) listen(ctx context.Context, scope string, h hooks.Hooks) (*messaging.Receiver, error) {
	in, err := natsbus.NewServer(s.nc, scope, &natsbus.ServerOptions{
		SubjectPrefix:      s.cfg.SubjectPrefix,
		QueueGroup:         s.cfg.QueueGroup,
		ProtocolConstraint: s.cfg.ProtocolConstraint,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create inbound for %s: %w", logPrefix, scope, err)
	}
	s.inbound = append(s.inbound, in)

	rcv, err := messaging.CreateReceiver(scope, in, h,
		messaging.WithRegistry(s.registry),
		messaging.WithHandlerContext(ctx),
		messaging.WithReceiverLogger(slog.Default().With("scope", scope)),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create receiver for %s: %w", logPrefix, scope, err)
	}
	return rcv, nil
}

func (s *Server) shutdown(ctx context.Context) {
	s.ready.Store(false)
	for _, in := range s.inbound {
		if err := in.Close(); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to close %s: %v", logPrefix, in.Subject(), err))
		}
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
		}
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			slog.Warn(fmt.Sprintf("%s - NATS drain: %v", logPrefix, err))
		}
		waitClosed(s.nc, 2*time.Second)
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// waitClosed polls until a draining connection reports closed or the limit passes.
func waitClosed(nc *comms.Conn, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for !nc.IsClosed() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
}
