// Package main is the entrypoint for the scoped-messaging daemon and CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/scoped-messaging/internal/config"
	"github.com/morezero/scoped-messaging/internal/server"
	"github.com/morezero/scoped-messaging/pkg/caller"
	"github.com/morezero/scoped-messaging/pkg/commsutil"
	"github.com/morezero/scoped-messaging/pkg/db"
	"github.com/morezero/scoped-messaging/pkg/events"
	"github.com/morezero/scoped-messaging/pkg/jsoncodec"
	"github.com/morezero/scoped-messaging/pkg/result"
	"github.com/morezero/scoped-messaging/pkg/transport/natsbus"
)

const usage = `Usage: scoped-messaging [command]
       scoped-messaging serve                      Start the daemon (NATS receivers, HTTP health/metrics).
       scoped-messaging call <scope> <name> [json] Send one message and print the result.
       scoped-messaging watch [key]                Print storage change events (all keys, or one key).
       scoped-messaging migrate up                 Run database migrations.
       scoped-messaging migrate status             Show migration status.
       scoped-messaging ensure-db [name]           Create database if missing (default name: scoped_messaging_test). Uses DATABASE_URL host/user.
       scoped-messaging clear                      Delete all storage entries; schema is preserved.

Commands:
  serve            (default) Serve MESSAGING_SCOPES over NATS.
  call             One-shot request, e.g. call storage get '{"key":"theme"}'.
  watch [key]      Subscribe to storage change events until interrupted.
  migrate up       Run database migrations only.
  migrate status   Show current migration status.
  ensure-db [name] Create database on same host as DATABASE_URL; then run tests with that URL.
  clear            Truncate kv_entries.

Environment: COMMS_URL, MESSAGING_SCOPES, MESSAGING_SUBJECT_PREFIX, STORAGE_CHANGE_EVENT_SUBJECT, DATABASE_URL (optional for serve), MIGRATION_PATH, HTTP_PORT.
`

// errCallFailed marks a call answered with a Failure.
var errCallFailed = errors.New("call returned failure")

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "call":
		if err := runCall(args[1:], os.Stdout); err != nil {
			if errors.Is(err, errCallFailed) {
				os.Exit(2)
			}
			log.Fatalf("scoped-messaging call: %v", err)
		}
		return
	case "watch":
		key := ""
		if len(args) > 1 {
			key = args[1]
		}
		if err := runWatch(key, os.Stdout); err != nil {
			log.Fatalf("scoped-messaging watch: %v", err)
		}
		return
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("scoped-messaging migrate: require subcommand (up, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("scoped-messaging migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(os.Stdout); err != nil {
				log.Fatalf("scoped-messaging migrate status: %v", err)
			}
		default:
			log.Fatalf("scoped-messaging migrate: unknown subcommand %q (use up, status)", sub)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("scoped-messaging clear: %v", err)
		}
		return
	case "ensure-db":
		dbName := "scoped_messaging_test"
		if len(args) > 1 && args[1] != "" {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("scoped-messaging ensure-db: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("scoped-messaging: %v", err)
	}
}

// parseCallArgs reads <scope> <name> [json]. A missing payload sends no req.
func parseCallArgs(args []string) (scope, name string, req any, err error) {
	if len(args) < 2 || args[0] == "" || args[1] == "" {
		return "", "", nil, fmt.Errorf("require <scope> <name> [json]")
	}
	scope, name = args[0], args[1]
	if len(args) > 2 && args[2] != "" {
		if err := jsoncodec.Unmarshal([]byte(args[2]), &req); err != nil {
			return "", "", nil, fmt.Errorf("invalid json payload: %w", err)
		}
	}
	return scope, name, req, nil
}

// formatResult renders a Success payload as JSON. A Failure is returned as
// an error wrapping errCallFailed.
func formatResult(res result.Result) (string, error) {
	if res.IsFailure() {
		return "", fmt.Errorf("%w: %s", errCallFailed, res.Message())
	}
	if !res.HasData() {
		return "ok", nil
	}
	data, err := jsoncodec.Marshal(res.Data())
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

func runCall(args []string, w io.Writer) error {
	scope, name, req, err := parseCallArgs(args)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForCall(); err != nil {
		return err
	}

	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-cli")
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	defer nc.Close()

	client := natsbus.NewClient(nc, &natsbus.ClientOptions{
		SubjectPrefix:   cfg.SubjectPrefix,
		Origin:          cfg.COMMSName + "-cli",
		ProtocolVersion: cfg.ProtocolVersion,
		RequestTimeout:  cfg.RequestTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	res, err := caller.New(scope, client).Call(ctx, name, req)
	if err != nil {
		return err
	}
	out, err := formatResult(res)
	if err != nil {
		fmt.Fprintln(w, err.Error())
		return err
	}
	fmt.Fprintln(w, out)
	return nil
}

// watchSubject is the change subject for key, or the global one when key is empty.
func watchSubject(cfg *config.Config, key string) string {
	if key != "" {
		return commsutil.BuildChangeSubject(key)
	}
	if cfg.ChangeEventSubject != "" {
		return cfg.ChangeEventSubject
	}
	return commsutil.SubjectStorageChanged
}

func formatChange(e *events.StorageChangedEvent) string {
	line := fmt.Sprintf("%s %s %s rev=%d", e.Timestamp, e.Operation, e.Key, e.Revision)
	if e.Origin != "" {
		line += " origin=" + e.Origin
	}
	return line
}

// printChanges decodes each change event and writes one line per event to w.
func printChanges(w io.Writer) comms.MsgHandler {
	return func(msg *comms.Msg) {
		var e events.StorageChangedEvent
		if err := commsutil.DecodePayload(msg.Data, &e); err != nil {
			fmt.Fprintf(w, "undecodable event on %s: %v\n", msg.Subject, err)
			return
		}
		fmt.Fprintln(w, formatChange(&e))
	}
}

func runWatch(key string, w io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.COMMSURL == "" {
		return fmt.Errorf("COMMS_URL is required")
	}

	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-watch")
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	defer nc.Close()

	subject := watchSubject(cfg, key)
	sub, err := nc.Subscribe(subject, printChanges(w))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe()
	fmt.Fprintf(w, "Watching %s (Ctrl-C to stop)\n", subject)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

func runMigrateUp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus(w io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	status, err := db.MigrationStatus(ctx, pool, cfg.MigrationPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Migration files: %d (%s)\n", status.MigrationFiles, status.MigrationPath)
	if status.Applied {
		fmt.Fprintln(w, "Schema: kv_entries present.")
	} else {
		fmt.Fprintln(w, "Schema: kv_entries missing. Run: scoped-messaging migrate up")
	}
	return nil
}

func runClear() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := db.ClearEntries(ctx, pool); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	return nil
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	targetURL, err := withDatabase(cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	if err := db.EnsureDatabase(context.Background(), targetURL); err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", dbName)
	return nil
}

// withDatabase swaps the database path of databaseURL; the query (e.g. sslmode) is kept.
func withDatabase(databaseURL, dbName string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + dbName
	return u.String(), nil
}
