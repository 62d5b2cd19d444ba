// Command thoughtjack runs one adversarial MCP scenario over stdio or
// HTTP (§6.1).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thoughtjack/thoughtjack/internal/config"
	"github.com/thoughtjack/thoughtjack/internal/events"
	"github.com/thoughtjack/thoughtjack/internal/generators"
	"github.com/thoughtjack/thoughtjack/internal/mcp"
	"github.com/thoughtjack/thoughtjack/internal/metrics"
	"github.com/thoughtjack/thoughtjack/internal/phase"
	"github.com/thoughtjack/thoughtjack/internal/server"
	"github.com/thoughtjack/thoughtjack/internal/transport"
)

const drainBudget = 2 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a scenario YAML file")
	scenario := flag.String("scenario", "", "scenario name, logged and emitted as the running scenario's identity")
	httpAddr := flag.String("http", "", "listen address for the HTTP transport; stdio is used when empty")
	behaviorOverride := flag.String("behavior", "", "CLI delivery override, takes priority over every configured behavior")
	stateScopeFlag := flag.String("state-scope", "", "global or per-connection phase state scope, overriding the scenario's state_scope")
	captureDir := flag.String("capture-dir", "", "directory to create for traffic capture (disabled when empty); no capture files are written to it")
	eventsFile := flag.String("events-file", "", "path to append JSONL lifecycle events to (disabled when empty)")
	metricsPort := flag.Uint("metrics-port", 0, "port to serve Prometheus metrics on (disabled when 0)")
	allowExternalHandlers := flag.Bool("allow-external-handlers", false, "allow scenario-configured external command/HTTP handlers to run")
	spoofClient := flag.String("spoof-client", "", "client name to spoof; it is logged only and does not change the initialize handshake")
	quiet := flag.Bool("quiet", false, "suppress non-fatal log output")
	flag.Parse()

	if *quiet {
		slog.SetLogLoggerLevel(slog.LevelError)
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "thoughtjack: --config is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thoughtjack: loading scenario: %v\n", err)
		os.Exit(1)
	}

	name := *scenario
	if name == "" {
		name = cfg.Name
	}
	if *spoofClient != "" {
		slog.Info("thoughtjack: spoof-client set (logged only, not applied to the handshake)", "client", *spoofClient)
	}

	baseline, phases := cfg.Normalize()
	stateScope := phase.ParseScope(cfg.StateScope)
	if *stateScopeFlag != "" {
		stateScope = phase.ParseScope(*stateScopeFlag)
	}
	unknownMethods := mcp.ParseUnknownMethodPolicy(cfg.UnknownMethods)

	eventsEmitter := events.Noop()
	if *eventsFile != "" {
		f, err := os.OpenFile(*eventsFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "thoughtjack: opening events file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		eventsEmitter = events.NewEmitter(f)
	}

	metricsCollector := metrics.NewCollector()
	if *metricsPort != 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsCollector.Handler())
		metricsSrv := &http.Server{Addr: fmt.Sprintf(":%d", *metricsPort), Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("thoughtjack: metrics listener stopped", "error", err)
			}
		}()
	}

	if *captureDir != "" {
		if err := os.MkdirAll(*captureDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "thoughtjack: creating capture dir: %v\n", err)
			os.Exit(1)
		}
	}

	srv := server.New(server.Config{
		Scenario:              name,
		Baseline:              baseline,
		Phases:                phases,
		StateScope:            stateScope,
		UnknownMethods:        unknownMethods,
		AllowExternalHandlers: *allowExternalHandlers,
		CLIDeliveryKind:       *behaviorOverride,
		ServerVersion:         mcp.ProtocolVersion,
		Limits:                generators.DefaultLimits,
		Events:                eventsEmitter,
		Metrics:               metricsCollector,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *httpAddr == "" {
		runStdio(ctx, srv)
	} else {
		runHTTP(ctx, srv, *httpAddr)
	}

	srv.Drain(drainBudget)
}

func runStdio(ctx context.Context, srv *server.Server) {
	tr := transport.NewStdioTransport(os.Stdin, os.Stdout, config.DefaultStdioBufferSize, config.DefaultMaxMessageSize)
	srv.RunStdio(ctx, tr)
}

func runHTTP(ctx context.Context, srv *server.Server, addr string) {
	httpServer := transport.NewHTTPServer(256, config.DefaultMaxMessageSize)
	listener := &http.Server{Addr: addr, Handler: httpServer.Handler()}

	go func() {
		if err := listener.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "thoughtjack: http listener stopped: %v\n", err)
			os.Exit(1)
		}
	}()

	srv.RunHTTP(ctx, httpServer)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainBudget)
	defer cancel()
	_ = listener.Shutdown(shutdownCtx)
}
