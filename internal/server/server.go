// Package server drives ThoughtJack's per-connection request loop: receive,
// validate, snapshot the pre-transition effective state, count events,
// evaluate the current phase's advance trigger, dispatch against the
// pre-transition state, resolve delivery and side effects against that same
// state, deliver, finalize, fire request-scoped side effects, and — only
// for the one caller that won a phase transition — run the new phase's
// entry actions and publish the transition.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thoughtjack/thoughtjack/internal/behavior"
	"github.com/thoughtjack/thoughtjack/internal/calltracker"
	"github.com/thoughtjack/thoughtjack/internal/config"
	"github.com/thoughtjack/thoughtjack/internal/events"
	"github.com/thoughtjack/thoughtjack/internal/generators"
	"github.com/thoughtjack/thoughtjack/internal/handlers"
	"github.com/thoughtjack/thoughtjack/internal/match"
	"github.com/thoughtjack/thoughtjack/internal/mcp"
	"github.com/thoughtjack/thoughtjack/internal/metrics"
	"github.com/thoughtjack/thoughtjack/internal/phase"
	"github.com/thoughtjack/thoughtjack/internal/pipeline"
	"github.com/thoughtjack/thoughtjack/internal/template"
	"github.com/thoughtjack/thoughtjack/internal/transport"
)

// Side-effect trigger names, matching the scenario YAML's side_effects[].trigger
// values (§4.5).
const (
	triggerOnConnect     = "on_connect"
	triggerOnRequest     = "on_request"
	triggerContinuous    = "continuous"
	triggerOnSubscribe   = "on_subscribe"
	triggerOnUnsubscribe = "on_unsubscribe"
)

// Config is everything one Server needs, already normalized by
// internal/config and resolved from the CLI/env knobs that choose it
// (§6.1, §6.2).
type Config struct {
	Scenario              string
	Baseline              *config.BaselineState
	Phases                []config.Phase
	StateScope            phase.Scope
	UnknownMethods        mcp.UnknownMethodPolicy
	AllowExternalHandlers bool
	CLIDeliveryKind       string
	ServerVersion         string
	FileRoot              string
	Limits                generators.Limits
	EventCardinality      int64
	TimerInterval         time.Duration

	Events  *events.Emitter
	Metrics *metrics.Collector
}

func (c *Config) fillDefaults() {
	if c.Events == nil {
		c.Events = events.Noop()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NewCollector()
	}
	if c.UnknownMethods == "" {
		c.UnknownMethods = mcp.UnknownMethodError
	}
	if c.EventCardinality <= 0 {
		c.EventCardinality = config.DefaultEventCardinality
	}
	if c.TimerInterval <= 0 {
		c.TimerInterval = time.Duration(config.DefaultTimerIntervalMs) * time.Millisecond
	}
	if c.Baseline == nil {
		c.Baseline = &config.BaselineState{}
	}
}

// Server wires one scenario's phase engine, dispatcher, and behavior
// coordinator to however many connections a transport hands it. One Server
// can drive stdio's single implicit connection or an HTTP listener's many
// sessions (§4.1).
type Server struct {
	cfg        Config
	factory    *phase.Factory
	dispatcher *handlers.Dispatcher

	activeConns atomic.Int64
	effectsWG   sync.WaitGroup

	connsMu sync.Mutex
	conns   map[string]*connState

	runMu      sync.Mutex
	runCancel  context.CancelFunc
	stopReason string
}

// New builds a Server from cfg. cfg.Baseline/Phases should already be the
// output of config.ServerConfig.Normalize.
func New(cfg Config) *Server {
	cfg.fillDefaults()
	return &Server{
		cfg:     cfg,
		conns:   make(map[string]*connState),
		factory: phase.NewFactory(cfg.StateScope, cfg.Baseline, cfg.Phases, cfg.EventCardinality, cfg.TimerInterval),
		dispatcher: &handlers.Dispatcher{
			Tracker: calltracker.New(),
			PipelineOpts: pipeline.Options{
				AllowExternalHandlers: cfg.AllowExternalHandlers,
				Limits:                cfg.Limits,
				FileRoot:              cfg.FileRoot,
			},
			UnknownMethods: cfg.UnknownMethods,
			ServerVersion:  cfg.ServerVersion,
		},
	}
}

// RunStdio serves the single implicit stdio connection until ctx is
// cancelled, the transport reports a fatal I/O error, or a phase transition
// reaches a terminal state by timeout-abort (§4.1, §7, §8 scenario 7:
// "server marks terminal... exits").
func (s *Server) RunStdio(ctx context.Context, tr transport.Transport) {
	s.cfg.Events.ServerStarted(s.cfg.Scenario)
	runCtx, cancel := context.WithCancel(ctx)
	s.setRunCancel(cancel)
	defer cancel()
	s.runConnection(runCtx, tr)
	s.cfg.Events.ServerStopped(s.takeStopReason("stdio connection closed"), "")
}

// RunHTTP accepts sessions from httpServer until ctx is cancelled, a
// terminal-by-abort transition requests a stop (§8 scenario 7), or the
// listener itself fails, spawning one goroutine per newly-seen session
// (§4.1, §5).
func (s *Server) RunHTTP(ctx context.Context, httpServer *transport.HTTPServer) {
	s.cfg.Events.ServerStarted(s.cfg.Scenario)
	runCtx, cancel := context.WithCancel(ctx)
	s.setRunCancel(cancel)
	defer cancel()
	var wg sync.WaitGroup
	for {
		conn, err := httpServer.Accept(runCtx)
		if err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runConnection(runCtx, conn)
		}()
	}
	wg.Wait()
	s.cfg.Events.ServerStopped(s.takeStopReason("http listener stopped"), "")
}

// Drain waits up to budget for any still-running continuous side effects to
// notice ctx cancellation and return, then gives up (§5: "2s continuous-
// side-effect shutdown drain").
func (s *Server) Drain(budget time.Duration) {
	done := make(chan struct{})
	go func() {
		s.effectsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(budget):
	}
}

func (s *Server) connectionOpened() {
	n := s.activeConns.Add(1)
	s.cfg.Metrics.SetConnectionsActive(int(n))
}

func (s *Server) connectionClosed() {
	n := s.activeConns.Add(-1)
	s.cfg.Metrics.SetConnectionsActive(int(n))
}

// registerConn/unregisterConn maintain the set of live connections a
// Global-scope phase transition broadcasts its entry actions to (§9's
// shared-state design note: one phase progression, observed by every
// connected client).
func (s *Server) registerConn(conn *connState) {
	s.connsMu.Lock()
	s.conns[conn.cc.ID] = conn
	s.connsMu.Unlock()
}

func (s *Server) unregisterConn(conn *connState) {
	s.connsMu.Lock()
	delete(s.conns, conn.cc.ID)
	s.connsMu.Unlock()
}

func (s *Server) liveEffectors() []behavior.Effector {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	out := make([]behavior.Effector, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c.effector)
	}
	return out
}

// effectorsForTransition picks who a phase transition's on_enter actions
// run against: every live connection under Global scope, since they share
// one phase progression, or just the firing connection under PerConnection
// scope, since every other connection has its own independent engine.
func (s *Server) effectorsForTransition(conn *connState) []behavior.Effector {
	if s.cfg.StateScope == phase.ScopeGlobal {
		return s.liveEffectors()
	}
	return []behavior.Effector{conn.effector}
}

func (s *Server) setRunCancel(cancel context.CancelFunc) {
	s.runMu.Lock()
	s.runCancel = cancel
	s.runMu.Unlock()
}

// requestTerminalStop cancels the running server's root context so every
// connection's blocked Receive returns even with no in-flight request, and
// records reason as why the server stopped — first reason wins, so a
// terminal-phase abort is never overwritten by the generic reason the
// run loop reports once it observes the cancellation (§8 scenario 7).
func (s *Server) requestTerminalStop(reason string) {
	s.runMu.Lock()
	if s.stopReason == "" {
		s.stopReason = reason
	}
	cancel := s.runCancel
	s.runMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Server) takeStopReason(fallback string) string {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stopReason != "" {
		return s.stopReason
	}
	return fallback
}

func transportKindOf(k transport.Kind) behavior.TransportKind {
	if k == transport.KindHTTP {
		return behavior.TransportHTTP
	}
	return behavior.TransportStdio
}

// connState is the per-connection collaborators the request loop closes
// over: the phase engine this connection uses (shared or owned, per
// state_scope), the behavior coordinator built for this connection's
// transport kind, the effector side effects fire through, and which
// "continuous" side effects have already been started once.
type connState struct {
	tr          transport.Transport
	cc          transport.ConnectionContext
	engine      *phase.Engine
	coordinator *behavior.Coordinator
	effector    *transportEffector

	continuousMu      sync.Mutex
	continuousStarted map[string]bool
}

func (c *connState) startContinuousOnce(name string) bool {
	c.continuousMu.Lock()
	defer c.continuousMu.Unlock()
	if c.continuousStarted[name] {
		return false
	}
	c.continuousStarted[name] = true
	return true
}

// matchFnFor builds the match.Resolver the current phase's content trigger
// (When/WhenField) and this request's behavior scoping both evaluate
// against, from the raw inbound request — ahead of full dispatch, so the
// generic tools/call, resources/read, prompts/get argument decoding that
// backs it is duplicated here rather than shared with internal/handlers'
// private param structs (§4.7 step 4-5 run before step 6's dispatch).
func (c *connState) matchFnFor(req *mcp.Request, specificName string) func(field string, cond *config.Condition) bool {
	pre := &template.Context{
		Args:         mcp.GenericArguments(req.Method, req.Params),
		Request:      &template.RequestContext{ID: req.ID, Method: req.Method},
		ConnectionID: c.cc.ID,
	}
	switch req.Method {
	case mcp.MethodToolsCall:
		pre.Tool = &template.ToolContext{Name: specificName}
	case mcp.MethodResourcesRead:
		pre.Resource = &template.ResourceContext{URI: specificName}
	case mcp.MethodPromptsGet:
		pre.Prompt = &template.PromptContext{Name: specificName}
	}
	return func(field string, cond *config.Condition) bool {
		return match.EvaluateField(field, cond, pre)
	}
}

func itemBehaviorFor(state *phase.EffectiveState, method, name string) *config.Behavior {
	switch method {
	case mcp.MethodToolsCall:
		if t, ok := state.Tools[name]; ok {
			return t.Behavior
		}
	case mcp.MethodResourcesRead:
		if r, ok := state.Resources[name]; ok {
			return r.Behavior
		}
	case mcp.MethodPromptsGet:
		if p, ok := state.Prompts[name]; ok {
			return p.Behavior
		}
	}
	return nil
}

// marshalResponse is the JSON encoding step shared by every delivery kind;
// a failure here is a bug in one of our own result types, not a client
// input problem, so it's logged rather than surfaced as a protocol error.
func marshalResponse(resp *mcp.Response) ([]byte, error) {
	return json.Marshal(resp)
}
