package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/thoughtjack/thoughtjack/internal/behavior"
	"github.com/thoughtjack/thoughtjack/internal/calltracker"
	"github.com/thoughtjack/thoughtjack/internal/config"
	"github.com/thoughtjack/thoughtjack/internal/handlers"
	"github.com/thoughtjack/thoughtjack/internal/mcp"
	"github.com/thoughtjack/thoughtjack/internal/phase"
	"github.com/thoughtjack/thoughtjack/internal/template"
	"github.com/thoughtjack/thoughtjack/internal/transport"
)

// runConnection drives one connection's request loop until its context is
// cancelled or the transport reports a fatal error (§4.1, §7: "transport
// I/O error: fatal, terminates the connection's loop").
func (s *Server) runConnection(ctx context.Context, tr transport.Transport) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cc := tr.ConnectionContext()
	handle := s.factory.HandleFor(cc.ID)
	defer handle.Release()

	s.connectionOpened()
	defer s.connectionClosed()

	conn := &connState{
		tr:                tr,
		cc:                cc,
		engine:            handle.Engine(),
		coordinator:       behavior.NewCoordinator(s.cfg.CLIDeliveryKind, s.cfg.Baseline.Behavior, transportKindOf(cc.Kind)),
		effector:          newTransportEffector(tr, cancel),
		continuousStarted: make(map[string]bool),
	}

	s.registerConn(conn)
	defer s.unregisterConn(conn)

	// Wire the engine's timer-fired transitions to run on_enter actions and
	// check for a terminal-by-abort stop exactly the way a request-fired
	// transition does (§4.4, §8 scenario 7). Under Global scope every
	// connection sharing this engine installs the same (functionally
	// equivalent) callback; the last one to run wins harmlessly.
	conn.engine.SetOnAdvance(func(idx int, newPhase *config.Phase) {
		s.runTransitionEffects(ctx, conn.engine, s.effectorsForTransition(conn), idx, newPhase)
	})

	for {
		raw, err := tr.Receive(connCtx)
		if err != nil {
			return
		}
		s.handleMessage(connCtx, conn, raw)
		if connCtx.Err() != nil {
			return
		}
	}
}

// handleMessage runs the full per-request loop (§4.7) for one raw inbound
// message against conn's phase engine.
func (s *Server) handleMessage(ctx context.Context, conn *connState, raw []byte) {
	start := time.Now()

	// Step 1/2: decode, validating but not rejecting a version mismatch.
	req, err := mcp.DecodeRequest(raw)
	if err != nil {
		slog.Warn("thoughtjack: dropping unparseable message", "error", err)
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		slog.Warn("thoughtjack: jsonrpc version mismatch", "got", req.JSONRPC, "method", req.Method)
	}

	s.cfg.Events.RequestReceived(req.Method, req.ID)
	s.cfg.Metrics.RecordRequest(req.Method)

	engine := conn.engine

	// Step 3: snapshot the pre-transition state and phase identity together,
	// before any counter increment below can flip the phase index.
	preIndex := engine.Index()
	prePhaseName := engine.CurrentPhaseName()
	state := engine.Effective()

	// Step 4: count the generic event and, if this method has one, the
	// specific sub-event.
	generic, hasSpecific := mcp.EventNameForMethod(req.Method)
	specificName := ""
	if hasSpecific {
		specificName = mcp.SpecificName(req.Method, req.Params)
	}
	engine.State.IncrementEvent(generic)
	specificEventKey := ""
	if specificName != "" {
		specificEventKey = generic + ":" + specificName
		engine.State.IncrementEvent(specificEventKey)
	}

	// Step 5: evaluate the generic then specific trigger. CheckAdvanceOn*
	// re-checks the same current-phase Advance trigger each call, so a
	// second call after the first already won is a harmless no-op CAS.
	matchFn := conn.matchFnFor(req, specificName)
	advanced := engine.CheckAdvanceOnEventWithMatch(generic, matchFn)
	if !advanced && specificEventKey != "" {
		advanced = engine.CheckAdvanceOnEventWithMatch(specificEventKey, matchFn)
	}

	// Step 6: dispatch against the pre-transition state.
	scope := handlers.RequestScope{
		ConnectionID: conn.cc.ID,
		CallScope:    calltracker.GlobalScope,
		Phase:        template.PhaseContext{Name: prePhaseName, Index: preIndex},
	}
	out, derr := s.dispatcher.Dispatch(ctx, req, state, scope)
	if derr != nil {
		slog.Error("thoughtjack: dispatch failed", "method", req.Method, "error", derr)
		return
	}

	// Step 7: resolve delivery + side effects against the same pre-transition
	// state.
	itemBehavior := itemBehaviorFor(state, req.Method, specificName)
	resolved, rerr := conn.coordinator.Resolve(itemBehavior, state.Behavior)
	if rerr != nil {
		slog.Error("thoughtjack: resolving behavior failed", "error", rerr)
		resolved = behavior.Resolved{Delivery: mustNormalDelivery()}
	}

	// Step 8: deliver the response, if any (a nil Response means drop mode
	// or a request the dispatcher intentionally didn't answer).
	success := true
	if out.Response != nil {
		payload, merr := marshalResponse(out.Response)
		if merr != nil {
			slog.Error("thoughtjack: encoding response failed", "error", merr)
			success = false
		} else if err := resolved.Delivery.Deliver(ctx, conn.effector, payload); err != nil {
			slog.Warn("thoughtjack: delivery failed", "delivery", resolved.Delivery.Name(), "error", err)
			success = false
		}
	}

	// Step 9: finalize the response unit (closes an HTTP chunked body; a
	// no-op over stdio).
	if err := conn.tr.FinalizeResponse(ctx); err != nil {
		slog.Warn("thoughtjack: finalizing response failed", "error", err)
	}

	s.cfg.Events.ResponseSent(success, time.Since(start).Milliseconds())
	s.cfg.Metrics.RecordResponse(req.Method, success, float64(time.Since(start).Milliseconds()))

	// Step 10: fire side effects scoped to this request.
	active := map[string]bool{triggerOnRequest: true, triggerContinuous: true}
	if req.Method == mcp.MethodInitialize && out.Response != nil && out.Response.Error == nil {
		active[triggerOnConnect] = true
	}
	if req.Method == mcp.MethodResourcesSubscribe {
		active[triggerOnSubscribe] = true
	}
	if req.Method == mcp.MethodResourcesUnsubscribe {
		active[triggerOnUnsubscribe] = true
	}
	s.runSideEffects(ctx, conn, resolved, active)

	// Step 11: apply the transition this request's trigger won, if any, the
	// same way a timer-fired transition does (§4.4).
	if advanced {
		s.runTransitionEffects(ctx, conn.engine, s.effectorsForTransition(conn), conn.engine.Index(), conn.engine.CurrentPhase())
	}
}

// runSideEffects launches every resolved side effect whose trigger is
// active for this request in its own goroutine, tracked by s.effectsWG so
// Drain can wait for them at shutdown (§5). A "continuous" side effect
// only ever launches once per connection.
func (s *Server) runSideEffects(ctx context.Context, conn *connState, resolved behavior.Resolved, active map[string]bool) {
	for _, rse := range resolved.SideEffects {
		if !active[rse.Trigger] {
			continue
		}
		if rse.Trigger == triggerContinuous && !conn.startContinuousOnce(rse.Effect.Name()) {
			continue
		}

		s.effectsWG.Add(1)
		go func(rse behavior.ResolvedSideEffect) {
			defer s.effectsWG.Done()
			s.cfg.Events.SideEffectTriggered(rse.Effect.Name(), rse.Trigger)
			s.cfg.Metrics.RecordSideEffect(rse.Effect.Name())
			if err := rse.Effect.Trigger(ctx, conn.effector); err != nil && ctx.Err() == nil {
				slog.Warn("thoughtjack: side effect ended with error", "kind", rse.Effect.Name(), "trigger", rse.Trigger, "error", err)
			}
		}(rse)
	}
}

// runTransitionEffects runs a newly-entered phase's on_enter actions against
// effectors, publishes the transition, and — if the phase state is now
// terminal — stops the server and records why (§3 invariant: "response
// delivery completes before entry actions run"; §4.4 requires a timer-fired
// transition to do the same work a request-fired one does; §8 scenario 7:
// "server marks terminal... exits"). Called both after a request's trigger
// wins a transition and, via Engine.SetOnAdvance, after the background timer
// wins one.
func (s *Server) runTransitionEffects(ctx context.Context, eng *phase.Engine, effectors []behavior.Effector, idx int, newPhase *config.Phase) {
	name := eng.CurrentPhaseName()

	if newPhase != nil {
		for _, eff := range effectors {
			s.runActions(ctx, eff, newPhase.OnEnter)
		}
	}
	s.cfg.Events.PhaseEntered(name, idx, "")
	s.cfg.Metrics.RecordPhaseTransition(name, idx)

	if eng.State.IsTerminal() {
		s.requestTerminalStop("terminal_phase")
	}
}

// runActions executes one phase's on_enter action list in order (§3): a
// notification, a server-initiated request, or a log line. Action params
// are sent as configured; unlike response content they are not template-
// interpolated (§4.3 interpolation applies to tool/resource/prompt response
// content, not phase action parameters).
func (s *Server) runActions(ctx context.Context, eff behavior.Effector, actions []config.Action) {
	const entryRequestID = 1
	for _, a := range actions {
		switch {
		case a.Notification != "":
			if err := eff.SendNotification(ctx, a.Notification, a.Params); err != nil {
				slog.Warn("thoughtjack: on_enter notification failed", "method", a.Notification, "error", err)
			}
		case a.Request != "":
			if err := eff.SendRequest(ctx, entryRequestID, a.Request, a.Params); err != nil {
				slog.Warn("thoughtjack: on_enter request failed", "method", a.Request, "error", err)
			}
		case a.Log != "":
			slog.Info("thoughtjack: phase entry", "message", a.Log)
		}
	}
}

func mustNormalDelivery() behavior.Delivery {
	d, _ := behavior.BuildDelivery(nil)
	return d
}
