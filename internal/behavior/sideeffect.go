package behavior

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/thoughtjack/thoughtjack/internal/config"
	"github.com/thoughtjack/thoughtjack/internal/generators"
)

// SideEffect fires at a configured trigger point (§4.5: on_connect,
// on_request, continuous, on_subscribe, on_unsubscribe — the coordinator
// and server loop decide when to call Trigger; SideEffect only knows how).
type SideEffect interface {
	Name() string
	SupportsTransport(kind TransportKind) bool
	Trigger(ctx context.Context, eff Effector) error
}

// BuildSideEffect constructs a SideEffect from configuration.
func BuildSideEffect(cfg config.SideEffectConfig) (SideEffect, error) {
	switch cfg.Kind {
	case "notification_flood":
		return newNotificationFlood(cfg), nil
	case "batch_amplify":
		return newBatchAmplify(cfg), nil
	case "pipe_deadlock":
		return newPipeDeadlock(cfg), nil
	case "close_connection":
		return newCloseConnection(cfg), nil
	case "duplicate_request_ids":
		return newDuplicateRequestIDs(cfg), nil
	default:
		return nil, fmt.Errorf("behavior: unknown side effect kind %q", cfg.Kind)
	}
}

// notificationFlood emits notifications at rate_per_sec for duration,
// paced by a token-bucket limiter (§4.5).
type notificationFlood struct {
	method   string
	rps      float64
	duration time.Duration
}

func newNotificationFlood(cfg config.SideEffectConfig) notificationFlood {
	method := cfg.Method
	if method == "" {
		method = "notifications/message"
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	duration, _ := time.ParseDuration(cfg.Duration)
	if duration <= 0 {
		duration = time.Second
	}
	return notificationFlood{method: method, rps: rps, duration: duration}
}

func (notificationFlood) Name() string                        { return "notification_flood" }
func (notificationFlood) SupportsTransport(TransportKind) bool { return true }

func (n notificationFlood) Trigger(ctx context.Context, eff Effector) error {
	limiter := rate.NewLimiter(rate.Limit(n.rps), 1)
	deadline := time.Now().Add(n.duration)
	for time.Now().Before(deadline) {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := eff.SendNotification(ctx, n.method, nil); err != nil {
			return err
		}
	}
	return nil
}

// batchAmplify turns one incoming request into amplify_count outgoing
// notifications (§4.5).
type batchAmplify struct {
	method string
	count  int
}

func newBatchAmplify(cfg config.SideEffectConfig) batchAmplify {
	method := cfg.Method
	if method == "" {
		method = "notifications/message"
	}
	count := cfg.AmplifyCount
	if count <= 0 {
		count = 1
	}
	return batchAmplify{method: method, count: count}
}

func (batchAmplify) Name() string                        { return "batch_amplify" }
func (batchAmplify) SupportsTransport(TransportKind) bool { return true }

func (b batchAmplify) Trigger(ctx context.Context, eff Effector) error {
	for i := 0; i < b.count; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := eff.SendNotification(ctx, b.method, nil); err != nil {
			return err
		}
	}
	return nil
}

const pipeDeadlockChunkBytes = 64 * 1024

// pipeDeadlock writes garbage until the pipe fills, never reading — stdio
// only, since HTTP has no fixed-size kernel pipe to back up (§4.5).
type pipeDeadlock struct{}

func newPipeDeadlock(config.SideEffectConfig) pipeDeadlock { return pipeDeadlock{} }

func (pipeDeadlock) Name() string { return "pipe_deadlock" }
func (pipeDeadlock) SupportsTransport(kind TransportKind) bool {
	return kind == TransportStdio
}

func (pipeDeadlock) Trigger(ctx context.Context, eff Effector) error {
	g, err := generators.NewGarbage(generators.GarbageParams{Bytes: pipeDeadlockChunkBytes, Charset: "binary"}, generators.DefaultLimits)
	if err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		payload, err := g.Generate()
		if err != nil {
			return err
		}
		if err := eff.SendRaw(ctx, payload.Bytes()); err != nil {
			return err
		}
	}
}

// closeConnection requests cooperative server shutdown (§4.5).
type closeConnection struct{}

func newCloseConnection(config.SideEffectConfig) closeConnection { return closeConnection{} }

func (closeConnection) Name() string                        { return "close_connection" }
func (closeConnection) SupportsTransport(TransportKind) bool { return true }

func (closeConnection) Trigger(ctx context.Context, eff Effector) error {
	eff.RequestShutdown("close_connection side effect triggered")
	return nil
}

// duplicateRequestIDs emits id_count server-initiated requests that all
// share the same id, to probe a client's id-collision handling (§4.5).
type duplicateRequestIDs struct {
	method string
	count  int
}

func newDuplicateRequestIDs(cfg config.SideEffectConfig) duplicateRequestIDs {
	method := cfg.Method
	if method == "" {
		method = "sampling/createMessage"
	}
	count := cfg.IDCount
	if count <= 0 {
		count = 1
	}
	return duplicateRequestIDs{method: method, count: count}
}

func (duplicateRequestIDs) Name() string                        { return "duplicate_request_ids" }
func (duplicateRequestIDs) SupportsTransport(TransportKind) bool { return true }

func (d duplicateRequestIDs) Trigger(ctx context.Context, eff Effector) error {
	const duplicateID = 1
	for i := 0; i < d.count; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := eff.SendRequest(ctx, duplicateID, d.method, nil); err != nil {
			return err
		}
	}
	return nil
}
