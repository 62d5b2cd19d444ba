// Package transport implements the two wire transports ThoughtJack can run
// over (§4.1, §6.3): line-delimited JSON-RPC over stdio, and HTTP's
// POST /message + GET /sse pairing. Both expose the same Transport
// interface so the server loop and the behavior package's delivery/side
// effect code stay transport-agnostic.
package transport

import "context"

// Kind identifies which transport a connection runs over.
type Kind string

const (
	KindStdio Kind = "stdio"
	KindHTTP  Kind = "http"
)

// ConnectionContext identifies one connection for per-connection phase
// state, template interpolation's connection.id, and event/metric labels.
type ConnectionContext struct {
	ID   string
	Kind Kind
}

// Transport is one connection's message channel (§4.1). Receive decodes
// the next inbound message, respecting ctx cancellation. Send writes one
// complete, framed outbound message. SendRaw writes exact bytes with no
// framing, for delivery behaviors that deliberately break framing
// (slow_loris, unbounded_line). FinalizeResponse ends the current
// response unit — it closes out an HTTP request's chunked body, and is a
// no-op for stdio, which has no such unit. Supports reports whether this
// transport is of the given kind, for SupportsTransport-style gating.
type Transport interface {
	Receive(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, message []byte) error
	SendRaw(ctx context.Context, chunk []byte) error
	FinalizeResponse(ctx context.Context) error
	Supports(kind Kind) bool
	ConnectionContext() ConnectionContext
}
