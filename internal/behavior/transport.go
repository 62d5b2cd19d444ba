// Package behavior implements the delivery and side-effect behaviors from
// §4.5: how a response is sent (normal, slow_loris, unbounded_line,
// nested_json, response_delay) and what side effects fire alongside a
// request (notification_flood, batch_amplify, pipe_deadlock,
// close_connection, duplicate_request_ids), plus the scoping coordinator
// that resolves both from CLI override, tool/resource/prompt behavior,
// phase behavior, and baseline behavior, in that priority order.
package behavior

import "context"

// TransportKind identifies which transport a delivery or side effect is
// running against, so SupportsTransport gating (§4.5: "unsupported
// combinations are logged and skipped") can be evaluated.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// Sender is the minimal transport surface a delivery behavior needs: Send
// writes one complete, delimited message; SendRaw writes exact bytes with
// no framing added, for behaviors that deliberately break framing.
type Sender interface {
	Send(ctx context.Context, message []byte) error
	SendRaw(ctx context.Context, chunk []byte) error
	Kind() TransportKind
}

// Effector is the transport surface a side effect needs: everything a
// Sender can do, plus server-initiated notifications/requests and a
// cooperative shutdown request.
type Effector interface {
	Sender
	SendNotification(ctx context.Context, method string, params interface{}) error
	SendRequest(ctx context.Context, id interface{}, method string, params interface{}) error
	RequestShutdown(reason string)
}
