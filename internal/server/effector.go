package server

import (
	"context"

	"github.com/thoughtjack/thoughtjack/internal/behavior"
	"github.com/thoughtjack/thoughtjack/internal/mcp"
	"github.com/thoughtjack/thoughtjack/internal/transport"
)

// transportEffector adapts one connection's transport.Transport into the
// Sender/Effector surface internal/behavior's deliveries and side effects
// need, and wires RequestShutdown to the connection's own cancel func so a
// close_connection side effect only ever tears down the connection that
// triggered it (§4.5, §5).
type transportEffector struct {
	tr     transport.Transport
	cancel context.CancelFunc
}

func newTransportEffector(tr transport.Transport, cancel context.CancelFunc) *transportEffector {
	return &transportEffector{tr: tr, cancel: cancel}
}

func (e *transportEffector) Kind() behavior.TransportKind {
	if e.tr.ConnectionContext().Kind == transport.KindHTTP {
		return behavior.TransportHTTP
	}
	return behavior.TransportStdio
}

func (e *transportEffector) Send(ctx context.Context, message []byte) error {
	return e.tr.Send(ctx, message)
}

func (e *transportEffector) SendRaw(ctx context.Context, chunk []byte) error {
	return e.tr.SendRaw(ctx, chunk)
}

func (e *transportEffector) SendNotification(ctx context.Context, method string, params interface{}) error {
	raw, err := mcp.NewNotification(method, params)
	if err != nil {
		return err
	}
	return e.tr.Send(ctx, raw)
}

func (e *transportEffector) SendRequest(ctx context.Context, id interface{}, method string, params interface{}) error {
	raw, err := mcp.NewServerRequest(id, method, params)
	if err != nil {
		return err
	}
	return e.tr.Send(ctx, raw)
}

// RequestShutdown cancels this connection's context, ending its loop at the
// next cancellation-aware await point (§4.5, §5: "cancellation aborts
// ongoing receive and deliver at next await").
func (e *transportEffector) RequestShutdown(reason string) {
	e.cancel()
}
