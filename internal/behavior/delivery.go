package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thoughtjack/thoughtjack/internal/config"
	"github.com/thoughtjack/thoughtjack/internal/generators"
)

// Delivery wraps the act of sending one response (§4.5).
type Delivery interface {
	Name() string
	SupportsTransport(kind TransportKind) bool
	Deliver(ctx context.Context, sender Sender, message []byte) error
}

// BuildDelivery constructs a Delivery from configuration. A nil cfg
// yields the default "normal" delivery.
func BuildDelivery(cfg *config.DeliveryConfig) (Delivery, error) {
	if cfg == nil {
		return normalDelivery{}, nil
	}
	switch cfg.Kind {
	case "", "normal":
		return normalDelivery{}, nil
	case "slow_loris":
		chunkSize := cfg.ChunkSize
		if chunkSize <= 0 {
			chunkSize = 1
		}
		return slowLorisDelivery{chunkSize: chunkSize, byteDelay: time.Duration(cfg.ByteDelayMs) * time.Millisecond}, nil
	case "unbounded_line":
		padding := cfg.PaddingChar
		if padding == "" {
			padding = " "
		}
		return unboundedLineDelivery{targetBytes: cfg.TargetBytes, padding: []byte(padding)[0]}, nil
	case "nested_json":
		key := cfg.Key
		if key == "" {
			key = "wrapped"
		}
		return nestedJSONDelivery{depth: cfg.Depth, key: key}, nil
	case "response_delay":
		return responseDelayDelivery{delay: time.Duration(cfg.DelayMs) * time.Millisecond}, nil
	default:
		return nil, fmt.Errorf("behavior: unknown delivery kind %q", cfg.Kind)
	}
}

type normalDelivery struct{}

func (normalDelivery) Name() string                            { return "normal" }
func (normalDelivery) SupportsTransport(TransportKind) bool     { return true }
func (normalDelivery) Deliver(ctx context.Context, s Sender, m []byte) error {
	return s.Send(ctx, m)
}

// slowLorisDelivery emits the serialized message in small chunks with a
// delay between each, via SendRaw (§4.5).
type slowLorisDelivery struct {
	chunkSize int
	byteDelay time.Duration
}

func (slowLorisDelivery) Name() string                        { return "slow_loris" }
func (slowLorisDelivery) SupportsTransport(TransportKind) bool { return true }

func (d slowLorisDelivery) Deliver(ctx context.Context, s Sender, message []byte) error {
	for off := 0; off < len(message); off += d.chunkSize {
		end := off + d.chunkSize
		if end > len(message) {
			end = len(message)
		}
		if err := s.SendRaw(ctx, message[off:end]); err != nil {
			return err
		}
		if end < len(message) && d.byteDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.byteDelay):
			}
		}
	}
	if s.Kind() == TransportStdio {
		return s.SendRaw(ctx, []byte("\n"))
	}
	return nil
}

// unboundedLineDelivery pads the message to targetBytes with paddingChar
// and omits the trailing delimiter entirely (§4.5: stdio line framing
// depends on a terminator; withholding it strands a reader mid-line).
type unboundedLineDelivery struct {
	targetBytes int
	padding     byte
}

func (unboundedLineDelivery) Name() string                        { return "unbounded_line" }
func (unboundedLineDelivery) SupportsTransport(TransportKind) bool { return true }

func (d unboundedLineDelivery) Deliver(ctx context.Context, s Sender, message []byte) error {
	if len(message) >= d.targetBytes {
		return s.SendRaw(ctx, message)
	}
	padded := make([]byte, d.targetBytes)
	copy(padded, message)
	for i := len(message); i < d.targetBytes; i++ {
		padded[i] = d.padding
	}
	return s.SendRaw(ctx, padded)
}

// nestedJSONDelivery wraps the response JSON in depth levels of {key: …}
// before sending (§4.5), reusing the same iterative wrapper the nested_json
// generator uses.
type nestedJSONDelivery struct {
	depth int
	key   string
}

func (nestedJSONDelivery) Name() string                        { return "nested_json" }
func (nestedJSONDelivery) SupportsTransport(TransportKind) bool { return true }

func (d nestedJSONDelivery) Deliver(ctx context.Context, s Sender, message []byte) error {
	var inner interface{}
	if err := json.Unmarshal(message, &inner); err != nil {
		return fmt.Errorf("behavior: nested_json delivery requires valid JSON input: %w", err)
	}
	wrapped := generators.WrapNested(inner, d.depth, d.key, "object")
	out, err := json.Marshal(wrapped)
	if err != nil {
		return err
	}
	return s.Send(ctx, out)
}

// responseDelayDelivery sleeps before a normal send (§4.5: "the delivery
// *is* the timing attack" — there is no built-in delivery timeout).
type responseDelayDelivery struct {
	delay time.Duration
}

func (responseDelayDelivery) Name() string                        { return "response_delay" }
func (responseDelayDelivery) SupportsTransport(TransportKind) bool { return true }

func (d responseDelayDelivery) Deliver(ctx context.Context, s Sender, message []byte) error {
	if d.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.delay):
		}
	}
	return s.Send(ctx, message)
}
