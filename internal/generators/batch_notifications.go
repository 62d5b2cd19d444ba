package generators

import (
	"bytes"
	"encoding/json"
)

// BatchNotificationsParams configures the batch_notifications generator
// (§4.2).
type BatchNotificationsParams struct {
	Count  int
	Method string
	Params map[string]interface{}
}

func parseBatchParams(p map[string]interface{}) BatchNotificationsParams {
	return BatchNotificationsParams{
		Count:  paramInt(p, "count", 0),
		Method: paramString(p, "method", ""),
		Params: paramMap(p, "params"),
	}
}

type jsonRPCNotification struct {
	JSONRPC string                 `json:"jsonrpc"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// BatchNotifications builds a JSON array of count identical JSON-RPC
// notifications (§4.2), used to flood a client with amplified traffic
// from a single generated response.
type BatchNotifications struct {
	params BatchNotificationsParams
}

func NewBatchNotifications(params BatchNotificationsParams, limits Limits) (*BatchNotifications, error) {
	if params.Count > limits.MaxBatchSize {
		return nil, &LimitExceededError{Generator: "batch_notifications", Field: "count", Value: params.Count, Limit: limits.MaxBatchSize}
	}
	return &BatchNotifications{params: params}, nil
}

func (b *BatchNotifications) Name() string       { return "batch_notifications" }
func (b *BatchNotifications) ProducesJSON() bool { return true }

func (b *BatchNotifications) EstimatedSize() int {
	one, err := json.Marshal(jsonRPCNotification{JSONRPC: "2.0", Method: b.params.Method, Params: b.params.Params})
	if err != nil {
		return 0
	}
	if b.params.Count <= 0 {
		return 2
	}
	return 2 + b.params.Count*(len(one)+1) - 1
}

func (b *BatchNotifications) Generate() (Payload, error) {
	buf, err := b.build()
	if err != nil {
		return Payload{}, err
	}
	return bufferedOrStreamed(buf), nil
}

func (b *BatchNotifications) build() ([]byte, error) {
	one, err := json.Marshal(jsonRPCNotification{JSONRPC: "2.0", Method: b.params.Method, Params: b.params.Params})
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteByte('[')
	for i := 0; i < b.params.Count; i++ {
		if i > 0 {
			out.WriteByte(',')
		}
		out.Write(one)
	}
	out.WriteByte(']')
	return out.Bytes(), nil
}
