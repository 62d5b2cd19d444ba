package generators

import (
	"encoding/json"
	"strings"
)

// RepeatedKeysParams configures the repeated_keys generator (§4.2).
type RepeatedKeysParams struct {
	Count     int
	KeyLength int
	Value     string
}

func parseRepeatedKeysParams(p map[string]interface{}) RepeatedKeysParams {
	return RepeatedKeysParams{
		Count:     paramInt(p, "count", 0),
		KeyLength: paramInt(p, "key_length", 3),
		Value:     paramString(p, "value", "x"),
	}
}

// RepeatedKeys builds a JSON object as raw text with count entries of the
// same key, bypassing any deduplicating map — used to probe how
// tolerantly a client's JSON parser handles duplicate object keys (§4.2).
type RepeatedKeys struct {
	params RepeatedKeysParams
	key    string
	value  string
}

func NewRepeatedKeys(params RepeatedKeysParams, limits Limits) (*RepeatedKeys, error) {
	if params.Count > limits.MaxBatchSize {
		return nil, &LimitExceededError{Generator: "repeated_keys", Field: "count", Value: params.Count, Limit: limits.MaxBatchSize}
	}
	keyLen := params.KeyLength
	if keyLen <= 0 {
		keyLen = 3
	}
	keyBytes, err := json.Marshal(strings.Repeat("k", keyLen))
	if err != nil {
		return nil, err
	}
	valBytes, err := json.Marshal(params.Value)
	if err != nil {
		return nil, err
	}
	return &RepeatedKeys{params: params, key: string(keyBytes), value: string(valBytes)}, nil
}

func (r *RepeatedKeys) Name() string       { return "repeated_keys" }
func (r *RepeatedKeys) ProducesJSON() bool { return true }

func (r *RepeatedKeys) EstimatedSize() int {
	if r.params.Count <= 0 {
		return 2
	}
	entry := len(r.key) + 1 + len(r.value)
	return 2 + r.params.Count*entry + (r.params.Count - 1)
}

func (r *RepeatedKeys) Generate() (Payload, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i := 0; i < r.params.Count; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(r.key)
		b.WriteByte(':')
		b.WriteString(r.value)
	}
	b.WriteByte('}')
	return bufferedOrStreamed([]byte(b.String())), nil
}
