package generators

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestGarbageDeterministicSameSeed(t *testing.T) {
	g1, err := NewGarbage(GarbageParams{Bytes: 1024, Charset: "ascii", Seed: 42}, DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	p1, _ := g1.Generate()

	g2, _ := NewGarbage(GarbageParams{Bytes: 1024, Charset: "ascii", Seed: 42}, DefaultLimits)
	p2, _ := g2.Generate()

	if !bytes.Equal(p1.Bytes(), p2.Bytes()) {
		t.Fatal("expected identical payloads for identical seed")
	}
}

func TestGarbageDifferentSeedDiffers(t *testing.T) {
	g1, _ := NewGarbage(GarbageParams{Bytes: 1024, Charset: "ascii", Seed: 42}, DefaultLimits)
	p1, _ := g1.Generate()
	g2, _ := NewGarbage(GarbageParams{Bytes: 1024, Charset: "ascii", Seed: 43}, DefaultLimits)
	p2, _ := g2.Generate()
	if bytes.Equal(p1.Bytes(), p2.Bytes()) {
		t.Fatal("expected different payloads for different seeds")
	}
}

func TestGarbageExceedsLimitFailsAtConstruction(t *testing.T) {
	_, err := NewGarbage(GarbageParams{Bytes: 100, Charset: "ascii"}, Limits{MaxPayloadBytes: 10})
	if err == nil {
		t.Fatal("expected LimitExceeded")
	}
}

func TestGarbageExactByteLength(t *testing.T) {
	g, _ := NewGarbage(GarbageParams{Bytes: 777, Charset: "binary", Seed: 1}, DefaultLimits)
	p, _ := g.Generate()
	if len(p.Bytes()) != 777 {
		t.Fatalf("got %d bytes, want 777", len(p.Bytes()))
	}
}

func TestGarbageStreamsAboveThreshold(t *testing.T) {
	g, _ := NewGarbage(GarbageParams{Bytes: streamThreshold + 1, Charset: "ascii", Seed: 7}, DefaultLimits)
	p, err := g.Generate()
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsStreamed() {
		t.Fatal("expected streamed payload above threshold")
	}
	total := 0
	for {
		chunk, ok := p.Chunks().Next()
		if !ok {
			break
		}
		total += len(chunk)
	}
	if total != streamThreshold+1 {
		t.Fatalf("got %d total bytes, want %d", total, streamThreshold+1)
	}
}

func TestNestedJSONDepthZeroReturnsInner(t *testing.T) {
	n, _ := NewNestedJSON(NestedJSONParams{Depth: 0, Inner: "literal"}, DefaultLimits)
	p, _ := n.Generate()
	var got string
	if err := json.Unmarshal(p.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got != "literal" {
		t.Fatalf("got %q", got)
	}
}

func TestNestedJSONObjectWrapping(t *testing.T) {
	n, _ := NewNestedJSON(NestedJSONParams{Depth: 2, Structure: "object", Key: "data", Inner: "x"}, DefaultLimits)
	p, _ := n.Generate()
	var got map[string]interface{}
	if err := json.Unmarshal(p.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	inner, ok := got["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected nested object, got %+v", got)
	}
	if inner["data"] != "x" {
		t.Fatalf("got %+v", inner)
	}
}

func TestNestedJSONArrayWrapping(t *testing.T) {
	n, _ := NewNestedJSON(NestedJSONParams{Depth: 2, Structure: "array", Inner: "x"}, DefaultLimits)
	p, _ := n.Generate()
	var got []interface{}
	if err := json.Unmarshal(p.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	inner, ok := got[0].([]interface{})
	if !ok {
		t.Fatalf("expected nested array, got %+v", got)
	}
	if inner[0] != "x" {
		t.Fatalf("got %+v", inner)
	}
}

func TestBatchNotificationsCount(t *testing.T) {
	b, _ := NewBatchNotifications(BatchNotificationsParams{Count: 5, Method: "notifications/test"}, DefaultLimits)
	p, _ := b.Generate()
	var got []map[string]interface{}
	if err := json.Unmarshal(p.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d notifications, want 5", len(got))
	}
	for _, n := range got {
		if n["method"] != "notifications/test" {
			t.Fatalf("got %+v", n)
		}
	}
}

func TestRepeatedKeysBypassesDeduplication(t *testing.T) {
	rk, _ := NewRepeatedKeys(RepeatedKeysParams{Count: 3, KeyLength: 3, Value: "v"}, DefaultLimits)
	p, _ := rk.Generate()
	raw := string(p.Bytes())
	if got := bytes.Count([]byte(raw), []byte(`"kkk":"v"`)); got != 3 {
		t.Fatalf("expected 3 raw duplicate-key entries, got %d in %s", got, raw)
	}
	// A standard unmarshal into a map silently collapses the duplicates,
	// demonstrating the raw text carries more entries than any map-based
	// encoder could produce.
	var collapsed map[string]string
	if err := json.Unmarshal(p.Bytes(), &collapsed); err != nil {
		t.Fatal(err)
	}
	if len(collapsed) != 1 {
		t.Fatalf("expected map to collapse duplicate keys to 1, got %d", len(collapsed))
	}
}

func TestAnsiEscapeCyclesSequences(t *testing.T) {
	a, _ := NewAnsiEscape(AnsiEscapeParams{Sequences: []string{"clear"}, Count: 3}, DefaultLimits)
	p, _ := a.Generate()
	got := string(p.Bytes())
	want := "\x1b[2J\x1b[H\x1b[2J\x1b[H\x1b[2J\x1b[H"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAnsiEscapeTitleEmbedsPayload(t *testing.T) {
	a, _ := NewAnsiEscape(AnsiEscapeParams{Sequences: []string{"title"}, Count: 1, Payload: "pwned"}, DefaultLimits)
	p, _ := a.Generate()
	got := string(p.Bytes())
	if got != "\x1b]0;pwned\x07" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildUnknownGeneratorType(t *testing.T) {
	if _, err := Build(Descriptor{Type: "bogus"}, DefaultLimits); err == nil {
		t.Fatal("expected error for unknown generator type")
	}
}

func TestBuildGarbageFromDescriptor(t *testing.T) {
	g, err := Build(Descriptor{Type: "garbage", Params: map[string]interface{}{
		"bytes": float64(16), "charset": "ascii", "seed": float64(1),
	}}, DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := g.Generate()
	if len(p.Bytes()) != 16 {
		t.Fatalf("got %d bytes, want 16", len(p.Bytes()))
	}
}
