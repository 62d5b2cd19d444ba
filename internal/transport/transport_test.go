package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type httptestResponse struct {
	body      string
	sessionID string
}

func doPost(url, sessionID, body string) *httptestResponse {
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return &httptestResponse{}
	}
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return &httptestResponse{}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return &httptestResponse{body: string(b), sessionID: resp.Header.Get(sessionHeader)}
}

// nopResponseWriter satisfies http.ResponseWriter for tests that only
// need HTTPConnection's response-slot bookkeeping, not a live request.
type nopResponseWriter struct{}

func (nopResponseWriter) Header() http.Header       { return http.Header{} }
func (nopResponseWriter) Write(b []byte) (int, error) { return len(b), nil }
func (nopResponseWriter) WriteHeader(statusCode int) {}

func TestStdioRoundTrip(t *testing.T) {
	in := strings.NewReader("{\"a\":1}\n{\"b\":2}\n")
	var out bytes.Buffer
	tr := NewStdioTransport(in, &out, 4096, 1<<20)

	ctx := context.Background()
	line, err := tr.Receive(ctx)
	if err != nil || string(line) != `{"a":1}` {
		t.Fatalf("got %q, %v", line, err)
	}
	line, err = tr.Receive(ctx)
	if err != nil || string(line) != `{"b":2}` {
		t.Fatalf("got %q, %v", line, err)
	}
	if _, err := tr.Receive(ctx); err == nil {
		t.Fatal("expected EOF")
	}

	if err := tr.Send(ctx, []byte(`{"c":3}`)); err != nil {
		t.Fatal(err)
	}
	if out.String() != "{\"c\":3}\n" {
		t.Fatalf("got %q", out.String())
	}
}

func TestStdioToleratesMissingTrailingNewline(t *testing.T) {
	in := strings.NewReader(`{"a":1}`)
	var out bytes.Buffer
	tr := NewStdioTransport(in, &out, 4096, 1<<20)

	line, err := tr.Receive(context.Background())
	if err != nil || string(line) != `{"a":1}` {
		t.Fatalf("got %q, %v", line, err)
	}
}

func TestStdioSkipsOversizedLineAndKeepsReading(t *testing.T) {
	huge := strings.Repeat("x", 200) + "\n"
	in := strings.NewReader(huge + `{"a":1}` + "\n")
	var out bytes.Buffer
	tr := NewStdioTransport(in, &out, 64, 100)

	line, err := tr.Receive(context.Background())
	if err != nil || string(line) != `{"a":1}` {
		t.Fatalf("expected the oversized line to be skipped and the next line delivered, got %q, %v", line, err)
	}

	if _, err := tr.Receive(context.Background()); err == nil {
		t.Fatal("expected EOF once every line is consumed")
	}
}

func TestStdioSkipsMultipleConsecutiveOversizedLines(t *testing.T) {
	huge := strings.Repeat("y", 200) + "\n"
	in := strings.NewReader(huge + huge + `{"b":2}` + "\n")
	var out bytes.Buffer
	tr := NewStdioTransport(in, &out, 64, 100)

	line, err := tr.Receive(context.Background())
	if err != nil || string(line) != `{"b":2}` {
		t.Fatalf("got %q, %v", line, err)
	}
}

func TestStdioSendRawWritesExactBytesNoDelimiter(t *testing.T) {
	var out bytes.Buffer
	tr := NewStdioTransport(strings.NewReader(""), &out, 4096, 1<<20)
	if err := tr.SendRaw(context.Background(), []byte("ab")); err != nil {
		t.Fatal(err)
	}
	if err := tr.SendRaw(context.Background(), []byte("cd")); err != nil {
		t.Fatal(err)
	}
	if out.String() != "abcd" {
		t.Fatalf("got %q", out.String())
	}
}

func TestStdioConnectionContext(t *testing.T) {
	tr := NewStdioTransport(strings.NewReader(""), &bytes.Buffer{}, 4096, 1<<20)
	cc := tr.ConnectionContext()
	if cc.Kind != KindStdio || cc.ID == "" {
		t.Fatalf("got %+v", cc)
	}
	if !tr.Supports(KindStdio) || tr.Supports(KindHTTP) {
		t.Fatal("wrong Supports result")
	}
}

func TestHTTPPostCreatesSessionAndDeliversResponseBeforeFinalize(t *testing.T) {
	srv := NewHTTPServer(4, 1<<20)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	acceptErrCh := make(chan error, 1)
	var conn *HTTPConnection
	connCh := make(chan *HTTPConnection, 1)
	go func() {
		c, err := srv.Accept(context.Background())
		acceptErrCh <- err
		connCh <- c
	}()

	respCh := make(chan *httptestResponse, 1)
	go func() {
		resp := doPost(ts.URL+"/message", "", "hello")
		respCh <- resp
	}()

	select {
	case err := <-acceptErrCh:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Accept")
	}
	conn = <-connCh

	msg, err := conn.Receive(context.Background())
	if err != nil || string(msg) != "hello" {
		t.Fatalf("got %q, %v", msg, err)
	}

	if err := conn.Send(context.Background(), []byte("world")); err != nil {
		t.Fatal(err)
	}
	if err := conn.FinalizeResponse(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp := <-respCh
	if resp.body != "world" {
		t.Fatalf("got %q", resp.body)
	}
	if resp.sessionID == "" {
		t.Fatal("expected a session id header on the response")
	}
}

func TestHTTPSendAfterFinalizeFallsThroughToSSE(t *testing.T) {
	conn := newHTTPConnection("sess-1", 4, 1<<20)

	done := make(chan struct{})
	conn.beginResponse(nopResponseWriter{}, done)
	if err := conn.FinalizeResponse(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := conn.Send(context.Background(), []byte(`{"x":1}`)); err != nil {
		t.Fatal(err)
	}
	select {
	case chunk := <-conn.sse:
		if !bytes.Contains(chunk, []byte(`{"x":1}`)) {
			t.Fatalf("got %q", chunk)
		}
	default:
		t.Fatal("expected a chunk queued on sse")
	}
}
