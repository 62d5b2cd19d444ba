package transport

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

const (
	sessionHeader     = "Mcp-Session-Id"
	sessionQueryParam = "session"
)

// HTTPServer multiplexes POST /message and GET /sse across sessions
// (§4.1, §6.3), handing each newly-seen session to the server loop
// through a bounded, backpressured queue (§5: "HTTP queue: bounded async
// channel with backpressure").
type HTTPServer struct {
	mu         sync.Mutex
	sessions   map[string]*HTTPConnection
	newConns   chan *HTTPConnection
	maxMessage int
}

// NewHTTPServer builds a server whose accept queue holds queueCapacity
// pending sessions before POSTs start blocking, and that rejects any
// message body larger than maxMessage bytes.
func NewHTTPServer(queueCapacity, maxMessage int) *HTTPServer {
	return &HTTPServer{
		sessions:   make(map[string]*HTTPConnection),
		newConns:   make(chan *HTTPConnection, queueCapacity),
		maxMessage: maxMessage,
	}
}

// Accept blocks until a new HTTP session connects, mirroring stdio's
// single implicit connection with one handle per session instead.
func (s *HTTPServer) Accept(ctx context.Context) (*HTTPConnection, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c := <-s.newConns:
		return c, nil
	}
}

// Handler returns the http.Handler to mount at the configured address.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/message", s.handleMessage)
	mux.HandleFunc("/sse", s.handleSSE)
	return mux
}

func (s *HTTPServer) connectionFor(id string) (conn *HTTPConnection, isNew bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return existing, false
	}
	conn = newHTTPConnection(id, cap(s.newConns), s.maxMessage)
	s.sessions[id] = conn
	return conn, true
}

func (s *HTTPServer) removeSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *HTTPServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	conn, isNew := s.connectionFor(sessionID)

	body, err := io.ReadAll(io.LimitReader(r.Body, int64(s.maxMessage)+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) > s.maxMessage {
		http.Error(w, "message exceeds max_message_size", http.StatusRequestEntityTooLarge)
		return
	}

	// Serializes this connection's POSTs so respW below is never shared
	// between two in-flight requests (§5: responses delivered in receive
	// order on one connection).
	conn.requestMu.Lock()
	defer conn.requestMu.Unlock()

	w.Header().Set(sessionHeader, sessionID)
	w.Header().Set("Content-Type", "application/json")

	done := make(chan struct{})
	conn.beginResponse(w, done)
	defer conn.endResponse() // RAII-style cleanup of the response slot (§4.1, §5)

	if isNew {
		select {
		case s.newConns <- conn:
		case <-r.Context().Done():
			return
		}
	}

	select {
	case conn.inbox <- body:
	case <-r.Context().Done():
		return
	}

	select {
	case <-done:
	case <-r.Context().Done():
	case <-conn.closed:
	}
}

func (s *HTTPServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get(sessionQueryParam)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	conn, isNew := s.connectionFor(sessionID)
	defer s.removeSession(sessionID) // RAII-style connection-id cleanup (§4.1)
	defer conn.close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set(sessionHeader, sessionID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if isNew {
		select {
		case s.newConns <- conn:
		case <-r.Context().Done():
			return
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-conn.closed:
			return
		case chunk := <-conn.sse:
			if _, err := w.Write(chunk); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HTTPConnection is one MCP session's Transport. While a POST /message
// call is in flight, Send/SendRaw write directly into that call's
// response (enabling slow_loris/unbounded_line framing breaks over HTTP
// chunked transfer); once FinalizeResponse ends it, further sends —
// entry-action notifications, continuous side effects — go out over the
// /sse stream instead.
type HTTPConnection struct {
	id         string
	maxMessage int

	inbox chan []byte
	sse   chan []byte

	requestMu sync.Mutex

	respMu      sync.Mutex
	respW       http.ResponseWriter
	respFlusher http.Flusher
	respDone    chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func newHTTPConnection(id string, queueCapacity, maxMessage int) *HTTPConnection {
	if queueCapacity <= 0 {
		queueCapacity = 1
	}
	return &HTTPConnection{
		id:         id,
		maxMessage: maxMessage,
		inbox:      make(chan []byte, queueCapacity),
		sse:        make(chan []byte, queueCapacity),
		closed:     make(chan struct{}),
	}
}

func (c *HTTPConnection) beginResponse(w http.ResponseWriter, done chan struct{}) {
	flusher, _ := w.(http.Flusher)
	c.respMu.Lock()
	c.respW = w
	c.respFlusher = flusher
	c.respDone = done
	c.respMu.Unlock()
}

func (c *HTTPConnection) endResponse() {
	c.respMu.Lock()
	defer c.respMu.Unlock()
	if c.respDone != nil {
		close(c.respDone)
		c.respDone = nil
	}
	c.respW = nil
	c.respFlusher = nil
}

func (c *HTTPConnection) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *HTTPConnection) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, io.EOF
	case msg := <-c.inbox:
		return msg, nil
	}
}

func (c *HTTPConnection) Send(ctx context.Context, message []byte) error {
	if w, flusher, ok := c.activeResponse(); ok {
		return writeAndFlush(w, flusher, message)
	}
	framed := append([]byte("data: "), message...)
	framed = append(framed, '\n', '\n')
	return c.pushSSE(ctx, framed)
}

// SendRaw writes chunk with no added framing. Against an active response
// it writes straight into the chunked HTTP body; otherwise it falls back
// to an unframed SSE chunk (best-effort — SSE readers expect "data:"
// framing, so this combination is primarily meant to run against an
// active response).
func (c *HTTPConnection) SendRaw(ctx context.Context, chunk []byte) error {
	if w, flusher, ok := c.activeResponse(); ok {
		return writeAndFlush(w, flusher, chunk)
	}
	return c.pushSSE(ctx, chunk)
}

func (c *HTTPConnection) activeResponse() (http.ResponseWriter, http.Flusher, bool) {
	c.respMu.Lock()
	defer c.respMu.Unlock()
	return c.respW, c.respFlusher, c.respW != nil
}

func writeAndFlush(w http.ResponseWriter, flusher http.Flusher, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

func (c *HTTPConnection) pushSSE(ctx context.Context, chunk []byte) error {
	select {
	case c.sse <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return io.ErrClosedPipe
	}
}

// FinalizeResponse ends the active POST /message response, letting its
// handler return and close the chunked body (§4.7 step 9).
func (c *HTTPConnection) FinalizeResponse(ctx context.Context) error {
	c.endResponse()
	return nil
}

func (c *HTTPConnection) Supports(kind Kind) bool { return kind == KindHTTP }

func (c *HTTPConnection) ConnectionContext() ConnectionContext {
	return ConnectionContext{ID: c.id, Kind: KindHTTP}
}
