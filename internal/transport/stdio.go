package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type lineResult struct {
	line []byte
	err  error
}

// StdioTransport frames one JSON-RPC message per line, LF-terminated,
// tolerating a missing trailing LF at EOF (§6.3). One process is one
// connection: the stdio loop is inherently serial, so responses are
// delivered in receive order without any extra coordination (§5).
type StdioTransport struct {
	reader         *bufio.Reader
	maxMessageSize int

	writeMu sync.Mutex
	writer  *bufio.Writer

	connID string

	lineCh  chan lineResult
	started sync.Once
}

// NewStdioTransport wraps r/w with bufferSize-sized buffers and bounds
// each line to maxMessageSize bytes (§6.2's THOUGHTJACK_STDIO_BUFFER_SIZE
// and THOUGHTJACK_MAX_MESSAGE_SIZE).
func NewStdioTransport(r io.Reader, w io.Writer, bufferSize, maxMessageSize int) *StdioTransport {
	return &StdioTransport{
		reader:         bufio.NewReaderSize(r, bufferSize),
		maxMessageSize: maxMessageSize,
		writer:         bufio.NewWriterSize(w, bufferSize),
		connID:         uuid.New().String(),
		lineCh:         make(chan lineResult, 1),
	}
}

// readLine reads one LF-delimited (or EOF-terminated) line, bounded to
// maxMessageSize bytes. A line longer than the bound is drained in full
// from the reader and reported via overflowed rather than returned as an
// error, so it never looks like a transport failure to the caller — a
// single oversized line is a framing problem with that one message, not
// with the connection (§7: "size exceeded: Log + drop; continue loop").
func (t *StdioTransport) readLine() (line []byte, overflowed bool, err error) {
	var buf []byte
	for {
		chunk, ferr := t.reader.ReadSlice('\n')
		content := chunk
		if ferr == nil && len(content) > 0 {
			content = content[:len(content)-1] // drop the delimiter itself
		}
		appendBounded(&buf, &overflowed, content, t.maxMessageSize)

		switch {
		case ferr == nil:
			return trimCR(buf), overflowed, nil
		case errors.Is(ferr, bufio.ErrBufferFull):
			// No delimiter yet within the reader's internal buffer; keep
			// draining the rest of this (possibly oversized) line.
			continue
		case errors.Is(ferr, io.EOF):
			if len(buf) == 0 && !overflowed {
				return nil, false, io.EOF
			}
			return trimCR(buf), overflowed, nil
		default:
			return nil, false, ferr
		}
	}
}

func appendBounded(buf *[]byte, overflowed *bool, chunk []byte, limit int) {
	if *overflowed || len(chunk) == 0 {
		return
	}
	remaining := limit - len(*buf)
	if remaining <= 0 {
		*overflowed = true
		return
	}
	if len(chunk) > remaining {
		chunk = chunk[:remaining]
		*overflowed = true
	}
	*buf = append(*buf, chunk...)
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}

// readerLoop runs in its own goroutine so Receive can select between a
// line arriving and ctx cancellation, rather than blocking uninterruptibly
// inside a read. An oversized line is logged and skipped without ever
// reaching lineCh, so the loop — and the connection it serves — keeps
// running past it exactly as it would past an unparseable line.
func (t *StdioTransport) readerLoop() {
	for {
		line, overflowed, err := t.readLine()
		if overflowed {
			slog.Warn("thoughtjack: dropping oversized line", "limit", t.maxMessageSize)
			continue
		}
		if err != nil {
			t.lineCh <- lineResult{err: err}
			return
		}
		t.lineCh <- lineResult{line: line}
	}
}

func (t *StdioTransport) Receive(ctx context.Context) ([]byte, error) {
	t.started.Do(func() { go t.readerLoop() })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-t.lineCh:
		return res.line, res.err
	}
}

// Send writes message followed by the line delimiter.
func (t *StdioTransport) Send(ctx context.Context, message []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.writer.Write(message); err != nil {
		return err
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return err
	}
	return t.writer.Flush()
}

// SendRaw writes chunk verbatim, with no delimiter — the mechanism
// slow_loris and unbounded_line deliveries rely on to break line framing.
func (t *StdioTransport) SendRaw(ctx context.Context, chunk []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.writer.Write(chunk); err != nil {
		return err
	}
	return t.writer.Flush()
}

// FinalizeResponse is a no-op: stdio has no per-response framing unit to
// close (§4.7 step 9).
func (t *StdioTransport) FinalizeResponse(ctx context.Context) error { return nil }

func (t *StdioTransport) Supports(kind Kind) bool { return kind == KindStdio }

func (t *StdioTransport) ConnectionContext() ConnectionContext {
	return ConnectionContext{ID: t.connID, Kind: KindStdio}
}
