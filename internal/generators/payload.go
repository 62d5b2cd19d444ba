package generators

// streamThreshold is the size above which a payload streams in chunks
// instead of being returned whole (§4.2: "payloads over ~1 MB stream in
// 64 KB chunks").
const streamThreshold = 1 << 20

// chunkSize is the fixed chunk size used by the streamed path.
const chunkSize = 64 * 1024

// ChunkIterator yields successive byte chunks of a streamed payload.
// Next returns ok=false once exhausted.
type ChunkIterator interface {
	Next() (chunk []byte, ok bool)
}

// sliceChunker iterates fixed-size slices of an in-memory buffer. Used by
// generators whose output is built in full before chunking (nested_json,
// batch_notifications, repeated_keys, ansi_escape; garbage streams through
// its own garbageChunker instead) — chunking here is purely a
// transport-facing presentation detail, not a generation-time one.
type sliceChunker struct {
	buf []byte
	pos int
}

func newSliceChunker(buf []byte) *sliceChunker {
	return &sliceChunker{buf: buf}
}

func (c *sliceChunker) Next() ([]byte, bool) {
	if c.pos >= len(c.buf) {
		return nil, false
	}
	end := c.pos + chunkSize
	if end > len(c.buf) {
		end = len(c.buf)
	}
	chunk := c.buf[c.pos:end]
	c.pos = end
	return chunk, true
}

// Payload is the Buffered(bytes) | Streamed(chunks) sum type from §4.2.
type Payload struct {
	streamed bool
	buf      []byte
	chunks   ChunkIterator
}

// Buffered wraps a single in-memory payload.
func Buffered(b []byte) Payload {
	return Payload{buf: b}
}

// Streamed wraps a chunk iterator.
func Streamed(c ChunkIterator) Payload {
	return Payload{streamed: true, chunks: c}
}

// IsStreamed reports whether this payload must be drained via Chunks
// rather than read whole via Bytes.
func (p Payload) IsStreamed() bool { return p.streamed }

// Bytes returns the whole payload. Only valid when IsStreamed is false.
func (p Payload) Bytes() []byte { return p.buf }

// Chunks returns the chunk iterator. Only valid when IsStreamed is true.
func (p Payload) Chunks() ChunkIterator { return p.chunks }

// bufferedOrStreamed picks Buffered vs Streamed based on streamThreshold,
// the common policy every buffer-building generator applies.
func bufferedOrStreamed(buf []byte) Payload {
	if len(buf) <= streamThreshold {
		return Buffered(buf)
	}
	return Streamed(newSliceChunker(buf))
}
