package proxyfile

// chunkSize is the fixed size of each segment in the send queue, per §4.4:
// "a deque of fixed-size (e.g. 4096-byte) chunks". Chosen to match the
// handshake/streaming read buffer size used throughout the wire protocol.
const chunkSize = 4096

type chunk struct {
	data       [chunkSize]byte
	start, end int
}

func (c *chunk) writable() bool { return c.end < chunkSize }
func (c *chunk) len() int       { return c.end - c.start }

// sendQueue is the segmented FIFO described in §4.4: interior chunks are
// always full, only the head and tail may be partial. It exists so a
// ProxyFile can accumulate bytes that could not be sent immediately
// without repeatedly reallocating and copying a single growing buffer.
type sendQueue struct {
	chunks []*chunk
}

// put appends b to the tail of the queue, allocating new chunks as needed.
func (q *sendQueue) put(b []byte) {
	for len(b) > 0 {
		var tail *chunk
		if n := len(q.chunks); n > 0 {
			tail = q.chunks[n-1]
		}
		if tail == nil || !tail.writable() {
			tail = &chunk{}
			q.chunks = append(q.chunks, tail)
		}
		n := copy(tail.data[tail.end:], b)
		tail.end += n
		b = b[n:]
	}
}

// peek returns the head chunk's unread contents, or nil if the queue is
// empty. The caller must call done with however many bytes it consumed.
func (q *sendQueue) peek() []byte {
	if len(q.chunks) == 0 {
		return nil
	}
	head := q.chunks[0]
	return head.data[head.start:head.end]
}

// done removes the first n bytes from the queue, dropping any chunk that
// becomes fully consumed.
func (q *sendQueue) done(n int) {
	for n > 0 && len(q.chunks) > 0 {
		head := q.chunks[0]
		avail := head.len()
		if n < avail {
			head.start += n
			return
		}
		n -= avail
		q.chunks = q.chunks[1:]
	}
}

// Len returns the total number of queued, unsent bytes.
func (q *sendQueue) Len() int {
	total := 0
	for _, c := range q.chunks {
		total += c.len()
	}
	return total
}
