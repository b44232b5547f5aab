package netloop

import (
	"bufio"
	"bytes"
	"net"

	"github.com/polypointlabs/pogocache-go/internal/protocol"
)

// Conn is one accepted, non-blocking connection, owned by exactly one Loop
// for its entire lifetime (pogocache never migrates an fd between event
// queues once accepted, and neither do we). in holds bytes read but not yet
// consumed by a complete command, the same role as struct conn's "packet"
// buffer in conn.c's evdata.
type Conn struct {
	fd     int
	tc     *net.TCPConn
	loop   *Loop
	closed bool

	in     []byte
	inPos  int
	parser protocol.Parser
	writer *protocol.Writer
	out    *bytes.Buffer

	udata any // handler-owned per-connection state (e.g. auth flag)
}

func newConn(fd int, tc *net.TCPConn, loop *Loop) *Conn {
	c := &Conn{fd: fd, tc: tc, loop: loop, out: &bytes.Buffer{}}
	c.writer = protocol.NewWriter(bufio.NewWriter(c.out), protocol.ProtoUnknown)
	return c
}

// feed appends newly read bytes to the connection's pending-command buffer.
func (c *Conn) feed(b []byte) {
	if c.inPos > 0 && c.inPos == len(c.in) {
		c.in = c.in[:0]
		c.inPos = 0
	}
	c.in = append(c.in, b...)
}

// pending returns the bytes not yet consumed by a parsed command.
func (c *Conn) pending() []byte { return c.in[c.inPos:] }

// advance marks n bytes of pending() as consumed.
func (c *Conn) advance(n int) { c.inPos += n }

// compact drops already-consumed bytes once a read cycle ends, keeping the
// buffer from growing unbounded when a connection pipelines many commands,
// mirroring evdata's memmove-back-to-offset-zero step.
func (c *Conn) compact() {
	if c.inPos == 0 {
		return
	}
	if c.inPos == len(c.in) {
		c.in = c.in[:0]
	} else {
		c.in = append(c.in[:0], c.in[c.inPos:]...)
	}
	c.inPos = 0
}

// Writer exposes the reply writer to the Handler. Its Proto field is kept
// in sync with the connection's sniffed protocol after the first command.
func (c *Conn) Writer() *protocol.Writer {
	c.writer.Proto = c.parser.Proto
	return c.writer
}

// Close marks the connection for teardown once the current tick finishes
// flushing any pending output.
func (c *Conn) Close() { c.closed = true }

// UData returns the handler-owned per-connection state slot.
func (c *Conn) UData() any { return c.udata }

// SetUData sets the handler-owned per-connection state slot.
func (c *Conn) SetUData(v any) { c.udata = v }

// RemoteAddr returns the connection's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.tc.RemoteAddr() }

// Closed reports whether the Handler called Close, letting a caller driving
// its own read/write loop (e.g. a blocking TLS listener outside the epoll
// pool) know when to tear the connection down.
func (c *Conn) Closed() bool { return c.closed }

// Feed, Pending, Advance, and Compact expose the pending-command buffer to
// callers outside the package that drive their own read loop instead of a
// Loop's epoll tick (the blocking TLS listener in cmd/pogocached).
func (c *Conn) Feed(b []byte)    { c.feed(b) }
func (c *Conn) Pending() []byte  { return c.pending() }
func (c *Conn) Advance(n int)    { c.advance(n) }
func (c *Conn) CompactBuf()      { c.compact() }

// ParseNext parses one command out of the pending buffer, the same call a
// Loop's readAndProcess makes each tick.
func (c *Conn) ParseNext() (n int, cmd protocol.Command, err error) {
	return c.parser.Parse(c.pending())
}

// NewTestConn builds a Conn with no backing socket, for exercising a
// Handler against the write buffer directly without opening real sockets
// or epoll instances.
func NewTestConn() *Conn { return newConn(-1, nil, nil) }

// SetProto forces the sniffed protocol on a test Conn, skipping Sniff.
func (c *Conn) SetProto(p protocol.Proto) { c.parser.Proto = p }

// OutBuffer exposes the pending-write buffer for tests.
func (c *Conn) OutBuffer() *bytes.Buffer { return c.out }
