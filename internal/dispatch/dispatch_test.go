package dispatch

import (
	"bytes"
	"testing"

	"github.com/polypointlabs/pogocache-go/internal/netloop"
	"github.com/polypointlabs/pogocache-go/internal/protocol"
	"github.com/polypointlabs/pogocache-go/pkg/pogocache"
)

func newTestConn(proto protocol.Proto) (*netloop.Conn, *bytes.Buffer) {
	c := netloop.NewTestConn()
	c.SetProto(proto)
	return c, c.OutBuffer()
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	cache, err := pogocache.New(pogocache.WithShards(4))
	if err != nil {
		t.Fatalf("pogocache.New: %v", err)
	}
	return New(cache)
}

func flushed(c *netloop.Conn, out *bytes.Buffer) string {
	c.Writer().Flush()
	return out.String()
}

func TestHandleRESPSetGetDelete(t *testing.T) {
	h := newTestHandler(t)
	c, out := newTestConn(protocol.ProtoRESP)

	h.Handle(c, [][]byte{[]byte("SET"), []byte("k"), []byte("v")})
	if got := flushed(c, out); got != "+OK\r\n" {
		t.Fatalf("SET reply = %q", got)
	}
	out.Reset()

	h.Handle(c, [][]byte{[]byte("GET"), []byte("k")})
	if got := flushed(c, out); got != "$1\r\nv\r\n" {
		t.Fatalf("GET reply = %q", got)
	}
	out.Reset()

	h.Handle(c, [][]byte{[]byte("DEL"), []byte("k")})
	if got := flushed(c, out); got != ":1\r\n" {
		t.Fatalf("DEL reply = %q", got)
	}
	out.Reset()

	h.Handle(c, [][]byte{[]byte("GET"), []byte("k")})
	if got := flushed(c, out); got != "$-1\r\n" {
		t.Fatalf("GET-after-delete reply = %q", got)
	}
}

func TestHandleMemcacheSetGet(t *testing.T) {
	h := newTestHandler(t)
	c, out := newTestConn(protocol.ProtoMemcache)

	h.Handle(c, [][]byte{[]byte("set"), []byte("k"), []byte("0"), []byte("0"), []byte("5"), []byte("hello")})
	if got := flushed(c, out); got != "STORED\r\n" {
		t.Fatalf("set reply = %q", got)
	}
	out.Reset()

	h.Handle(c, [][]byte{[]byte("get"), []byte("k")})
	if got := flushed(c, out); got != "VALUE k 0 5\r\nhello\r\nEND\r\n" {
		t.Fatalf("get reply = %q", got)
	}
}

func TestHandleMemcacheIncr(t *testing.T) {
	h := newTestHandler(t)
	c, out := newTestConn(protocol.ProtoMemcache)

	h.Handle(c, [][]byte{[]byte("set"), []byte("n"), []byte("0"), []byte("0"), []byte("1"), []byte("5")})
	out.Reset()

	h.Handle(c, [][]byte{[]byte("incr"), []byte("n"), []byte("3")})
	if got := flushed(c, out); got != "8\r\n" {
		t.Fatalf("incr reply = %q", got)
	}
	out.Reset()

	h.Handle(c, [][]byte{[]byte("decr"), []byte("n"), []byte("100")})
	if got := flushed(c, out); got != "0\r\n" {
		t.Fatalf("decr underflow should clamp to 0, got %q", got)
	}
}

func TestHandleRESPDecrUnderflowIsAnError(t *testing.T) {
	h := newTestHandler(t)
	c, out := newTestConn(protocol.ProtoRESP)

	h.Handle(c, [][]byte{[]byte("SET"), []byte("n"), []byte("5")})
	out.Reset()

	h.Handle(c, [][]byte{[]byte("DECR"), []byte("n"), []byte("100")})
	if got := flushed(c, out); got != "-"+protocol.ErrInvalidInteger+"\r\n" {
		t.Fatalf("resp decr underflow = %q, want a protocol error, not a clamped value", got)
	}

	// The store must not have happened: the value stays at 5.
	out.Reset()
	h.Handle(c, [][]byte{[]byte("GET"), []byte("n")})
	if got := flushed(c, out); got != "$1\r\n5\r\n" {
		t.Fatalf("value changed after rejected decr: %q", got)
	}
}

func TestHandleAddReplace(t *testing.T) {
	h := newTestHandler(t)
	c, out := newTestConn(protocol.ProtoRESP)

	h.Handle(c, [][]byte{[]byte("REPLACE"), []byte("k"), []byte("v")})
	if got := flushed(c, out); got != "$-1\r\n" {
		t.Fatalf("REPLACE on missing key = %q, want null", got)
	}
	out.Reset()

	h.Handle(c, [][]byte{[]byte("ADD"), []byte("k"), []byte("v1")})
	if got := flushed(c, out); got != "+OK\r\n" {
		t.Fatalf("ADD on missing key = %q", got)
	}
	out.Reset()

	h.Handle(c, [][]byte{[]byte("ADD"), []byte("k"), []byte("v2")})
	if got := flushed(c, out); got != "$-1\r\n" {
		t.Fatalf("ADD on existing key = %q, want null", got)
	}
}

func TestHandlePing(t *testing.T) {
	h := newTestHandler(t)
	c, out := newTestConn(protocol.ProtoRESP)
	h.Handle(c, [][]byte{[]byte("PING")})
	if got := flushed(c, out); got != "+PONG\r\n" {
		t.Fatalf("PING reply = %q", got)
	}
}

func TestHandlePostgresQuery(t *testing.T) {
	h := newTestHandler(t)
	c, out := newTestConn(protocol.ProtoPostgres)

	h.Handle(c, [][]byte{[]byte("QUERY"), []byte("SET pgkey pgval")})
	got := flushed(c, out)
	if !bytes.Contains([]byte(got), []byte("SET 1")) {
		t.Fatalf("SET query reply missing command tag: %q", got)
	}
	out.Reset()

	h.Handle(c, [][]byte{[]byte("QUERY"), []byte("GET pgkey")})
	got = flushed(c, out)
	if !bytes.Contains([]byte(got), []byte("pgval")) {
		t.Fatalf("GET query reply missing value: %q", got)
	}
}
