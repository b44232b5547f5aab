package protocol

import (
	"bufio"
	"bytes"
	"testing"
)

func newTestBufWriter(buf *bytes.Buffer) *bufio.Writer {
	return bufio.NewWriter(buf)
}

func TestSniff(t *testing.T) {
	cases := []struct {
		data string
		want Proto
	}{
		{"*2\r\n$3\r\nGET\r\n$1\r\nk\r\n", ProtoRESP},
		{"GET k\r\n", ProtoRESP},
		{"get k\r\n", ProtoMemcache},
		{"GET /k HTTP/1.1\r\n", ProtoHTTP},
		{"\x00\x00\x00\x08\x00\x03\x00\x00", ProtoPostgres},
	}
	for _, c := range cases {
		got, ok := Sniff([]byte(c.data))
		if !ok || got != c.want {
			t.Fatalf("Sniff(%q) = %v,%v want %v", c.data, got, ok, c.want)
		}
	}
}

func TestParseRESPBinary(t *testing.T) {
	var p Parser
	n, cmd, err := p.Parse([]byte("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if n != len("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n") {
		t.Fatalf("n = %d", n)
	}
	if len(cmd.Args) != 2 || string(cmd.Args[0]) != "GET" || string(cmd.Args[1]) != "k" {
		t.Fatalf("args = %v", cmd.Args)
	}
}

func TestParseRESPBinaryNeedMore(t *testing.T) {
	var p Parser
	_, _, err := p.Parse([]byte("*2\r\n$3\r\nGET\r\n$3\r\nke"))
	if err != ErrNeedMore {
		t.Fatalf("err = %v, want ErrNeedMore", err)
	}
}

func TestParseRESPInline(t *testing.T) {
	var p Parser
	n, cmd, err := p.Parse([]byte("GET k\r\n"))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if n != len("GET k\r\n") {
		t.Fatalf("n = %d", n)
	}
	if len(cmd.Args) != 2 || string(cmd.Args[0]) != "GET" || string(cmd.Args[1]) != "k" {
		t.Fatalf("args = %v", cmd.Args)
	}
}

func TestParseRESPInlineQuoted(t *testing.T) {
	var p Parser
	_, cmd, err := p.Parse([]byte(`SET k "hello world"` + "\n"))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(cmd.Args) != 3 || string(cmd.Args[2]) != "hello world" {
		t.Fatalf("args = %v", cmd.Args)
	}
}

func TestParseMemcacheGet(t *testing.T) {
	var p Parser
	n, cmd, err := p.Parse([]byte("get mykey\r\n"))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if n != len("get mykey\r\n") {
		t.Fatalf("n = %d", n)
	}
	if len(cmd.Args) != 2 || string(cmd.Args[0]) != "get" || string(cmd.Args[1]) != "mykey" {
		t.Fatalf("args = %v", cmd.Args)
	}
}

func TestParseMemcacheSetWithDataBlock(t *testing.T) {
	var p Parser
	line := "set mykey 0 0 5\r\nhello\r\n"
	n, cmd, err := p.Parse([]byte(line))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if n != len(line) {
		t.Fatalf("n = %d, want %d", n, len(line))
	}
	if string(cmd.Args[len(cmd.Args)-1]) != "hello" {
		t.Fatalf("data block = %q", cmd.Args[len(cmd.Args)-1])
	}
}

func TestParseMemcacheSetNeedsMoreData(t *testing.T) {
	var p Parser
	_, _, err := p.Parse([]byte("set mykey 0 0 5\r\nhel"))
	if err != ErrNeedMore {
		t.Fatalf("err = %v, want ErrNeedMore", err)
	}
}

func TestParseHTTPGet(t *testing.T) {
	var p Parser
	req := "GET /mykey HTTP/1.1\r\nHost: x\r\n\r\n"
	n, cmd, err := p.Parse([]byte(req))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if n != len(req) {
		t.Fatalf("n = %d", n)
	}
	if string(cmd.Args[0]) != "GET" || string(cmd.Args[1]) != "mykey" {
		t.Fatalf("args = %v", cmd.Args)
	}
}

func TestParseHTTPPutWithBody(t *testing.T) {
	var p Parser
	body := "hello"
	req := "PUT /mykey HTTP/1.1\r\nContent-Length: 5\r\n\r\n" + body
	n, cmd, err := p.Parse([]byte(req))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if n != len(req) {
		t.Fatalf("n = %d, want %d", n, len(req))
	}
	if string(cmd.Args[0]) != "SET" || string(cmd.Args[2]) != "hello" {
		t.Fatalf("args = %v", cmd.Args)
	}
}

func TestWriterBulkAndError(t *testing.T) {
	var buf bytes.Buffer
	bw := newTestBufWriter(&buf)
	w := NewWriter(bw, ProtoRESP)
	w.WriteBulk([]byte("hi"))
	w.Flush()
	if buf.String() != "$2\r\nhi\r\n" {
		t.Fatalf("bulk = %q", buf.String())
	}

	buf.Reset()
	w = NewWriter(newTestBufWriter(&buf), ProtoMemcache)
	w.WriteError("ERR boom")
	w.Flush()
	if buf.String() != "CLIENT_ERROR boom\r\n" {
		t.Fatalf("error = %q", buf.String())
	}
}
