// Package protocol implements the wire parsers and response writers for the
// four text protocols pogocache speaks on a single listening port: RESP
// (binary and inline/telnet), Memcache text, HTTP/1.1, and Postgres simple
// query. A connection sniffs its protocol once, from the first bytes it
// sends, and is locked to that protocol for its lifetime.
package protocol

import (
	"bytes"
	"errors"
)

// Proto identifies which wire protocol a connection has sniffed.
type Proto int

const (
	ProtoUnknown Proto = iota
	ProtoMemcache
	ProtoPostgres
	ProtoHTTP
	ProtoRESP
)

func (p Proto) String() string {
	switch p {
	case ProtoMemcache:
		return "memcache"
	case ProtoPostgres:
		return "postgres"
	case ProtoHTTP:
		return "http"
	case ProtoRESP:
		return "resp"
	default:
		return "unknown"
	}
}

// Standard error strings, matched verbatim by protocol-specific error
// translation (e.g. Memcache's CLIENT_ERROR/SERVER_ERROR split).
const (
	ErrWrongNumArgs    = "ERR wrong number of arguments"
	ErrSyntaxError     = "ERR syntax error"
	ErrIndexOutOfRange = "ERR index is out of range"
	ErrInvalidInteger  = "ERR value is not an integer or out of range"
	ErrOutOfMemory     = "ERR out of memory"
)

// ErrNeedMore is returned by a parser when the supplied buffer does not yet
// hold a complete command; the caller should wait for more bytes and retry.
var ErrNeedMore = errors.New("protocol: need more data")

const (
	maxArgs   = 100000
	maxArgSz  = 536870912
	maxPacket = 1048576
)

// Sniff inspects the first line of data to decide which protocol a brand
// new connection is speaking. It returns (ProtoUnknown, false) when there
// is not yet enough data to decide.
func Sniff(data []byte) (Proto, bool) {
	if len(data) > 0 && data[0] == '*' {
		return ProtoRESP, true
	}
	if len(data) > 0 && data[0] == 0 {
		return ProtoPostgres, true
	}
	n := 0
	for i, b := range data {
		if b == '\n' {
			n = i + 1
			break
		}
	}
	if n >= 11 && bytes.Equal(data[n-11:n-6], []byte(" HTTP/")[:5]) &&
		data[n-4] == '.' && data[n-2] == '\r' {
		return ProtoHTTP, true
	}
	trimmed := data
	for len(trimmed) > 0 && trimmed[0] == ' ' {
		trimmed = trimmed[1:]
		n--
	}
	if n > 0 && trimmed[0] >= 'A' && trimmed[0] <= 'Z' {
		return ProtoRESP, true
	}
	if n >= 1 {
		return ProtoMemcache, true
	}
	return ProtoUnknown, false
}

// Command is a single parsed request: its argument vector plus whatever
// protocol-specific metadata the caller needs to respond correctly.
type Command struct {
	Args        [][]byte
	NoReply     bool // memcache only
	HTTPVersion int  // http only
	KeepAlive   bool // http only
}

// Parser holds the per-connection state a protocol needs across calls: the
// sniffed Proto (set at most once) and, for Postgres, handshake progress.
// One Parser lives for the lifetime of a connection, mirroring pogocache's
// per-conn proto/pg fields in struct conn.
type Parser struct {
	Proto Proto
	pg    PgState
}

// Parse consumes exactly one command from data. It returns the number of
// bytes consumed, the parsed command, and any error. n == 0 with
// err == ErrNeedMore means data holds a partial command; the caller should
// append more bytes (e.g. from the next read) and retry. A non-nil,
// non-ErrNeedMore err means the protocol was violated and, for every
// protocol but Memcache, the connection must be closed after the error is
// written back.
func (p *Parser) Parse(data []byte) (n int, cmd Command, err error) {
	if p.Proto == ProtoUnknown {
		proto, ok := Sniff(data)
		if !ok {
			return 0, Command{}, ErrNeedMore
		}
		p.Proto = proto
	}
	switch p.Proto {
	case ProtoRESP:
		if len(data) > 0 && data[0] == '*' {
			return parseRESP(data)
		}
		return parseRESPInline(data)
	case ProtoMemcache:
		return parseMemcache(data)
	case ProtoHTTP:
		return parseHTTP(data)
	case ProtoPostgres:
		return parsePostgresState(data, &p.pg)
	default:
		return 0, Command{}, errors.New("ERROR")
	}
}
