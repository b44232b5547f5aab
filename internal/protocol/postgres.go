package protocol

import (
	"encoding/binary"
	"fmt"
)

// PgState tracks a Postgres wire v3 connection's handshake progress across
// calls to parsePostgresState, since the startup message is only ever sent once
// and every message after it follows the tagged "type byte + int32 length"
// framing. Only simple query flow is supported — Parse/Bind/Describe/
// Execute (the extended query protocol) are out of scope, matching
// SPEC_FULL.md's documented Non-goal.
type PgState struct {
	Ready    bool
	User     string
	Database string
}

const pgSSLRequestCode = 80877103
const pgProtocolVersion3 = 196608 // 3.0 in the packed major<<16|minor form

// parsePostgresState parses one Postgres v3 frontend message against st, the
// connection's handshake state. Before the startup handshake completes it
// expects the untagged startup/SSLRequest framing (int32 length, int32 code,
// then the rest); afterward every message is "tag byte, int32 length
// (including itself), payload".
func parsePostgresState(data []byte, st *PgState) (int, Command, error) {
	if !st.Ready {
		return parsePgStartup(data, st)
	}
	return parsePgTagged(data)
}

func parsePgStartup(data []byte, st *PgState) (int, Command, error) {
	if len(data) < 4 {
		return 0, Command{}, ErrNeedMore
	}
	msgLen := int(binary.BigEndian.Uint32(data[:4]))
	if msgLen < 8 {
		return 0, Command{}, fmt.Errorf("ERR Protocol error: invalid startup message")
	}
	if msgLen > len(data) {
		return 0, Command{}, ErrNeedMore
	}
	code := int(binary.BigEndian.Uint32(data[4:8]))
	if code == pgSSLRequestCode {
		// No TLS in this build: respond 'N' (handled by the caller) and
		// keep waiting for the real startup message on the same bytes.
		return msgLen, Command{Args: [][]byte{[]byte("PG_SSL_DENY")}}, nil
	}
	if code != pgProtocolVersion3 {
		return 0, Command{}, fmt.Errorf("ERR Protocol error: unsupported protocol version")
	}
	params := data[8:msgLen]
	kv := splitCStrings(params)
	for i := 0; i+1 < len(kv); i += 2 {
		switch kv[i] {
		case "user":
			st.User = kv[i+1]
		case "database":
			st.Database = kv[i+1]
		}
	}
	st.Ready = true
	return msgLen, Command{Args: [][]byte{[]byte("PG_STARTUP")}}, nil
}

func splitCStrings(b []byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == 0 {
			out = append(out, string(b[start:i]))
			start = i + 1
		}
	}
	return out
}

func parsePgTagged(data []byte) (int, Command, error) {
	if len(data) < 5 {
		return 0, Command{}, ErrNeedMore
	}
	tag := data[0]
	msgLen := int(binary.BigEndian.Uint32(data[1:5]))
	if msgLen < 4 {
		return 0, Command{}, fmt.Errorf("ERR Protocol error: invalid message length")
	}
	total := 1 + msgLen
	if total > len(data) {
		return 0, Command{}, ErrNeedMore
	}
	payload := data[5:total]
	switch tag {
	case 'Q':
		sql := trimNulSuffix(payload)
		return total, Command{Args: [][]byte{[]byte("QUERY"), []byte(sql)}}, nil
	case 'X':
		return total, Command{Args: [][]byte{[]byte("PG_TERMINATE")}}, nil
	case 'S':
		return total, Command{Args: [][]byte{[]byte("PG_SYNC")}}, nil
	default:
		// Extended query protocol messages (Parse/Bind/Describe/Execute)
		// are acknowledged as no-ops so well-behaved drivers that probe
		// for them before falling back to simple query don't hang.
		return total, Command{Args: [][]byte{[]byte("PG_IGNORED")}}, nil
	}
}

func trimNulSuffix(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == 0 {
		return b[:len(b)-1]
	}
	return b
}
