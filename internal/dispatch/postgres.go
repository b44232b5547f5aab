package dispatch

import (
	"strings"

	"github.com/polypointlabs/pogocache-go/internal/netloop"
	"github.com/polypointlabs/pogocache-go/internal/protocol"
	"github.com/polypointlabs/pogocache-go/pkg/pogocache"
)

// handlePostgres answers the handshake/session sentinels parsePostgresState
// emits and, for QUERY, runs a minimal GET/SET/DEL grammar against the
// cache — "queries" in this build are never real SQL, matching spec.md's
// note that the Postgres front end exists for wire compatibility with
// Postgres client libraries, not for SQL semantics.
func (h *Handler) handlePostgres(c *netloop.Conn, w *protocol.Writer, name string, args [][]byte) {
	switch name {
	case "PG_SSL_DENY":
		w.WritePGSSLDeny()
	case "PG_STARTUP":
		w.WritePGAuthOK()
	case "PG_SYNC", "PG_IGNORED":
		w.WritePGReadyForQuery()
	case "PG_TERMINATE":
		c.Close()
	case "QUERY":
		if len(args) < 2 {
			w.WritePGErrorResponse("empty query")
			w.WritePGReadyForQuery()
			return
		}
		h.runPGQuery(w, string(args[1]))
		w.WritePGReadyForQuery()
	}
}

func (h *Handler) runPGQuery(w *protocol.Writer, sql string) {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		w.WritePGErrorResponse("empty query")
		return
	}
	switch strings.ToUpper(fields[0]) {
	case "GET":
		if len(fields) != 2 {
			w.WritePGErrorResponse("GET takes exactly one key")
			return
		}
		st, res := h.cache.Load([]byte(fields[1]), pogocache.LoadOptions{})
		if st != pogocache.Found {
			w.WritePGSingleColumnResult("value", nil, "SELECT 0")
			return
		}
		w.WritePGSingleColumnResult("value", res.Value, "SELECT 1")
	case "SET":
		if len(fields) < 3 {
			w.WritePGErrorResponse("SET takes a key and a value")
			return
		}
		val := strings.Join(fields[2:], " ")
		h.store([]byte(fields[1]), []byte(val), pogocache.StoreOptions{})
		w.WritePGCommandComplete("SET 1")
	case "DEL", "DELETE":
		if len(fields) != 2 {
			w.WritePGErrorResponse("DEL takes exactly one key")
			return
		}
		st := h.cache.Delete([]byte(fields[1]), pogocache.DeleteOptions{})
		n := "0"
		if st == pogocache.Deleted {
			n = "1"
		}
		w.WritePGCommandComplete("DELETE " + n)
	default:
		w.WritePGErrorResponse("unsupported query, expected GET/SET/DEL")
	}
}
