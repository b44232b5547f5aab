package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

// parseHTTP parses a single HTTP/1.x request, translating it into the same
// [][]byte argument vector the other protocols produce so one command
// dispatcher can serve every front end: GET /key -> {"GET", "key"},
// PUT/POST /key with a body -> {"SET", "key", body}, DELETE /key ->
// {"DELETE", "key"}. This mirrors pogocache's HTTP front end, which maps the
// cache's key space onto REST-ish paths rather than exposing a generic HTTP
// proxy.
func parseHTTP(data []byte) (int, Command, error) {
	headerEnd := bytes.Index(data, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		if len(data) > 16384 {
			return 0, Command{}, fmt.Errorf("Bad Request")
		}
		return 0, Command{}, ErrNeedMore
	}
	reader := bufio.NewReader(bytes.NewReader(data[:headerEnd+4]))
	tp := textproto.NewReader(reader)
	requestLine, err := tp.ReadLine()
	if err != nil {
		return 0, Command{}, fmt.Errorf("Bad Request")
	}
	parts := strings.SplitN(requestLine, " ", 3)
	if len(parts) != 3 {
		return 0, Command{}, fmt.Errorf("Bad Request")
	}
	method, path, httpVersion := parts[0], parts[1], parts[2]

	hdr, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return 0, Command{}, fmt.Errorf("Bad Request")
	}

	vers := 0
	if strings.HasSuffix(httpVersion, "1.1") {
		vers = 1
	}
	keepAlive := vers == 1
	if v := hdr.Get("Connection"); v != "" {
		keepAlive = strings.EqualFold(v, "keep-alive")
	}

	bodyLen := 0
	if v := hdr.Get("Content-Length"); v != "" {
		bodyLen, _ = strconv.Atoi(v)
	}
	total := headerEnd + 4 + bodyLen
	if total > len(data) {
		return 0, Command{}, ErrNeedMore
	}
	body := data[headerEnd+4 : total]

	key := strings.TrimPrefix(path, "/")
	if key == "" {
		return total, Command{}, fmt.Errorf("Show Help HTML")
	}
	key = unescapePath(key)

	var args [][]byte
	switch method {
	case http.MethodGet:
		args = [][]byte{[]byte("GET"), []byte(key)}
	case http.MethodPut, http.MethodPost:
		args = [][]byte{[]byte("SET"), []byte(key), append([]byte(nil), body...)}
	case http.MethodDelete:
		args = [][]byte{[]byte("DELETE"), []byte(key)}
	default:
		return total, Command{HTTPVersion: vers, KeepAlive: keepAlive}, fmt.Errorf("Method Not Allowed")
	}
	return total, Command{Args: args, HTTPVersion: vers, KeepAlive: keepAlive}, nil
}

func unescapePath(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}
