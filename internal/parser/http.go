package parser

import (
	"bytes"
	"net"

	"golang.org/x/net/http/httpguts"
)

var httpMethods = [][]byte{
	[]byte("GET "), []byte("HEAD "), []byte("POST "), []byte("PUT "),
	[]byte("DELETE "), []byte("CONNECT "), []byte("OPTIONS "),
	[]byte("TRACE "), []byte("PATCH "),
}

// longestMethodPrefix is long enough that a buffer shorter than it might
// still turn out to start with a valid method once more bytes arrive.
const longestMethodPrefix = len("OPTIONS ")

// HTTP extracts the Host header from the opening lines of an HTTP/1.x
// request.
type HTTP struct{}

func (HTTP) Parse(buf []byte) (string, Result) {
	if !startsWithMethod(buf) {
		if len(buf) < longestMethodPrefix {
			return "", Incomplete
		}
		return "", Malformed(0)
	}

	headerEnd := bytes.Index(buf, []byte("\r\n\r\n"))
	if headerEnd == -1 {
		return "", Incomplete
	}

	for _, line := range bytes.Split(buf[:headerEnd], []byte("\r\n"))[1:] {
		name, value, ok := splitHeaderLine(line)
		if !ok || !bytes.EqualFold(name, []byte("Host")) {
			continue
		}

		host := string(bytes.TrimSpace(value))
		if host == "" || !httpguts.ValidHeaderFieldValue(host) {
			return "", Malformed(1)
		}
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		return host, Result(len(host))
	}
	return "", NoHostname
}

func startsWithMethod(buf []byte) bool {
	for _, m := range httpMethods {
		if bytes.HasPrefix(buf, m) {
			return true
		}
	}
	return false
}

func splitHeaderLine(line []byte) (name, value []byte, ok bool) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return nil, nil, false
	}
	return line[:i], line[i+1:], true
}
