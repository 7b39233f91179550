// Package parser implements the two protocol dissectors a Listener binds
// at configuration time: TLS ClientHello SNI extraction and HTTP Host
// header extraction. Both are pure byte-in/hostname-out functions with
// no knowledge of sockets, buffers, or the Connection state machine.
package parser

// Result is the parse(bytes, len, &out_hostname) -> int contract from
// the parser's contract. A non-negative Result means hostname was set to the
// extracted name (the Result value itself is just len(hostname) and
// carries no other meaning). Incomplete means "wait for more bytes,
// state unchanged". NoHostname means a validly-parsed request simply
// didn't carry a hostname. Anything below NoHostname means the input
// was malformed.
type Result int

const (
	Incomplete Result = -1
	NoHostname Result = -2
)

// Malformed constructs a Result below NoHostname, tagging why the
// request was judged malformed rather than merely absent a hostname.
// The distinct numeric codes only matter for log messages; callers
// should compare against Incomplete/NoHostname, not exact values.
func Malformed(reason int) Result {
	return Result(-3 - reason)
}

// Protocol extracts a destination hostname from the first bytes of a
// client stream. Implementations must be deterministic: identical input
// bytes always produce an identical (hostname, Result) pair, and must
// not retain buf past the call (the Connection copies the hostname out).
type Protocol interface {
	Parse(buf []byte) (hostname string, result Result)
}
