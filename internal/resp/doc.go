// Package resp implements the wire protocol spoken by minikv.
//
// The protocol is a RESP-style framing scheme: every value starts with a
// one-byte type marker, header lines are ASCII and end with CRLF, and bulk
// payloads are length prefixed so arbitrary binary content round-trips
// exactly. Supported markers:
//
//	+  simple string
//	-  error
//	:  signed 64-bit integer
//	$  bulk string ($-1 is the null value)
//	*  array
//	%  map (pair count, then alternating key/value)
package resp
