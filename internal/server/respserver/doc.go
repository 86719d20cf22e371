// Package respserver provides the TCP server speaking the minikv wire
// protocol.
//
// Each accepted connection runs one session: decode a request, dispatch
// it against the shared store, encode the response, repeat until the
// peer disconnects or the framing becomes untrustworthy. A semaphore
// bounds the number of simultaneously active sessions; at capacity,
// further acceptance is deferred rather than refused.
//
// Supported commands: GET, SET, DELETE, FLUSH, MGET, MSET.
package respserver
