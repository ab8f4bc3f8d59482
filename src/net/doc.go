// Package net implements the underlay that carries skip graph operations
// between peers.
//
// Every remote operation is a Request (an operation code plus an encoded
// payload) answered by a Response (an encoded result or an error). The
// Underlay is the only seam between the network and the graph logic:
//
// - Initialize resolves the local address, asks the Transport to bind the
// port, and starts serving. A failure leaves the Underlay uninitialized.
//
// - SendMessage delivers a Request to address:port and blocks until the
// Response arrives, the per-call timeout expires, or the Underlay is
// terminated. Failures are typed: Unreachable, Timeout, RemoteError, Closed.
// Nothing is retried.
//
// - DispatchRequest hands an inbound Request to the Handler supplied at
// construction. Handler errors travel back inside the Response.
//
// - Terminate releases the transport. Every later call fails with Closed.
//
// Transports
//
// The Transport interface hides how bytes move. There are two
// implementations:
//
// - Inmem: in-memory transport used for testing. Transports are wired
// together explicitly with Connect.
//
// - TCP: a NetworkTransport over a TCP StreamLayer. Requests and responses
// are msgpack encoded and connections are pooled per target.
package net
