package net

import "context"

// Transport provides an interface for network transports
// to allow a node to communicate with other nodes.
type Transport interface {

	// Bind sets the transport up on port and returns the port actually bound,
	// which differs from the argument when it is 0.
	Bind(port int) (int, error)

	// Listen accepts inbound requests until the transport is closed.
	Listen()

	// Consumer returns a channel that can be used to
	// consume and respond to inbound requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// Send delivers a request to target (address:port) and waits for the
	// response. Errors are common.Err of kind Unreachable, Timeout,
	// RemoteError or Closed.
	Send(ctx context.Context, target string, req *Request) (*Response, error)

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
