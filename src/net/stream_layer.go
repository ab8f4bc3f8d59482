package net

import (
	"net"
	"time"
)

// StreamLayer is used with the NetworkTransport to provide the low level stream
// abstraction.
type StreamLayer interface {
	net.Listener

	// Dial is used to create a new outgoing connection
	Dial(address string, timeout time.Duration) (net.Conn, error)
}

// StreamBinder opens a StreamLayer listening on port. Port 0 lets the system
// choose.
type StreamBinder func(port int) (StreamLayer, error)
