package net

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	errNotTCP = errors.New("local address is not a TCP address")
)

// TCPStreamLayer implements StreamLayer interface for plain TCP.
type TCPStreamLayer struct {
	listener *net.TCPListener
}

// Dial implements the StreamLayer interface.
func (t *TCPStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", address, timeout)
}

// Accept implements the net.Listener interface.
func (t *TCPStreamLayer) Accept() (c net.Conn, err error) {
	return t.listener.Accept()
}

// Close implements the net.Listener interface.
func (t *TCPStreamLayer) Close() (err error) {
	return t.listener.Close()
}

// Addr implements the net.Listener interface.
func (t *TCPStreamLayer) Addr() net.Addr {
	return t.listener.Addr()
}

// TCPBinder returns a StreamBinder listening on host. An empty host listens
// on all interfaces.
func TCPBinder(host string) StreamBinder {
	return func(port int) (StreamLayer, error) {
		list, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			return nil, err
		}

		tcpList, ok := list.(*net.TCPListener)
		if !ok {
			list.Close()
			return nil, errNotTCP
		}

		return &TCPStreamLayer{listener: tcpList}, nil
	}
}

// NewTCPTransport returns a NetworkTransport that is built on top of
// a TCP streaming transport layer, with log output going to the supplied Logger
func NewTCPTransport(
	bindHost string,
	maxPool int,
	timeout time.Duration,
	logger *logrus.Entry,
) *NetworkTransport {
	return NewNetworkTransport(TCPBinder(bindHost), maxPool, timeout, logger)
}
