package net

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
)

// inmemPorts hands out ports to in-memory transports bound on port 0.
var inmemPorts uint32 = 20000

// InmemTransport Implements the Transport interface, to allow skip graph
// nodes to be tested in-memory without going over a network.
type InmemTransport struct {
	sync.RWMutex
	host       string
	consumerCh chan RPC
	localAddr  string
	peers      map[string]*InmemTransport
	timeout    time.Duration

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewInmemTransport is used to initialize a new transport. The host defaults
// to 127.0.0.1; the local address is only known after Bind.
func NewInmemTransport(host string) *InmemTransport {
	if host == "" {
		host = "127.0.0.1"
	}
	return &InmemTransport{
		host:       host,
		consumerCh: make(chan RPC, 16),
		peers:      make(map[string]*InmemTransport),
		timeout:    time.Second,
		shutdownCh: make(chan struct{}),
	}
}

// Bind implements the Transport interface. Port 0 picks a fresh port.
func (i *InmemTransport) Bind(port int) (int, error) {
	if i.IsShutdown() {
		return 0, cm.NewErr("InmemTransport", cm.Closed, "")
	}
	if port < 0 || port > 65535 {
		return 0, cm.NewErr("InmemTransport", cm.InitializationFailed, strconv.Itoa(port))
	}
	if port == 0 {
		port = int(atomic.AddUint32(&inmemPorts, 1))
	}
	i.Lock()
	i.localAddr = net.JoinHostPort(i.host, strconv.Itoa(port))
	i.Unlock()
	return port, nil
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	i.RLock()
	defer i.RUnlock()
	return i.localAddr
}

// IsShutdown reports whether Close was called.
func (i *InmemTransport) IsShutdown() bool {
	select {
	case <-i.shutdownCh:
		return true
	default:
		return false
	}
}

// Send implements the Transport interface.
func (i *InmemTransport) Send(ctx context.Context, target string, req *Request) (*Response, error) {
	if i.IsShutdown() {
		return nil, cm.NewErr("InmemTransport", cm.Closed, target)
	}

	i.RLock()
	peer, ok := i.peers[target]
	i.RUnlock()

	if !ok || peer.IsShutdown() {
		return nil, cm.NewErr("InmemTransport", cm.Unreachable, target)
	}

	timer := time.NewTimer(i.timeout)
	defer timer.Stop()

	// Send the RPC over
	respCh := make(chan RPCResponse, 1)
	select {
	case peer.consumerCh <- RPC{Command: req, RespChan: respCh}:
	case <-peer.shutdownCh:
		return nil, cm.NewErr("InmemTransport", cm.Unreachable, target)
	case <-i.shutdownCh:
		return nil, cm.NewErr("InmemTransport", cm.Closed, target)
	case <-ctx.Done():
		return nil, contextErr("InmemTransport", target, ctx.Err())
	case <-timer.C:
		return nil, cm.NewErr("InmemTransport", cm.Timeout, target)
	}

	// Wait for a response
	select {
	case rpcResp := <-respCh:
		if rpcResp.Error != nil {
			return nil, cm.WrapErr("InmemTransport", cm.RemoteError, target, rpcResp.Error)
		}
		return rpcResp.Response, nil
	case <-peer.shutdownCh:
		return nil, cm.NewErr("InmemTransport", cm.Unreachable, target)
	case <-i.shutdownCh:
		return nil, cm.NewErr("InmemTransport", cm.Closed, target)
	case <-ctx.Done():
		return nil, contextErr("InmemTransport", target, ctx.Err())
	case <-timer.C:
		return nil, cm.NewErr("InmemTransport", cm.Timeout, target)
	}
}

// contextErr maps the end of a call context onto an error kind: an expired
// deadline is a Timeout, a cancellation means the caller was closed.
func contextErr(scope, target string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return cm.WrapErr(scope, cm.Timeout, target, err)
	}
	return cm.WrapErr(scope, cm.Closed, target, err)
}

// Connect is used to connect this transport to another transport for
// a given target address. This allows for local routing.
func (i *InmemTransport) Connect(target string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[target] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(target string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, target)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.shutdownOnce.Do(func() {
		close(i.shutdownCh)
	})
	i.DisconnectAll()
	return nil
}

// Listen is an empty function as there is no need to defer
// initialisation of the InMem service
func (i *InmemTransport) Listen() {
}
