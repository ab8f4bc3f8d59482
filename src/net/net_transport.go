package net

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

const (
	bufSize = 64 * 1024
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = cm.NewErr("NetworkTransport", cm.Closed, "")
)

/*
NetworkTransport provides a network based transport that can be
used to communicate with skip graph nodes on remote machines. It requires
an underlying stream layer to provide a stream abstraction, which can
be simple TCP, TLS, etc. The stream layer is opened by Bind.

This transport is very simple and lightweight. Each request is msgpack
encoded and sent on a pooled connection. The response is an error string
followed by the response object, both encoded with msgpack.
*/
type NetworkTransport struct {
	logger *logrus.Entry

	connPool     map[string][]*netConn
	connPoolLock sync.Mutex
	maxPool      int

	consumeCh chan RPC

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	binder     StreamBinder
	stream     StreamLayer
	streamLock sync.RWMutex

	timeout time.Duration
}

type netConn struct {
	target string
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	dec    *codec.Decoder
	enc    *codec.Encoder
}

// Release closes the underlying connection
func (n *netConn) Release() error {
	return n.conn.Close()
}

// NewNetworkTransport creates a new network transport whose stream is opened
// by binder. The maxPool controls how many connections we will pool (per
// target). The timeout is the default I/O deadline of a call.
func NewNetworkTransport(
	binder StreamBinder,
	maxPool int,
	timeout time.Duration,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	trans := &NetworkTransport{
		connPool:   make(map[string][]*netConn),
		consumeCh:  make(chan RPC),
		logger:     logger,
		maxPool:    maxPool,
		shutdownCh: make(chan struct{}),
		binder:     binder,
		timeout:    timeout,
	}

	return trans
}

// Bind implements the Transport interface.
func (n *NetworkTransport) Bind(port int) (int, error) {
	if n.IsShutdown() {
		return 0, ErrTransportShutdown
	}

	n.streamLock.Lock()
	defer n.streamLock.Unlock()

	if n.stream != nil {
		return 0, cm.NewErr("NetworkTransport", cm.InitializationFailed, "already bound")
	}

	stream, err := n.binder(port)
	if err != nil {
		return 0, cm.WrapErr("NetworkTransport", cm.InitializationFailed, strconv.Itoa(port), err)
	}

	_, p, err := net.SplitHostPort(stream.Addr().String())
	if err != nil {
		stream.Close()
		return 0, cm.WrapErr("NetworkTransport", cm.InitializationFailed, stream.Addr().String(), err)
	}
	bound, err := strconv.Atoi(p)
	if err != nil {
		stream.Close()
		return 0, cm.WrapErr("NetworkTransport", cm.InitializationFailed, p, err)
	}

	n.stream = stream
	return bound, nil
}

func (n *NetworkTransport) getStream() StreamLayer {
	n.streamLock.RLock()
	defer n.streamLock.RUnlock()
	return n.stream
}

// Close is used to stop the network transport.
func (n *NetworkTransport) Close() error {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if !n.shutdown {
		close(n.shutdownCh)
		if stream := n.getStream(); stream != nil {
			stream.Close()
		}
		n.releasePool()
		n.shutdown = true
	}
	return nil
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan RPC {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	stream := n.getStream()
	if stream == nil {
		return ""
	}

	addr := stream.Addr()
	if addr != nil {
		return addr.String()
	}

	return ""
}

// IsShutdown is used to check if the transport is shutdown.
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// getPooledConn is used to grab a pooled connection.
func (n *NetworkTransport) getPooledConn(target string) *netConn {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	conns, ok := n.connPool[target]
	if !ok || len(conns) == 0 {
		return nil
	}

	var conn *netConn
	num := len(conns)
	conn, conns[num-1] = conns[num-1], nil
	n.connPool[target] = conns[:num-1]
	return conn
}

// getConn is used to get a connection from the pool.
func (n *NetworkTransport) getConn(target string, timeout time.Duration) (*netConn, error) {
	// Check for a pooled conn
	if conn := n.getPooledConn(target); conn != nil {
		return conn, nil
	}

	stream := n.getStream()
	if stream == nil {
		return nil, cm.NewErr("NetworkTransport", cm.Closed, "not bound")
	}

	// Dial a new connection
	conn, err := stream.Dial(target, timeout)
	if err != nil {
		return nil, err
	}

	// Wrap the conn
	netConn := &netConn{
		target: target,
		conn:   conn,
		r:      bufio.NewReaderSize(conn, bufSize),
		w:      bufio.NewWriterSize(conn, bufSize),
	}
	// Setup encoder/decoders
	netConn.dec = codec.NewDecoder(netConn.r, msgpackHandle)
	netConn.enc = codec.NewEncoder(netConn.w, msgpackHandle)

	// Done
	return netConn, nil
}

// returnConn returns a connection back to the pool.
func (n *NetworkTransport) returnConn(conn *netConn) {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	key := conn.target
	conns := n.connPool[key]

	if !n.IsShutdown() && len(conns) < n.maxPool {
		n.connPool[key] = append(conns, conn)
	} else {
		conn.Release()
	}
}

func (n *NetworkTransport) releasePool() {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	for target, conns := range n.connPool {
		for _, c := range conns {
			c.Release()
		}
		delete(n.connPool, target)
	}
}

// Send implements the Transport interface. The call deadline is the earlier of
// the context deadline and the transport timeout.
func (n *NetworkTransport) Send(ctx context.Context, target string, req *Request) (*Response, error) {
	if n.IsShutdown() {
		return nil, ErrTransportShutdown
	}
	if err := ctx.Err(); err != nil {
		return nil, contextErr("NetworkTransport", target, err)
	}

	timeout := n.timeout
	if d, ok := ctx.Deadline(); ok {
		if rem := time.Until(d); timeout <= 0 || rem < timeout {
			timeout = rem
		}
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	// Get a conn
	conn, err := n.getConn(target, timeout)
	if err != nil {
		return nil, n.mapError(ctx, target, deadline, err)
	}

	// Set a deadline
	conn.conn.SetDeadline(deadline)

	stop := n.watch(ctx, conn)

	var rpcError string
	resp := new(Response)
	err = sendRPC(conn, req)
	if err == nil {
		rpcError, err = decodeResponse(conn, resp)
	}
	stop()

	if err != nil {
		return nil, n.mapError(ctx, target, deadline, err)
	}

	n.returnConn(conn)

	if rpcError != "" {
		return nil, cm.WrapErr("NetworkTransport", cm.RemoteError, target, errors.New(rpcError))
	}
	return resp, nil
}

// watch interrupts the I/O on conn when ctx ends or the transport shuts down.
// The returned function stops watching and waits until the watcher is gone.
func (n *NetworkTransport) watch(ctx context.Context, conn *netConn) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		select {
		case <-ctx.Done():
			conn.conn.SetDeadline(time.Now())
		case <-n.shutdownCh:
			conn.conn.SetDeadline(time.Now())
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// mapError classifies a failed call.
func (n *NetworkTransport) mapError(ctx context.Context, target string, deadline time.Time, err error) error {
	if n.IsShutdown() {
		return cm.WrapErr("NetworkTransport", cm.Closed, target, err)
	}
	if ctx.Err() != nil {
		return contextErr("NetworkTransport", target, ctx.Err())
	}
	// The codec wraps I/O errors without Unwrap, so an expired call deadline
	// is the reliable sign of a timeout.
	if !deadline.IsZero() && !time.Now().Before(deadline) {
		return cm.WrapErr("NetworkTransport", cm.Timeout, target, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return cm.WrapErr("NetworkTransport", cm.Timeout, target, err)
	}
	if cm.Is(err, cm.Closed) {
		return err
	}
	return cm.WrapErr("NetworkTransport", cm.Unreachable, target, err)
}

// sendRPC is used to encode and send the RPC.
func sendRPC(conn *netConn, req *Request) error {
	// Send the request
	if err := conn.enc.Encode(req); err != nil {
		conn.Release()
		return err
	}

	// Flush
	if err := conn.w.Flush(); err != nil {
		conn.Release()
		return err
	}
	return nil
}

// decodeResponse is used to decode an RPC response. It returns the remote
// error string, if any. The connection is released on a decoding error.
func decodeResponse(conn *netConn, resp *Response) (string, error) {
	// Decode the error if any
	var rpcError string
	if err := conn.dec.Decode(&rpcError); err != nil {
		conn.Release()
		return "", err
	}

	// Decode the response
	if err := conn.dec.Decode(resp); err != nil {
		conn.Release()
		return "", err
	}

	return rpcError, nil
}

// Listen handles incoming connections until the transport is closed. It
// returns immediately if the transport is not bound.
func (n *NetworkTransport) Listen() {
	stream := n.getStream()
	if stream == nil {
		n.logger.Error("Listen called before Bind")
		return
	}

	for {
		// Accept incoming connections
		conn, err := stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		n.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		// Handle the connection in dedicated routine
		go n.handleConn(conn)
	}
}

// handleConn is used to handle an inbound connection for its lifespan.
func (n *NetworkTransport) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReaderSize(conn, bufSize)
	w := bufio.NewWriterSize(conn, bufSize)
	dec := codec.NewDecoder(r, msgpackHandle)
	enc := codec.NewEncoder(w, msgpackHandle)

	for {
		if err := n.handleCommand(dec, enc); err != nil {
			if cm.Is(err, cm.Closed) {
				n.logger.WithField("error", err).Debug("Dropping incoming command")
			} else if err != io.EOF {
				n.logger.WithField("error", err).Error("Failed to decode incoming command")
			}
			return
		}
		if err := w.Flush(); err != nil {
			n.logger.WithField("error", err).Error("Failed to flush response")
			return
		}
	}
}

// handleCommand is used to decode and dispatch a single command.
func (n *NetworkTransport) handleCommand(dec *codec.Decoder, enc *codec.Encoder) error {
	// Decode the command
	req := new(Request)
	if err := dec.Decode(req); err != nil {
		return err
	}

	respCh := make(chan RPCResponse, 1)
	rpc := RPC{
		Command:  req,
		RespChan: respCh,
	}

	// Dispatch the RPC
	select {
	case n.consumeCh <- rpc:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	// Wait for response
	select {
	case resp := <-respCh:
		// Send the error first
		respErr := ""
		if resp.Error != nil {
			respErr = resp.Error.Error()
		}
		if err := enc.Encode(respErr); err != nil {
			return err
		}

		// Send the response
		out := resp.Response
		if out == nil {
			out = &Response{}
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	return nil
}
