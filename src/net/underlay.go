package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/sirupsen/logrus"
)

// Handler answers inbound requests. A returned error is sent back to the
// caller inside the Response.
type Handler interface {
	Receive(req *Request) (*Response, error)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(req *Request) (*Response, error)

// Receive calls f(req).
func (f HandlerFunc) Receive(req *Request) (*Response, error) {
	return f(req)
}

// UnderlayState is the lifecycle of an Underlay.
type UnderlayState uint32

const (
	// Uninitialized is the state before a successful Initialize.
	Uninitialized UnderlayState = iota
	// Ready means the underlay sends and serves requests.
	Ready
	// Terminated is final.
	Terminated
)

// String ...
func (s UnderlayState) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Ready:
		return "Ready"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Underlay binds a Transport to a Handler. It resolves the local address,
// serves inbound requests and sends outbound ones with a per-call timeout.
type Underlay struct {
	transport Transport
	handler   Handler
	advertise string
	timeout   time.Duration
	logger    *logrus.Entry

	sync.RWMutex
	state       UnderlayState
	address     string
	port        int
	fullAddress string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewUnderlay creates an Uninitialized underlay. advertise, when set, is the
// address announced to peers instead of the resolved local IPv4 address. A
// zero timeout only bounds calls by their context.
func NewUnderlay(
	transport Transport,
	handler Handler,
	advertise string,
	timeout time.Duration,
	logger *logrus.Entry,
) *Underlay {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Underlay{
		transport: transport,
		handler:   handler,
		advertise: advertise,
		timeout:   timeout,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Initialize resolves the local address, binds port and starts serving. Port
// 0 lets the transport pick one; Port returns it afterwards. On failure the
// underlay stays Uninitialized.
func (u *Underlay) Initialize(port int) error {
	u.Lock()
	defer u.Unlock()

	if u.state != Uninitialized {
		return cm.NewErr("Underlay", cm.InitializationFailed, u.state.String())
	}

	address := u.advertise
	if address == "" {
		var err error
		address, err = LocalIPv4()
		if err != nil {
			return cm.WrapErr("Underlay", cm.InitializationFailed, "address", err)
		}
	}

	bound, err := u.transport.Bind(port)
	if err != nil {
		return cm.WrapErr("Underlay", cm.InitializationFailed, strconv.Itoa(port), err)
	}

	u.address = address
	u.port = bound
	u.fullAddress = net.JoinHostPort(address, strconv.Itoa(bound))
	u.state = Ready

	go u.transport.Listen()
	go u.serve()

	u.logger.WithFields(logrus.Fields{
		"address": u.fullAddress,
		"bind":    u.transport.LocalAddr(),
	}).Debug("Underlay ready")

	return nil
}

// serve dispatches inbound requests, each in its own goroutine, until the
// underlay is terminated.
func (u *Underlay) serve() {
	consumer := u.transport.Consumer()
	for {
		select {
		case rpc := <-consumer:
			go func(rpc RPC) {
				resp, err := u.DispatchRequest(rpc.Command)
				rpc.Respond(resp, err)
			}(rpc)
		case <-u.ctx.Done():
			return
		}
	}
}

// DispatchRequest hands req to the Handler. Handler errors are returned
// inside the Response; the error result is only set when the underlay is not
// Ready.
func (u *Underlay) DispatchRequest(req *Request) (*Response, error) {
	if state := u.State(); state != Ready {
		return nil, cm.NewErr("Underlay", cm.Closed, state.String())
	}

	resp, err := u.handler.Receive(req)
	if err != nil {
		u.logger.WithFields(logrus.Fields{
			"op":    req.Op,
			"from":  req.From,
			"error": err,
		}).Debug("Request failed")
		return ErrorResponse(err), nil
	}
	if resp == nil {
		resp = &Response{}
	}
	return resp, nil
}

// SendMessage delivers req to address:port and waits for the Response. The
// call ends at the earliest of the underlay timeout, the ctx deadline and
// Terminate. Failures are Unreachable, Timeout, RemoteError or Closed;
// nothing is retried.
func (u *Underlay) SendMessage(ctx context.Context, address string, port int, req *Request) (*Response, error) {
	target := net.JoinHostPort(address, strconv.Itoa(port))

	u.RLock()
	state, from := u.state, u.fullAddress
	u.RUnlock()

	if state != Ready {
		return nil, cm.NewErr("Underlay", cm.Closed, state.String())
	}

	if req.From == "" {
		stamped := *req
		stamped.From = from
		req = &stamped
	}

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(u.ctx, cancel)
	defer stop()

	resp, err := u.transport.Send(ctx, target, req)
	if err != nil {
		if u.State() == Terminated {
			return nil, cm.WrapErr("Underlay", cm.Closed, target, err)
		}
		return nil, err
	}

	if resp.Error != "" {
		var cause error = errors.New(resp.Error)
		if resp.Typed {
			cause = cm.WrapErr("Remote", resp.ErrType, req.Op.String(), cause)
		}
		return resp, cm.WrapErr("Underlay", cm.RemoteError, target, cause)
	}

	return resp, nil
}

// Terminate releases the transport. It is irreversible and idempotent.
// Requests already handed to the Handler run to completion but their
// responses are dropped.
func (u *Underlay) Terminate() error {
	u.Lock()
	if u.state == Terminated {
		u.Unlock()
		return nil
	}
	u.state = Terminated
	u.Unlock()

	u.cancel()

	u.logger.Debug("Underlay terminated")

	return u.transport.Close()
}

// State returns the current lifecycle state.
func (u *Underlay) State() UnderlayState {
	u.RLock()
	defer u.RUnlock()
	return u.state
}

// Address returns the resolved or advertised address.
func (u *Underlay) Address() string {
	u.RLock()
	defer u.RUnlock()
	return u.address
}

// Port returns the bound port.
func (u *Underlay) Port() int {
	u.RLock()
	defer u.RUnlock()
	return u.port
}

// FullAddress returns address:port.
func (u *Underlay) FullAddress() string {
	u.RLock()
	defer u.RUnlock()
	return u.fullAddress
}

// RemoteKind returns the kind of the remote handler error carried by a
// RemoteError, if the remote error was typed.
func RemoteKind(err error) (cm.ErrType, bool) {
	var outer cm.Err
	if !errors.As(err, &outer) || outer.Type() != cm.RemoteError {
		return 0, false
	}
	var inner cm.Err
	if errors.As(outer.Unwrap(), &inner) {
		return inner.Type(), true
	}
	return 0, false
}

// LocalIPv4 resolves the host name to a non-loopback IPv4 address, falling
// back to the interface addresses.
func LocalIPv4() (string, error) {
	if host, err := os.Hostname(); err == nil {
		if ips, err := net.LookupIP(host); err == nil {
			for _, ip := range ips {
				if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
					return ip4.String(), nil
				}
			}
		}
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
			return ip4.String(), nil
		}
	}

	return "", fmt.Errorf("no IPv4 address found")
}
