package node

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/mosaicnetworks/skipgraph/src/net"
	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
	"github.com/mosaicnetworks/skipgraph/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Node is a skip graph peer: a local engine served over an Underlay.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	self  skipgraph.Identity
	graph *skipgraph.Engine

	underlay *net.Underlay
	client   *Client

	sigintCh   chan os.Signal
	shutdownCh chan struct{}

	start        time.Time
	rpcRequests  uint64
	rpcErrors    uint64
	joinAttempts uint64
}

// NewNode is a factory method that returns a Node instance. Only the numeric
// and name ids of self are used; the address and port are set by Init.
func NewNode(conf *Config,
	self skipgraph.Identity,
	graph *skipgraph.Engine,
	trans net.Transport,
) *Node {
	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	logger := conf.Logger.WithFields(logrus.Fields{
		"num_id":  self.NumID,
		"name_id": self.NameID,
	})

	node := &Node{
		conf:       conf,
		logger:     logger,
		self:       self,
		graph:      graph,
		sigintCh:   sigintCh,
		shutdownCh: make(chan struct{}),
	}

	node.underlay = net.NewUnderlay(trans, node, conf.Advertise, conf.Timeout, logger)
	node.client = NewClient(node.underlay)

	return node
}

// Init starts the underlay on port and registers the node's own identity in
// the local engine. A node with an introducer starts Joining; Run completes
// the join.
func (n *Node) Init(port int) error {
	if err := skipgraph.ValidateNameID(n.self.NameID, n.graph.Levels()); err != nil {
		return err
	}

	if err := n.underlay.Initialize(port); err != nil {
		return err
	}

	n.self.Address = n.underlay.Address()
	n.self.Port = n.underlay.Port()
	n.logger = n.logger.WithField("address", n.underlay.FullAddress())

	if err := n.insertSelf(); err != nil {
		n.underlay.Terminate()
		return err
	}

	n.start = time.Now()

	if n.conf.Introducer == "" {
		n.logger.Debug("No introducer => Serving")
		n.setState(Serving)
	} else {
		n.logger.WithField("introducer", n.conf.Introducer).Debug("Joining")
		n.setState(Joining)
	}

	return nil
}

// insertSelf inserts the node's identity, replacing a stale entry left in the
// store by a previous run on another address.
func (n *Node) insertSelf() error {
	err := n.graph.Insert(n.self)
	if cm.Is(err, cm.DuplicateID) {
		existing, serr := n.graph.SearchByNumID(n.self.NumID)
		if serr == nil && existing == n.self {
			return nil
		}
		n.logger.WithField("stale", existing).Debug("Replacing stale identity")
		if err := n.graph.Delete(n.self.NumID); err != nil {
			return err
		}
		err = n.graph.Insert(n.self)
	}
	if err != nil {
		return err
	}
	telemetry.GraphSize.Set(float64(n.graph.Size()))
	return nil
}

// RunAsync runs the node in a separate goroutine
func (n *Node) RunAsync() {
	n.logger.Debug("RunAsync()")
	go n.Run()
}

// Run completes the join if needed, then blocks until the node is shut down
// or receives SIGINT.
func (n *Node) Run() {
	for {
		switch n.getState() {
		case Joining:
			if err := n.join(); err != nil {
				n.logger.WithError(err).Error("Join failed")
				select {
				case <-time.After(n.conf.JoinRetry):
				case <-n.shutdownCh:
					return
				}
			}
		case Serving:
			select {
			case <-n.shutdownCh:
				return
			case <-n.sigintCh:
				n.logger.Debug("Reacting to SIGINT")
				n.Shutdown()
				return
			}
		default:
			return
		}
	}
}

// join asks the introducer to insert this node.
func (n *Node) join() error {
	atomic.AddUint64(&n.joinAttempts, 1)

	address, port, err := SplitAddress(n.conf.Introducer)
	if err != nil {
		return err
	}

	start := time.Now()
	err = n.client.Insert(context.Background(), address, port, n.self)
	elapsed := time.Since(start)
	n.logger.WithField("duration", elapsed.Nanoseconds()).Debug("requestJoin()")

	if err != nil && !cm.Is(err, cm.DuplicateID) {
		return err
	}

	n.logger.WithField("introducer", n.conf.Introducer).Info("Joined")
	n.setState(Serving)

	return nil
}

// Shutdown terminates the underlay and closes the store.
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)
		signal.Stop(n.sigintCh)

		n.waitRoutines()

		if err := n.underlay.Terminate(); err != nil {
			n.logger.WithError(err).Error("Terminating underlay")
		}

		if err := n.graph.Store().Close(); err != nil {
			n.logger.WithError(err).Error("Closing store")
		}
	}
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	latest := "none"
	if id, ok := n.graph.LatestInsertion(); ok {
		latest = strconv.FormatInt(id.NumID, 10)
	}

	s := map[string]string{
		"num_id":           strconv.FormatInt(n.self.NumID, 10),
		"name_id":          n.self.NameID,
		"address":          n.underlay.FullAddress(),
		"state":            n.getState().String(),
		"levels":           strconv.Itoa(n.graph.Levels()),
		"size":             strconv.Itoa(n.graph.Size()),
		"latest_insertion": latest,
		"rpc_requests":     strconv.FormatUint(atomic.LoadUint64(&n.rpcRequests), 10),
		"rpc_errors":       strconv.FormatUint(atomic.LoadUint64(&n.rpcErrors), 10),
		"join_attempts":    strconv.FormatUint(atomic.LoadUint64(&n.joinAttempts), 10),
		"uptime":           time.Since(n.start).Truncate(time.Second).String(),
	}
	return s
}

// GetState returns the current state.
func (n *Node) GetState() State {
	return n.getState()
}

// Self returns the node's identity.
func (n *Node) Self() skipgraph.Identity {
	return n.self
}

// Graph returns the local engine.
func (n *Node) Graph() *skipgraph.Engine {
	return n.graph
}

// Underlay returns the node's underlay.
func (n *Node) Underlay() *net.Underlay {
	return n.underlay
}

// Client returns a client that sends requests through the node's underlay.
func (n *Node) Client() *Client {
	return n.client
}
