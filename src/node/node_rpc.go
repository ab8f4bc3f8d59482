package node

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/mosaicnetworks/skipgraph/src/net"
	"github.com/mosaicnetworks/skipgraph/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Receive implements net.Handler.
func (n *Node) Receive(req *net.Request) (*net.Response, error) {
	start := time.Now()
	atomic.AddUint64(&n.rpcRequests, 1)

	resp, err := n.processRequest(req)

	result := "ok"
	if err != nil {
		atomic.AddUint64(&n.rpcErrors, 1)
		result = "error"
		var e cm.Err
		if errors.As(err, &e) {
			result = e.Type().String()
		}
	}
	telemetry.ObserveRPC(req.Op.String(), result, start)

	return resp, err
}

func (n *Node) processRequest(req *net.Request) (*net.Response, error) {
	if n.getState() == Shutdown {
		return nil, cm.NewErr("Node", cm.Closed, req.Op.String())
	}

	n.logger.WithFields(logrus.Fields{
		"op":   req.Op,
		"from": req.From,
	}).Debug("process Request")

	switch req.Op {
	case net.OpSearchByNumID:
		return n.processSearchByNumID(req)
	case net.OpSearchByNameID:
		return n.processSearchByNameID(req)
	case net.OpGetNodesWithNameID:
		return n.processGetNodesWithNameID(req)
	case net.OpInsert:
		return n.processInsert(req)
	case net.OpDelete:
		return n.processDelete(req)
	case net.OpGetTable:
		return n.processGetTable(req)
	case net.OpPing:
		return n.processPing(req)
	default:
		n.logger.WithField("op", req.Op).Error("Unexpected request")
		return nil, fmt.Errorf("unexpected op %d", req.Op)
	}
}

func (n *Node) processSearchByNumID(req *net.Request) (*net.Response, error) {
	var args net.NumIDArgs
	if err := req.Decode(&args); err != nil {
		return nil, err
	}

	id, err := n.graph.SearchByNumID(args.NumID)
	if err != nil {
		return nil, err
	}

	return net.NewResponse(net.IdentityResult{Identity: id})
}

func (n *Node) processSearchByNameID(req *net.Request) (*net.Response, error) {
	var args net.NameIDArgs
	if err := req.Decode(&args); err != nil {
		return nil, err
	}

	id, err := n.graph.SearchByNameID(args.NameID)
	if err != nil {
		return nil, err
	}

	return net.NewResponse(net.IdentityResult{Identity: id})
}

func (n *Node) processGetNodesWithNameID(req *net.Request) (*net.Response, error) {
	var args net.NameIDArgs
	if err := req.Decode(&args); err != nil {
		return nil, err
	}

	ids := n.graph.GetNodesWithNameID(args.NameID)

	return net.NewResponse(net.IdentitiesResult{Identities: ids})
}

func (n *Node) processInsert(req *net.Request) (*net.Response, error) {
	var args net.IdentityArgs
	if err := req.Decode(&args); err != nil {
		return nil, err
	}

	if err := n.graph.Insert(args.Identity); err != nil {
		return nil, err
	}
	telemetry.GraphSize.Set(float64(n.graph.Size()))

	n.logger.WithFields(logrus.Fields{
		"identity": args.Identity,
		"from":     req.From,
	}).Debug("Inserted")

	return &net.Response{}, nil
}

func (n *Node) processDelete(req *net.Request) (*net.Response, error) {
	var args net.NumIDArgs
	if err := req.Decode(&args); err != nil {
		return nil, err
	}

	if err := n.graph.Delete(args.NumID); err != nil {
		return nil, err
	}
	telemetry.GraphSize.Set(float64(n.graph.Size()))

	n.logger.WithFields(logrus.Fields{
		"num_id": args.NumID,
		"from":   req.From,
	}).Debug("Deleted")

	return &net.Response{}, nil
}

func (n *Node) processGetTable(req *net.Request) (*net.Response, error) {
	var args net.NumIDArgs
	if err := req.Decode(&args); err != nil {
		return nil, err
	}

	owner, err := n.graph.SearchByNumID(args.NumID)
	if err != nil {
		return nil, err
	}

	table, err := n.graph.Table(args.NumID)
	if err != nil {
		return nil, err
	}

	left, right := table.Entries()

	return net.NewResponse(net.TableResult{
		Owner: owner,
		Left:  left,
		Right: right,
	})
}

func (n *Node) processPing(req *net.Request) (*net.Response, error) {
	return net.NewResponse(net.PingResult{
		Identity: n.self,
		Size:     n.graph.Size(),
	})
}
