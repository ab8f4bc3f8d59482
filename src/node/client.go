package node

import (
	"context"
	"fmt"
	"net"
	"strconv"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
	snet "github.com/mosaicnetworks/skipgraph/src/net"
	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
)

// Client sends typed requests to remote nodes through an Underlay.
type Client struct {
	underlay *snet.Underlay
}

// NewClient ...
func NewClient(underlay *snet.Underlay) *Client {
	return &Client{underlay: underlay}
}

// SearchByNumID asks the node at address:port for the identity whose numeric
// id is numID.
func (c *Client) SearchByNumID(ctx context.Context, address string, port int, numID int64) (skipgraph.Identity, error) {
	var res snet.IdentityResult
	err := c.call(ctx, address, port, snet.OpSearchByNumID, snet.NumIDArgs{NumID: numID}, &res)
	return res.Identity, err
}

// SearchByNameID asks the node at address:port for the identity sharing the
// longest name id prefix with name.
func (c *Client) SearchByNameID(ctx context.Context, address string, port int, name string) (skipgraph.Identity, error) {
	var res snet.IdentityResult
	err := c.call(ctx, address, port, snet.OpSearchByNameID, snet.NameIDArgs{NameID: name}, &res)
	return res.Identity, err
}

// GetNodesWithNameID asks the node at address:port for every identity whose
// name id is name.
func (c *Client) GetNodesWithNameID(ctx context.Context, address string, port int, name string) ([]skipgraph.Identity, error) {
	var res snet.IdentitiesResult
	err := c.call(ctx, address, port, snet.OpGetNodesWithNameID, snet.NameIDArgs{NameID: name}, &res)
	if res.Identities == nil {
		res.Identities = []skipgraph.Identity{}
	}
	return res.Identities, err
}

// Insert asks the node at address:port to insert id.
func (c *Client) Insert(ctx context.Context, address string, port int, id skipgraph.Identity) error {
	return c.call(ctx, address, port, snet.OpInsert, snet.IdentityArgs{Identity: id}, nil)
}

// Delete asks the node at address:port to delete numID.
func (c *Client) Delete(ctx context.Context, address string, port int, numID int64) error {
	return c.call(ctx, address, port, snet.OpDelete, snet.NumIDArgs{NumID: numID}, nil)
}

// GetTable fetches the lookup table of numID from the node at address:port.
func (c *Client) GetTable(ctx context.Context, address string, port int, numID int64) (skipgraph.Identity, *skipgraph.LookupTable, error) {
	var res snet.TableResult
	if err := c.call(ctx, address, port, snet.OpGetTable, snet.NumIDArgs{NumID: numID}, &res); err != nil {
		return skipgraph.Identity{}, nil, err
	}
	return res.Owner, skipgraph.LookupTableFromEntries(res.Left, res.Right), nil
}

// Ping returns the identity of the node at address:port and the size of its
// graph.
func (c *Client) Ping(ctx context.Context, address string, port int) (snet.PingResult, error) {
	var res snet.PingResult
	err := c.call(ctx, address, port, snet.OpPing, nil, &res)
	return res, err
}

// call sends one request and decodes the result. A typed remote error is
// returned with its original kind.
func (c *Client) call(ctx context.Context, address string, port int, op snet.Op, args interface{}, result interface{}) error {
	req, err := snet.NewRequest(op, args)
	if err != nil {
		return err
	}

	resp, err := c.underlay.SendMessage(ctx, address, port, req)
	if err != nil {
		if kind, ok := snet.RemoteKind(err); ok {
			return cm.WrapErr("Client", kind, op.String(), err)
		}
		return err
	}

	if result == nil {
		return nil
	}
	return resp.Decode(result)
}

// SplitAddress splits host:port.
func SplitAddress(addr string) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %s: %v", addr, err)
	}
	return host, port, nil
}
