package net

import (
	"errors"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
)

// Op identifies the operation a Request asks for.
type Op uint8

const (
	// OpSearchByNumID carries NumIDArgs and returns an IdentityResult.
	OpSearchByNumID Op = iota
	// OpSearchByNameID carries NameIDArgs and returns an IdentityResult.
	OpSearchByNameID
	// OpGetNodesWithNameID carries NameIDArgs and returns an
	// IdentitiesResult.
	OpGetNodesWithNameID
	// OpInsert carries IdentityArgs and returns nothing.
	OpInsert
	// OpDelete carries NumIDArgs and returns nothing.
	OpDelete
	// OpGetTable carries NumIDArgs and returns a TableResult.
	OpGetTable
	// OpPing carries nothing and returns a PingResult.
	OpPing
)

var ops = []string{
	"SearchByNumID",
	"SearchByNameID",
	"GetNodesWithNameID",
	"Insert",
	"Delete",
	"GetTable",
	"Ping",
}

// String ...
func (o Op) String() string {
	if int(o) < len(ops) {
		return ops[o]
	}
	return "Unknown"
}

// Request is the envelope of every remote operation. The payload is opaque to
// the underlay.
type Request struct {
	Op      Op
	From    string
	Payload []byte
}

// NewRequest encodes args into a new Request.
func NewRequest(op Op, args interface{}) (*Request, error) {
	req := &Request{Op: op}
	if args != nil {
		payload, err := Encode(args)
		if err != nil {
			return nil, err
		}
		req.Payload = payload
	}
	return req, nil
}

// Decode decodes the payload into args.
func (r *Request) Decode(args interface{}) error {
	return Decode(r.Payload, args)
}

// Response carries either an encoded result or an error. When the handler
// failed with a typed error, Typed is set and ErrType holds its kind.
type Response struct {
	Payload []byte
	Error   string
	ErrType cm.ErrType
	Typed   bool
}

// NewResponse encodes result into a new Response.
func NewResponse(result interface{}) (*Response, error) {
	resp := &Response{}
	if result != nil {
		payload, err := Encode(result)
		if err != nil {
			return nil, err
		}
		resp.Payload = payload
	}
	return resp, nil
}

// ErrorResponse turns a handler error into a Response.
func ErrorResponse(err error) *Response {
	resp := &Response{Error: err.Error()}
	var e cm.Err
	if errors.As(err, &e) {
		resp.ErrType = e.Type()
		resp.Typed = true
	}
	return resp
}

// Decode decodes the payload into result.
func (r *Response) Decode(result interface{}) error {
	return Decode(r.Payload, result)
}

// NumIDArgs is the payload of OpSearchByNumID, OpDelete and OpGetTable.
type NumIDArgs struct {
	NumID int64
}

// NameIDArgs is the payload of OpSearchByNameID and OpGetNodesWithNameID.
type NameIDArgs struct {
	NameID string
}

// IdentityArgs is the payload of OpInsert.
type IdentityArgs struct {
	Identity skipgraph.Identity
}

// IdentityResult answers the search operations.
type IdentityResult struct {
	Identity skipgraph.Identity
}

// IdentitiesResult answers OpGetNodesWithNameID.
type IdentitiesResult struct {
	Identities []skipgraph.Identity
}

// TableResult answers OpGetTable. Left and Right are indexed by level; a nil
// entry is an absent neighbor.
type TableResult struct {
	Owner skipgraph.Identity
	Left  []*skipgraph.Identity
	Right []*skipgraph.Identity
}

// PingResult answers OpPing.
type PingResult struct {
	Identity skipgraph.Identity
	Size     int
}
