package net

// RPCResponse captures both a response and a potential error.
type RPCResponse struct {
	Response *Response
	Error    error
}

// RPC encapsulates an inbound Request and provides a response mechanism.
type RPC struct {
	Command  *Request
	RespChan chan<- RPCResponse
}

// Respond is used to respond with a response, error or both.
func (r *RPC) Respond(resp *Response, err error) {
	r.RespChan <- RPCResponse{resp, err}
}
