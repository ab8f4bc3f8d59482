// Package node implements the middle layer of a skip graph peer.
//
// A Node owns the local skip graph engine and an Underlay. Inbound requests
// from the Underlay are decoded and answered from the engine: searches by
// numeric id and by name id, lookups of every identity with a name id,
// insertion, deletion, lookup-table inspection and pings. Engine errors travel
// back to the caller with their kind so the remote side can tell a miss from
// a failure.
//
// Joining
//
// A Node started without an introducer is the first node of the graph and
// serves immediately. Otherwise it starts in the Joining state: it inserts its
// own identity locally and asks the introducer to insert it too. Join attempts
// are repeated until one succeeds or the node is shut down. An introducer that
// already knows the identity (a restarted node) counts as a successful join.
//
// Client
//
// Client wraps the Underlay with one typed method per operation. Handler
// errors of the remote node are returned with their original kind, so
// common.Is(err, common.NotFound) works across the network, and
// common.Is(err, common.RemoteError) still tells them from local failures.
package node
