package peerbus

import (
	"context"
)

// Request is an ephemeral message asking matching peers to run a named
// function on the caller's behalf. It lives for a single Publish call and is
// never persisted by the bus.
type Request struct {
	// Function is the name of the remote function to invoke, e.g.
	// "teleport.nodes_add".
	Function string

	// Args carries the function arguments as string key/value pairs.
	Args map[string]string

	// SourceNode identifies the requesting node so responders can log and
	// audit who asked.
	SourceNode string
}

// Response is a single peer's answer to a published request. The payload is
// opaque to the bus; its interpretation belongs to the function contract
// between caller and responder.
type Response struct {
	// NodeID identifies the peer that produced this response.
	NodeID string

	// Payload is the raw response body. An empty payload means the peer
	// matched the selector but declined or had nothing to return.
	Payload []byte
}

// PeerBus fans a request out to the peers matched by a selector and collects
// their responses.
type PeerBus interface {
	// Publish sends the request to every peer matching the selector and
	// returns the responses that arrived before the bus's own timeout.
	// Returning zero responses is not an error; callers decide what an
	// empty result means for them.
	Publish(ctx context.Context, sel Selector, req Request) ([]Response, error)
}
