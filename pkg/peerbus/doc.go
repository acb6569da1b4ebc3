// Package peerbus provides interfaces for targeted request/response messaging
// between configuration-management agents.
//
// This package defines the core abstractions for the peer bus component:
//   - Selector: a targeting expression (glob, grain, or list match) that picks
//     which peers a request is addressed to
//   - Request/Response: an ephemeral message pair dispatched to a named remote
//     function on each matching peer
//   - PeerBus: the publish interface used by callers to fan a request out to
//     matching peers and collect their responses
//
// The interfaces use Go idioms:
//   - context.Context for cancellation and timeouts
//   - Explicit error returns following Go conventions
//   - Opaque []byte payloads so the bus stays agnostic of function semantics
//
// Example usage:
//
//	sel := peerbus.Selector{Target: "role:auth-server", MatchType: peerbus.MatchGrain}
//	if err := sel.Validate(); err != nil {
//		return err
//	}
//
//	req := peerbus.Request{
//		Function:   "teleport.nodes_add",
//		Args:       map[string]string{"roles": "node", "ttl": "2m"},
//		SourceNode: "web-01",
//	}
//
//	responses, err := bus.Publish(ctx, sel, req)
//	if err != nil {
//		return err
//	}
//	for _, resp := range responses {
//		process(resp.NodeID, resp.Payload)
//	}
//
// Zero responses is a valid outcome (no peer matched or none answered); callers
// decide whether that is an error for their use case.
package peerbus
