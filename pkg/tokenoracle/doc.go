// Package tokenoracle provides the interface for deciding whether a joining
// node needs a fresh cluster-join token and obtaining one when it does.
//
// The oracle inspects two pieces of local persisted state:
//   - the node identity key file, whose presence means this node already
//     completed its one-time registration with the auth node
//   - the cached token file, holding the most recently brokered join token
//     together with its expiry
//
// Only when neither proves the node is covered does the oracle ask peers
// (via the peer bus) to mint a token on its behalf, then caches and returns
// the result. The call is idempotent: repeated invocations against an
// unexpired cache return the same value without touching the network.
//
// Example usage:
//
//	sel := peerbus.Selector{Target: "role:auth-server", MatchType: peerbus.MatchGrain}
//	token, err := oracle.NodeAuthToken(ctx, sel)
//	if errors.Is(err, tokenoracle.ErrTokenUnavailable) {
//		// no auth peer answered; fail the surrounding render loudly
//		return err
//	}
//
// Error semantics: missing or unreadable local files are not errors, they are
// signal ("not registered" / "no valid cache") and drive the normal decision
// path. Only a required fetch that yields no usable token
// (ErrTokenUnavailable) or a fetched token that cannot be persisted
// (ErrCachePersist) surface as errors.
package tokenoracle
