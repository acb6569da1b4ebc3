package tokenoracle

import (
	"context"
	"errors"

	"github.com/clusterjoin/tokenbroker-go/pkg/peerbus"
)

var (
	// ErrTokenUnavailable is returned when a fetch was required but no peer
	// responded with a usable token. Callers rendering configuration from
	// the token should fail loudly rather than write a blank value.
	ErrTokenUnavailable = errors.New("no peer returned a usable join token")

	// ErrCachePersist is returned when a freshly fetched token could not be
	// written to the cache path. The token itself is still returned to the
	// immediate caller; subsequent calls will re-fetch.
	ErrCachePersist = errors.New("failed to persist join token cache")
)

// Oracle decides whether this node needs a fresh join token and obtains one
// when it does.
type Oracle interface {
	// NodeAuthToken returns the join token this node should use, fetching a
	// fresh one from peers matching the selector only when the local state
	// does not already cover the node. The returned string is empty when the
	// node is already registered and no cache exists (no token is needed),
	// or on error.
	NodeAuthToken(ctx context.Context, sel peerbus.Selector) (string, error)
}
