package discovery

import (
	"context"
)

// StaticDiscovery implements Discovery using a fixed list of peers supplied
// at construction time. Useful for tests and for deployments small enough to
// enumerate peers on the command line.
type StaticDiscovery struct {
	peers []Peer
}

// NewStaticDiscovery creates a new static discovery service with the given peers
func NewStaticDiscovery(peers []Peer) *StaticDiscovery {
	return &StaticDiscovery{
		peers: peers,
	}
}

// NewStaticDiscoveryFromAddresses builds a static discovery from bare
// addresses, using each address as its own node ID and advertising no grains.
func NewStaticDiscoveryFromAddresses(addresses []string) *StaticDiscovery {
	peers := make([]Peer, len(addresses))
	for i, address := range addresses {
		peers[i] = Peer{
			ID:      address, // no roster entry, use address as ID
			Address: address,
		}
	}
	return &StaticDiscovery{peers: peers}
}

// FindPeers returns the configured peer list
func (s *StaticDiscovery) FindPeers(ctx context.Context) ([]Peer, error) {
	peers := make([]Peer, len(s.peers))
	copy(peers, s.peers)
	return peers, nil
}
