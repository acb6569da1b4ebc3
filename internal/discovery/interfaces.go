package discovery

import (
	"context"
)

// Peer describes a remote agent the bus can address: its node ID, the
// base URL of its bus endpoint, and the grains it advertises for selector
// matching.
type Peer struct {
	ID      string            `yaml:"id"`
	Address string            `yaml:"address"`
	Grains  map[string]string `yaml:"grains"`
}

// Discovery defines the interface for peer discovery mechanisms
type Discovery interface {
	// FindPeers discovers and returns available peer nodes
	FindPeers(ctx context.Context) ([]Peer, error)
}
