package discovery

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rosterFile is the on-disk shape of a peer roster.
type rosterFile struct {
	Peers []Peer `yaml:"peers"`
}

// FileDiscovery implements Discovery by reading a YAML roster file on every
// lookup, so roster edits are picked up without restarting the agent.
//
// Roster format:
//
//	peers:
//	  - id: auth-01
//	    address: http://auth-01.cluster.local:4507
//	    grains:
//	      role: auth-server
type FileDiscovery struct {
	path string
}

// NewFileDiscovery creates a discovery backed by the roster file at path.
func NewFileDiscovery(path string) (*FileDiscovery, error) {
	if path == "" {
		return nil, fmt.Errorf("roster path cannot be empty")
	}
	return &FileDiscovery{path: path}, nil
}

// FindPeers reads and parses the roster file. A missing roster is an error;
// an empty roster is a valid zero-peer result.
func (f *FileDiscovery) FindPeers(ctx context.Context) ([]Peer, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", f.path, err)
	}

	var roster rosterFile
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse roster %s: %w", f.path, err)
	}

	for i, peer := range roster.Peers {
		if peer.ID == "" {
			return nil, fmt.Errorf("roster %s: peer %d has no id", f.path, i)
		}
		if peer.Address == "" {
			return nil, fmt.Errorf("roster %s: peer %q has no address", f.path, peer.ID)
		}
	}

	return roster.Peers, nil
}
