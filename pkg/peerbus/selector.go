package peerbus

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// MatchType selects how a Selector's target expression is matched against a
// peer's identity.
type MatchType int

const (
	// MatchGlob matches the target as a shell-style glob against node IDs.
	MatchGlob MatchType = iota
	// MatchGrain matches the target as a "key:value" lookup against a
	// peer's grain map.
	MatchGrain
	// MatchList matches the target as a comma-separated list of node IDs.
	MatchList
)

func (m MatchType) String() string {
	switch m {
	case MatchGlob:
		return "glob"
	case MatchGrain:
		return "grain"
	case MatchList:
		return "list"
	default:
		return "unknown"
	}
}

// ParseMatchType converts a match-type name ("glob", "grain", "list") into a
// MatchType value.
func ParseMatchType(s string) (MatchType, error) {
	switch s {
	case "glob":
		return MatchGlob, nil
	case "grain":
		return MatchGrain, nil
	case "list":
		return MatchList, nil
	default:
		return MatchGlob, fmt.Errorf("unknown match type %q (want glob, grain, or list)", s)
	}
}

var (
	// ErrEmptyTarget is returned when a selector has no target expression.
	ErrEmptyTarget = errors.New("selector target cannot be empty")
	// ErrInvalidGrainTarget is returned when a grain selector is not of the
	// form "key:value".
	ErrInvalidGrainTarget = errors.New("grain selector target must be of the form key:value")
)

// Selector is a targeting expression identifying which peers a request is
// addressed to.
type Selector struct {
	// Target is the matching expression; its meaning depends on MatchType.
	Target string

	// MatchType selects the matching scheme applied to Target.
	MatchType MatchType
}

// Validate checks the selector at the call boundary before any network work.
func (s Selector) Validate() error {
	if s.Target == "" {
		return ErrEmptyTarget
	}
	switch s.MatchType {
	case MatchGlob, MatchList:
		return nil
	case MatchGrain:
		key, value, ok := strings.Cut(s.Target, ":")
		if !ok || key == "" || value == "" {
			return ErrInvalidGrainTarget
		}
		return nil
	default:
		return fmt.Errorf("unknown match type %d", s.MatchType)
	}
}

// Matches reports whether a peer with the given node ID and grains is
// addressed by this selector. Matching is evaluated locally on whatever
// identity information the caller has about the peer.
func (s Selector) Matches(nodeID string, grains map[string]string) bool {
	switch s.MatchType {
	case MatchGlob:
		ok, err := path.Match(s.Target, nodeID)
		return err == nil && ok
	case MatchGrain:
		key, value, ok := strings.Cut(s.Target, ":")
		if !ok {
			return false
		}
		return grains[key] == value
	case MatchList:
		for _, id := range strings.Split(s.Target, ",") {
			if strings.TrimSpace(id) == nodeID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (s Selector) String() string {
	return fmt.Sprintf("%s(%s)", s.MatchType, s.Target)
}
