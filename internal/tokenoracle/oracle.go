package tokenoracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/clusterjoin/tokenbroker-go/internal/minter"
	"github.com/clusterjoin/tokenbroker-go/pkg/peerbus"
	"github.com/clusterjoin/tokenbroker-go/pkg/tokenoracle"
)

// Config holds configuration for the FileOracle
type Config struct {
	// IdentityKeyPath is the node identity key written by the gateway
	// service once registration completes. Presence means registered; the
	// oracle never creates or inspects its contents.
	IdentityKeyPath string

	// CacheTokenPath is where brokered join tokens are cached between runs.
	CacheTokenPath string

	// LockPath is the scoped lock taken around the read-decide-fetch-write
	// sequence. Defaults to CacheTokenPath + ".lock". Set DisableLock to
	// skip locking entirely.
	LockPath    string
	DisableLock bool

	// Function is the bus function asked to mint a token.
	Function string

	// Roles and TTL are forwarded to the minting peer as request arguments.
	Roles string
	TTL   time.Duration

	// SourceNode identifies this node in outgoing requests.
	SourceNode string
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.IdentityKeyPath == "" {
		return errors.New("identity key path cannot be empty")
	}
	if c.CacheTokenPath == "" {
		return errors.New("cache token path cannot be empty")
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.LockPath == "" {
		c.LockPath = c.CacheTokenPath + ".lock"
	}
	if c.Function == "" {
		c.Function = "teleport.nodes_add"
	}
	if c.Roles == "" {
		c.Roles = "node"
	}
	if c.TTL <= 0 {
		c.TTL = 2 * time.Minute
	}
}

// DefaultConfig returns a Config pointing at the conventional teleport
// state directory.
func DefaultConfig() *Config {
	c := &Config{
		IdentityKeyPath: "/var/lib/teleport/node.key",
		CacheTokenPath:  "/var/lib/teleport/auth_token",
	}
	c.SetDefaults()
	return c
}

// FileOracle implements tokenoracle.Oracle against filesystem state and a
// peer bus. One call performs at most one broadcast.
type FileOracle struct {
	config *Config
	bus    peerbus.PeerBus
	now    func() time.Time // stubbed in tests
}

// New creates a FileOracle with the given configuration and bus
func New(config *Config, bus peerbus.PeerBus) (*FileOracle, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if bus == nil {
		return nil, fmt.Errorf("bus cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	configCopy := *config
	configCopy.SetDefaults()

	return &FileOracle{
		config: &configCopy,
		bus:    bus,
		now:    time.Now,
	}, nil
}

// NodeAuthToken decides whether this node needs a fresh join token and
// fetches one from peers matching the selector only when it does.
//
// Decision order:
//  1. Identity key present: registration already happened. Return whatever
//     the cache holds (or "" without one); no broadcast either way.
//  2. Cached token unexpired: return it; no broadcast.
//  3. Otherwise broadcast one mint request; first non-empty response wins,
//     is cached, and is returned.
func (o *FileOracle) NodeAuthToken(ctx context.Context, sel peerbus.Selector) (string, error) {
	if err := sel.Validate(); err != nil {
		return "", fmt.Errorf("invalid selector: %w", err)
	}

	if !o.config.DisableLock {
		lock, err := acquireLock(ctx, o.config.LockPath)
		if err != nil {
			return "", err
		}
		defer lock.release()
	}

	if fileExists(o.config.IdentityKeyPath) {
		if cached, err := readCache(o.config.CacheTokenPath); err == nil {
			return cached.Token, nil
		}
		// Registered and no cache left: the node no longer needs a token.
		return "", nil
	}

	if cached, err := readCache(o.config.CacheTokenPath); err == nil {
		if time.Unix(cached.ExpiresAt, 0).After(o.now()) {
			return cached.Token, nil
		}
		log.Printf("tokenoracle: cached token expired at %s, requesting a new one", time.Unix(cached.ExpiresAt, 0).Format(time.RFC3339))
	}

	token, err := o.fetch(ctx, sel)
	if err != nil {
		return "", err
	}

	if err := writeCache(o.config.CacheTokenPath, token); err != nil {
		// The token is still usable by this caller, but nothing was
		// persisted, so the next run will fetch again.
		return token.Token, fmt.Errorf("%w: %v", tokenoracle.ErrCachePersist, err)
	}
	return token.Token, nil
}

// fetch issues the single broadcast and applies the first-non-empty-response
// policy.
func (o *FileOracle) fetch(ctx context.Context, sel peerbus.Selector) (*minter.JoinToken, error) {
	req := peerbus.Request{
		Function: o.config.Function,
		Args: map[string]string{
			"roles": o.config.Roles,
			"ttl":   o.config.TTL.String(),
		},
		SourceNode: o.config.SourceNode,
	}

	responses, err := o.bus.Publish(ctx, sel, req)
	if err != nil {
		return nil, fmt.Errorf("%w: publish failed: %v", tokenoracle.ErrTokenUnavailable, err)
	}

	for _, resp := range responses {
		if len(resp.Payload) == 0 {
			continue
		}
		var token minter.JoinToken
		if err := json.Unmarshal(resp.Payload, &token); err != nil {
			log.Printf("tokenoracle: discarding malformed response from %s: %v", resp.NodeID, err)
			continue
		}
		if token.Token == "" {
			continue
		}
		log.Printf("tokenoracle: using token minted by %s (expires %s)", resp.NodeID, token.Expires)
		return &token, nil
	}

	return nil, fmt.Errorf("%w (selector %s, %d responses)", tokenoracle.ErrTokenUnavailable, sel, len(responses))
}
