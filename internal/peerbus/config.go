package peerbus

import (
	"errors"
	"time"
)

// Config holds configuration for the HTTP peer bus components
type Config struct {
	// NodeID uniquely identifies this agent on the bus.
	NodeID string

	// ListenAddress is the address the responder listens on.
	// Format: "host:port" (e.g., "0.0.0.0:4507").
	ListenAddress string

	// SecretKey is the mesh shared secret used to sign and verify the
	// bearer tokens that authenticate publishes.
	SecretKey string

	// Grains are the attributes this node advertises for selector matching.
	Grains map[string]string

	// RequestTimeout bounds each individual peer call during a publish.
	RequestTimeout time.Duration

	// TokenValidity bounds the lifetime of the per-publish bearer tokens.
	TokenValidity time.Duration

	// MaxResponseBytes caps how much of a peer response the client reads.
	MaxResponseBytes int64
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return errors.New("node ID cannot be empty")
	}
	if c.SecretKey == "" {
		return errors.New("secret key cannot be empty")
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = ":4507"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.TokenValidity <= 0 {
		c.TokenValidity = 2 * time.Minute
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = 1 << 20 // 1MB
	}
}
