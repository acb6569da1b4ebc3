package agentconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Package agentconfig loads the deployment-level YAML configuration shared
// by the broker daemon and CLI. Per-component settings are derived from it;
// the components keep their own Config structs.

var (
	// ErrNoSecret is returned when neither secret_key nor secret_key_file
	// is configured.
	ErrNoSecret = errors.New("either secret_key or secret_key_file must be set")
)

// Duration wraps time.Duration so YAML values like "2m" parse naturally.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// RenderEntry is one template the agent keeps rendered.
type RenderEntry struct {
	Template string `yaml:"template"`
	Dest     string `yaml:"dest"`
	Unit     string `yaml:"unit"`
}

// Config is the agent configuration file.
type Config struct {
	// NodeID uniquely identifies this agent on the bus. Defaults to the
	// hostname.
	NodeID string `yaml:"node_id"`

	// ListenAddress is where the bus responder listens.
	ListenAddress string `yaml:"listen_address"`

	// SecretKey is the mesh shared secret; SecretKeyFile reads it from a
	// file instead (trailing whitespace stripped).
	SecretKey     string `yaml:"secret_key"`
	SecretKeyFile string `yaml:"secret_key_file"`

	// Grains are the attributes this node advertises for selector matching.
	Grains map[string]string `yaml:"grains"`

	// RosterPath points at the YAML peer roster.
	RosterPath string `yaml:"roster"`

	// TctlPath is the teleport admin binary on auth nodes.
	TctlPath string `yaml:"tctl"`

	// IdentityKeyPath and CacheTokenPath override the conventional
	// teleport state paths.
	IdentityKeyPath string `yaml:"identity_key"`
	CacheTokenPath  string `yaml:"auth_token_cache"`

	// Roles and TTL shape the mint requests this node sends and answers.
	Roles string   `yaml:"roles"`
	TTL   Duration `yaml:"ttl"`

	// RequestTimeout bounds each peer call during a publish.
	RequestTimeout Duration `yaml:"request_timeout"`

	// Renders are the templates kept rendered by the agent.
	Renders []RenderEntry `yaml:"render"`
}

// Load reads, parses, defaults, and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &config, nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.NodeID == "" {
		if hostname, err := os.Hostname(); err == nil {
			c.NodeID = hostname
		}
	}
	if c.ListenAddress == "" {
		c.ListenAddress = ":4507"
	}
	if c.TctlPath == "" {
		c.TctlPath = "tctl"
	}
	if c.IdentityKeyPath == "" {
		c.IdentityKeyPath = "/var/lib/teleport/node.key"
	}
	if c.CacheTokenPath == "" {
		c.CacheTokenPath = "/var/lib/teleport/auth_token"
	}
	if c.Roles == "" {
		c.Roles = "node"
	}
	if c.TTL <= 0 {
		c.TTL = Duration(2 * time.Minute)
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = Duration(10 * time.Second)
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return errors.New("node ID cannot be empty")
	}
	if c.SecretKey == "" && c.SecretKeyFile == "" {
		return ErrNoSecret
	}
	for i, entry := range c.Renders {
		if entry.Template == "" || entry.Dest == "" {
			return fmt.Errorf("render entry %d needs both template and dest", i)
		}
	}
	return nil
}

// ResolveSecret returns the mesh secret, reading SecretKeyFile when the
// inline key is not set.
func (c *Config) ResolveSecret() (string, error) {
	if c.SecretKey != "" {
		return c.SecretKey, nil
	}
	data, err := os.ReadFile(c.SecretKeyFile)
	if err != nil {
		return "", fmt.Errorf("failed to read secret key file: %w", err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("secret key file %s is empty", c.SecretKeyFile)
	}
	return secret, nil
}
