package agentconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `node_id: web-01
listen_address: ":4508"
secret_key: mesh-secret
grains:
  role: web
roster: /etc/tokenbroker/roster.yaml
tctl: /usr/local/bin/tctl
identity_key: /opt/teleport/node.key
auth_token_cache: /opt/teleport/auth_token
roles: node,proxy
ttl: 5m
request_timeout: 3s
render:
  - template: /etc/tokenbroker/teleport.yaml.tmpl
    dest: /etc/teleport.yaml
    unit: teleport.service
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if config.NodeID != "web-01" {
		t.Errorf("NodeID = %q", config.NodeID)
	}
	if config.ListenAddress != ":4508" {
		t.Errorf("ListenAddress = %q", config.ListenAddress)
	}
	if config.Grains["role"] != "web" {
		t.Errorf("Grains = %v", config.Grains)
	}
	if config.Roles != "node,proxy" {
		t.Errorf("Roles = %q", config.Roles)
	}
	if time.Duration(config.TTL) != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", time.Duration(config.TTL))
	}
	if time.Duration(config.RequestTimeout) != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", time.Duration(config.RequestTimeout))
	}
	if len(config.Renders) != 1 || config.Renders[0].Unit != "teleport.service" {
		t.Errorf("Renders = %+v", config.Renders)
	}
}

func TestLoadDefaults(t *testing.T) {
	config, err := Load(writeConfig(t, "secret_key: mesh-secret\n"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	hostname, _ := os.Hostname()
	if config.NodeID != hostname {
		t.Errorf("NodeID = %q, want hostname %q", config.NodeID, hostname)
	}
	if config.ListenAddress != ":4507" {
		t.Errorf("ListenAddress = %q, want :4507", config.ListenAddress)
	}
	if config.TctlPath != "tctl" {
		t.Errorf("TctlPath = %q", config.TctlPath)
	}
	if config.IdentityKeyPath != "/var/lib/teleport/node.key" {
		t.Errorf("IdentityKeyPath = %q", config.IdentityKeyPath)
	}
	if config.CacheTokenPath != "/var/lib/teleport/auth_token" {
		t.Errorf("CacheTokenPath = %q", config.CacheTokenPath)
	}
	if config.Roles != "node" {
		t.Errorf("Roles = %q", config.Roles)
	}
	if time.Duration(config.TTL) != 2*time.Minute {
		t.Errorf("TTL = %v, want 2m", time.Duration(config.TTL))
	}
	if time.Duration(config.RequestTimeout) != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", time.Duration(config.RequestTimeout))
	}
}

func TestLoadMissingSecret(t *testing.T) {
	_, err := Load(writeConfig(t, "node_id: web-01\n"))
	if !errors.Is(err, ErrNoSecret) {
		t.Errorf("Load() = %v, want ErrNoSecret", err)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "secret_key: s\nttl: nonsense\n"))
	if err == nil {
		t.Error("an unparseable duration should fail Load")
	}
}

func TestLoadInvalidRenderEntry(t *testing.T) {
	_, err := Load(writeConfig(t, `secret_key: s
render:
  - template: /etc/tokenbroker/teleport.yaml.tmpl
`))
	if err == nil {
		t.Error("a render entry without dest should fail Load")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("a missing config file should be an error")
	}
}

func TestResolveSecretInline(t *testing.T) {
	config := &Config{SecretKey: "inline-secret"}
	secret, err := config.ResolveSecret()
	if err != nil {
		t.Fatalf("ResolveSecret() failed: %v", err)
	}
	if secret != "inline-secret" {
		t.Errorf("secret = %q", secret)
	}
}

func TestResolveSecretFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("file-secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	config := &Config{SecretKeyFile: path}
	secret, err := config.ResolveSecret()
	if err != nil {
		t.Fatalf("ResolveSecret() failed: %v", err)
	}
	if secret != "file-secret" {
		t.Errorf("secret = %q, want trailing whitespace stripped", secret)
	}
}

func TestResolveSecretEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	config := &Config{SecretKeyFile: path}
	if _, err := config.ResolveSecret(); err == nil {
		t.Error("an empty secret file should be an error")
	}
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)
	out, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() failed: %v", err)
	}
	if out != "1m30s" {
		t.Errorf("MarshalYAML() = %v, want 1m30s", out)
	}
}
