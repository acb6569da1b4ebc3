package tokenoracle

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/clusterjoin/tokenbroker-go/internal/minter"
)

// The cache file is the YAML rendering of a minter.JoinToken:
//
//	token: 0123456789abcdef0123456789abcdef
//	expires: 20 minutes
//	expires_at: 1756200000
//	auth_server: auth-01.cluster.local:3025
//
// Reads treat any failure (missing file, bad permissions, malformed YAML,
// blank token) as "no cached token" so the caller degrades to the fetch path.

// readCache loads and parses the cached token file.
func readCache(path string) (*minter.JoinToken, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var token minter.JoinToken
	if err := yaml.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token cache %s: %w", path, err)
	}
	if token.Token == "" {
		return nil, fmt.Errorf("token cache %s holds no token", path)
	}
	return &token, nil
}

// writeCache persists the token atomically: write a temp file alongside the
// destination, then rename over it so readers never observe a partial cache.
func writeCache(path string, token *minter.JoinToken) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set cache file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace token cache %s: %w", path, err)
	}
	return nil
}

// fileExists reports whether a file is present at path. Unreadable paths
// count as absent; presence is the only signal the identity key carries.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
