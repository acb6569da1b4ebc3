package minter

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// JoinToken is a freshly minted node invite with its validity window and the
// join instructions tctl prints alongside it. The YAML tags define the cache
// file format used by the token oracle.
type JoinToken struct {
	Token      string `yaml:"token" json:"token"`
	Expires    string `yaml:"expires" json:"expires"`
	ExpiresAt  int64  `yaml:"expires_at" json:"expires_at"`
	Command    string `yaml:"command,omitempty" json:"command,omitempty"`
	AuthServer string `yaml:"auth_server,omitempty" json:"auth_server,omitempty"`
}

// Node is one row of "tctl nodes ls".
type Node struct {
	Hostname string   `json:"hostname"`
	ID       string   `json:"id"`
	Address  string   `json:"address"`
	Labels   []string `json:"labels"`
}

var (
	inviteTokenRe = regexp.MustCompile(`^The invite token: ([0-9a-f]{32})$`)
	inviteExpRe   = regexp.MustCompile(`^.*This invitation token will expire in ([0-9]+) (minutes|hours)`)
	inviteCmdRe   = regexp.MustCompile(`^> (.*)$`)
	authServerRe  = regexp.MustCompile(`--auth-server=(\S+)`)

	columnSplitRe = regexp.MustCompile(`\s{2,}|\t+`)
	hexTokenRe    = regexp.MustCompile(`^[0-9a-f]{32}$`)
)

// NodesAdd mints a new node invite token by running
// "tctl nodes add --roles=<roles> --ttl=<ttl>" and parsing its output.
// Zero-valued roles/ttl fall back to the configured defaults.
func (m *Minter) NodesAdd(ctx context.Context, roles string, ttl time.Duration) (*JoinToken, error) {
	if roles == "" {
		roles = m.config.DefaultRoles
	}
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}

	result, err := m.run(ctx, "nodes", "add", "--roles="+roles, "--ttl="+formatTTL(ttl))
	if err != nil {
		return nil, err
	}

	token, err := parseNodesAdd(result.Stdout, time.Now())
	if err != nil {
		return nil, err
	}
	return token, nil
}

// parseNodesAdd extracts the invite token, expiry, join command and auth
// server address from tctl's human-readable output.
func parseNodesAdd(stdout string, now time.Time) (*JoinToken, error) {
	token := &JoinToken{}
	for _, line := range splitLines(stdout) {
		if match := inviteTokenRe.FindStringSubmatch(line); match != nil {
			token.Token = match[1]
		}
		if match := inviteExpRe.FindStringSubmatch(line); match != nil {
			count, err := strconv.Atoi(match[1])
			if err != nil {
				return nil, fmt.Errorf("unparseable expiry count %q: %w", match[1], err)
			}
			token.Expires = match[1] + " " + match[2]
			switch match[2] {
			case "minutes":
				token.ExpiresAt = now.Add(time.Duration(count) * time.Minute).Unix()
			case "hours":
				token.ExpiresAt = now.Add(time.Duration(count) * time.Hour).Unix()
			}
		}
		if match := inviteCmdRe.FindStringSubmatch(line); match != nil {
			token.Command = match[1]
		}
		if match := authServerRe.FindStringSubmatch(line); match != nil {
			token.AuthServer = match[1]
		}
	}

	if token.Token == "" {
		return nil, fmt.Errorf("no invite token found in tctl output")
	}
	return token, nil
}

// NodesList returns the nodes currently registered with the auth server.
func (m *Minter) NodesList(ctx context.Context) ([]Node, error) {
	result, err := m.run(ctx, "nodes", "ls")
	if err != nil {
		return nil, err
	}
	return parseNodesList(result.Stdout), nil
}

// parseNodesList extracts node rows from column-formatted output, skipping
// the header and separator lines.
func parseNodesList(stdout string) []Node {
	var nodes []Node
	for _, line := range splitLines(stdout) {
		cols := splitColumns(line)
		if len(cols) < 3 {
			continue
		}
		// The node ID column is a UUID; use it to tell rows from headers.
		if !looksLikeUUID(cols[1]) {
			continue
		}
		node := Node{
			Hostname: cols[0],
			ID:       cols[1],
			Address:  cols[2],
		}
		if len(cols) > 3 && cols[3] != "" {
			node.Labels = splitCommaList(cols[3])
		}
		nodes = append(nodes, node)
	}
	return nodes
}

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func looksLikeUUID(s string) bool {
	return uuidRe.MatchString(s)
}
