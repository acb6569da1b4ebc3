package minter

import (
	"context"
	"strings"
)

// ProvisionToken is one row of "tctl tokens ls": an outstanding invite token
// with the roles it grants and its expiry.
type ProvisionToken struct {
	Token  string   `json:"token"`
	Roles  []string `json:"roles"`
	Expiry string   `json:"expiry"`
}

// TokensList returns the invite tokens the auth server currently considers
// outstanding.
func (m *Minter) TokensList(ctx context.Context) ([]ProvisionToken, error) {
	result, err := m.run(ctx, "tokens", "ls")
	if err != nil {
		return nil, err
	}
	return parseTokensList(result.Stdout), nil
}

// parseTokensList extracts token rows; a row is recognised by its leading
// 32-char hex token.
func parseTokensList(stdout string) []ProvisionToken {
	var tokens []ProvisionToken
	for _, line := range splitLines(stdout) {
		cols := splitColumns(line)
		if len(cols) < 3 || !hexTokenRe.MatchString(cols[0]) {
			continue
		}
		tokens = append(tokens, ProvisionToken{
			Token:  cols[0],
			Roles:  splitCommaList(cols[1]),
			Expiry: cols[2],
		})
	}
	return tokens
}

// splitLines splits command output into trimmed-right lines.
func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}

// splitColumns splits a row of column-formatted output on runs of two or
// more spaces (or tabs) and trims each cell.
func splitColumns(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}
	cols := columnSplitRe.Split(trimmed, -1)
	for i, col := range cols {
		cols[i] = strings.TrimSpace(col)
	}
	return cols
}

// splitCommaList splits a comma-separated cell into trimmed, non-empty parts.
func splitCommaList(s string) []string {
	var parts []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
