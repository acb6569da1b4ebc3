package minter

import (
	"context"
	"fmt"
	"strings"
)

// Idempotent "make it so" helpers over the user operations, for callers that
// converge state rather than issue one-shot commands.

// ChangeReport describes what an ensure operation did.
type ChangeReport struct {
	Name    string `json:"name"`
	Changed bool   `json:"changed"`
	Comment string `json:"comment"`
}

// UserPresent ensures a teleport user with the given login exists, creating
// it when missing. The report says whether anything was done.
func (m *Minter) UserPresent(ctx context.Context, login string, localLogins []string) (*ChangeReport, error) {
	exists, err := m.UsersExists(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to check user %s: %w", login, err)
	}
	if exists {
		return &ChangeReport{
			Name:    login,
			Changed: false,
			Comment: "user is present",
		}, nil
	}

	invite, err := m.UsersAdd(ctx, login, localLogins)
	if err != nil {
		return nil, fmt.Errorf("failed to add user %s: %w", login, err)
	}

	comment := "user was added successfully"
	if invite.SignupURL != "" {
		comment += ", signup: " + invite.SignupURL
	}
	if len(localLogins) > 0 {
		comment += " (logins: " + strings.Join(localLogins, ",") + ")"
	}
	return &ChangeReport{
		Name:    login,
		Changed: true,
		Comment: comment,
	}, nil
}

// UserAbsent ensures no teleport user with the given login exists, removing
// it when present.
func (m *Minter) UserAbsent(ctx context.Context, login string) (*ChangeReport, error) {
	exists, err := m.UsersExists(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to check user %s: %w", login, err)
	}
	if !exists {
		return &ChangeReport{
			Name:    login,
			Changed: false,
			Comment: "user is not present",
		}, nil
	}

	if err := m.UsersDel(ctx, login); err != nil {
		return nil, fmt.Errorf("failed to remove user %s: %w", login, err)
	}
	return &ChangeReport{
		Name:    login,
		Changed: true,
		Comment: "user was removed successfully",
	}, nil
}
