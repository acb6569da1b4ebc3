package minter

import (
	"context"
	"regexp"
	"strings"
)

// User is one row of "tctl users ls".
type User struct {
	Name          string   `json:"name"`
	AllowedLogins []string `json:"allowed_logins"`
}

// UserInvite is the signup invitation produced by "tctl users add".
type UserInvite struct {
	Login       string   `json:"login"`
	LocalLogins []string `json:"local_logins,omitempty"`
	Expires     string   `json:"expires,omitempty"`
	SignupURL   string   `json:"signup_url,omitempty"`
}

var (
	signupExpRe = regexp.MustCompile(`^Signup token has been created and is valid for (.+?)\. Share this`)
	signupURLRe = regexp.MustCompile(`^(https://\S+)$`)
)

// UsersAdd creates a teleport user and returns the signup invitation parsed
// from tctl's output.
func (m *Minter) UsersAdd(ctx context.Context, login string, localLogins []string) (*UserInvite, error) {
	args := []string{"users", "add", login}
	if len(localLogins) > 0 {
		args = append(args, strings.Join(localLogins, ","))
	}

	result, err := m.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	invite := &UserInvite{
		Login:       login,
		LocalLogins: localLogins,
	}
	for _, line := range splitLines(result.Stdout) {
		if match := signupExpRe.FindStringSubmatch(line); match != nil {
			invite.Expires = match[1]
		}
		if match := signupURLRe.FindStringSubmatch(strings.TrimSpace(line)); match != nil {
			invite.SignupURL = match[1]
		}
	}
	return invite, nil
}

// UsersDel removes a teleport user.
func (m *Minter) UsersDel(ctx context.Context, login string) error {
	_, err := m.run(ctx, "users", "del", login)
	return err
}

// UsersList returns the users known to the auth server.
func (m *Minter) UsersList(ctx context.Context) ([]User, error) {
	result, err := m.run(ctx, "users", "ls")
	if err != nil {
		return nil, err
	}
	return parseUsersList(result.Stdout), nil
}

// parseUsersList extracts user rows from column-formatted output. Header and
// separator rows are filtered by skipping the first column names tctl uses.
func parseUsersList(stdout string) []User {
	var users []User
	for _, line := range splitLines(stdout) {
		cols := splitColumns(line)
		if len(cols) < 2 {
			continue
		}
		switch strings.ToLower(cols[0]) {
		case "user", "username":
			continue
		}
		if strings.HasPrefix(cols[0], "-") {
			continue
		}
		users = append(users, User{
			Name:          cols[0],
			AllowedLogins: splitCommaList(cols[1]),
		})
	}
	return users
}

// UsersExists reports whether a user with the given login already exists.
func (m *Minter) UsersExists(ctx context.Context, login string) (bool, error) {
	users, err := m.UsersList(ctx)
	if err != nil {
		return false, err
	}
	for _, user := range users {
		if user.Name == login {
			return true, nil
		}
	}
	return false, nil
}
