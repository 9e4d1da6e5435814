package auth

import "strings"

// AccountRole is the account's role
type AccountRole = string

const (
	// RoleUser is the default role for every new account
	RoleUser AccountRole = "user"
	// RoleAdmin can list, update and remove other accounts
	RoleAdmin AccountRole = "admin"
)

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole normalizes a raw role string
func ParseRole(raw string) (AccountRole, bool) {
	role := strings.ToLower(strings.TrimSpace(raw))
	if !IsValidRole(role) {
		return "", false
	}
	return role, true
}
