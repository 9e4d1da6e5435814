//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// race builds run the full suite under strict timeouts
	return bcrypt.MinCost
}
