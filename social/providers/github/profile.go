package github

import (
	"strconv"
	"strings"

	"github.com/curenova/go-auth/social"
)

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// mapAssertion falls back to <login>@github.com when no address is
// visible and to the login when the profile has no display name.
func mapAssertion(user *githubUser, email string, emailVerified bool) *social.Assertion {
	if user == nil {
		return nil
	}

	if strings.TrimSpace(email) == "" && user.Login != "" {
		email = user.Login + "@github.com"
		emailVerified = false
	}

	name := strings.TrimSpace(user.Name)
	if name == "" {
		name = user.Login
	}

	return &social.Assertion{
		Provider:      "github",
		Subject:       strconv.FormatInt(user.ID, 10),
		Email:         email,
		EmailVerified: emailVerified,
		Name:          name,
		Username:      user.Login,
		AvatarURL:     user.AvatarURL,
		ProfileURL:    user.HTMLURL,
		Raw: map[string]any{
			"id":         user.ID,
			"login":      user.Login,
			"name":       user.Name,
			"avatar_url": user.AvatarURL,
			"html_url":   user.HTMLURL,
		},
	}
}
