package social

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound  = "PROVIDER_NOT_FOUND"
	TextCodeInvalidState      = "INVALID_OAUTH_STATE"
	TextCodeStateExpired      = "OAUTH_STATE_EXPIRED"
	TextCodeTokenExchangeFail = "TOKEN_EXCHANGE_FAILED"
	TextCodeUserInfoFail      = "USER_INFO_FAILED"
	TextCodeIncompleteProfile = "INCOMPLETE_PROFILE"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("oauth provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrTokenExchangeFailed is returned when a provider token exchange fails.
var ErrTokenExchangeFailed = errors.New("token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrUserInfoFailed is returned when fetching user info fails.
var ErrUserInfoFailed = errors.New("failed to fetch user info", errors.CategoryAuth).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(errors.CodeUnauthorized)

// ErrIncompleteProfile the provider returned no subject
var ErrIncompleteProfile = errors.New("provider returned an incomplete profile", errors.CategoryBadInput).
	WithTextCode(TextCodeIncompleteProfile).
	WithCode(errors.CodeBadRequest)

func withMetadata(base *errors.Error, meta map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	return clone.WithMetadata(meta)
}
