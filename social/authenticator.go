package social

import (
	"context"
	"fmt"
	"sort"

	"github.com/curenova/go-auth"
)

// SocialAuthenticator runs the redirect and callback halves of an
// authorization code flow and turns a successful callback into a session.
type SocialAuthenticator struct {
	providers  map[string]Provider
	states     StateManager
	reconciler *Reconciler
	tokens     auth.TokenService
	logger     auth.Logger
}

// SocialAuthOption configures the social authenticator.
type SocialAuthOption func(*SocialAuthenticator)

// NewSocialAuthenticator creates a new social authenticator. Providers are
// registered with WithProvider.
func NewSocialAuthenticator(
	reconciler *Reconciler,
	tokens auth.TokenService,
	states StateManager,
	opts ...SocialAuthOption,
) *SocialAuthenticator {
	sa := &SocialAuthenticator{
		providers:  make(map[string]Provider),
		states:     states,
		reconciler: reconciler,
		tokens:     tokens,
		logger:     auth.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	return sa
}

// WithProvider registers a social provider.
func WithProvider(provider Provider) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if provider == nil {
			return
		}
		sa.providers[provider.Name()] = provider
	}
}

// WithStateManager sets a custom state manager.
func WithStateManager(sm StateManager) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if sm != nil {
			sa.states = sm
		}
	}
}

func WithAuthLogger(logger auth.Logger) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if logger != nil {
			sa.logger = logger
		}
	}
}

// AuthRedirect contains the authorization URL for redirecting users.
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// AuthResult contains the result of a successful authentication.
type AuthResult struct {
	Session      *auth.Session
	Account      *auth.Account
	IsNewAccount bool
	Provider     string
}

// BeginAuth starts the OAuth flow for a provider.
func (sa *SocialAuthenticator) BeginAuth(ctx context.Context, providerName string) (*AuthRedirect, error) {
	provider, err := sa.provider(providerName)
	if err != nil {
		return nil, err
	}

	if sa.states == nil {
		return nil, ErrInvalidState
	}

	verifier, err := newCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	token, err := sa.states.Encode(&OAuthState{
		Nonce:        newNonce(),
		Provider:     providerName,
		CodeVerifier: verifier,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	return &AuthRedirect{
		URL:      provider.AuthCodeURL(token, WithPKCE(codeChallengeS256(verifier), "S256")),
		State:    token,
		Provider: providerName,
	}, nil
}

// CompleteAuth finishes the OAuth flow after callback. Inactive accounts
// are refused even when the provider vouches for them.
func (sa *SocialAuthenticator) CompleteAuth(ctx context.Context, providerName, code, stateToken string) (*AuthResult, error) {
	provider, err := sa.provider(providerName)
	if err != nil {
		return nil, err
	}

	if sa.states == nil {
		return nil, ErrInvalidState
	}

	state, err := sa.states.Decode(stateToken)
	if err != nil {
		if auth.IsKind(err, ErrStateExpired) {
			return nil, ErrStateExpired
		}
		return nil, ErrInvalidState
	}

	if state.Provider != providerName {
		return nil, withMetadata(ErrInvalidState, map[string]any{
			"reason": "provider mismatch",
		})
	}

	if code == "" {
		return nil, wrapProviderError(ErrTokenExchangeFailed, providerName, "exchange", fmt.Errorf("missing authorization code"))
	}

	token, err := provider.Exchange(ctx, code, WithCodeVerifier(state.CodeVerifier))
	if err != nil {
		return nil, wrapProviderError(ErrTokenExchangeFailed, providerName, "exchange", err)
	}

	assertion, err := provider.UserInfo(ctx, token)
	if err != nil {
		return nil, wrapProviderError(ErrUserInfoFailed, providerName, "user_info", err)
	}
	if assertion == nil {
		return nil, ErrIncompleteProfile
	}
	assertion.Provider = providerName

	result, err := sa.reconciler.Reconcile(ctx, assertion)
	if err != nil {
		return nil, err
	}

	if !result.Account.Active {
		sa.logger.Info("social login refused for inactive account",
			"account_id", result.Account.ID,
			"provider", providerName,
		)
		return nil, auth.ErrAccountInactive
	}

	session, err := auth.IssueSession(sa.tokens, result.Account)
	if err != nil {
		return nil, auth.DependencyError(err, "issue session")
	}

	sa.logger.Info("social login",
		"account_id", result.Account.ID,
		"provider", providerName,
		"new_account", result.IsNewAccount,
		"linked", result.Linked,
	)

	return &AuthResult{
		Session:      session,
		Account:      result.Account,
		IsNewAccount: result.IsNewAccount,
		Provider:     providerName,
	}, nil
}

// ListProviders returns the registered provider names in order
func (sa *SocialAuthenticator) ListProviders() []string {
	names := make([]string, 0, len(sa.providers))
	for name := range sa.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (sa *SocialAuthenticator) provider(name string) (Provider, error) {
	provider, ok := sa.providers[name]
	if !ok {
		return nil, withMetadata(ErrProviderNotFound, map[string]any{"provider": name})
	}
	return provider, nil
}
