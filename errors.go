package auth

import (
	"context"
	"errors"
	"net/http"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation            = "VALIDATION_ERROR"
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeUnauthenticated       = "UNAUTHENTICATED"
	TextCodeAccountInactive       = "ACCOUNT_INACTIVE"
	TextCodeEmailTaken            = "EMAIL_TAKEN"
	TextCodeDuplicateIdentity     = "DUPLICATE_IDENTITY"
	TextCodeProviderAlreadyLinked = "PROVIDER_ALREADY_LINKED"
	TextCodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeTokenNotFound         = "TOKEN_NOT_FOUND"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeTokenInvalid          = "TOKEN_INVALID"
	TextCodeAlreadyVerified       = "ALREADY_VERIFIED"
	TextCodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	TextCodeCannotDeleteSelf      = "CANNOT_DELETE_SELF"
	TextCodeLastAuthMethod        = "LAST_AUTH_METHOD"
	TextCodeLinkageNotFound       = "LINKAGE_NOT_FOUND"
	TextCodeForbidden             = "FORBIDDEN"
	TextCodeEmailNotVerified      = "EMAIL_NOT_VERIFIED"
	TextCodeDependency            = "DEPENDENCY_UNAVAILABLE"
	TextCodeEmptyPassword         = "EMPTY_PASSWORD"
	TextCodePasswordMismatch      = "PASSWORD_MISMATCH"
)

// ErrInvalidCredentials covers unknown email, wrong password, inactive
// account and password-less accounts alike.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is returned when a bearer token cannot be resolved to an account
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountInactive is returned when the account has been deactivated
var ErrAccountInactive = goerrors.New("account is deactivated", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailTaken is returned on registration with an existing email
var ErrEmailTaken = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrDuplicateIdentity signals a unique-constraint race on email or provider subject
var ErrDuplicateIdentity = goerrors.New("identity already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(goerrors.CodeConflict)

// ErrProviderAlreadyLinked is returned when an account is linked to the
// provider under a different subject
var ErrProviderAlreadyLinked = goerrors.New("account is already linked to this provider", goerrors.CategoryConflict).
	WithTextCode(TextCodeProviderAlreadyLinked).
	WithCode(goerrors.CodeConflict)

// ErrInvalidOrExpiredToken is what callers see for any failed token consumption
var ErrInvalidOrExpiredToken = goerrors.New("invalid or expired token", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidOrExpiredToken).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenNotFound no live token matches the presented value
var ErrTokenNotFound = goerrors.New("token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTokenExpired the matching token was past its expiry
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidToken the session token failed signature, format or expiry checks
var ErrInvalidToken = goerrors.New("invalid session token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrAlreadyVerified is returned when resending to a verified account
var ErrAlreadyVerified = goerrors.New("email is already verified", goerrors.CategoryBadInput).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountNotFound is returned when the target account does not exist
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrCannotDeleteSelf admins must use the self-service path for their own account
var ErrCannotDeleteSelf = goerrors.New("cannot delete your own account from the admin endpoint", goerrors.CategoryBadInput).
	WithTextCode(TextCodeCannotDeleteSelf).
	WithCode(goerrors.CodeBadRequest)

// ErrLastAuthMethod removing the linkage would leave the account without a way to sign in
var ErrLastAuthMethod = goerrors.New("cannot remove the only sign-in method of the account", goerrors.CategoryBadInput).
	WithTextCode(TextCodeLastAuthMethod).
	WithCode(goerrors.CodeBadRequest)

// ErrLinkageNotFound the account is not linked to the provider
var ErrLinkageNotFound = goerrors.New("provider is not linked to this account", goerrors.CategoryNotFound).
	WithTextCode(TextCodeLinkageNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrForbidden the account lacks the role required for the operation
var ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrEmailNotVerified the route requires a verified email
var ErrEmailNotVerified = goerrors.New("email verification required", goerrors.CategoryAuthz).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(goerrors.CodeForbidden)

// ErrDependencyUnavailable the store or another collaborator failed or timed out
var ErrDependencyUnavailable = goerrors.New("service temporarily unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeDependency).
	WithCode(http.StatusServiceUnavailable)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword the password does not match the stored digest
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeUnauthorized)

// HasTextCode reports whether the first rich error in err's chain carries code
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return richErr.TextCode == code
	}
	return false
}

// IsKind reports whether err is, or was derived from, the given sentinel
func IsKind(err error, kind *goerrors.Error) bool {
	if err == nil || kind == nil {
		return false
	}
	return HasTextCode(err, kind.TextCode)
}

// NewValidationError builds a validation error carrying per-field messages
func NewValidationError(fields map[string]string) *goerrors.Error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msg := "validation failed"
	if len(keys) > 0 {
		msg = keys[0] + ": " + fields[keys[0]]
	}

	return goerrors.New(msg, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"fields": fields})
}

// ValidationFields extracts the field map from a validation error
func ValidationFields(err error) map[string]string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil || richErr.TextCode != TextCodeValidation {
		return nil
	}
	fields, _ := richErr.Metadata["fields"].(map[string]string)
	return fields
}

func validationError(err error) error {
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return NewValidationError(map[string]string{"input": err.Error()})
	}

	fields := make(map[string]string, len(errs))
	for field, fieldErr := range errs {
		if fieldErr != nil {
			fields[field] = fieldErr.Error()
		}
	}
	return NewValidationError(fields)
}

// DependencyError keeps rich errors as they are and turns anything else,
// including context deadlines, into ErrDependencyUnavailable.
func DependencyError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return err
	}

	clone := ErrDependencyUnavailable.Clone()
	if clone == nil {
		return ErrDependencyUnavailable
	}
	clone.Source = err

	meta := map[string]any{"operation": operation}
	if errors.Is(err, context.DeadlineExceeded) {
		meta["timeout"] = true
	}
	clone.WithMetadata(meta)

	return clone
}
