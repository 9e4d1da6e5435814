// Package auth implements the account backend: registration with email
// verification, password login issuing signed session tokens, password reset,
// profile and admin operations, and the HTTP surface for all of them.
//
// Accounts:
//   - Account records live in a SQL store (SQLite or Postgres through bun).
//     Email addresses are unique after normalization and every write path
//     that can race on them surfaces ErrDuplicateIdentity from the store's
//     unique constraints rather than a read-then-write check.
//   - Lifecycle groups the account commands. Each command runs in a single
//     transaction with a bounded timeout; email goes out after commit and a
//     failed send is reported as a Notice instead of failing the operation.
//
// Sessions:
//   - TokenService signs HS256 tokens carrying the account id. Authenticate
//     reloads the account on every call, so deactivating an account takes
//     effect on its next request even though tokens are never revoked.
//
// Secret tokens:
//   - Verification and reset links carry a random secret. Only its SHA-256
//     hash is stored, a token is consumed by deleting its row, and issuing a
//     new token for the same purpose replaces the previous one.
//
// Federated sign-in lives in the social package.
package auth
