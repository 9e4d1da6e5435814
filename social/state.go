package social

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/hkdf"
)

// StateManager seals the OAuth state parameter and opens it on callback
type StateManager interface {
	Encode(state *OAuthState) (string, error)
	Decode(token string) (*OAuthState, error)
}

// DefaultStateTTL is how long a consent round trip may take
const DefaultStateTTL = 10 * time.Minute

// stateFormat prefixes every sealed state and is covered by the MAC
const stateFormat byte = 1

// OAuthState travels inside the state parameter. It carries the PKCE
// verifier so nothing is kept server side between redirect and callback.
type OAuthState struct {
	Nonce        string `json:"n"`
	Provider     string `json:"p"`
	CodeVerifier string `json:"cv,omitempty"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
}

func (s *OAuthState) expired(at time.Time) bool {
	return at.Unix() > s.ExpiresAt
}

// SealedStateManager encrypts the state with AES-GCM and signs the
// result with HMAC-SHA256. The wire form is
// base64url(format | mac | gcm nonce | ciphertext).
type SealedStateManager struct {
	aead   cipher.AEAD
	macKey []byte
	ttl    time.Duration
	now    func() time.Time
	err    error
}

var _ StateManager = (*SealedStateManager)(nil)

// NewSealedStateManager builds a manager from explicit keys. encKey must
// be 16, 24 or 32 bytes; a bad key surfaces on the first Encode or Decode.
func NewSealedStateManager(encKey, macKey []byte, ttl time.Duration) *SealedStateManager {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}

	sm := &SealedStateManager{macKey: macKey, ttl: ttl, now: time.Now}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		sm.err = goerrors.Wrap(err, goerrors.CategoryInternal, "invalid oauth state key")
		return sm
	}
	if sm.aead, err = cipher.NewGCM(block); err != nil {
		sm.err = goerrors.Wrap(err, goerrors.CategoryInternal, "invalid oauth state key")
	}
	return sm
}

// NewStateManager expands one secret into separate encryption and MAC keys
func NewStateManager(secret string, ttl time.Duration) *SealedStateManager {
	keys := hkdf.New(sha256.New, []byte(secret), nil, []byte("oauth-state"))

	encKey := make([]byte, 32)
	macKey := make([]byte, 32)
	// hkdf only fails past 255 blocks of output
	_, _ = io.ReadFull(keys, encKey)
	_, _ = io.ReadFull(keys, macKey)

	return NewSealedStateManager(encKey, macKey, ttl)
}

func (sm *SealedStateManager) WithClock(now func() time.Time) *SealedStateManager {
	if now != nil {
		sm.now = now
	}
	return sm
}

// Encode stamps missing issue, expiry and nonce fields and seals the state
func (sm *SealedStateManager) Encode(state *OAuthState) (string, error) {
	if state == nil {
		return "", ErrInvalidState
	}
	if sm.err != nil {
		return "", sm.err
	}

	issued := sm.now()
	if state.IssuedAt == 0 {
		state.IssuedAt = issued.Unix()
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = issued.Add(sm.ttl).Unix()
	}
	if state.Nonce == "" {
		state.Nonce = newNonce()
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "encode oauth state")
	}

	iv := make([]byte, sm.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "encode oauth state")
	}
	sealed := sm.aead.Seal(iv, iv, payload, nil)

	out := make([]byte, 0, 1+sha256.Size+len(sealed))
	out = append(out, stateFormat)
	out = append(out, sm.sign(sealed)...)
	out = append(out, sealed...)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decode opens a sealed state. Anything malformed, forged or sealed under
// other keys is ErrInvalidState; a genuine but stale state is ErrStateExpired.
func (sm *SealedStateManager) Decode(token string) (*OAuthState, error) {
	if sm.err != nil {
		return nil, sm.err
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < 1+sha256.Size+sm.aead.NonceSize() || raw[0] != stateFormat {
		return nil, ErrInvalidState
	}

	mac, sealed := raw[1:1+sha256.Size], raw[1+sha256.Size:]
	if !hmac.Equal(mac, sm.sign(sealed)) {
		return nil, ErrInvalidState
	}

	iv, body := sealed[:sm.aead.NonceSize()], sealed[sm.aead.NonceSize():]
	payload, err := sm.aead.Open(nil, iv, body, nil)
	if err != nil {
		return nil, ErrInvalidState
	}

	state := &OAuthState{}
	if err := json.Unmarshal(payload, state); err != nil {
		return nil, ErrInvalidState
	}

	if state.expired(sm.now()) {
		return nil, ErrStateExpired
	}
	return state, nil
}

func (sm *SealedStateManager) sign(sealed []byte) []byte {
	h := hmac.New(sha256.New, sm.macKey)
	h.Write([]byte{stateFormat})
	h.Write(sealed)
	return h.Sum(nil)
}
