package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"sync"

	"github.com/awnumar/memguard"
)

// TokenProvider compares tokens against a plaintext secret. Only the SHA-256
// digest of the secret is retained, inside a memguard LockedBuffer, and the
// comparison is over digests so neither content nor length leaks through
// timing.
type TokenProvider struct {
	mu     sync.RWMutex
	digest *memguard.LockedBuffer
}

// NewTokenProvider creates a TokenProvider for secret.
func NewTokenProvider(secret string) *TokenProvider {
	sum := sha256.Sum256([]byte(secret))
	return &TokenProvider{digest: memguard.NewBufferFromBytes(sum[:])}
}

// CanHandle accepts every token.
func (p *TokenProvider) CanHandle(_ []byte) bool {
	return true
}

// Authenticate compares token with the secret in constant time.
func (p *TokenProvider) Authenticate(_ context.Context, token []byte) (*AuthResult, error) {
	presented := sha256.Sum256(token)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.digest == nil {
		return nil, ErrAuthFailed
	}
	if subtle.ConstantTimeCompare(p.digest.Bytes(), presented[:]) != 1 {
		return nil, ErrAuthFailed
	}
	return &AuthResult{Authenticated: true, Provider: p.Name()}, nil
}

// Name returns "token".
func (p *TokenProvider) Name() string {
	return "token"
}

// Close wipes the secret digest. Later calls to Authenticate fail.
func (p *TokenProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.digest != nil {
		p.digest.Destroy()
		p.digest = nil
	}
	return nil
}
