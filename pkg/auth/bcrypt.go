package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxTokenLength is the longest secret bcrypt can hash.
const MaxTokenLength = 72

// BcryptProvider compares tokens against a bcrypt hash of the secret.
type BcryptProvider struct {
	hash []byte
}

// NewBcryptProvider validates hash and returns a provider for it.
func NewBcryptProvider(hash string) (*BcryptProvider, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return &BcryptProvider{hash: []byte(hash)}, nil
}

// CanHandle rejects tokens bcrypt cannot process.
func (p *BcryptProvider) CanHandle(token []byte) bool {
	return len(token) <= MaxTokenLength
}

// Authenticate checks token against the stored hash.
func (p *BcryptProvider) Authenticate(_ context.Context, token []byte) (*AuthResult, error) {
	if err := bcrypt.CompareHashAndPassword(p.hash, token); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrAuthFailed
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return &AuthResult{Authenticated: true, Provider: p.Name()}, nil
}

// Name returns "bcrypt".
func (p *BcryptProvider) Name() string {
	return "bcrypt"
}

// HashToken returns a bcrypt hash suitable for auth.token_hash.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", ErrNoSecret
	}
	if len(token) > MaxTokenLength {
		return "", fmt.Errorf("token longer than %d bytes cannot be hashed", MaxTokenLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}
