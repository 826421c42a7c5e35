// Package auth verifies the shared secret presented in the first frame of a
// session.
//
// An Authenticator chains AuthProviders and asks the first one that can
// handle the presented token. Two providers exist:
//
//   - token: the plaintext secret, kept digested in locked memory (memguard)
//     and compared in constant time
//   - bcrypt: a bcrypt hash of the secret, so configuration files need not
//     contain it
package auth

import (
	"context"
	"errors"
	"io"
)

// AuthProvider is a pluggable verification mechanism.
//
// Thread safety: implementations must be safe for concurrent use.
type AuthProvider interface {
	// CanHandle returns true if this provider can judge the token.
	CanHandle(token []byte) bool

	// Authenticate verifies the token. It returns ErrAuthFailed when the
	// token does not match.
	Authenticate(ctx context.Context, token []byte) (*AuthResult, error)

	// Name returns the provider name for logging and auditing.
	Name() string
}

// AuthResult contains the outcome of a successful authentication.
type AuthResult struct {
	// Authenticated indicates whether authentication succeeded.
	Authenticated bool

	// Provider is the name of the AuthProvider that accepted the token.
	Provider string
}

// Authenticator chains AuthProviders and tries each in order.
//
// Thread safety: safe for concurrent use (providers are read-only after
// construction).
type Authenticator struct {
	providers []AuthProvider
}

// NewAuthenticator creates an Authenticator over the given providers.
func NewAuthenticator(providers ...AuthProvider) *Authenticator {
	return &Authenticator{providers: providers}
}

// New builds the Authenticator for a server configuration. Exactly one of
// token and tokenHash must be set.
func New(token, tokenHash string) (*Authenticator, error) {
	switch {
	case token != "" && tokenHash != "":
		return nil, ErrAmbiguousSecret
	case token != "":
		return NewAuthenticator(NewTokenProvider(token)), nil
	case tokenHash != "":
		p, err := NewBcryptProvider(tokenHash)
		if err != nil {
			return nil, err
		}
		return NewAuthenticator(p), nil
	default:
		return nil, ErrNoSecret
	}
}

// Authenticate delegates to the first provider that can handle token. A
// provider returning ErrUnsupportedMechanism passes the token on to the next.
//
// Returns ErrUnsupportedMechanism if no provider can handle the token.
func (a *Authenticator) Authenticate(ctx context.Context, token []byte) (*AuthResult, error) {
	for _, p := range a.providers {
		if !p.CanHandle(token) {
			continue
		}
		res, err := p.Authenticate(ctx, token)
		if errors.Is(err, ErrUnsupportedMechanism) {
			continue
		}
		return res, err
	}
	return nil, ErrUnsupportedMechanism
}

// Verify reports whether token is the shared secret.
func (a *Authenticator) Verify(ctx context.Context, token string) bool {
	res, err := a.Authenticate(ctx, []byte(token))
	return err == nil && res != nil && res.Authenticated
}

// Providers returns a copy of the registered providers.
func (a *Authenticator) Providers() []AuthProvider {
	if a == nil {
		return nil
	}
	out := make([]AuthProvider, len(a.providers))
	copy(out, a.providers)
	return out
}

// Close releases provider resources such as locked memory.
func (a *Authenticator) Close() error {
	var errs []error
	for _, p := range a.providers {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Standard authentication errors.
var (
	// ErrAuthFailed indicates a token that does not match the secret.
	ErrAuthFailed = errors.New("auth: authentication failed")

	// ErrUnsupportedMechanism indicates that no provider can handle the token.
	ErrUnsupportedMechanism = errors.New("auth: unsupported authentication mechanism")

	// ErrNoSecret indicates a configuration without token or token hash.
	ErrNoSecret = errors.New("auth: no shared secret configured")

	// ErrAmbiguousSecret indicates a configuration with both token and hash.
	ErrAmbiguousSecret = errors.New("auth: token and token_hash are mutually exclusive")

	// ErrInvalidHash indicates a token hash that is not a bcrypt hash.
	ErrInvalidHash = errors.New("auth: invalid token hash")
)
