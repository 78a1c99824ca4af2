// Package session issues and resolves the stateless session credential carried in the "jwt" cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

const (
	// CookieName is the cookie jwtauth.TokenFromCookie reads.
	CookieName = "jwt"
	// DefaultTTL is how long a session stays valid.
	DefaultTTL = 7 * 24 * time.Hour
	// MinSecretLength is the shortest accepted HS256 signing secret.
	MinSecretLength = 32
)

// Issuer signs HS256 tokens and moves them in and out of the session cookie.
type Issuer struct {
	auth   *jwtauth.JWTAuth
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// Option configures an Issuer
type Option func(*Issuer)

// WithTTL sets the session lifetime
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		i.ttl = ttl
	}
}

// WithSecureCookie marks the cookie Secure. Enable outside development.
func WithSecureCookie(secure bool) Option {
	return func(i *Issuer) {
		i.secure = secure
	}
}

// WithClock overrides the time source used for iat and exp
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an issuer signing with secret
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must have at least %d characters", MinSecretLength)
	}

	i := &Issuer{
		auth: jwtauth.New("HS256", []byte(secret), nil),
		ttl:  DefaultTTL,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}

	return i, nil
}

// Token returns a signed credential naming id as subject
func (i *Issuer) Token(id uuid.UUID) (string, error) {
	now := i.now()
	claims := map[string]interface{}{
		"sub": id.String(),
	}
	jwtauth.SetIssuedAt(claims, now)
	jwtauth.SetExpiry(claims, now.Add(i.ttl))

	_, tokenString, err := i.auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}

// Issue signs a credential for id and sets it as the session cookie
func (i *Issuer) Issue(w http.ResponseWriter, id uuid.UUID) error {
	tokenString, err := i.Token(id)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    tokenString,
		Path:     "/",
		MaxAge:   int(i.ttl.Seconds()),
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Revoke clears the session cookie. It is safe to call without an active session.
func (i *Issuer) Revoke(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Resolve verifies the session cookie and returns the identity id it names.
// Any missing, malformed, forged or expired credential yields simpleblog.ErrUnauthenticated.
func (i *Issuer) Resolve(r *http.Request) (uuid.UUID, error) {
	token, err := jwtauth.VerifyRequest(i.auth, r, jwtauth.TokenFromCookie)
	if err != nil || token == nil {
		return uuid.Nil, simpleblog.ErrUnauthenticated
	}

	id, err := uuid.Parse(token.Subject())
	if err != nil {
		return uuid.Nil, simpleblog.ErrUnauthenticated
	}
	return id, nil
}
