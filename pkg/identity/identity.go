// Package identity resolves the signed-in portal user from an access token.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSignedOut is returned when there is no usable session.
var ErrSignedOut = errors.New("not signed in")

// Session is the signed-in user.
type Session struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Provider returns the current session.
type Provider interface {
	CurrentUser(ctx context.Context) (*Session, error)
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenProvider verifies an HS256 access token signed with a shared secret.
// The subject claim is the user id.
type TokenProvider struct {
	secret []byte
	token  string
	now    func() time.Time
}

// NewTokenProvider returns a provider for token. An empty token means the
// caller is signed out.
func NewTokenProvider(secret, token string) *TokenProvider {
	return &TokenProvider{
		secret: []byte(secret),
		token:  token,
		now:    time.Now,
	}
}

// WithClock overrides the time used to check expiry.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	p.now = now
	return p
}

func (p *TokenProvider) CurrentUser(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.token == "" {
		return nil, ErrSignedOut
	}
	return Verify(p.secret, p.token, p.now)
}

// Verify parses token and returns the session it carries.
func Verify(secret []byte, token string, now func() time.Time) (*Session, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}

	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: session expired", ErrSignedOut)
		}
		return nil, fmt.Errorf("verifying access token: %w", err)
	}

	if c.Subject == "" {
		return nil, errors.New("access token has no subject")
	}

	return &Session{
		UserID:    c.Subject,
		Email:     c.Email,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Issue signs an access token for s.
func Issue(secret []byte, s Session) (string, error) {
	if s.UserID == "" {
		return "", errors.New("session has no user id")
	}

	c := claims{
		Email: s.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

// Static always returns the same session, or ErrSignedOut when it is nil.
type Static struct {
	Session *Session
}

func (s Static) CurrentUser(context.Context) (*Session, error) {
	if s.Session == nil {
		return nil, ErrSignedOut
	}
	sess := *s.Session
	return &sess, nil
}

var (
	_ Provider = (*TokenProvider)(nil)
	_ Provider = Static{}
)
