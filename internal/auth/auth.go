// Package auth authorizes callers of the matching trigger.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

// SessionCookie is the cookie carrying a user session token.
const SessionCookie = "session"

// ErrUnauthorized is returned for a missing or invalid credential.
var ErrUnauthorized = eris.New("auth: unauthorized")

// Kind identifies who is calling.
type Kind string

const (
	KindScheduler Kind = "scheduler"
	KindUser      Kind = "user"
)

// Principal is an authenticated caller.
type Principal struct {
	Kind    Kind   `json:"kind"`
	Subject string `json:"subject"`
}

// Authenticator checks bearer tokens and session cookies.
type Authenticator struct {
	cronSecret    []byte
	sessionSecret []byte
	nowFunc       func() time.Time
}

// New creates an authenticator. Either secret may be empty, which disables
// that credential type.
func New(cronSecret, sessionSecret string) *Authenticator {
	return &Authenticator{
		cronSecret:    []byte(cronSecret),
		sessionSecret: []byte(sessionSecret),
		nowFunc:       time.Now,
	}
}

// Authenticate resolves the caller of r.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	token := bearerToken(r)
	if token != "" {
		if a.isCronSecret(token) {
			return &Principal{Kind: KindScheduler, Subject: "scheduler"}, nil
		}
		return a.verifySession(token)
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return a.verifySession(c.Value)
	}
	return nil, ErrUnauthorized
}

func (a *Authenticator) isCronSecret(token string) bool {
	if len(a.cronSecret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), a.cronSecret) == 1
}

// verifySession validates an HS256 session token carrying sub and exp.
func (a *Authenticator) verifySession(raw string) (*Principal, error) {
	if len(a.sessionSecret) == 0 {
		return nil, ErrUnauthorized
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.nowFunc),
	)
	var claims jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.sessionSecret, nil
	})
	if err != nil {
		return nil, eris.Wrap(ErrUnauthorized, err.Error())
	}
	if claims.Subject == "" {
		return nil, eris.Wrap(ErrUnauthorized, "session token missing sub")
	}
	return &Principal{Kind: KindUser, Subject: claims.Subject}, nil
}

// IssueSession signs a session token for subject. Used by tooling and tests.
func (a *Authenticator) IssueSession(subject string, ttl time.Duration) (string, error) {
	if len(a.sessionSecret) == 0 {
		return "", eris.New("auth: no session secret configured")
	}
	now := a.nowFunc()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := tok.SignedString(a.sessionSecret)
	if err != nil {
		return "", eris.Wrap(err, "auth: sign session")
	}
	return signed, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}
