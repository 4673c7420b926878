package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for a session token that fails verification
// for any reason other than expiry.
var ErrInvalidToken = errors.New("invalid session token")

// SessionSource reports the current cloud session. A nil session with a nil
// error means signed out.
type SessionSource interface {
	Session(ctx context.Context) (*Session, error)
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenSource verifies an HS256 access token held in memory.
type TokenSource struct {
	secret []byte
	now    func() time.Time

	mu    sync.RWMutex
	token string
}

func NewTokenSource(secret, token string) *TokenSource {
	return &TokenSource{secret: []byte(secret), token: token, now: time.Now}
}

// SetToken replaces the held token, e.g. after sign-in or refresh.
func (s *TokenSource) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear signs out.
func (s *TokenSource) Clear() { s.SetToken("") }

// Session verifies the held token. Missing or expired tokens mean signed out.
func (s *TokenSource) Session(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	raw := s.token
	s.mu.RUnlock()
	return s.Verify(raw)
}

// Verify checks raw against the signing secret without holding it.
func (s *TokenSource) Verify(raw string) (*Session, error) {
	if raw == "" {
		return nil, nil
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	sess := &Session{UserID: c.Subject, Email: c.Email}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time
	}
	return sess, nil
}

// IssueToken signs an HS256 token for userID valid for ttl.
func IssueToken(secret, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
