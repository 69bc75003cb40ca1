package http

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOKENS
// HS256 bearer tokens. The only claim the API relies on is user_id; tokens
// minted by an external identity provider with the same secret are accepted.
// ══════════════════════════════════════════════════════════════════════════════

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 16

type tokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  timeutil.Clock
}

var _ command.TokenIssuer = (*TokenService)(nil)

// NewTokenService creates a TokenService. A nil clock uses the system clock.
func NewTokenService(secret string, ttl time.Duration, issuer string, clock timeutil.Clock) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, issuer: issuer, clock: clock}, nil
}

// Issue signs a token for id.
func (t *TokenService) Issue(id command.Identity) (string, error) {
	now := t.clock.Now()
	claims := tokenClaims{
		UserID: id.UserID,
		Email:  id.Email,
		Name:   id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token.
func (t *TokenService) Verify(raw string) (command.Identity, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "token expired"
		}
		return command.Identity{}, shared.WrapError("auth", "Verify", shared.ErrUnauthorized, msg, err)
	}
	if claims.UserID == "" {
		return command.Identity{}, shared.NewDomainError("auth", "Verify", shared.ErrUnauthorized, "token has no user_id claim")
	}
	return command.Identity{UserID: claims.UserID, Email: claims.Email, Name: claims.Name}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Request identity
// ─────────────────────────────────────────────────────────────────────────────

type identityKey struct{}

func withIdentity(ctx context.Context, id command.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller verified by the auth middleware.
func IdentityFromContext(ctx context.Context) (command.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(command.Identity)
	return id, ok && id.UserID != ""
}

func userID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}
