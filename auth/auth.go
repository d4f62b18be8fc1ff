// Package auth verifies bearer tokens and exposes the calling actor to
// handlers.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/models"
)

const actorKey = "actor"

type Claims struct {
	UserID uint        `json:"user_id"`
	Role   models.Role `json:"role"`
	Email  string      `json:"email"`
	jwt.RegisteredClaims
}

type Config struct {
	// Secret signs and verifies HS256 tokens.
	Secret string
	// JWKSURL, when set, verifies tokens against a remote key set instead.
	JWKSURL string
}

type Verifier struct {
	keyfunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.JWKSURL != "" {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, fmt.Errorf("load jwks: %w", err)
		}
		return &Verifier{keyfunc: jwks.Keyfunc, jwks: jwks}, nil
	}
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	secret := []byte(cfg.Secret)
	return &Verifier{keyfunc: func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}}, nil
}

// Close stops the JWKS refresh goroutine.
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func (v *Verifier) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, v.keyfunc)
	if err != nil || !tok.Valid {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// actor for ActorFrom.
func (v *Verifier) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		raw := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if raw == "" {
			raw = c.Cookies("authtoken")
		}
		if raw == "" {
			return apperr.Unauthorized("missing token")
		}
		claims, err := v.Parse(raw)
		if err != nil {
			return err
		}
		c.Locals(actorKey, models.Actor{UserID: claims.UserID, Role: claims.Role, Email: claims.Email})
		return c.Next()
	}
}

// ActorFrom returns the authenticated actor, or the zero Actor on public
// routes.
func ActorFrom(c fiber.Ctx) models.Actor {
	a, _ := c.Locals(actorKey).(models.Actor)
	return a
}

func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c fiber.Ctx) error {
		a := ActorFrom(c)
		for _, r := range roles {
			if a.Role == r {
				return c.Next()
			}
		}
		return apperr.Unauthorized("role %q may not perform this action", a.Role)
	}
}

// Issue signs an HS256 token for u.
func Issue(secret string, u *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Role:   u.Role,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
