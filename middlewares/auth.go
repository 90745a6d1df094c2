package middlewares

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
	tokenTTL     = 12 * time.Hour
)

// Claims is our JWT payload (subject=userID, plus clinic schema and staff role).
type Claims struct {
	Schema string `json:"schema"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var (
	secretMu  sync.RWMutex
	jwtSecret []byte
)

// SetJWTSecret installs the signing secret from configuration.
func SetJWTSecret(secret string) {
	secretMu.Lock()
	defer secretMu.Unlock()
	jwtSecret = []byte(strings.TrimSpace(secret))
}

func currentSecret() ([]byte, error) {
	secretMu.RLock()
	sec := jwtSecret
	secretMu.RUnlock()
	if len(sec) > 0 {
		return sec, nil
	}

	// Prefer JWT_SECRET_KEY, fallback to JWT_SECRET
	env := os.Getenv("JWT_SECRET_KEY")
	if strings.TrimSpace(env) == "" {
		env = os.Getenv("JWT_SECRET")
	}
	if strings.TrimSpace(env) == "" {
		return nil, errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
	}
	SetJWTSecret(env)
	return []byte(strings.TrimSpace(env)), nil
}

// IsAuthenticatedHeader validates a Bearer token, enforces HS256, and populates
// c.Locals("userID", "schema", "role").
func IsAuthenticatedHeader() fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret, err := currentSecret()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "server auth not configured")
		}

		h := c.Get(authHeader)
		if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
			return fiber.NewError(fiber.StatusUnauthorized, "missing/invalid Authorization header")
		}
		raw := strings.TrimSpace(h[len(bearerPrefix):])
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid bearer token")
		}

		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		var claims Claims
		token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}
		if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Schema) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token missing subject/schema")
		}

		c.Locals("userID", claims.Subject)
		c.Locals("schema", claims.Schema)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

// GenerateJWT signs a new HS256 token for the given user, clinic schema and role.
func GenerateJWT(userID, schema, role string) (string, error) {
	secret, err := currentSecret()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := &Claims{
		Schema: schema,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "praxis-billing",
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
