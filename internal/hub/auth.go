package hub

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"ledger/internal/hubapi"
)

var (
	ErrInvalidKey = errors.New("invalid or expired key")
	ErrMissingKey = errors.New("authorization key required")
	ErrNoSecret   = errors.New("signing secret is empty")
)

const claimsKey = "hub.claims"

// Claims are the custom claims of a hub key. An empty Households list grants
// every household.
type Claims struct {
	Households []string `json:"households,omitempty"`
	jwt.RegisteredClaims
}

// Allows reports whether the key may access household.
func (c *Claims) Allows(household string) bool {
	return len(c.Households) == 0 || slices.Contains(c.Households, household)
}

// KeyManager mints and validates HS256 hub keys.
type KeyManager struct {
	secretKey []byte
}

// NewKeyManager creates a key manager for secret.
func NewKeyManager(secret string) (*KeyManager, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &KeyManager{secretKey: []byte(secret)}, nil
}

// Mint signs a key for subject. A zero ttl produces a key that never expires.
func (m *KeyManager) Mint(subject string, households []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Households: households,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign key: %w", err)
	}
	return token, nil
}

// Validate parses a key and returns its claims.
func (m *KeyManager) Validate(key string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(key, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidKey
	}
	return claims, nil
}

// authenticate requires a valid bearer key and stores its claims on the context.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		key, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(key) == "" {
			abort(c, http.StatusUnauthorized, ErrMissingKey)
			return
		}

		claims, err := s.keys.Validate(strings.TrimSpace(key))
		if err != nil {
			abort(c, http.StatusUnauthorized, ErrInvalidKey)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// authorizeHousehold rejects keys whose households claim excludes the route's household.
func (s *Server) authorizeHousehold() gin.HandlerFunc {
	return func(c *gin.Context) {
		household := c.Param("household")
		if strings.TrimSpace(household) == "" {
			abort(c, http.StatusBadRequest, errors.New("household is required"))
			return
		}
		claims, _ := c.MustGet(claimsKey).(*Claims)
		if claims == nil || !claims.Allows(household) {
			abort(c, http.StatusForbidden, fmt.Errorf("key does not grant household %q", household))
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, hubapi.ErrorResponse{Error: err.Error()})
}
