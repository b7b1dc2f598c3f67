package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Claims is the subset of the identity provider's access token we rely on.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey is the provider's shared HS256 secret. When empty, RS256 keys
	// are fetched from JWKSURL.
	SigningKey []byte
}

// ErrNoProfile is returned by a ProfileResolver when the user has no profile row.
var ErrNoProfile = errors.New("no user profile")

// ProfileResolver supplies the role for an identity-provider user id.
type ProfileResolver interface {
	RoleFor(ctx context.Context, userID uuid.UUID) (Role, error)
}

// ProfileResolverFunc is a function adapter for ProfileResolver.
type ProfileResolverFunc func(ctx context.Context, userID uuid.UUID) (Role, error)

func (f ProfileResolverFunc) RoleFor(ctx context.Context, userID uuid.UUID) (Role, error) {
	return f(ctx, userID)
}

// JWKSKey represents a single JSON Web Key from a JWKS endpoint.
type JWKSKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSResponse represents the response from a JWKS endpoint.
type JWKSResponse struct {
	Keys []JWKSKey `json:"keys"`
}

// JWKSCache caches JWKS keys fetched from a remote endpoint with a configurable TTL.
type JWKSCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	jwksURL   string
	ttl       time.Duration
	fetchedAt time.Time
	client    *http.Client
}

func NewJWKSCache(jwksURL string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		keys:    make(map[string]*rsa.PublicKey),
		jwksURL: jwksURL,
		ttl:     ttl,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetKey returns the RSA public key for kid, refetching on miss or expiry.
func (c *JWKSCache) GetKey(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	expired := time.Since(c.fetchedAt) > c.ttl
	c.mu.RUnlock()

	if ok && !expired {
		return key, nil
	}

	if err := c.fetch(); err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key with kid %q not found in JWKS", kid)
	}
	return key, nil
}

func (c *JWKSCache) fetch() error {
	resp, err := c.client.Get(c.jwksURL)
	if err != nil {
		return fmt.Errorf("GET %s: %w", c.jwksURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks JWKSResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("decoding JWKS response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(k)
		if err != nil {
			continue // skip malformed keys
		}
		keys[k.Kid] = pubKey
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return nil
}

func parseRSAPublicKey(k JWKSKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

const defaultJWKSCacheTTL = 5 * time.Minute

// TokenVerifier validates a bearer token and returns the provider identity
// (user id and email; the role is resolved separately).
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

type jwtVerifier struct {
	opts    []jwt.ParserOption
	keyFunc jwt.Keyfunc
}

// NewJWTVerifier builds a TokenVerifier from cfg.
func NewJWTVerifier(cfg JWTConfig) TokenVerifier {
	v := &jwtVerifier{}
	if len(cfg.SigningKey) > 0 {
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"HS256"}))
		key := cfg.SigningKey
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return key, nil }
	} else {
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"RS256"}))
		cache := NewJWKSCache(cfg.JWKSURL, defaultJWKSCacheTTL)
		v.keyFunc = func(token *jwt.Token) (interface{}, error) {
			kid, ok := token.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, fmt.Errorf("token has no kid header")
			}
			return cache.GetKey(kid)
		}
	}
	if cfg.Issuer != "" {
		v.opts = append(v.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.opts = append(v.opts, jwt.WithAudience(cfg.Audience))
	}
	return v
}

func (v *jwtVerifier) Verify(tokenStr string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, v.keyFunc, v.opts...)
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, fmt.Errorf("token is not valid")
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("subject is not a user id: %w", err)
	}
	return Identity{UserID: uid, Email: claims.Email}, nil
}

// Middleware resolves the caller on every request and attaches the resulting
// *Context. A request without credentials continues as Anonymous so the
// stores reject it with Unauthorized; a bad token is rejected here.
func Middleware(verifier TokenVerifier, profiles ProfileResolver, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsPublicPath(c.Request().URL.Path) {
				return next(c)
			}

			session := NewSession()
			_ = session.Begin()

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				_ = session.Fail()
				return next(withSession(c, session))
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			identity, err := verifier.Verify(parts[1])
			if err != nil {
				logger.Debug().Err(err).Msg("token rejected")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			role, err := profiles.RoleFor(ctx, identity.UserID)
			switch {
			case errors.Is(err, ErrNoProfile):
				logger.Warn().Str("user_id", identity.UserID.String()).Msg("no user profile, resolving as operator")
				role = RoleOperator
			case err != nil:
				logger.Error().Err(err).Str("user_id", identity.UserID.String()).Msg("profile lookup failed")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "identity resolution failed")
			}
			identity.Role = role

			if err := session.Resolve(identity); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			return next(withSession(c, session))
		}
	}
}

// DevMiddleware resolves every request as the configured development admin.
func DevMiddleware(userID uuid.UUID) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := NewSession()
			_ = session.Begin()
			_ = session.Resolve(Identity{UserID: userID, Email: "dev@localhost", Role: RoleAdmin})
			return next(withSession(c, session))
		}
	}
}

func withSession(c echo.Context, s *Session) echo.Context {
	ac := s.Context()
	c.SetRequest(c.Request().WithContext(WithContext(c.Request().Context(), ac)))
	c.Set("auth_state", s.State().String())
	return c
}

// RequireAdmin rejects callers that cannot see all records.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ac := FromContext(c.Request().Context())
			if !ac.Authenticated() {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !ac.CanSeeAll() {
				return echo.NewHTTPError(http.StatusForbidden, "required role: admin")
			}
			return next(c)
		}
	}
}
