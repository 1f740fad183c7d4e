package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAPIKeyHeader is the fallback API key header name.
const DefaultAPIKeyHeader = "X-API-Key"

// DefaultTokenTTL is the default JWT lifetime.
const DefaultTokenTTL = 24 * time.Hour

// publicExact and publicPrefixes define the unauthenticated surface.
var (
	publicExact    = map[string]bool{"/": true}
	publicPrefixes = []string{"/docs", "/redoc", "/openapi.json", "/api/v1/health", "/metrics"}
)

func publicPath(path string) bool {
	if publicExact[path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// AuthConfig configures request authentication.
type AuthConfig struct {
	// JWTSecret signs and verifies bearer tokens. Empty disables JWT.
	JWTSecret string

	// APIKeys maps key value to user id. Empty disables key auth.
	APIKeys map[string]string

	// APIKeyHeader overrides DefaultAPIKeyHeader.
	APIKeyHeader string

	// TokenTTL is the default lifetime for issued tokens.
	TokenTTL time.Duration
}

// authenticator verifies bearer JWTs and API keys.
type authenticator struct {
	cfg AuthConfig
	now func() time.Time
}

func newAuthenticator(cfg AuthConfig, now func() time.Time) *authenticator {
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = DefaultAPIKeyHeader
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &authenticator{cfg: cfg, now: now}
}

// enabled reports whether any credential scheme is configured. With
// none, all requests pass anonymously.
func (a *authenticator) enabled() bool {
	return a.cfg.JWTSecret != "" || len(a.cfg.APIKeys) > 0
}

// authenticate tries bearer JWT first, then the API key header.
func (a *authenticator) authenticate(r *http.Request) (userInfo, error) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		if a.cfg.JWTSecret == "" {
			return userInfo{}, fmt.Errorf("bearer tokens are not accepted")
		}
		user, err := a.verifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return userInfo{}, err
		}
		return userInfo{ID: user, Method: "jwt"}, nil
	}

	if key := r.Header.Get(a.cfg.APIKeyHeader); key != "" {
		user, ok := a.cfg.APIKeys[key]
		if !ok {
			return userInfo{}, fmt.Errorf("invalid API key")
		}
		return userInfo{ID: user, Method: "api_key"}, nil
	}

	return userInfo{}, fmt.Errorf("no credentials provided")
}

// verifyToken checks the signature and expiry and extracts the user id.
func (a *authenticator) verifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	user, _ := claims["user_id"].(string)
	if user == "" {
		user, _ = claims["sub"].(string)
	}
	if user == "" {
		return "", fmt.Errorf("token carries no user identity")
	}
	return user, nil
}

// IssueToken signs a JWT for the user. Extra claims are merged in;
// reserved claims cannot be overridden.
func (a *authenticator) IssueToken(userID string, ttl time.Duration, extra map[string]any) (string, error) {
	if a.cfg.JWTSecret == "" {
		return "", fmt.Errorf("no JWT secret configured")
	}
	if ttl <= 0 {
		ttl = a.cfg.TokenTTL
	}

	now := a.now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["user_id"] = userID
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.cfg.JWTSecret))
}

// peekUser extracts a user identity from credentials without full
// verification. Rate-limit bookkeeping only; never grants access.
func (a *authenticator) peekUser(r *http.Request) string {
	if key := r.Header.Get(a.cfg.APIKeyHeader); key != "" {
		return a.cfg.APIKeys[key]
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(strings.TrimPrefix(header, "Bearer "), claims); err != nil {
		return ""
	}
	if user, _ := claims["user_id"].(string); user != "" {
		return user
	}
	user, _ := claims["sub"].(string)
	return user
}

// requireAuth rejects unauthenticated requests to non-public paths.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPath(r.URL.Path) || !s.auth.enabled() {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.auth.authenticate(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{
				Error:     "unauthorized",
				Detail:    err.Error(),
				Path:      r.URL.Path,
				RequestID: requestIDFrom(r.Context()),
			})
			return
		}

		ctx := contextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
