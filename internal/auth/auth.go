package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"weatherdesk/internal/logger"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the verified caller attached to a request
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Claims is the token payload issued by the login route
type Claims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

// Verifier checks HS256 bearer tokens
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses a raw token and returns the caller identity
func (v *Verifier) Verify(raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{ID: claims.ID, Username: claims.Username}, nil
}

// Middleware rejects requests without a valid bearer token: 401 when absent, 403 when invalid
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := v.Verify(bearerToken(r))
		if err != nil {
			status := http.StatusForbidden
			if errors.Is(err, ErrMissingToken) {
				status = http.StatusUnauthorized
			}
			logger.FromContext(r.Context()).Info("authentication failed",
				zap.Int("status", status),
				zap.Error(err),
			)
			writeError(w, status, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// Sign issues a token for the identity. The login route lives outside this service;
// this is used by tooling and tests.
func Sign(secret string, identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:       identity.ID,
		Username: identity.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

// FromContext returns the identity set by Middleware, or nil
func FromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(ctxKey{}).(*Identity)
	return identity
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := ErrInvalidToken.Error()
	if errors.Is(err, ErrMissingToken) {
		msg = ErrMissingToken.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
