package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestVerify(t *testing.T) {
	v := NewVerifier(testSecret)

	valid, err := Sign(testSecret, Identity{ID: 7, Username: "alice"}, time.Hour)
	require.NoError(t, err)
	expired, err := Sign(testSecret, Identity{ID: 7, Username: "alice"}, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := Sign("other-secret", Identity{ID: 7, Username: "alice"}, time.Hour)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: 1, Username: "mallory"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", valid, nil},
		{"empty", "", ErrMissingToken},
		{"garbage", "not.a.token", ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
		{"wrong key", wrongKey, ErrInvalidToken},
		{"alg none", noneAlg, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := v.Verify(tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(7), identity.ID)
			assert.Equal(t, "alice", identity.Username)
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(testSecret)
	token, err := Sign(testSecret, Identity{ID: 3, Username: "bob"}, time.Hour)
	require.NoError(t, err)

	var seen *Identity
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"no header", "", http.StatusUnauthorized, `{"error":"missing token"}`},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, `{"error":"missing token"}`},
		{"bad token", "Bearer nope", http.StatusForbidden, `{"error":"invalid token"}`},
		{"good token", "Bearer " + token, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, "/weather", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
				assert.Nil(t, seen, "next handler must not run")
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, "bob", seen.Username)
		})
	}
}

func TestFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := FromContext(req.Context()); got != nil {
		t.Errorf("FromContext() = %v, want nil", got)
	}
}
