package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"weatherdesk/internal/auth"
)

type memoryStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{counts: make(map[string]int64)}
}

func (m *memoryStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	return m.counts[key], nil
}

var testConfig = Config{MaxRequests: 10, Window: 24 * time.Hour, PrivilegedUser: "Admin"}

func TestKeyFor(t *testing.T) {
	l := New(newMemoryStore(), testConfig)

	tests := []struct {
		name       string
		identity   *auth.Identity
		remoteAddr string
		want       string
	}{
		{"user", &auth.Identity{ID: 42, Username: "alice"}, "10.0.0.1:5555", "user:42"},
		{"privileged", &auth.Identity{ID: 1, Username: "Admin"}, "10.0.0.1:5555", UnlimitedKey},
		{"privileged is case sensitive", &auth.Identity{ID: 1, Username: "admin"}, "", "user:1"},
		{"anonymous", nil, "10.0.0.1:5555", "ip:10.0.0.1"},
		{"anonymous without port", nil, "10.0.0.1", "ip:10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.KeyFor(tt.identity, tt.remoteAddr); got != tt.want {
				t.Errorf("KeyFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllow_EleventhRejected(t *testing.T) {
	l := New(newMemoryStore(), testConfig)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		d := l.Allow(ctx, "user:1")
		if !d.Allowed {
			t.Fatalf("request %d rejected, want allowed", i)
		}
		assert.Equal(t, 10-i, d.Remaining)
	}

	d := l.Allow(ctx, "user:1")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	// other callers keep their own quota
	assert.True(t, l.Allow(ctx, "user:2").Allowed)
}

func TestAllow_PrivilegedNeverCounted(t *testing.T) {
	store := newMemoryStore()
	l := New(store, testConfig)

	for i := 0; i < 50; i++ {
		if !l.Allow(context.Background(), UnlimitedKey).Allowed {
			t.Fatalf("privileged request %d rejected", i)
		}
	}
	assert.Empty(t, store.counts)
}

func TestAllow_StoreErrorFailsOpen(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("redis down")
	l := New(store, testConfig)

	if !l.Allow(context.Background(), "user:1").Allowed {
		t.Error("Allow() rejected on store error, want fail open")
	}
}

func TestMiddleware(t *testing.T) {
	l := New(newMemoryStore(), Config{MaxRequests: 2, Window: time.Hour, PrivilegedUser: "Admin"})

	calls := 0
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	do := func(identity *auth.Identity) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/weather", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	alice := &auth.Identity{ID: 5, Username: "alice"}
	assert.Equal(t, http.StatusOK, do(alice).Code)
	assert.Equal(t, http.StatusOK, do(alice).Code)

	w := do(alice)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"too many requests, try again later"}`, w.Body.String())
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, 2, calls, "rejected request must not reach the handler")

	admin := &auth.Identity{ID: 1, Username: "Admin"}
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(admin).Code)
	}
}
