package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/modelmesh/config"
	"github.com/BaSui01/modelmesh/internal/ctxkeys"
	"github.com/BaSui01/modelmesh/internal/metrics"
)

var collectorSeq atomic.Int64

// newTestCollector 每次使用独立命名空间，避免重复注册到默认 registry
func newTestCollector() *metrics.Collector {
	return metrics.NewCollector(fmt.Sprintf("cmd_test_%d", collectorSeq.Add(1)), zap.NewNop())
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestRequestID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ctxkeys.RequestID(r.Context())
	})
	handler := Chain(inner, SecurityHeaders(), RequestID())

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		id := w.Header().Get("X-Request-ID")
		assert.True(t, strings.HasPrefix(id, "req-"))
		assert.Equal(t, id, seen)
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	})

	t.Run("preserved", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/test", nil)
		r.Header.Set("X-Request-ID", "client-123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, "client-123", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "client-123", seen)
	})
}

func TestRecovery(t *testing.T) {
	handler := Recovery(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/rounds", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))
}

func TestAPIKeyAuth(t *testing.T) {
	handler := APIKeyAuth([]string{"secret"}, []string{"/health", "POST /api/v1/contributions"}, false, zap.NewNop())(okHandler())

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{"valid key", http.MethodGet, "/api/v1/experts", "secret", http.StatusOK},
		{"missing key", http.MethodGet, "/api/v1/experts", "", http.StatusUnauthorized},
		{"wrong key", http.MethodGet, "/api/v1/experts", "nope", http.StatusUnauthorized},
		{"skipped path", http.MethodGet, "/health", "", http.StatusOK},
		{"skipped method and path", http.MethodPost, "/api/v1/contributions", "", http.StatusOK},
		{"other method on skipped path", http.MethodGet, "/api/v1/contributions", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.key != "" {
				r.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
			}
		})
	}
}

func TestAPIKeyAuth_NoKeysDisablesCheck(t *testing.T) {
	handler := APIKeyAuth(nil, nil, false, zap.NewNop())(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/rounds", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuth_QueryParameter(t *testing.T) {
	handler := APIKeyAuth([]string{"secret"}, nil, true, zap.NewNop())(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events?api_key=secret", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

// =============================================================================
// 🔐 NodeAuth
// =============================================================================

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestNodeAuth(t *testing.T) {
	cfg := config.JWTConfig{Secret: "node-secret", Issuer: "modelmesh"}

	var node string
	handler := NodeAuth(cfg, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		node, _ = ctxkeys.NodeID(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	valid := signToken(t, "node-secret", jwt.MapClaims{
		"sub": "node-a",
		"iss": "modelmesh",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, "node-secret", jwt.MapClaims{
		"sub": "node-a",
		"iss": "modelmesh",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongIssuer := signToken(t, "node-secret", jwt.MapClaims{"sub": "node-a", "iss": "other"})
	wrongSecret := signToken(t, "other-secret", jwt.MapClaims{"sub": "node-a", "iss": "modelmesh"})
	noSubject := signToken(t, "node-secret", jwt.MapClaims{"iss": "modelmesh"})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusAccepted},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + wrongIssuer, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + wrongSecret, http.StatusUnauthorized},
		{"no subject", "Bearer " + noSubject, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node = ""
			r := httptest.NewRequest(http.MethodPost, "/api/v1/contributions", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusAccepted {
				assert.Equal(t, "node-a", node)
			} else {
				assert.Empty(t, node)
			}
		})
	}
}

func TestNodeAuth_DisabledPassesThrough(t *testing.T) {
	handler := NodeAuth(config.JWTConfig{}, zap.NewNop())(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/contributions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

// =============================================================================
// 🚦 RateLimiter / MaxBody / CORS
// =============================================================================

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 1, 2, zap.NewNop())(okHandler())

	send := func(remote string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/experts", nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1002"))
	// 不同 IP 独立计数
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000"))
}

func TestMaxBody(t *testing.T) {
	handler := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("short")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("much longer than eight bytes")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://dash.example.com"})(okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/experts", nil)
		r.Header.Set("Origin", "https://dash.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://dash.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight allowed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/route", nil)
		r.Header.Set("Origin", "https://dash.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("preflight from unknown origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/route", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("same origin request", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/experts", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

// =============================================================================
// 📊 Metrics
// =============================================================================

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/api/v1/route", "/api/v1/route"},
		{"/api/v1/search/best", "/api/v1/search/best"},
		{"/api/v1/experts/coder", "/api/v1/experts/:id"},
		{"/api/v1/experts/coder/status", "/api/v1/experts/:id/status"},
		{"/api/v1/rounds/42", "/api/v1/rounds/:id"},
		{"/api/v1/snapshots/5f0c6a7e-1b2c-4d3e-8f90-abcdefabcdef", "/api/v1/snapshots/:id"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	handler := MetricsMiddleware(newTestCollector())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/experts/coder", strings.NewReader("{}")))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}
