package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// fixedLimiter is a limiter whose clock is moved by hand.
func fixedLimiter(cfg RateLimitConfig) (*limiter, *time.Time) {
	l := newLimiter(cfg)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func hit(h http.Handler, method, path, ip string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, nil)
	r.RemoteAddr = ip + ":4242"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRateLimit_SpendsBudget(t *testing.T) {
	l, _ := fixedLimiter(RateLimitConfig{Default: Budget{Max: 3, Window: time.Minute}})
	h := l.middleware(okHandler())

	for want := 2; want >= 0; want-- {
		w := hit(h, http.MethodGet, "/delivery/cities", "10.0.0.1")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(want), w.Header().Get("X-RateLimit-Remaining"))
	}

	w := hit(h, http.MethodGet, "/delivery/cities", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"success":false,"error":"Too many requests, please try again shortly"}`, w.Body.String())
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	l, _ := fixedLimiter(RateLimitConfig{Default: Budget{Max: 1, Window: time.Minute}})
	h := l.middleware(okHandler())

	assert.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodGet, "/", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/", "10.0.0.2").Code)
}

func TestRateLimit_RouteBudget(t *testing.T) {
	l, _ := fixedLimiter(RateLimitConfig{
		Default: Budget{Max: 100, Window: time.Minute},
		Routes: []RouteBudget{
			{Method: http.MethodPost, Path: "/orders", Budget: Budget{Max: 2, Window: 10 * time.Minute}},
		},
		Message: "Too many orders",
	})
	h := l.middleware(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, hit(h, http.MethodPost, "/orders", "10.0.0.1").Code)
	}
	w := hit(h, http.MethodPost, "/orders", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Contains(t, w.Body.String(), "Too many orders")

	// Browsing is counted against the default budget.
	w = hit(h, http.MethodGet, "/delivery/cities", "10.0.0.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "99", w.Header().Get("X-RateLimit-Remaining"))

	// Only the exact method is limited by the route budget.
	assert.Equal(t, http.StatusOK, hit(h, http.MethodOptions, "/orders", "10.0.0.1").Code)
}

func TestRateLimit_WindowSlides(t *testing.T) {
	l, now := fixedLimiter(RateLimitConfig{Default: Budget{Max: 4, Window: time.Minute}})
	h := l.middleware(okHandler())

	for range 4 {
		require.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/", "10.0.0.1").Code)
	}
	require.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodGet, "/", "10.0.0.1").Code)

	// Half way into the next window half of the previous hits still count.
	*now = now.Add(90 * time.Second)
	for range 2 {
		require.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/", "10.0.0.1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodGet, "/", "10.0.0.1").Code)

	// After two idle windows the client starts over.
	*now = now.Add(3 * time.Minute)
	w := hit(h, http.MethodGet, "/", "10.0.0.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_Skip(t *testing.T) {
	l, _ := fixedLimiter(RateLimitConfig{
		Default: Budget{Max: 1, Window: time.Minute},
		Skip:    func(r *http.Request) bool { return r.URL.Path == "/livez" },
	})
	h := l.middleware(okHandler())

	for range 3 {
		w := hit(h, http.MethodGet, "/livez", "10.0.0.1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimit_ClientKey(t *testing.T) {
	l, _ := fixedLimiter(RateLimitConfig{
		Default:   Budget{Max: 1, Window: time.Minute},
		ClientKey: func(r *http.Request) string { return r.Header.Get("X-Admin-Key") },
	})
	h := l.middleware(okHandler())

	send := func(ip, key string) int {
		r := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
		r.RemoteAddr = ip + ":1"
		r.Header.Set("X-Admin-Key", key)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, send("10.0.0.1", "a"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.2", "a"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1", "b"))
}

func TestRateLimit_Sweep(t *testing.T) {
	l, now := fixedLimiter(RateLimitConfig{
		Default: Budget{Max: 5, Window: time.Minute},
		Routes:  []RouteBudget{{Method: http.MethodPost, Path: "/orders", Budget: Budget{Max: 1, Window: time.Hour}}},
	})
	h := l.middleware(okHandler())
	hit(h, http.MethodGet, "/", "10.0.0.1")
	hit(h, http.MethodPost, "/orders", "10.0.0.1")

	l.sweep(now.Add(5 * time.Minute))
	assert.Empty(t, l.fallback.clients)
	assert.Len(t, l.routes["POST /orders"].clients, 1)
}

func TestClientIP(t *testing.T) {
	for _, tt := range []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, remote: "10.0.0.1:80", want: "203.0.113.9"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.4"}, remote: "10.0.0.1:80", want: "198.51.100.4"},
		{name: "remote addr", remote: "192.0.2.7:5000", want: "192.0.2.7"},
		{name: "remote without port", remote: "192.0.2.7", want: "192.0.2.7"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
