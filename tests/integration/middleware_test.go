//go:build integration

package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func send(t *testing.T, method, path string, headers map[string]string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestRequestID(t *testing.T) {
	resp := doGet(t, "/delivery/cities")
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("X-Request-ID header not present")
	}

	resp = send(t, http.MethodPost, "/orders", map[string]string{
		"Content-Type": "application/json",
		"X-Request-ID": "checkout-retry-7",
	}, "{")
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "checkout-retry-7" {
		t.Errorf("X-Request-ID: got %q, want %q", got, "checkout-retry-7")
	}
}

// The storefront posts JSON orders cross-origin, which needs a preflight.
func TestCORS_OrderPreflight(t *testing.T) {
	resp := send(t, http.MethodOptions, "/orders", map[string]string{
		"Origin":                         "https://shop.example",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "Content-Type",
	}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("Access-Control-Allow-Origin header not present")
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Errorf("Access-Control-Allow-Methods: got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Content-Type") {
		t.Errorf("Access-Control-Allow-Headers: got %q", got)
	}
}

func TestCORS_ExposesRequestID(t *testing.T) {
	resp := send(t, http.MethodGet, "/delivery/cities", map[string]string{"Origin": "https://shop.example"}, "")
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("Access-Control-Allow-Origin header not present")
	}
	if got := resp.Header.Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Request-ID") {
		t.Errorf("Access-Control-Expose-Headers: got %q", got)
	}
}

func TestRateLimit_Budgets(t *testing.T) {
	browse := doGet(t, "/delivery/cities")
	browse.Body.Close()
	if browse.Header.Get("X-RateLimit-Limit") == "" || browse.Header.Get("X-RateLimit-Remaining") == "" {
		t.Error("rate limit headers not present")
	}

	resp := send(t, http.MethodPost, "/orders", map[string]string{"Content-Type": "application/json"}, "{")
	resp.Body.Close()

	// The compose stack raises the order budget to 10000.
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-RateLimit-Limit"); got != "10000" {
		t.Errorf("orders X-RateLimit-Limit: got %q", got)
	}
}
