//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestLivez(t *testing.T) {
	resp := doGet(t, "/livez")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeJSON[healthResponse](t, resp)
	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %q", body.Status)
	}
}

// The stack runs with postgres and without courier credentials, so the only
// readiness check is the database and it must pass.
func TestReadyz_DatabaseHealthy(t *testing.T) {
	resp := doGet(t, "/readyz")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeJSON[healthResponse](t, resp)
	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %q (checks %v)", body.Status, body.Checks)
	}
	if len(body.Checks) != 0 {
		t.Errorf("expected no failing checks, got %v", body.Checks)
	}
}

func TestHealthChecks_NotRateLimited(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		resp := doGet(t, path)
		resp.Body.Close()
		if limit := resp.Header.Get("X-RateLimit-Limit"); limit != "" {
			t.Errorf("%s: unexpected X-RateLimit-Limit %q", path, limit)
		}
	}
}
