//go:build integration

package integration

import (
	"net/http"
	"testing"
)

// The test stack runs without courier credentials or a geography snapshot,
// so lookups that reach the courier fail upstream.
func TestDelivery_NotConfigured(t *testing.T) {
	for _, path := range []string{"/delivery/cities", "/delivery/zones?city_id=1", "/delivery/areas?zone_id=101"} {
		t.Run(path, func(t *testing.T) {
			resp := doGet(t, path)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadGateway {
				t.Fatalf("expected 502, got %d", resp.StatusCode)
			}
			body := decodeJSON[errorResponse](t, resp)
			if body.Success || body.Error == "" {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

func TestDelivery_MissingParams(t *testing.T) {
	tests := []struct {
		path    string
		wantErr string
	}{
		{"/delivery/zones", "city_id is required"},
		{"/delivery/zones?city_id=abc", "Invalid city_id"},
		{"/delivery/areas", "zone_id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := doGet(t, tt.path)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			body := decodeJSON[errorResponse](t, resp)
			if body.Error != tt.wantErr {
				t.Errorf("error: got %q, want %q", body.Error, tt.wantErr)
			}
		})
	}
}

func TestDeliveryPrice_RequiresRoute(t *testing.T) {
	resp := doPost(t, "/delivery/price", map[string]any{"item_weight": 1})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Error != "city_id and zone_id are required" {
		t.Errorf("error: got %q", body.Error)
	}
}
