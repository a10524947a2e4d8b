package headscale

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{URL: srv.URL, APIKey: "test-key"})
}

func TestResolveUsername(t *testing.T) {
	ctx := context.Background()

	registry := `{"machines":[
		{"name":"laptop","ipAddresses":["100.64.0.7"],"user":{"name":"dave"}},
		{"name":"phone","ipAddresses":["100.64.0.8"],"user":{"name":""}}
	]}`

	t.Run("prefers the user name and sends the bearer token", func(t *testing.T) {
		var gotAuth string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			if r.URL.Path != "/api/v1/machine" {
				t.Errorf("path = %s", r.URL.Path)
			}
			w.Write([]byte(registry))
		})

		name, ok := client.ResolveUsername(ctx, "100.64.0.7")
		if !ok || name != "dave" {
			t.Fatalf("resolved = %q, %v", name, ok)
		}
		if gotAuth != "Bearer test-key" {
			t.Errorf("auth header = %q", gotAuth)
		}
	})

	t.Run("falls back to the machine name", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(registry))
		})

		name, ok := client.ResolveUsername(ctx, "100.64.0.8")
		if !ok || name != "phone" {
			t.Fatalf("resolved = %q, %v", name, ok)
		}
	})

	t.Run("unknown address resolves to nothing", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(registry))
		})

		if name, ok := client.ResolveUsername(ctx, "100.64.0.99"); ok {
			t.Fatalf("resolved unknown address to %q", name)
		}
	})

	t.Run("server errors degrade to not resolved", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		if _, ok := client.ResolveUsername(ctx, "100.64.0.7"); ok {
			t.Fatal("resolved despite server error")
		}
	})

	t.Run("missing configuration degrades to not resolved", func(t *testing.T) {
		client := NewClient(Config{})

		if _, ok := client.ResolveUsername(ctx, "100.64.0.7"); ok {
			t.Fatal("resolved without configuration")
		}
	})
}
