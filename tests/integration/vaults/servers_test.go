package vaults_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const testVaultToken = "s.integration-token"

// mockHashiCorpServer serves KV v1 and v2 reads and token lookups for the
// secrets map, keyed by "<mount>/<path>".
func mockHashiCorpServer(t *testing.T, secrets map[string]map[string]interface{}) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Header.Get("X-Vault-Token") != testVaultToken {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/v1/")
		switch {
		case r.Method == http.MethodGet && path == "auth/token/lookup-self":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{"id": testVaultToken, "policies": []string{"default"}},
			})

		case r.Method == http.MethodGet && strings.Contains(path, "/data/"):
			key := strings.Replace(path, "/data/", "/", 1)
			data, ok := secrets[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"errors":[]}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"data":     data,
					"metadata": map[string]interface{}{"version": 1, "deletion_time": "", "destroyed": false},
				},
			})

		case r.Method == http.MethodGet:
			data, ok := secrets[path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"errors":[]}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})

		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":["unsupported path"]}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// mockAkeylessServer creates a mock Akeyless gateway. The SDK talks plain
// JSON over POST, so the real client code runs against it.
func mockAkeylessServer(t *testing.T, secrets map[string]string) (*httptest.Server, *int32) {
	t.Helper()

	var authCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var body map[string]interface{}
		if r.Method == http.MethodPost {
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, &body)
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/auth":
			atomic.AddInt32(&authCalls, 1)
			accessID, _ := body["access-id"].(string)
			accessKey, _ := body["access-key"].(string)
			if accessID == "invalid" || accessKey == "invalid" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error": "Authentication failed"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"token": "akeyless-token-12345"})

		case r.Method == http.MethodPost && r.URL.Path == "/get-secret-value":
			if token, _ := body["token"].(string); token == "" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error": "Missing token"}`))
				return
			}
			names, _ := body["names"].([]interface{})
			response := make(map[string]string)
			for _, n := range names {
				name, _ := n.(string)
				if value, ok := secrets[name]; ok {
					response[name] = value
				}
			}
			if len(response) == 0 {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error": "Secret not found"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(response)

		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "Endpoint not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &authCalls
}
