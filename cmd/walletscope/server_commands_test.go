package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/brojonat/walletscope/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCommand_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	os.Setenv("WALLETSCOPE_SERVER_URL", server.URL)
	defer os.Unsetenv("WALLETSCOPE_SERVER_URL")

	err := testApp().Run([]string{"walletscope", "server", "health"})
	require.NoError(t, err)
}

func TestHealthCommand_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	os.Setenv("WALLETSCOPE_SERVER_URL", server.URL)
	defer os.Unsetenv("WALLETSCOPE_SERVER_URL")

	err := testApp().Run([]string{"walletscope", "server", "health"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}

func TestHealthCommand_MissingServerURL(t *testing.T) {
	os.Unsetenv("WALLETSCOPE_SERVER_URL")

	err := testApp().Run([]string{"walletscope", "server", "health"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server-url is required")
}

func TestInfoCommand_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(client.ServiceInfo{
			Service: "walletscope",
			Version: "0.1.0",
			Endpoints: map[string]string{
				"summary": "/api/v1/wallets/{address}/summary",
			},
		})
	}))
	defer server.Close()

	err := testApp().Run([]string{"walletscope", "-s", server.URL, "server", "info"})
	require.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	version = "1.0.0"
	commit = "abc123"
	date = "2026-08-30"

	err := testApp().Run([]string{"walletscope", "server", "version"})
	require.NoError(t, err)
}
