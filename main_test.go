package main

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	svc "github.com/krshsl/skillcards/backend/services"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins string
		requestOrigin  string
		expected       bool
	}{
		{
			name:           "Allowed origin - exact match",
			allowedOrigins: "http://localhost,http://example.com",
			requestOrigin:  "http://localhost",
			expected:       true,
		},
		{
			name:           "Allowed origin - second in list",
			allowedOrigins: "http://localhost,http://example.com",
			requestOrigin:  "http://example.com",
			expected:       true,
		},
		{
			name:           "Disallowed origin",
			allowedOrigins: "http://localhost,http://example.com",
			requestOrigin:  "http://malicious.com",
			expected:       false,
		},
		{
			name:           "Empty allowed origins - deny all",
			allowedOrigins: "",
			requestOrigin:  "http://localhost",
			expected:       false,
		},
		{
			name:           "Origin with whitespace in config",
			allowedOrigins: "http://localhost, http://example.com",
			requestOrigin:  "http://example.com",
			expected:       true,
		},
		{
			name:           "Trailing comma does not allow empty origin",
			allowedOrigins: "http://localhost,",
			requestOrigin:  "",
			expected:       false,
		},
		{
			name:           "Port-specific origin allowed",
			allowedOrigins: "http://localhost:5173",
			requestOrigin:  "http://localhost:5173",
			expected:       true,
		},
		{
			name:           "Port mismatch - deny",
			allowedOrigins: "http://localhost:5173",
			requestOrigin:  "http://localhost:8080",
			expected:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset viper config for each test
			viper.Reset()
			viper.Set("websocket.allowed_origins", tt.allowedOrigins)

			req := httptest.NewRequest("GET", "/api/v1/interviews/1/ws", nil)
			req.Header.Set("Origin", tt.requestOrigin)

			allowed := viper.GetString("websocket.allowed_origins")
			result := svc.CheckOrigin(req, allowed)

			assert.Equal(t, tt.expected, result, "origin %s with allowed origins %q", tt.requestOrigin, tt.allowedOrigins)
		})
	}
}

func TestTokenCommand(t *testing.T) {
	viper.Reset()
	t.Setenv("JWT_SECRET", "cli-secret")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--subject", "reviewer", "--ttl", "1h"})
	require.NoError(t, rootCmd.Execute())

	claims, err := svc.NewAuthService("cli-secret").VerifyAccessToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "reviewer", claims.Subject)
}

func TestBuildDependenciesWithoutGemini(t *testing.T) {
	viper.Reset()
	config := &svc.Config{
		Cards: svc.CardsConfig{Enabled: true, Store: "local", Dir: t.TempDir()},
		Locks: svc.LockConfig{Backend: "memory"},
	}

	deps, err := buildDependencies(t.Context(), config, nil)
	require.NoError(t, err)
	defer deps.close()

	assert.False(t, deps.capabilities.QuestionGeneration)
	assert.False(t, deps.capabilities.CardImages)
	assert.Equal(t, "local", deps.capabilities.CardStore)
	assert.NotNil(t, deps.cards)

	config.Locks.Backend = "zookeeper"
	_, err = buildDependencies(t.Context(), config, nil)
	assert.Error(t, err)
}
