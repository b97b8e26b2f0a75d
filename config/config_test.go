package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 10, cfg.DBMaxPool)
	assert.Equal(t, StartNumberScopeGlobal, cfg.StartNumberScope)
	assert.Equal(t, 5*time.Minute, cfg.SecretsCacheTTL)
	assert.Equal(t, time.Hour, cfg.RouteSweepMinAge)
	assert.Zero(t, cfg.RouteSweepEvery)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	assert.Empty(t, cfg.TrustedProxies)
	assert.False(t, cfg.EmailEnabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DB_MAX_POOL", "2")
	t.Setenv("START_NUMBER_SCOPE", "event")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("ROUTE_SWEEP_INTERVAL", "30m")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "us-east-1")
	t.Setenv("S3_PUBLIC_BASE_URL", "https://cdn.example.com/")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("FROM_EMAIL", "noreply@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 2, cfg.DBMaxPool)
	assert.Equal(t, StartNumberScopeEvent, cfg.StartNumberScope)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.RouteSweepEvery)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "https://cdn.example.com", cfg.S3PublicBaseURL)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.TrustedProxies)
	assert.True(t, cfg.EmailEnabled())
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown driver", "DB_DRIVER", "oracle"},
		{"unknown start number scope", "START_NUMBER_SCOPE", "club"},
		{"zero pool", "DB_MAX_POOL", "0"},
		{"negative upload limit", "MAX_UPLOAD_BYTES", "-1"},
		{"bad trusted proxy", "TRUSTED_PROXIES", "10.0.0.0/8,load-balancer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
