package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.NotEmpty(t, cfg.DatabaseDSN)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 2*time.Second, cfg.DeliveryTimeout)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.False(t, cfg.StorageEnabled())
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cr3t")
	t.Setenv("DATABASE_URL", "postgres://db/roomhub")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("SEED_USERS", "u1,u2")
	t.Setenv("DELIVERY_TIMEOUT", "750ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"u1", "u2"}, cfg.SeedUsers)
	assert.Equal(t, 750*time.Millisecond, cfg.DeliveryTimeout)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"secret required in production", map[string]string{"ENVIRONMENT": "production", "DATABASE_URL": "x"}},
		{"dsn required in production", map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": "x"}},
		{"privileged port", map[string]string{"PORT": "80"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"partial s3", map[string]string{"S3_BUCKET_NAME": "bucket"}},
		{"zero timeout", map[string]string{"LOCK_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", "development")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
