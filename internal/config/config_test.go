package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: s3cret
http_server:
  address: ":8080"
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "jwt:blacklist", cfg.Redis.KeyPrefix)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 60*time.Minute, cfg.JWT.TTL)
	assert.Equal(t, 336*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, "users", cfg.JWT.SubjectProvider)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, ":8080", cfg.HTTPServer.Address)
	assert.Equal(t, 10*time.Second, cfg.HTTPServer.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTPServer.ShutdownTimeout)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
db:
  driver: sqlite
jwt:
  secret: from-file
  ttl: 5m
http_server:
  address: ":8080"
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("JWT_TTL", "90s")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 90*time.Second, cfg.JWT.TTL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "unknown driver",
			body: `
db:
  driver: mysql
jwt:
  secret: s
http_server:
  address: ":8080"
`,
		},
		{
			name: "negative refresh window",
			body: `
jwt:
  secret: s
  refresh_ttl: -1m
http_server:
  address: ":8080"
`,
		},
		{
			name: "missing secret",
			body: `
http_server:
  address: ":8080"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestMustLoadConfig_MissingFilePanics(t *testing.T) {
	assert.Panics(t, func() {
		MustLoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	})
}
