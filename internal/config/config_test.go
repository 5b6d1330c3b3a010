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

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
env: dev
store:
  driver: restdb
  url: https://recipes-1234.restdb.io/rest
  api_key: key
  timeout: 5s
auth:
  jwt_secret: secret
  password_scheme: plain
http_server:
  address: ":8080"
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "restdb", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.Equal(t, "plain", cfg.Auth.PasswordScheme)
	assert.Equal(t, ":8080", cfg.HTTPServer.Address)
	assert.Equal(t, 60*time.Second, cfg.HTTPServer.IdleTimeout)
}

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_TOKEN", "from-env")
	t.Setenv("PORT", "3000")

	path := writeConfig(t, "env: local\n")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "bcrypt", cfg.Auth.PasswordScheme)
	assert.Equal(t, 15*time.Second, cfg.Store.Timeout)
	assert.Equal(t, ":3000", cfg.HTTPServer.ListenAddr())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store: Store{Driver: "restdb", URL: "https://x.restdb.io/rest", APIKey: "k"},
			Auth:  Auth{JWTSecret: "s", PasswordScheme: "bcrypt"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid restdb", func(c *Config) {}, false},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, true},
		{"unknown scheme", func(c *Config) { c.Auth.PasswordScheme = "md5" }, true},
		{"restdb without key", func(c *Config) { c.Store.APIKey = "" }, true},
		{"restdb without url", func(c *Config) { c.Store.URL = "" }, true},
		{"postgres", func(c *Config) { c.Store.Driver = "postgres"; c.Postgres.DbURL = "postgres://localhost/recipes" }, false},
		{"postgres without url", func(c *Config) { c.Store.Driver = "postgres" }, true},
		{"memory", func(c *Config) { c.Store = Store{Driver: "memory"} }, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestListenAddr(t *testing.T) {
	assert.Equal(t, ":5000", HTTPServer{Address: ":5000"}.ListenAddr())
	assert.Equal(t, ":4000", HTTPServer{Address: ":5000", Port: "4000"}.ListenAddr())
}

func TestMustLoadConfigPanicsOnMissingFile(t *testing.T) {
	assert.Panics(t, func() {
		MustLoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	})
}
