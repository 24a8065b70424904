package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
service_name = "bonus"

[http]
port = 9090

[auth]
admin_secret = "adm"
jwt_secret = "jwt"

[policy]
daily_rate = "0.08"
withdrawal_weekday = "friday"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "0.08", cfg.Policy.DailyRate)
	assert.Equal(t, "friday", cfg.Policy.WithdrawalWeekday)
	// 未配置的字段落到默认值
	assert.Equal(t, "500", cfg.Policy.MinAmount)
	assert.Equal(t, 3, cfg.Policy.MaxFailedLogins)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "@every 1h", cfg.Scheduler.AccrualSchedule)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_AUTH_ADMIN_SECRET", "from-env")
	t.Setenv("APP_AUTH_JWT_SECRET", "jwt-env")
	t.Setenv("APP_HTTP_PORT", "7000")
	t.Setenv("APP_POLICY_MAX_FAILED_LOGINS", "5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.AdminSecret)
	assert.Equal(t, 7000, cfg.HTTP.Port)
	assert.Equal(t, 5, cfg.Policy.MaxFailedLogins)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing admin secret", "[auth]\njwt_secret = \"j\"\n"},
		{"missing jwt secret", "[auth]\nadmin_secret = \"a\"\n"},
		{"mysql without dsn", "[auth]\nadmin_secret = \"a\"\njwt_secret = \"j\"\n[database]\ndriver = \"mysql\"\n"},
		{"unknown driver", "[auth]\nadmin_secret = \"a\"\njwt_secret = \"j\"\n[database]\ndriver = \"oracle\"\n"},
		{"rate limit without redis", "[auth]\nadmin_secret = \"a\"\njwt_secret = \"j\"\n[rate_limit]\nenabled = true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("APP_CONFIG_FILE", "")
	assert.Equal(t, "fallback.toml", GetEnv("APP_CONFIG_FILE", "fallback.toml"))

	t.Setenv("APP_CONFIG_FILE", "/etc/bonus.toml")
	assert.Equal(t, "/etc/bonus.toml", GetEnv("APP_CONFIG_FILE", "fallback.toml"))
}
