package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
bot:
  token: "file-token"
database:
  driver: postgres
  dsn: "postgres://worklog@localhost/worklog?sslmode=disable"
reminder:
  time: "09:30"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_AppliesDefaults(t *testing.T) {
	cfg, v, err := LoadFile(writeConfig(t, sampleConfig), "test")
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, "file-token", cfg.Bot.Token)
	assert.Equal(t, "polling", cfg.Bot.Mode)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "09:30", cfg.Reminder.Time)
	assert.Equal(t, 10, cfg.Reminder.MaxJobsPerChat)
	assert.Equal(t, "Europe/Moscow", cfg.Dialog.Timezone)
	assert.Equal(t, 30*time.Minute, cfg.Dialog.StatsTTL)
	assert.Equal(t, "@every 4h", cfg.Backup.Schedule)
}

func TestLoadFile_EnvOverride(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")

	cfg, _, err := LoadFile(writeConfig(t, sampleConfig), "test")
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Bot.Token)
}

func TestLoadFile_Validation(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "missing token", body: "bot:\n  token: \"\"\n"},
		{name: "unknown driver", body: "bot:\n  token: x\ndatabase:\n  driver: mysql\n"},
		{name: "sentry without dsn", body: "bot:\n  token: x\nsentry:\n  enabled: true\n"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := LoadFile(writeConfig(t, tc.body), "test")
			assert.Error(t, err)
		})
	}
}
