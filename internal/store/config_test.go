package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DASH_SESSION_COOKIE", "cookie-value")
	p := writeConfig(t, `
backend:
  base_url: https://algo4all.in/
`)

	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	assert.Equal(t, "https://algo4all.in", cfg.Backend.BaseURL)
	assert.Equal(t, "/api/get-dashboard-state", cfg.Backend.StatePath)
	assert.Equal(t, "/dashboard", cfg.Backend.DashboardPath)
	assert.Equal(t, "session", cfg.Backend.SessionCookieName)
	assert.Equal(t, 15, cfg.Backend.TimeoutSeconds)
	assert.Equal(t, "https://algo4all.in/socket.io/", cfg.Channel.URL)
	assert.Equal(t, 1000, cfg.Channel.ReconnectDelayMs)
	assert.Equal(t, 5000, cfg.Channel.ReconnectDelayMaxMs)
	require.NotNil(t, cfg.Channel.Randomization)
	assert.Equal(t, 0.5, cfg.Jitter())
	assert.Equal(t, "Nifty 50", cfg.Display.PrimaryIndex)
	assert.Equal(t, "cookie-value", cfg.Secrets.SessionCookie)

	require.Len(t, cfg.Actions, 1)
	assert.Equal(t, DefaultSquareOff(), cfg.Actions[0])
}

func TestLoadConfigCustomAction(t *testing.T) {
	p := writeConfig(t, `
backend:
  base_url: http://localhost:8080
channel:
  url: ws://localhost:8080/socket.io/
actions:
  - name: pause
    path: /api/pause-trading
    label: PAUSE TRADING
`)

	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	require.Len(t, cfg.Actions, 1)
	a := cfg.Actions[0]
	assert.Equal(t, "pause", a.Name)
	assert.Equal(t, "Processing...", a.BusyLabel)
	assert.Equal(t, "Are you sure you want to perform PAUSE TRADING?", a.Confirm)
	assert.Equal(t, "PAUSE TRADING failed. Check server logs.", a.FailureMessage)
}

func TestLoadConfigZeroRandomizationDisablesJitter(t *testing.T) {
	p := writeConfig(t, `
backend:
  base_url: http://localhost:8080
channel:
  randomization: 0
`)

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.NotNil(t, cfg.Channel.Randomization)
	assert.Equal(t, 0.0, cfg.Jitter())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing base url", "display:\n  primary_index: Nifty 50\n"},
		{"bad channel scheme", "backend:\n  base_url: http://x\nchannel:\n  url: ftp://x\n"},
		{"randomization above one", "backend:\n  base_url: http://x\nchannel:\n  randomization: 1.5\n"},
		{"delay max below delay", "backend:\n  base_url: http://x\nchannel:\n  reconnect_delay_ms: 5000\n  reconnect_delay_max_ms: 100\n"},
		{"relative action path", "backend:\n  base_url: http://x\nactions:\n  - name: a\n    path: api/a\n"},
		{"duplicate action", "backend:\n  base_url: http://x\nactions:\n  - name: a\n    path: /a\n  - name: a\n    path: /b\n"},
		{"telegram without token", "backend:\n  base_url: http://x\ntelegram:\n  enabled: true\n  chat_id: \"1\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEGRAM_BOT_TOKEN", "")
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
