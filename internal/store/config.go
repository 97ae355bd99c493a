package store

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend struct {
		BaseURL           string `yaml:"base_url"`
		StatePath         string `yaml:"state_path"`
		DashboardPath     string `yaml:"dashboard_path"`
		LogoutURL         string `yaml:"logout_url"`
		SessionCookieName string `yaml:"session_cookie_name"`
		TimeoutSeconds    int    `yaml:"timeout_seconds"`
	} `yaml:"backend"`
	Channel struct {
		URL                 string `yaml:"url"`
		ReconnectDelayMs    int    `yaml:"reconnect_delay_ms"`
		ReconnectDelayMaxMs int    `yaml:"reconnect_delay_max_ms"`
		// Randomization is nil when the key is absent; 0 disables jitter.
		Randomization *float64 `yaml:"randomization"`
		MaxAttempts   int      `yaml:"max_attempts"`
	} `yaml:"channel"`
	Actions []ActionConfig `yaml:"actions"`
	Display struct {
		PrimaryIndex string `yaml:"primary_index"`
		NoColor      bool   `yaml:"no_color"`
	} `yaml:"display"`
	Journal struct {
		Enabled          bool   `yaml:"enabled"`
		Dir              string `yaml:"dir"`
		RetentionDays    int    `yaml:"retention_days"`
		CompressSchedule string `yaml:"compress_schedule"`
	} `yaml:"journal"`
	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		ChatID  string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Secrets Secrets `yaml:"-"`
}

// ActionConfig describes one emergency command bound to a control.
type ActionConfig struct {
	Name           string `yaml:"name"`
	Path           string `yaml:"path"`
	Label          string `yaml:"label"`
	BusyLabel      string `yaml:"busy_label"`
	Confirm        string `yaml:"confirm"`
	SuccessMessage string `yaml:"success_message"`
	FailureMessage string `yaml:"failure_message"`
}

// Secrets never live in config.yaml; they come from the environment or .env.
type Secrets struct {
	SessionCookie string `envconfig:"DASH_SESSION_COOKIE"`
	TelegramToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
}

// DefaultSquareOff is the built-in emergency square-off action.
func DefaultSquareOff() ActionConfig {
	return ActionConfig{
		Name:           "square-off",
		Path:           "/api/square-off",
		Label:          "EMERGENCY SQUARE OFF",
		BusyLabel:      "Processing...",
		Confirm:        "Are you sure you want to perform an EMERGENCY SQUARE OFF? This action cannot be undone.",
		SuccessMessage: "Square-off complete.",
		FailureMessage: "Square-off failed. Check server logs.",
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend.base_url '%s': must be an absolute URL", c.Backend.BaseURL)
	}
	ch, err := url.Parse(c.Channel.URL)
	if err != nil || (ch.Scheme != "ws" && ch.Scheme != "wss" && ch.Scheme != "http" && ch.Scheme != "https") {
		return fmt.Errorf("invalid channel.url '%s': must be a ws(s) or http(s) URL", c.Channel.URL)
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend.timeout_seconds must be positive, got %d", c.Backend.TimeoutSeconds)
	}
	if c.Channel.ReconnectDelayMaxMs < c.Channel.ReconnectDelayMs {
		return fmt.Errorf("channel.reconnect_delay_max_ms (%d) must be >= reconnect_delay_ms (%d)",
			c.Channel.ReconnectDelayMaxMs, c.Channel.ReconnectDelayMs)
	}
	if r := c.Channel.Randomization; r != nil && (*r < 0 || *r > 1) {
		return fmt.Errorf("channel.randomization must be between 0-1, got %.2f", *r)
	}
	seen := make(map[string]bool, len(c.Actions))
	for _, a := range c.Actions {
		if a.Name == "" || !strings.HasPrefix(a.Path, "/") {
			return fmt.Errorf("action '%s': name and an absolute path are required", a.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("action '%s' declared twice", a.Name)
		}
		seen[a.Name] = true
	}
	if c.Telegram.Enabled && (c.Telegram.ChatID == "" || c.Secrets.TelegramToken == "") {
		return errors.New("telegram.enabled requires telegram.chat_id and TELEGRAM_BOT_TOKEN")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if err := envconfig.Process("", &c.Secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets from environment: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

// Jitter is the configured reconnect randomization factor.
func (c *Config) Jitter() float64 {
	if c.Channel.Randomization == nil {
		return 0.5
	}
	return *c.Channel.Randomization
}

func (c *Config) applyDefaults() {
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.StatePath == "" {
		c.Backend.StatePath = "/api/get-dashboard-state"
	}
	if c.Backend.DashboardPath == "" {
		c.Backend.DashboardPath = "/dashboard"
	}
	if c.Backend.SessionCookieName == "" {
		c.Backend.SessionCookieName = "session"
	}
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 15
	}

	// Socket.IO lives next to the HTTP API unless told otherwise
	if c.Channel.URL == "" && c.Backend.BaseURL != "" {
		c.Channel.URL = c.Backend.BaseURL + "/socket.io/"
	}
	if c.Channel.ReconnectDelayMs == 0 {
		c.Channel.ReconnectDelayMs = 1000
	}
	if c.Channel.ReconnectDelayMaxMs == 0 {
		c.Channel.ReconnectDelayMaxMs = 5000
	}
	if c.Channel.Randomization == nil {
		r := 0.5
		c.Channel.Randomization = &r
	}

	if len(c.Actions) == 0 {
		c.Actions = []ActionConfig{DefaultSquareOff()}
	}
	def := DefaultSquareOff()
	for i := range c.Actions {
		a := &c.Actions[i]
		if a.Label == "" {
			a.Label = strings.ToUpper(a.Name)
		}
		if a.BusyLabel == "" {
			a.BusyLabel = def.BusyLabel
		}
		if a.Confirm == "" {
			a.Confirm = fmt.Sprintf("Are you sure you want to perform %s?", a.Label)
		}
		if a.SuccessMessage == "" {
			a.SuccessMessage = "Done."
		}
		if a.FailureMessage == "" {
			a.FailureMessage = fmt.Sprintf("%s failed. Check server logs.", a.Label)
		}
	}

	if c.Display.PrimaryIndex == "" {
		c.Display.PrimaryIndex = "Nifty 50"
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "logs"
	}
	if c.Journal.CompressSchedule == "" {
		c.Journal.CompressSchedule = "@daily"
	}
}
